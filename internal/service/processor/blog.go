package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/models"
	"github.com/storesmith/storesmith/pkg/util"
)

// BlogPostProcessor generates long-form articles through the two-phase
// bridge. The provider result is wrapped with a suggested handle derived
// from the requested topic.
type BlogPostProcessor struct {
	generator Generator
	logger    *zap.Logger
}

type blogPayload struct {
	Topic string `json:"topic"`
}

type blogResult struct {
	Handle  string `json:"handle"`
	Content string `json:"content"`
}

func NewBlogPostProcessor(generator Generator, logger *zap.Logger) *BlogPostProcessor {
	return &BlogPostProcessor{
		generator: generator,
		logger:    logger,
	}
}

func (p *BlogPostProcessor) Kind() models.JobKind {
	return models.JobKindBlogPost
}

func (p *BlogPostProcessor) Submit(ctx context.Context, item *models.JobItem) (*SubmitResult, error) {
	correlationID, err := p.generator.Submit(ctx, item.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit blog generation for unit %s: %w", item.UnitKey, err)
	}

	p.logger.Debug("Blog generation submitted",
		zap.Uint("item_id", item.ID),
		zap.String("correlation_id", correlationID))

	return &SubmitResult{CorrelationID: correlationID}, nil
}

func (p *BlogPostProcessor) Poll(ctx context.Context, item *models.JobItem) (*GenerationStatus, error) {
	status, err := p.generator.Poll(ctx, item.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll blog generation %s: %w", item.CorrelationID, err)
	}

	if status.State == GenerationStateCompleted {
		status.Result = p.wrapResult(item, status.Result)
	}

	return status, nil
}

// wrapResult attaches a URL handle for the catalog push. Falls back to
// the raw provider output if the payload was not the expected shape.
func (p *BlogPostProcessor) wrapResult(item *models.JobItem, content string) string {
	var payload blogPayload
	if err := json.Unmarshal([]byte(item.Payload), &payload); err != nil || payload.Topic == "" {
		return content
	}

	wrapped, err := json.Marshal(blogResult{
		Handle:  util.GenerateSlug(payload.Topic),
		Content: content,
	})
	if err != nil {
		return content
	}
	return string(wrapped)
}
