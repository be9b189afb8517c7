package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/models"
)

// ImageOptimizeProcessor drives image generation through the two-phase
// bridge: submit stores a correlation id, a later poll cycle collects the
// rendered asset.
type ImageOptimizeProcessor struct {
	generator Generator
	logger    *zap.Logger
}

func NewImageOptimizeProcessor(generator Generator, logger *zap.Logger) *ImageOptimizeProcessor {
	return &ImageOptimizeProcessor{
		generator: generator,
		logger:    logger,
	}
}

func (p *ImageOptimizeProcessor) Kind() models.JobKind {
	return models.JobKindImageOptimize
}

func (p *ImageOptimizeProcessor) Submit(ctx context.Context, item *models.JobItem) (*SubmitResult, error) {
	correlationID, err := p.generator.Submit(ctx, item.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit image generation for unit %s: %w", item.UnitKey, err)
	}

	p.logger.Debug("Image generation submitted",
		zap.Uint("item_id", item.ID),
		zap.String("correlation_id", correlationID))

	return &SubmitResult{CorrelationID: correlationID}, nil
}

func (p *ImageOptimizeProcessor) Poll(ctx context.Context, item *models.JobItem) (*GenerationStatus, error) {
	status, err := p.generator.Poll(ctx, item.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll image generation %s: %w", item.CorrelationID, err)
	}
	return status, nil
}
