package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/models"
)

// TextOptimizeProcessor rewrites product copy synchronously: the item
// goes straight from RUNNING to a terminal state, no PROCESSING phase.
type TextOptimizeProcessor struct {
	rewriter Rewriter
	logger   *zap.Logger
}

func NewTextOptimizeProcessor(rewriter Rewriter, logger *zap.Logger) *TextOptimizeProcessor {
	return &TextOptimizeProcessor{
		rewriter: rewriter,
		logger:   logger,
	}
}

func (p *TextOptimizeProcessor) Kind() models.JobKind {
	return models.JobKindTextOptimize
}

func (p *TextOptimizeProcessor) Submit(ctx context.Context, item *models.JobItem) (*SubmitResult, error) {
	result, err := p.rewriter.Rewrite(ctx, item.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite text for unit %s: %w", item.UnitKey, err)
	}

	p.logger.Debug("Text rewritten",
		zap.Uint("item_id", item.ID),
		zap.String("unit_key", item.UnitKey))

	return &SubmitResult{Done: true, Result: result}, nil
}

func (p *TextOptimizeProcessor) Poll(context.Context, *models.JobItem) (*GenerationStatus, error) {
	return nil, fmt.Errorf("text optimization completes synchronously and is never polled")
}
