package processor

import (
	"context"

	"github.com/storesmith/storesmith/internal/models"
)

// GenerationState is the provider-reported state of an asynchronous
// generation request.
type GenerationState string

const (
	GenerationStatePending   GenerationState = "pending"
	GenerationStateCompleted GenerationState = "completed"
	GenerationStateFailed    GenerationState = "failed"
)

// GenerationStatus is what a provider reports for a correlation id.
type GenerationStatus struct {
	State  GenerationState `json:"state"`
	Result string          `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Generator is the contract with a slow external generation provider:
// submit returns a correlation id, poll asks for its status. The core is
// agnostic to the provider's protocol.
type Generator interface {
	Submit(ctx context.Context, payload string) (string, error)
	Poll(ctx context.Context, correlationID string) (*GenerationStatus, error)
}

// Rewriter is the synchronous provider capability used by kinds that fit
// inside a request budget.
type Rewriter interface {
	Rewrite(ctx context.Context, payload string) (string, error)
}

// SubmitResult is the outcome of handing one claimed item to its
// processor. Done carries the final result for synchronous kinds;
// otherwise CorrelationID identifies the in-flight generation request.
type SubmitResult struct {
	Done          bool
	Result        string
	CorrelationID string
}

// Processor is the per-kind capability plugged into the shared claim and
// ledger core.
type Processor interface {
	Kind() models.JobKind

	Submit(ctx context.Context, item *models.JobItem) (*SubmitResult, error)
	Poll(ctx context.Context, item *models.JobItem) (*GenerationStatus, error)
}
