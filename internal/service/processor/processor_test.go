package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storesmith/storesmith/internal/models"
)

type stubGenerator struct {
	correlationID string
	status        GenerationStatus
	submitErr     error
}

func (s *stubGenerator) Submit(context.Context, string) (string, error) {
	return s.correlationID, s.submitErr
}

func (s *stubGenerator) Poll(context.Context, string) (*GenerationStatus, error) {
	status := s.status
	return &status, nil
}

type stubRewriter struct {
	out string
	err error
}

func (s *stubRewriter) Rewrite(context.Context, string) (string, error) {
	return s.out, s.err
}

func TestManagerRegistry(t *testing.T) {
	mgr := NewManager(zap.NewNop())
	text := NewTextOptimizeProcessor(&stubRewriter{out: "x"}, zap.NewNop())

	require.NoError(t, mgr.Register(text))
	require.Error(t, mgr.Register(text), "duplicate kind must be rejected")

	got, err := mgr.ForKind(models.JobKindTextOptimize)
	require.NoError(t, err)
	assert.Equal(t, models.JobKindTextOptimize, got.Kind())

	_, err = mgr.ForKind(models.JobKindBlogPost)
	require.Error(t, err)

	assert.Equal(t, []models.JobKind{models.JobKindTextOptimize}, mgr.Kinds())
}

func TestTextOptimizeCompletesSynchronously(t *testing.T) {
	p := NewTextOptimizeProcessor(&stubRewriter{out: "better copy"}, zap.NewNop())

	out, err := p.Submit(context.Background(), &models.JobItem{UnitKey: "sku-1", Payload: "copy"})
	require.NoError(t, err)
	assert.True(t, out.Done)
	assert.Equal(t, "better copy", out.Result)
	assert.Empty(t, out.CorrelationID)

	_, err = p.Poll(context.Background(), &models.JobItem{})
	require.Error(t, err)
}

func TestTextOptimizeSurfacesRewriteError(t *testing.T) {
	p := NewTextOptimizeProcessor(&stubRewriter{err: errors.New("overloaded")}, zap.NewNop())

	_, err := p.Submit(context.Background(), &models.JobItem{UnitKey: "sku-1"})
	require.ErrorContains(t, err, "overloaded")
}

func TestImageOptimizeReturnsCorrelationID(t *testing.T) {
	gen := &stubGenerator{correlationID: "gen-42"}
	p := NewImageOptimizeProcessor(gen, zap.NewNop())

	out, err := p.Submit(context.Background(), &models.JobItem{UnitKey: "img-1"})
	require.NoError(t, err)
	assert.False(t, out.Done)
	assert.Equal(t, "gen-42", out.CorrelationID)
}

func TestBlogPollWrapsResultWithHandle(t *testing.T) {
	gen := &stubGenerator{status: GenerationStatus{
		State:  GenerationStateCompleted,
		Result: "article body",
	}}
	p := NewBlogPostProcessor(gen, zap.NewNop())

	item := &models.JobItem{
		Payload:       `{"topic":"Summer Sale Guide"}`,
		CorrelationID: "gen-1",
	}
	status, err := p.Poll(context.Background(), item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"handle":"summer-sale-guide","content":"article body"}`, status.Result)
}

func TestBlogPollPassesThroughUnexpectedPayload(t *testing.T) {
	gen := &stubGenerator{status: GenerationStatus{
		State:  GenerationStateCompleted,
		Result: "article body",
	}}
	p := NewBlogPostProcessor(gen, zap.NewNop())

	status, err := p.Poll(context.Background(), &models.JobItem{
		Payload:       "plain topic line",
		CorrelationID: "gen-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "article body", status.Result)
}

func TestBlogPollLeavesPendingUntouched(t *testing.T) {
	gen := &stubGenerator{status: GenerationStatus{State: GenerationStatePending}}
	p := NewBlogPostProcessor(gen, zap.NewNop())

	status, err := p.Poll(context.Background(), &models.JobItem{CorrelationID: "gen-1"})
	require.NoError(t, err)
	assert.Equal(t, GenerationStatePending, status.State)
	assert.Empty(t, status.Result)
}
