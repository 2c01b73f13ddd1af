package recorder

import (
	"context"
	"time"

	"CryptoSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) AppendSnapshot(context.Context, *model.Snapshot) error { return nil }
func (n *NoopRecorder) AppendAnalysis(context.Context, model.Analysis, time.Time) error {
	return nil
}
func (n *NoopRecorder) MarkDelivered(context.Context, time.Time) error { return nil }
func (n *NoopRecorder) Close() error                                  { return nil }
