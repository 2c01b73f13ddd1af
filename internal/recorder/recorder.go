package recorder

import (
	"context"
	"fmt"
	"time"

	"CryptoSentinel/internal/model"
)

// StoreError wraps a failed write to the durable store.
type StoreError struct {
	Op  string // "append_snapshot", "append_analysis", "mark_delivered", "save_raw", "save_chart"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Recorder persists snapshots and analysis rows for later audit.
type Recorder interface {
	AppendSnapshot(ctx context.Context, snap *model.Snapshot) error
	AppendAnalysis(ctx context.Context, analysis model.Analysis, observedAt time.Time) error
	MarkDelivered(ctx context.Context, observedAt time.Time) error
	Close() error
}

// formatTimestamp is the key format shared by both tables.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
