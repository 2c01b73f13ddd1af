package collector

import (
	"context"
	"fmt"

	"CryptoSentinel/internal/model"
)

// Fetcher defines the interface for fetching one listings snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) (*model.Snapshot, error)
	Name() string
}

// FetchError reports that no snapshot could be produced this cycle.
// StatusCode is set when the upstream answered with a non-200 status.
type FetchError struct {
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch listings: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch listings: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
