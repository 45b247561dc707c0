package backend

import (
	"context"
	"fmt"

	"github.com/rewired-gh/retailfusion/internal/models"
	"golang.org/x/time/rate"
)

// Source is anything that can produce a dashboard snapshot.
type Source interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// RateLimitedSource wraps a Source with a client-side request budget.
// Overlapping refresh cycles queue on the limiter instead of bursting the backend.
type RateLimitedSource struct {
	source  Source
	limiter *rate.Limiter
}

// NewRateLimitedSource allows at most rps requests per second with the given burst
func NewRateLimitedSource(source Source, rps float64, burst int) *RateLimitedSource {
	return &RateLimitedSource{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// FetchSnapshot waits for limiter permission, then forwards to the wrapped source
func (r *RateLimitedSource) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait canceled: %v", ErrFetchFailure, err)
	}
	return r.source.FetchSnapshot(ctx)
}

var (
	_ Source = (*Client)(nil)
	_ Source = (*RateLimitedSource)(nil)
)
