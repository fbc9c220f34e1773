package adk

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped service. A single instance is
// shared by every pipeline worker, so the limit applies to the whole run.
type RateLimited struct {
	next    InferenceService
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter of rps requests per second.
// A non-positive rps disables throttling.
func NewRateLimited(next InferenceService, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Generate(ctx, model, prompt, opts)
}

// ListModels forwards to the wrapped service when it supports listing.
func (r *RateLimited) ListModels(ctx context.Context) ([]string, error) {
	lister, ok := r.next.(ModelLister)
	if !ok {
		return nil, fmt.Errorf("provider does not support listing models")
	}
	return lister.ListModels(ctx)
}
