package store

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedStore throttles calls to a remote store
type RateLimitedStore struct {
	next    MetadataStore
	limiter *rate.Limiter
}

// NewRateLimitedStore wraps next with a token bucket.
// rps: requests per second, burst is twice the rate.
func NewRateLimitedStore(next MetadataStore, rps int) *RateLimitedStore {
	return &RateLimitedStore{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), rps*2),
	}
}

func (r *RateLimitedStore) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// List implements MetadataStore
func (r *RateLimitedStore) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.List(ctx, dir)
}

// ReadDocument implements MetadataStore
func (r *RateLimitedStore) ReadDocument(ctx context.Context, docPath string) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.ReadDocument(ctx, docPath)
}

// ReadFileInfo implements MetadataStore
func (r *RateLimitedStore) ReadFileInfo(ctx context.Context, docPath string) (FileInfo, error) {
	if err := r.wait(ctx); err != nil {
		return FileInfo{}, err
	}
	return r.next.ReadFileInfo(ctx, docPath)
}
