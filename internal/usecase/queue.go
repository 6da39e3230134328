package usecase

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Queue runs tasks one at a time, spacing their starts by at least the
// configured delay.
type Queue struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	delay   time.Duration
}

// NewQueue creates a Queue. A non-positive delay disables spacing.
func NewQueue(delay time.Duration) *Queue {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Queue{
		limiter: rate.NewLimiter(limit, 1),
		delay:   delay,
	}
}

// Delay returns the configured spacing between task starts.
func (q *Queue) Delay() time.Duration {
	return q.delay
}

// Do waits for the previous task and the rate limit, then runs fn. It
// returns ctx.Err() without running fn if ctx ends while waiting.
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return fn(ctx)
}
