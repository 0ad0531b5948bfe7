package core

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyOperations is returned when no slot frees up within the wait
// period. Clients should retry after a short delay.
var ErrTooManyOperations = errors.New("too many concurrent operations, please try again later")

const (
	// DefaultMaxConcurrent bounds parallel imports and renders.
	DefaultMaxConcurrent = 5
	// DefaultMaxWaitTime is how long Acquire waits for a slot.
	DefaultMaxWaitTime = 30 * time.Second
)

// Limiter bounds how many imports and document renders hold a whole
// spreadsheet or report graph in memory at once.
type Limiter struct {
	sem     *semaphore.Weighted
	slots   int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter returns a limiter with maxConcurrent slots. Non-positive
// arguments fall back to the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		slots:   int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most the limiter's wait period.
// Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyOperations
	}
	l.active.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// WaitForDrain blocks until every slot is free or ctx is done. Callers
// queued behind it wait too, so it is meant for shutdown.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.slots); err != nil {
		return err
	}
	l.sem.Release(l.slots)
	return nil
}

// LimiterStatus is a snapshot of the limiter's load.
type LimiterStatus struct {
	Active        int `json:"active"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports how many slots are held.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        int(l.active.Load()),
		MaxConcurrent: int(l.slots),
	}
}
