// Package limiter caps the number of concurrently running operations. Waiters
// are admitted in arrival order.
package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter admits at most N operations at once.
type Limiter struct {
	name     string
	size     int
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	waiting  atomic.Int64
}

// New returns a limiter admitting n concurrent operations. n below one is
// treated as one.
func New(name string, n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{name: name, size: n, sem: semaphore.NewWeighted(int64(n))}
}

// Name identifies the limiter in logs and status output.
func (l *Limiter) Name() string { return l.name }

// Size returns the configured concurrency cap.
func (l *Limiter) Size() int { return l.size }

// InFlight returns the number of operations currently running.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Waiting returns the number of callers queued for a slot.
func (l *Limiter) Waiting() int { return int(l.waiting.Load()) }

// Do waits for a slot, runs op, and releases the slot whether op succeeds or
// fails. It returns ctx.Err() without running op if ctx ends while waiting.
func (l *Limiter) Do(ctx context.Context, op func(context.Context) error) error {
	l.waiting.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	if err != nil {
		return err
	}
	l.inFlight.Add(1)
	defer func() {
		l.inFlight.Add(-1)
		l.sem.Release(1)
	}()
	return op(ctx)
}

// Run is Do for operations that produce a value.
func Run[T any](ctx context.Context, l *Limiter, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := l.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
