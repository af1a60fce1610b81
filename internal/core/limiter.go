package core

// limiter.go bounds how many uploads the server normalizes at once.
//
// Each upload holds one slot from reading through dataset construction. A
// request that finds every slot taken waits up to the configured wait time
// and then fails with ErrTooManyUploads.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyUploads is returned when no upload slot frees up in time.
var ErrTooManyUploads = errors.New("too many concurrent uploads, please try again later")

const (
	DefaultMaxConcurrentUploads = 5
	DefaultMaxWaitTime          = 30 * time.Second
)

// Limiter is a counting semaphore over upload slots.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter allows maxConcurrent uploads; waiters give up after maxWait.
// Non-positive arguments select the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentUploads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &Limiter{slots: make(chan struct{}, maxConcurrent), maxWait: maxWait}
}

// Acquire takes a slot. The returned release func must be called exactly
// once; calling it again is a no-op.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return l.releaser(), nil
	case <-timer.C:
		return nil, ErrTooManyUploads
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Limiter) releaser() func() {
	var done atomic.Bool
	return func() {
		if done.Swap(true) {
			return
		}
		l.active.Add(-1)
		<-l.slots
	}
}

// Active returns the number of held slots.
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Capacity returns the slot count.
func (l *Limiter) Capacity() int { return cap(l.slots) }

// Drain blocks until no slot is held or ctx ends.
func (l *Limiter) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a point-in-time view of a Limiter.
type LimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// Status reports current usage.
func (l *Limiter) Status() LimiterStatus {
	active := l.Active()
	return LimiterStatus{Active: active, Available: l.Capacity() - active, Capacity: l.Capacity()}
}
