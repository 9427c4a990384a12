package core

// load_limiter.go bounds how many datasets are parsed at once across all
// sessions. Each load holds a slot for the duration of parsing; when every
// slot is taken, callers wait up to maxWait before failing with
// ErrTooManyLoads.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyLoads is returned when no load slot frees up in time.
var ErrTooManyLoads = errors.New("too many concurrent loads, please try again later")

const (
	// DefaultMaxConcurrentLoads is used when the configured limit is not positive.
	DefaultMaxConcurrentLoads = 5

	// DefaultMaxLoadWait is used when the configured wait is not positive.
	DefaultMaxLoadWait = 30 * time.Second
)

// LoadLimiter is a counting semaphore for dataset loads.
type LoadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64

	// OnChange, when set, receives the active count after every change.
	OnChange func(active int)
}

// NewLoadLimiter allows at most maxConcurrent loads at a time.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxLoadWait
	}
	return &LoadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's maximum wait.
// Returns ctx.Err() if ctx ends first. Every successful Acquire must be
// paired with Release.
func (l *LoadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.changed(l.active.Add(1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyLoads
	}
}

// Release returns a slot taken by Acquire.
func (l *LoadLimiter) Release() {
	<-l.slots
	l.changed(l.active.Add(-1))
}

func (l *LoadLimiter) changed(n int64) {
	if l.OnChange != nil {
		l.OnChange(int(n))
	}
}

// ActiveCount returns the number of slots in use.
func (l *LoadLimiter) ActiveCount() int { return int(l.active.Load()) }

// Capacity returns the maximum number of concurrent loads.
func (l *LoadLimiter) Capacity() int { return cap(l.slots) }

// Available returns the number of free slots.
func (l *LoadLimiter) Available() int { return cap(l.slots) - len(l.slots) }

// WaitForDrain blocks until no load holds a slot or ctx ends.
func (l *LoadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a point-in-time snapshot for health output.
type LimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// Status returns the limiter's current state.
func (l *LoadLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:    l.ActiveCount(),
		Available: l.Available(),
		Capacity:  l.Capacity(),
	}
}
