package core

// limiter.go bounds how many files are open and being written at once.
//
// A new file waits for a free slot until one is released or the run context
// ends.

import (
	"context"
	"sync"
)

// DefaultMaxConcurrentFiles is the default worker budget.
const DefaultMaxConcurrentFiles = 10

// Limiter is a channel semaphore over file workers.
type Limiter struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
	peak   int
}

// NewLimiter creates a limiter that allows at most maxConcurrent files in flight.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentFiles
	}
	return &Limiter{semaphore: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is free or ctx is done.
// The caller MUST call Release() when the file completes.
func (l *Limiter) Acquire(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		if l.active > l.peak {
			l.peak = l.active
		}
		l.mu.Unlock()
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a previously acquired slot.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// LimiterStatus is a snapshot of the limiter's state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
	Peak          int `json:"peak"`
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	l.mu.RLock()
	active, peak := l.active, l.peak
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
		Peak:          peak,
	}
}
