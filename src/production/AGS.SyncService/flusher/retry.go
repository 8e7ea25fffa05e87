package flusher

import (
	"context"
	"time"
)

// RetryPolicy is the per-item delivery retry shape: up to MaxAttempts
// attempts with a fixed Delay between attempts and no delay before the
// first.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// retryState tracks one item's progress through the policy.
type retryState struct {
	policy  RetryPolicy
	attempt int
}

// Next reports whether another attempt may start, sleeping the fixed
// delay before every attempt after the first. Returns false once the
// attempt ceiling is reached or the context is cancelled.
func (s *retryState) Next(ctx context.Context) bool {
	if s.attempt >= s.policy.MaxAttempts {
		return false
	}
	if s.attempt > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.policy.Delay):
		}
	}
	s.attempt++
	return true
}

// Attempts returns how many attempts have started.
func (s *retryState) Attempts() int {
	return s.attempt
}
