// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the proxy and the
// orchestrator.
package httputil

import (
	"context"
	"errors"
	"time"

	"github.com/pdiddy/convertease/pkg/types"
)

// Sleeper waits for d, returning early with ctx.Err() if ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AttemptFunc performs one poll. It returns done=true once a terminal state
// is observed. A non-nil error ends the loop unless Retryable accepts it.
type AttemptFunc func(ctx context.Context, attempt int) (done bool, err error)

// Poller runs a bounded polling loop: at most MaxAttempts calls spaced
// Interval apart. It always terminates, either with the attempt's own
// result or with a *types.TimeoutError.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int

	// Sleep defaults to ContextSleep. Tests substitute a fake clock.
	Sleep Sleeper

	// Retryable reports whether an attempt error should consume one
	// attempt and continue. Defaults to IsTransient.
	Retryable func(error) bool
}

// NewPoller builds a Poller from cfg, applying defaults.
func NewPoller(cfg types.PollConfig) *Poller {
	cfg = cfg.Normalize()
	return &Poller{Interval: cfg.Interval, MaxAttempts: cfg.MaxAttempts}
}

// Run calls fn until it reports done, returns a non-retryable error, or the
// attempt ceiling is reached. The wait after the final attempt is included
// so a loop that never finishes times out after MaxAttempts*Interval.
func (p *Poller) Run(ctx context.Context, fn AttemptFunc) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	max := p.MaxAttempts
	if max <= 0 {
		max = types.DefaultMaxPollAttempts
	}

	var waited time.Duration
	for attempt := 1; attempt <= max; attempt++ {
		done, err := fn(ctx, attempt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil && !retryable(err) {
			return err
		}
		if err == nil && done {
			return nil
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
		waited += p.Interval
	}
	return &types.TimeoutError{Attempts: max, Elapsed: waited}
}

// IsTransient reports whether err is a transport failure worth another
// attempt within the polling budget.
func IsTransient(err error) bool {
	var ne *types.NetworkError
	return errors.As(err, &ne)
}
