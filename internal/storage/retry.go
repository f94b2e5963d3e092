package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/scrypster/chronicle/pkg/types"
)

// RetryPolicy bounds the retry of transient lock contention.
type RetryPolicy struct {
	// MaxTries is the total number of attempts (default: 5).
	MaxTries uint

	// MaxElapsed caps the total time spent retrying (default: 3s).
	MaxElapsed time.Duration

	// InitialInterval is the first backoff delay (default: 50ms).
	InitialInterval time.Duration

	// MaxInterval caps a single delay (default: 1s).
	MaxInterval time.Duration

	// OnRetry, if set, is called before each retry sleep.
	OnRetry func(err error, wait time.Duration)
}

// Normalize applies defaults.
func (p *RetryPolicy) Normalize() {
	if p.MaxTries == 0 {
		p.MaxTries = 5
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = 3 * time.Second
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 50 * time.Millisecond
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = time.Second
	}
}

// IsTransient reports whether err is a storage error worth retrying.
func IsTransient(err error) bool {
	var se *types.StorageError
	return errors.As(err, &se) && se.Transient
}

// Retry runs op until it succeeds, fails with a non-transient error, or the
// policy is exhausted. The last error is returned unchanged.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	policy.Normalize()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
		backoff.WithMaxElapsedTime(policy.MaxElapsed),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(policy.OnRetry))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if IsTransient(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, opts...)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
