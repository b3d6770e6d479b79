package processing

import (
	"context"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy is an exponential schedule without jitter: Initial,
// Initial*Multiplier, ... for at most MaxAttempts calls.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	Multiplier      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 2 * time.Second,
		Multiplier:      2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaults.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaults.Multiplier
	}
	return p
}

// Retrier re-runs an operation while it fails with an error the predicate
// accepts. Any other error stops it immediately.
type Retrier struct {
	policy    RetryPolicy
	retryable func(error) bool
	onRetry   func(err error, next time.Duration)
}

func NewRetrier(policy RetryPolicy, retryable func(error) bool, onRetry func(err error, next time.Duration)) *Retrier {
	if retryable == nil {
		retryable = db.IsTransientErr
	}
	return &Retrier{
		policy:    policy.withDefaults(),
		retryable: retryable,
		onRetry:   onRetry,
	}
}

func (r *Retrier) Do(ctx context.Context, op func() error) error {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = r.policy.InitialInterval
	schedule.Multiplier = r.policy.Multiplier
	schedule.RandomizationFactor = 0

	opts := []backoff.RetryOption{
		backoff.WithBackOff(schedule),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
	}
	if r.onRetry != nil {
		opts = append(opts, backoff.WithNotify(r.onRetry))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err != nil && !r.retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)
	return err
}
