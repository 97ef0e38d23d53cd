package generation

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/tryon/internal/core/domain"
)

// RetryPolicy defines retry behavior for transient upstream failures.
type RetryPolicy struct {
	// MaxRetries is the number of attempts allowed after the first one.
	MaxRetries   int
	InitialDelay time.Duration
	// MaxDelay caps a single wait; 0 leaves the doubling uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy waits 2s, 4s, 8s between four attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   3,
	InitialDelay: 2 * time.Second,
}

// RetryEvent describes a wait that is about to happen.
type RetryEvent struct {
	Operation string
	// Attempt is the 1-based number of the attempt that just failed.
	Attempt int
	Delay   time.Duration
	Kind    domain.FailureKind
	Err     error
}

// Retrier runs an operation with deterministic exponential backoff, retrying
// only failures the classifier marks as transient.
type Retrier struct {
	policy   RetryPolicy
	classify func(error) domain.FailureKind
	onRetry  func(RetryEvent)
	log      *slog.Logger
}

// RetrierOption customises a Retrier.
type RetrierOption func(*Retrier)

// WithOnRetry registers a hook called before every wait.
func WithOnRetry(fn func(RetryEvent)) RetrierOption {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// WithClassifier replaces the default classifier.
func WithClassifier(fn func(error) domain.FailureKind) RetrierOption {
	return func(r *Retrier) {
		r.classify = fn
	}
}

// NewRetrier creates a Retrier. A non-positive initial delay falls back to the
// default; a negative budget means no retries.
func NewRetrier(policy RetryPolicy, opts ...RetrierOption) *Retrier {
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = DefaultRetryPolicy.InitialDelay
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	r := &Retrier{
		policy:   policy,
		classify: Classify,
		log:      slog.Default().With("component", "retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the policy in effect.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// Do executes fn, retrying retryable failures. It returns the number of
// attempts made and the error of the last one, unchanged. A context that ends
// while waiting stops the loop with the context's error.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) (int, error) {
	attempts := 0
	var lastErr error
	var lastKind domain.FailureKind

	// A fresh backoff per call: its counter is the only state a retry sequence has.
	base := retry.WithMaxRetries(uint64(r.policy.MaxRetries), retry.NewExponential(r.policy.InitialDelay))
	if r.policy.MaxDelay > 0 {
		base = retry.WithCappedDuration(r.policy.MaxDelay, base)
	}
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := base.Next()
		if stop {
			return 0, true
		}
		r.log.Warn("Retrying generation",
			"operation", operation,
			"attempt", attempts,
			"delay", delay,
			"kind", lastKind,
			"error", lastErr,
		)
		if r.onRetry != nil {
			r.onRetry(RetryEvent{
				Operation: operation,
				Attempt:   attempts,
				Delay:     delay,
				Kind:      lastKind,
				Err:       lastErr,
			})
		}
		return delay, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		lastKind = r.classify(err)
		if !lastKind.Retryable() {
			return err
		}
		return retry.RetryableError(err)
	})

	return attempts, err
}
