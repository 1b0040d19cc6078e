// Package retry runs operations with bounded exponential backoff and jitter.
//
// Attempt k (0-indexed) waits min(MaxDelay, InitialDelay*2^k) perturbed by a
// multiplicative ±Jitter factor. Only failures classified by IsRetryable are
// retried; anything else ends the loop with a *NonRetryableError. When the
// budget runs out the last failure is returned inside an *ExhaustedError.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/logger"
)

// Limits for Policy.MaxRetries.
const (
	MinRetries = 0
	MaxRetries = 10
)

// Policy describes the retry budget and delay curve.
type Policy struct {
	MaxRetries   int           // additional attempts after the first
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // ceiling of the un-jittered delay
	Jitter       float64       // 0.1 means ±10%
}

// DefaultPolicy returns 3 retries, 500ms initial delay, 8s ceiling and ±10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Jitter:       0.1,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < MinRetries || p.MaxRetries > MaxRetries:
		return errors.Newf("invalid retry policy: max retries %d outside [%d, %d]", p.MaxRetries, MinRetries, MaxRetries).
			Component("retry").
			Category(errors.CategoryValidation).
			Build()
	case p.InitialDelay <= 0:
		return errors.Newf("invalid retry policy: initial delay must be positive").
			Component("retry").
			Category(errors.CategoryValidation).
			Build()
	case p.MaxDelay < p.InitialDelay:
		return errors.Newf("invalid retry policy: max delay %v below initial delay %v", p.MaxDelay, p.InitialDelay).
			Component("retry").
			Category(errors.CategoryValidation).
			Build()
	case p.Jitter < 0 || p.Jitter >= 1:
		return errors.Newf("invalid retry policy: jitter %v outside [0, 1)", p.Jitter).
			Component("retry").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// BaseDelay returns the un-jittered delay before retry attempt k (0-indexed).
func (p Policy) BaseDelay(k int) time.Duration {
	d := p.InitialDelay
	for range k {
		if d >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	return min(d, p.MaxDelay)
}

// newBackOff builds the backoff curve for one Do call.
func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.Multiplier = 2
	eb.MaxInterval = p.MaxDelay
	eb.RandomizationFactor = p.Jitter
	eb.MaxElapsedTime = 0 // bounded by attempt count only
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(p.MaxRetries, 0))), ctx)
}

// Timer is the wait primitive between attempts. It matches backoff.Timer.
type Timer interface {
	Start(d time.Duration)
	Stop()
	C() <-chan time.Time
}

// NotifyFunc observes each scheduled retry: the failed attempt number
// (1-based), its error and the wait before the next attempt.
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Retrier executes operations under a Policy. Safe for concurrent use.
type Retrier struct {
	policy   Policy
	newTimer func() Timer
	notify   NotifyFunc
	log      logger.Logger
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithTimer replaces the real-time wait, e.g. with a fake that fires at once.
// newTimer is called once per Do.
func WithTimer(newTimer func() Timer) Option {
	return func(r *Retrier) { r.newTimer = newTimer }
}

// WithNotify registers a callback for every scheduled retry.
func WithNotify(fn NotifyFunc) Option {
	return func(r *Retrier) { r.notify = fn }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(r *Retrier) { r.log = l }
}

// New creates a Retrier. The policy is not validated here; see Policy.Validate.
func New(policy Policy, opts ...Option) *Retrier {
	r := &Retrier{policy: policy}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Global().Module("retry")
	}
	return r
}

// Policy returns the retrier's policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do runs op until it succeeds, fails with a non-retryable error, the retry
// budget is spent, or ctx is done. In the last case the context error is returned.
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero     T
		result   T
		attempts int
		lastErr  error
	)

	operation := func() error {
		attempts++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !IsRetryable(err) {
			return backoff.Permanent(&NonRetryableError{Attempts: attempts, Err: err})
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.WithContext(ctx).Debug("retrying after transient failure",
			logger.Int("attempt", attempts),
			logger.Duration("wait", wait),
			logger.Error(err))
		if r.notify != nil {
			r.notify(attempts, err, wait)
		}
	}

	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, r.policy.newBackOff(ctx), notify, timer)
	if err == nil {
		return result, nil
	}

	var nre *NonRetryableError
	if errors.As(err, &nre) {
		return zero, nre
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, errors.New(ctxErr).
			Component("retry").
			Category(errors.CategoryCancellation).
			Context("attempts", attempts).
			Build()
	}

	r.log.WithContext(ctx).Warn("retry budget exhausted",
		logger.Int("attempts", attempts),
		logger.Error(lastErr))

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}
