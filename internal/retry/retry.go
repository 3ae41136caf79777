package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"proofbuild/internal/config"
	"proofbuild/internal/services"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Policy bounds the number of retries and the backoff delay.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	// MaxDelay caps a single delay. Zero leaves delays uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy allows three retries starting at one second.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// PolicyFromConfig converts the [retry] section.
func PolicyFromConfig(cfg config.Retry) Policy {
	return Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.MaxDelayMS) * time.Millisecond,
	}
}

// Delay returns the wait before retry number attempt (0-based):
// base * 2^attempt, capped by MaxDelay when set.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Notify observes a failed attempt that is about to be retried.
type Notify func(attempt int, delay time.Duration, err error)

// Retrier applies a Policy to operations.
type Retrier struct {
	policy   Policy
	sleep    Sleeper
	classify func(error) bool
	notify   Notify
}

// Option customizes a Retrier.
type Option func(*Retrier)

// WithSleeper overrides how backoff delays are waited out (useful for tests).
func WithSleeper(sleeper Sleeper) Option {
	return func(r *Retrier) {
		if sleeper != nil {
			r.sleep = sleeper
		}
	}
}

// WithClassifier replaces IsRetryable.
func WithClassifier(classify func(error) bool) Option {
	return func(r *Retrier) {
		if classify != nil {
			r.classify = classify
		}
	}
}

// WithNotify registers a callback invoked before every retry.
func WithNotify(notify Notify) Option {
	return func(r *Retrier) {
		r.notify = notify
	}
}

// New constructs a Retrier. Negative retry counts are treated as zero.
func New(policy Policy, opts ...Option) *Retrier {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	r := &Retrier{
		policy:   policy,
		sleep:    contextSleep,
		classify: IsRetryable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the retrier's policy.
func (r *Retrier) Policy() Policy {
	if r == nil {
		return Policy{}
	}
	return r.policy
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. A nil Retrier runs op once.
func Do[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error)) (T, error) {
	if r == nil {
		return op(ctx)
	}
	var zero T
	for attempt := 0; ; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if attempt >= r.policy.MaxRetries || !r.classify(err) || ctx.Err() != nil {
			return zero, err
		}
		delay := r.policy.Delay(attempt)
		if r.notify != nil {
			r.notify(attempt+1, delay, err)
		}
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return zero, err
		}
	}
}

// IsRetryable reports whether err looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if services.IsPermanent(err) {
		return false
	}
	if code, ok := services.HTTPStatus(err); ok {
		return code == 408 || code == 429 || code >= 500
	}
	if errors.Is(err, services.ErrTimeout) || errors.Is(err, services.ErrTransient) {
		return true
	}
	// *url.Error satisfies net.Error itself; only its transport cause counts.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var cause net.Error
		return urlErr.Timeout() || errors.As(urlErr.Err, &cause)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return hasTransientMarker(err.Error())
}

var transientMarkers = []string{"rate limit", "timeout", "timed out", "connection reset", "connection refused", "network"}

// hasTransientMarker classifies untyped errors by message.
func hasTransientMarker(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
