package retry_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"proofbuild/internal/config"
	"proofbuild/internal/retry"
	"proofbuild/internal/services"
)

type statusError struct{ code int }

func (e *statusError) Error() string   { return fmt.Sprintf("provider returned http %d", e.code) }
func (e *statusError) HTTPStatus() int { return e.code }

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestDoRetriesServerErrors(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := retry.New(retry.DefaultPolicy(), retry.WithSleeper(sleeper.sleep))

	calls := 0
	got, err := retry.Do(context.Background(), r, func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &statusError{code: 503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", got, calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, sleeper.delays)
	}
	var total time.Duration
	for i, d := range sleeper.delays {
		if d != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, d, want[i])
		}
		total += d
	}
	if total != 3*time.Second {
		t.Fatalf("expected base + 2*base of backoff, got %v", total)
	}
}

func TestDoStopsOnClientError(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := retry.New(retry.DefaultPolicy(), retry.WithSleeper(sleeper.sleep))

	calls := 0
	_, err := retry.Do(context.Background(), r, func(context.Context) (int, error) {
		calls++
		return 0, &statusError{code: 401}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("expected a single attempt without delay, got %d calls and %v", calls, sleeper.delays)
	}
}

func TestDoStopsOnMalformedRequestURL(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := retry.New(retry.DefaultPolicy(), retry.WithSleeper(sleeper.sleep))

	calls := 0
	_, err := retry.Do(context.Background(), r, func(context.Context) ([]byte, error) {
		calls++
		cause := &url.Error{Op: "Post", URL: "ftp://api.example.com/v1/text-to-speech", Err: errors.New(`unsupported protocol scheme "ftp"`)}
		return nil, fmt.Errorf("elevenlabs network error: %w", cause)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("expected a single attempt without delay, got %d calls and %v", calls, sleeper.delays)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	sleeper := &recordingSleeper{}
	r := retry.New(retry.DefaultPolicy(), retry.WithSleeper(sleeper.sleep))

	calls := 0
	var last error
	_, err := retry.Do(context.Background(), r, func(context.Context) (struct{}, error) {
		calls++
		last = &statusError{code: 429}
		return struct{}{}, last
	})
	if err != last {
		t.Fatalf("expected last error unchanged, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range want {
		if sleeper.delays[i] != d {
			t.Fatalf("delay %d = %v, want %v", i, sleeper.delays[i], d)
		}
	}
}

func TestDoNotifiesBeforeRetry(t *testing.T) {
	var attempts []int
	r := retry.New(retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond},
		retry.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		retry.WithNotify(func(attempt int, _ time.Duration, _ error) { attempts = append(attempts, attempt) }),
	)
	_, _ = retry.Do(context.Background(), r, func(context.Context) (int, error) {
		return 0, services.Wrap(services.ErrTimeout, "", "call", "", nil)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected notifications %v", attempts)
	}
}

func TestDoStopsWhenSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := retry.New(retry.DefaultPolicy(), retry.WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	calls := 0
	_, err := retry.Do(ctx, r, func(context.Context) (int, error) {
		calls++
		return 0, &statusError{code: 500}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one call and an error, got %d calls err=%v", calls, err)
	}
}

func TestNilRetrierRunsOnce(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), nil, func(context.Context) (int, error) {
		calls++
		return 0, &statusError{code: 503}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing call, got %d", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &statusError{code: 429}, true},
		{"408", &statusError{code: 408}, true},
		{"502", fmt.Errorf("wrapped: %w", &statusError{code: 502}), true},
		{"400", &statusError{code: 400}, false},
		{"403", &statusError{code: 403}, false},
		{"validation", services.Wrap(services.ErrValidation, "", "", "empty text", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "", "missing key", nil), false},
		{"transient marker", services.Wrap(services.ErrTransient, "", "", "", nil), true},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"url dial error", &url.Error{Op: "Post", URL: "https://api.example.com", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, true},
		{"url bad scheme", &url.Error{Op: "Post", URL: "ftp://api.example.com", Err: errors.New(`unsupported protocol scheme "ftp"`)}, false},
		{"message timeout", errors.New("request timeout while reading"), true},
		{"plain", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := retry.IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestPolicyDelayCap(t *testing.T) {
	p := retry.Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	if d := p.Delay(0); d != time.Second {
		t.Fatalf("Delay(0) = %v", d)
	}
	if d := p.Delay(5); d != 3*time.Second {
		t.Fatalf("Delay(5) = %v, want cap", d)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := retry.PolicyFromConfig(config.Retry{MaxRetries: 2, BaseDelayMS: 250, MaxDelayMS: 1000})
	if p.MaxRetries != 2 || p.BaseDelay != 250*time.Millisecond || p.MaxDelay != time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
}
