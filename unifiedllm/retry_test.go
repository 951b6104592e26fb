package unifiedllm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func serverFailure() error {
	return &ServerError{ProviderError{SDKError: SDKError{Message: "overloaded"}, Retryable: true}}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{40, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: true}
	for i := 0; i < 100; i++ {
		got := policy.Delay(0)
		if got < 500*time.Millisecond || got >= 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5s, 1.5s)", got)
		}
	}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		failures  int
		err       func() error
		wantCalls int
		wantErr   bool
	}{
		{"first try", 3, 0, serverFailure, 1, false},
		{"recovers", 3, 2, serverFailure, 3, false},
		{"exhausted", 2, 10, serverFailure, 3, true},
		{"not retryable", 3, 10, func() error { return &AuthenticationError{} }, 1, true},
		{"no retries", 0, 10, serverFailure, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var notified []int
			policy := fastPolicy(tt.retries)
			policy.OnRetry = func(_ error, attempt int, _ time.Duration) { notified = append(notified, attempt) }

			got, err := Retry(context.Background(), policy, func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.err()
				}
				return "ok", nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if len(notified) != calls-1 {
				t.Errorf("OnRetry called %d times for %d calls", len(notified), calls)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil || got != "ok" {
				t.Fatalf("got (%q, %v), want (\"ok\", nil)", got, err)
			}
		})
	}
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 5, BaseDelay: time.Minute, MaxDelay: time.Minute, Multiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	start := time.Now()
	_, err := Retry(ctx, policy, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errors.New("transient")
	})

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected AbortError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("AbortError should wrap context.Canceled")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxRetries != 2 || p.BaseDelay != time.Second || p.MaxDelay != time.Minute || p.Multiplier != 2 || !p.Jitter {
		t.Errorf("unexpected default policy %+v", p)
	}
}
