package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"seoforge/internal/retry"
	"seoforge/internal/services"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDoRetriesTransientUntilExhausted(t *testing.T) {
	rec := &recorder{}
	policy := retry.Policy{MaxRetries: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Sleep: rec.sleep}
	want := errors.New("upstream returned 503")

	calls := 0
	_, err := retry.Do(context.Background(), "search", policy, func(context.Context) (int, error) {
		calls++
		return 0, want
	})
	if err != want {
		t.Fatalf("expected original error value, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if fmt.Sprint(rec.delays) != fmt.Sprint(expected) {
		t.Fatalf("unexpected delays %v, want %v", rec.delays, expected)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	rec := &recorder{}
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: time.Second, Sleep: rec.sleep}
	want := services.Validation("search", "keyword is required")

	calls := 0
	err := retry.Run(context.Background(), "search", policy, func(context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", rec.delays)
	}
}

func TestDoZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), "llm", retry.Policy{}, func(context.Context) (string, error) {
		calls++
		return "", errors.New("timeout")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one failed attempt, got calls=%d err=%v", calls, err)
	}
}

func TestDoNegativeRetriesReturnsLastError(t *testing.T) {
	want := errors.New("timeout")
	calls := 0
	_, err := retry.Do(context.Background(), "llm", retry.Policy{MaxRetries: -2}, func(context.Context) (string, error) {
		calls++
		return "", want
	})
	if err != want || calls != 1 {
		t.Fatalf("expected the attempt's own error after one call, got calls=%d err=%v", calls, err)
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	rec := &recorder{}
	policy := retry.Policy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, Sleep: rec.sleep}
	calls := 0
	got, err := retry.Do(context.Background(), "scrape", policy, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("Request Timeout")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("unexpected result %q %v", got, err)
	}
	if calls != 3 || len(rec.delays) != 2 {
		t.Fatalf("expected 3 calls and 2 sleeps, got %d and %v", calls, rec.delays)
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	policy := retry.Policy{InitialDelay: time.Second, MaxDelay: 5 * time.Second}
	tests := map[int]time.Duration{0: time.Second, 1: 2 * time.Second, 2: 4 * time.Second, 3: 5 * time.Second, 10: 5 * time.Second}
	for attempt, want := range tests {
		if got := policy.Delay(attempt); got != want {
			t.Fatalf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestDoHonoursRetryAfter(t *testing.T) {
	rec := &recorder{}
	policy := retry.Policy{MaxRetries: 1, InitialDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Second, Sleep: rec.sleep}
	_ = retry.Run(context.Background(), "llm", policy, func(context.Context) error {
		return services.RateLimited("openai", 7*time.Second, nil)
	})
	if len(rec.delays) != 1 || rec.delays[0] != 7*time.Second {
		t.Fatalf("expected retry-after delay, got %v", rec.delays)
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.Policy{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	err := retry.Run(ctx, "search", policy, func(context.Context) error {
		calls++
		cancel()
		return errors.New("502 bad gateway")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single attempt after cancel, got calls=%d err=%v", calls, err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("i/o TIMEOUT"), true},
		{errors.New("Rate Limit reached"), true},
		{errors.New("rate-limit"), true},
		{errors.New("http 429"), true},
		{errors.New("http 502"), true},
		{errors.New("status 503"), true},
		{errors.New("http 500"), false},
		{errors.New("not found"), false},
		{services.RateLimited("serper", 0, nil), true},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{nil, false},
	}
	for _, tt := range tests {
		if got := retry.IsTransient(tt.err); got != tt.want {
			t.Fatalf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCustomClassifier(t *testing.T) {
	rec := &recorder{}
	policy := retry.Policy{
		MaxRetries:  2,
		ShouldRetry: func(error) bool { return true },
		Sleep:       rec.sleep,
	}
	calls := 0
	_ = retry.Run(context.Background(), "custom", policy, func(context.Context) error {
		calls++
		return errors.New("anything")
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts with custom classifier, got %d", calls)
	}
}
