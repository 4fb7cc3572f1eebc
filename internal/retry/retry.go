package retry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"seoforge/internal/config"
	"seoforge/internal/logging"
	"seoforge/internal/services"
)

// Sleeper waits for delay or until ctx is done.
type Sleeper func(ctx context.Context, delay time.Duration) error

// Policy controls how many times an operation is re-attempted and how long to
// wait in between. The zero value performs exactly one attempt.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(error) bool
	Logger      *slog.Logger
	Sleep       Sleeper
}

// FromConfig builds the default policy for external calls.
func FromConfig(cfg config.Retry, logger *slog.Logger) Policy {
	return Policy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay(),
		MaxDelay:     cfg.MaxDelay(),
		Logger:       logger,
	}
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the wait before retry number attempt (0-based):
// min(InitialDelay * 2^attempt, MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay > p.MaxDelay/2 {
			delay = p.MaxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs op until it succeeds, the policy is exhausted, or the error is not
// retryable. The error from the last attempt is returned as is.
func Do[T any](ctx context.Context, name string, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts()
	classify := policy.ShouldRetry
	if classify == nil {
		classify = IsTransient
	}
	logger := logging.WithContext(ctx, policy.Logger)

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == attempts-1 || ctx.Err() != nil || !classify(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if wait, ok := services.RetryAfter(err); ok {
			delay = policy.capDelay(wait)
		}
		logger.Warn("retrying operation",
			logging.String("operation", name),
			logging.Int("attempt", attempt+1),
			logging.Int("max_retries", policy.MaxRetries),
			logging.Duration("delay", delay),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)

		sleep := policy.Sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, err
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, name string, policy Policy, op func(context.Context) error) error {
	_, err := Do(ctx, name, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

var transientMarkers = []string{"timeout", "rate limit", "rate-limit", "429", "502", "503"}

// IsTransient reports whether err is worth retrying: any rate-limit error, a
// per-request deadline, or an error whose message mentions a timeout, rate
// limit, or a 429/502/503 status. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, services.ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
