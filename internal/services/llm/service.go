package llm

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"seoforge/internal/limiter"
	"seoforge/internal/logging"
	"seoforge/internal/retry"
	"seoforge/internal/services"
)

// Service decorates a backend with the LLM limiter and the retry policy. Each
// retry re-enters the limiter queue so a backing-off call holds no slot.
type Service struct {
	backend Provider
	policy  retry.Policy
	limiter *limiter.Limiter
	logger  *slog.Logger
}

// NewService wraps backend. A nil limiter admits one call at a time.
func NewService(backend Provider, policy retry.Policy, lim *limiter.Limiter, logger *slog.Logger) *Service {
	if lim == nil {
		lim = limiter.New("llm", 1)
	}
	return &Service{
		backend: backend,
		policy:  policy,
		limiter: lim,
		logger:  logging.NewComponentLogger(logger, "llm").With(logging.String(logging.FieldProvider, backend.Name())),
	}
}

func (s *Service) Name() string  { return s.backend.Name() }
func (s *Service) Model() string { return s.backend.Model() }

// Backend returns the undecorated provider.
func (s *Service) Backend() Provider { return s.backend }

func (s *Service) Complete(ctx context.Context, messages []Message, opts Options) (Result, error) {
	if len(messages) == 0 {
		return Result{}, services.Validation("llm", "at least one message is required")
	}
	model := modelFor(s.backend, opts)
	ctx, span := otel.Tracer("seoforge/llm").Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", s.backend.Name()),
		attribute.String("llm.model", model),
		attribute.Bool("llm.json", opts.JSON),
	)

	start := time.Now()
	res, err := retry.Do(ctx, "llm."+s.backend.Name(), s.policy, func(ctx context.Context) (Result, error) {
		return limiter.Run(ctx, s.limiter, func(ctx context.Context) (Result, error) {
			return s.backend.Complete(ctx, messages, opts)
		})
	})
	logger := logging.WithContext(ctx, s.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		logging.WarnWithContext(logger, "llm completion failed", "llm_completion_failed",
			logging.String("model", model),
			logging.Duration("duration", time.Since(start)),
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
		)
		return Result{}, err
	}
	attrs := []logging.Attr{
		logging.String("model", res.Model),
		logging.Duration("duration", time.Since(start)),
		logging.Int("chars", len(res.Content)),
	}
	if res.Usage != nil {
		attrs = append(attrs, logging.Int("total_tokens", res.Usage.TotalTokens))
		span.SetAttributes(attribute.Int("llm.total_tokens", res.Usage.TotalTokens))
	}
	logger.Debug("llm completion finished", logging.Args(attrs...)...)
	return res, nil
}
