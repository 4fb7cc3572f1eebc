package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrExternalService = errors.New("external service error")
	ErrLLM             = errors.New("llm error")
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// ServiceError is the typed failure returned by external integrations. Kind is
// one of the sentinel markers above so callers can classify with errors.Is
// while still reaching the service name and any rate-limit hint.
type ServiceError struct {
	Kind       error
	Service    string
	Operation  string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *ServiceError) Error() string {
	kind := ErrExternalService
	if e.Kind != nil {
		kind = e.Kind
	}
	detail := buildDetail(e.Service, e.Operation, e.Message)
	if e.StatusCode > 0 {
		detail = fmt.Sprintf("%s (status %d)", detail, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", kind, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", kind, detail)
}

func (e *ServiceError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalService
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Validation reports caller input that can never succeed on retry.
func Validation(component, message string) error {
	return Wrap(ErrValidation, component, "", message, nil)
}

// ExternalService reports a failed call to a named third-party service.
func ExternalService(service, operation, message string, status int, err error) error {
	return &ServiceError{
		Kind:       ErrExternalService,
		Service:    service,
		Operation:  operation,
		Message:    message,
		StatusCode: status,
		Err:        err,
	}
}

// LLM reports a provider failure or an unusable model response.
func LLM(provider, message string, err error) error {
	return &ServiceError{Kind: ErrLLM, Service: provider, Message: message, Err: err}
}

// RateLimited reports a throttled call. retryAfter is zero when the service
// gave no hint.
func RateLimited(service string, retryAfter time.Duration, err error) error {
	return &ServiceError{
		Kind:       ErrRateLimit,
		Service:    service,
		StatusCode: 429,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// RetryAfter returns the rate-limit hint carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && errors.Is(svcErr.Kind, ErrRateLimit) && svcErr.RetryAfter > 0 {
		return svcErr.RetryAfter, true
	}
	return 0, false
}

// ServiceName returns the service or provider named by err, if any.
func ServiceName(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Service
	}
	return ""
}

// Kind maps err to a short label used in logs and persisted failure records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrLLM):
		return "llm"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
