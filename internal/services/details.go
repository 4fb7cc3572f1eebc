package services

import (
	"errors"
	"strings"
)

// ErrorDetails is the flattened view of a classified error.
type ErrorDetails struct {
	Kind    string
	Service string
	Message string
	Hint    string
}

// Details flattens err for logging and for the failure message persisted on
// workflow and page records.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{
		Kind:    Kind(err),
		Service: ServiceName(err),
		Message: strings.TrimSpace(err.Error()),
	}
	switch {
	case errors.Is(err, ErrValidation):
		details.Hint = "check the request parameters"
	case errors.Is(err, ErrRateLimit):
		details.Hint = "provider is throttling requests; lower concurrency or wait"
	case errors.Is(err, ErrLLM):
		details.Hint = "inspect the model response or switch provider"
	case errors.Is(err, ErrConfiguration):
		details.Hint = "run 'seoforge doctor' to verify configuration"
	case errors.Is(err, ErrExternalService):
		details.Hint = "check provider status and API key"
	default:
		details.Hint = "check logs for details"
	}
	return details
}
