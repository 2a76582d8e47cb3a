package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/telemetry/metrics"
)

// errorResponse converts a turn error to an HTTP status and JSON error body.
func errorResponse(err error) (int, *types.ErrorResponse) {
	var validationErr *chat.ValidationError
	if errors.As(err, &validationErr) {
		code := types.CodeInvalidValue
		switch {
		case errors.Is(err, backend.ErrUnknownModel):
			code = types.CodeModelNotFound
		case validationErr.Field == "session_id" && validationErr.Message == missingSessionMessage:
			code = types.CodeMissingField
		}
		return http.StatusBadRequest, types.NewInvalidRequestError(validationErr.Message, validationErr.Field, code)
	}

	var backendErr *chat.BackendError
	if errors.As(err, &backendErr) {
		resp := types.NewBackendError(backendErr.Error(), backendErr.StatusCode, backendErr.Body, backendErr.Timeout)
		return resp.Error.HTTPStatusCode(), resp
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		resp := types.NewServiceUnavailableError(fmt.Sprintf("request canceled: %v", err), types.CodeRequestCanceled)
		return http.StatusServiceUnavailable, resp
	}

	return http.StatusInternalServerError, types.NewServerError("an internal error occurred")
}

// outcome classifies a turn error for metrics.
func outcome(err error) string {
	var validationErr *chat.ValidationError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &validationErr):
		return metrics.OutcomeInvalid
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeBackendError
	}
}

// modelError wraps a registry lookup failure as a validation error while
// keeping backend.ErrUnknownModel in the chain.
type modelError struct {
	chat.ValidationError
	cause error
}

func (e *modelError) Unwrap() []error {
	return []error{&e.ValidationError, e.cause}
}

func newModelError(key string, cause error) error {
	return &modelError{
		ValidationError: chat.ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("unknown model %q", key),
		},
		cause: cause,
	}
}
