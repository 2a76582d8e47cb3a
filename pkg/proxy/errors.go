package proxy

import (
	"errors"

	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/session"
)

// HandleError converts errors raised outside a chat turn (request parsing,
// session lookups) to OpenAI-compatible error responses. Turn errors are
// already converted by the relay.
//
// Example usage:
//
//	if err != nil {
//	    errResp := HandleError(err)
//	    WriteErrorResponse(w, errResp)
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	if errors.Is(err, session.ErrSessionNotFound) {
		return types.NewNotFoundError(err.Error(), types.CodeSessionNotFound)
	}

	var validationErr *chat.ValidationError
	if errors.As(err, &validationErr) {
		return types.NewInvalidRequestError(validationErr.Message, validationErr.Field, types.CodeInvalidValue)
	}

	var persistErr *chat.PersistenceError
	if errors.As(err, &persistErr) {
		return types.NewServerError("failed to persist session")
	}

	// Default to internal server error for unknown errors
	return types.NewServerError("an internal error occurred")
}
