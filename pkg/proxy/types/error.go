package types

import "net/http"

// ErrorResponse is the JSON error body returned by every relay endpoint.
// It follows the OpenAI error envelope so OpenAI-style clients can read it.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the name of the request field that caused the error (if applicable).
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// UpstreamStatus is the status the completion backend answered with, when
	// the error came from the backend.
	UpstreamStatus int `json:"upstream_status,omitempty"`

	// UpstreamBody is the (truncated) body the backend answered with.
	UpstreamBody string `json:"upstream_body,omitempty"`
}

// Error type constants matching the OpenAI API.
const (
	// ErrorTypeInvalidRequest indicates a client-side error (400).
	ErrorTypeInvalidRequest = "invalid_request_error"

	// ErrorTypeNotFound indicates a resource was not found (404).
	ErrorTypeNotFound = "not_found"

	// ErrorTypeMethodNotAllowed indicates the route exists but not for this method (405).
	ErrorTypeMethodNotAllowed = "method_not_allowed"

	// ErrorTypeRequestTooLarge indicates the request body exceeded the limit (413).
	ErrorTypeRequestTooLarge = "request_too_large"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates a backend error (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeServiceUnavailable indicates temporary unavailability (503).
	ErrorTypeServiceUnavailable = "service_unavailable"

	// ErrorTypeGatewayTimeout indicates a backend timeout (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error code constants for common error scenarios.
const (
	CodeMissingField     = "missing_field"
	CodeInvalidValue     = "invalid_value"
	CodeInvalidJSON      = "invalid_json"
	CodeModelNotFound    = "model_not_found"
	CodeSessionNotFound  = "session_not_found"
	CodeBackendError     = "backend_error"
	CodeBackendTimeout   = "backend_timeout"
	CodeRequestCanceled  = "request_canceled"
	CodeRequestTooLarge  = "request_too_large"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternalError    = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates an error response for invalid requests (400).
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewNotFoundError creates an error response for a missing resource (404).
func NewNotFoundError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeNotFound, "", code)
}

// NewMethodNotAllowedError creates an error response for a wrong HTTP method (405).
func NewMethodNotAllowedError(method string) *ErrorResponse {
	return NewErrorResponse("method "+method+" not allowed", ErrorTypeMethodNotAllowed, "method", CodeMethodNotAllowed)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBackendError creates an error response for a failed backend call.
// A timeout maps to 504, anything else to 502.
func NewBackendError(message string, upstreamStatus int, upstreamBody string, timeout bool) *ErrorResponse {
	resp := NewErrorResponse(message, ErrorTypeBadGateway, "", CodeBackendError)
	if timeout {
		resp.Error.Type = ErrorTypeGatewayTimeout
		resp.Error.Code = CodeBackendTimeout
	}
	resp.Error.UpstreamStatus = upstreamStatus
	resp.Error.UpstreamBody = upstreamBody
	return resp
}

// NewServiceUnavailableError creates an error response for temporary unavailability (503).
func NewServiceUnavailableError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, "", code)
}

// HTTPStatusCode returns the HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorTypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeServerError:
		return http.StatusInternalServerError
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
