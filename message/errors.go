package message

import "fmt"

// Error kinds, in the Anthropic wire vocabulary
const (
	KindInvalidRequest = "invalid_request_error"
	KindAuthentication = "authentication_error"
	KindPermission     = "permission_error"
	KindNotFound       = "not_found_error"
	KindRateLimit      = "rate_limit_error"
	KindAPIError       = "api_error"
	KindOverloaded     = "overloaded_error"
	KindTimeout        = "timeout_error"
)

// APIError a client-visible error with its HTTP status
type APIError struct {
	Kind    string
	Message string
	Status  int
	Code    string
}

// Error implements error
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Body renders the Anthropic error envelope
func (e *APIError) Body() map[string]any {
	shape := map[string]any{"type": e.Kind, "message": e.Message}
	if e.Code != "" {
		shape["code"] = e.Code
	}
	return map[string]any{"type": "error", "error": shape}
}

// Event renders the in-stream error frame
func (e *APIError) Event() *ErrorEvent {
	return &ErrorEvent{
		Type:  EventError,
		Error: ErrorShape{Type: e.Kind, Message: e.Message, Code: e.Code},
	}
}

// ErrInvalidRequest malformed client input (400)
func ErrInvalidRequest(msg string) *APIError {
	return &APIError{Kind: KindInvalidRequest, Message: msg, Status: 400}
}

// ErrAuthentication proxy auth mismatch or backend 401 (401)
func ErrAuthentication(msg string) *APIError {
	return &APIError{Kind: KindAuthentication, Message: msg, Status: 401, Code: "invalid_api_key"}
}

// ErrPermission backend 403 (403)
func ErrPermission(msg string) *APIError {
	return &APIError{Kind: KindPermission, Message: msg, Status: 403}
}

// ErrNotFound backend 404, commonly an unknown upstream model id (404)
func ErrNotFound(msg string) *APIError {
	return &APIError{Kind: KindNotFound, Message: msg, Status: 404}
}

// ErrRateLimit backend 429 (429)
func ErrRateLimit(msg string) *APIError {
	return &APIError{Kind: KindRateLimit, Message: msg, Status: 429}
}

// ErrBackend backend 5xx or transport failure (502)
func ErrBackend(msg string) *APIError {
	return &APIError{Kind: KindAPIError, Message: msg, Status: 502}
}

// ErrTimeout request deadline exceeded (504)
func ErrTimeout(msg string) *APIError {
	return &APIError{Kind: KindTimeout, Message: msg, Status: 504}
}

// ErrOverloaded the gateway is shutting down (503)
func ErrOverloaded(msg string) *APIError {
	return &APIError{Kind: KindOverloaded, Message: msg, Status: 503}
}

// AsAPIError unwraps err into an APIError, or wraps it as a 502
// backend error when it is anything else
func AsAPIError(err error) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return ErrBackend(err.Error())
}
