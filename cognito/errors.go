package cognito

import (
	"fmt"
	"net/http"
)

// Error types reported by the provider in the "__type" field.
const (
	TypeNotAuthorized         = "NotAuthorizedException"
	TypeUserNotFound          = "UserNotFoundException"
	TypeUserNotConfirmed      = "UserNotConfirmedException"
	TypePasswordResetRequired = "PasswordResetRequiredException"
	TypeInvalidParameter      = "InvalidParameterException"
	TypeResourceNotFound      = "ResourceNotFoundException"
	TypeTooManyRequests       = "TooManyRequestsException"
	TypeInternalError         = "InternalErrorException"
	TypeLimitExceeded         = "LimitExceededException"
)

// APIError is a rejection reported by the provider.
type APIError struct {
	Target  string
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return "cognito error"
	}
	if e.Type != "" {
		return fmt.Sprintf("cognito %s failed (%d %s): %s", e.Target, e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("cognito %s failed (%d): %s", e.Target, e.Status, e.Message)
}

// Retryable reports whether the rejection is transient: throttling or a
// server side failure.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Type {
	case TypeTooManyRequests, TypeInternalError, TypeLimitExceeded:
		return true
	}
	return e.Status >= http.StatusInternalServerError
}

// Metadata returns the error details for structured logging.
func (e *APIError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	meta := map[string]any{
		"target": e.Target,
		"status": e.Status,
	}
	if e.Type != "" {
		meta["type"] = e.Type
	}
	if e.Message != "" {
		meta["message"] = e.Message
	}
	return meta
}

// TransportError wraps a failure to reach the endpoint or read its reply.
type TransportError struct {
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("cognito %s transport: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a 200 response body has an unexpected shape.
type DecodeError struct {
	Target string
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cognito %s: unexpected response", e.Target)
	}
	return fmt.Sprintf("cognito %s: unexpected response: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
