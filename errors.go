package auth

import (
	"context"
	"errors"
	"slices"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-plantauth/cognito"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeSessionExpired     = "session_expired"
	TextCodeNetworkError       = "network_error"
	TextCodeProtocolError      = "protocol_error"
	TextCodeInvalidToken       = "invalid_token"
	TextCodeStorageError       = "storage_error"
)

// ErrInvalidCredentials is returned when the identity provider rejects a login.
var ErrInvalidCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned when there is no usable identity token or the
// temporary credentials ran out. The caller has to log in again.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrNetwork is returned when a remote endpoint could not be reached.
var ErrNetwork = goerrors.New("network error", goerrors.CategoryOperation).
	WithTextCode(TextCodeNetworkError).
	WithCode(goerrors.CodeInternal)

// ErrProtocol is returned when a remote endpoint answers with an unexpected shape.
var ErrProtocol = goerrors.New("unexpected response", goerrors.CategoryInternal).
	WithTextCode(TextCodeProtocolError).
	WithCode(goerrors.CodeInternal)

// ErrInvalidToken is returned when the identity broker rejects the identity token.
var ErrInvalidToken = goerrors.New("identity token rejected", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrStorage is returned when the identity token could not be written to or
// removed from its persister.
var ErrStorage = goerrors.New("token storage failed", goerrors.CategoryInternal).
	WithTextCode(TextCodeStorageError).
	WithCode(goerrors.CodeInternal)

// Reasons attached to ErrSessionExpired under the "reason" metadata key.
const (
	ReasonNoSession          = "no_session"
	ReasonTokenExpired       = "token_expired"
	ReasonCredentialsExpired = "credentials_expired"
)

// IsInvalidCredentials reports whether err is a rejected login.
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, TextCodeInvalidCredentials)
}

// IsSessionExpired reports whether err requires a new login.
func IsSessionExpired(err error) bool {
	return hasTextCode(err, TextCodeSessionExpired)
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	return hasTextCode(err, TextCodeNetworkError)
}

// IsProtocolError reports whether err is a malformed remote response.
func IsProtocolError(err error) bool {
	return hasTextCode(err, TextCodeProtocolError)
}

// IsInvalidToken reports whether err is a rejected identity token.
func IsInvalidToken(err error) bool {
	return hasTextCode(err, TextCodeInvalidToken)
}

// IsStorageError reports whether the token persister failed.
func IsStorageError(err error) bool {
	return hasTextCode(err, TextCodeStorageError)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// ErrorReason returns the "reason" metadata of a rich error, if any.
func ErrorReason(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return ""
	}
	reason, _ := richErr.Metadata["reason"].(string)
	return reason
}

func withError(base *goerrors.Error, cause error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if cause != nil {
		clone.Source = cause
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

func sessionExpired(reason string) error {
	return withError(ErrSessionExpired, nil, map[string]any{"reason": reason})
}

// Provider error types that reject the caller's input for each call.
var (
	loginRejections = []string{
		cognito.TypeNotAuthorized,
		cognito.TypeUserNotFound,
		cognito.TypeUserNotConfirmed,
		cognito.TypePasswordResetRequired,
	}
	tokenRejections = []string{cognito.TypeNotAuthorized}
)

// classifyRemoteError maps a cognito client error onto the package taxonomy.
// Provider errors whose type is in rejectedTypes become rejection, transient
// failures become ErrNetwork and everything else becomes ErrProtocol.
func classifyRemoteError(err error, rejection *goerrors.Error, operation string, rejectedTypes []string) error {
	if err == nil {
		return nil
	}

	meta := map[string]any{"operation": operation}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		meta["error"] = err.Error()
		return withError(ErrNetwork, err, meta)
	}

	var transportErr *cognito.TransportError
	if errors.As(err, &transportErr) {
		meta["error"] = transportErr.Err.Error()
		return withError(ErrNetwork, err, meta)
	}

	var apiErr *cognito.APIError
	if errors.As(err, &apiErr) {
		for k, v := range apiErr.Metadata() {
			meta[k] = v
		}
		if apiErr.Retryable() {
			return withError(ErrNetwork, err, meta)
		}
		if slices.Contains(rejectedTypes, apiErr.Type) {
			return withError(rejection, err, meta)
		}
		return withError(ErrProtocol, err, meta)
	}

	meta["error"] = err.Error()
	return withError(ErrProtocol, err, meta)
}
