package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-plantauth/cognito"
)

// Logger is the logging contract used across the package. Messages are
// followed by key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Clock abstracts time for expiry checks and signing timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return ClockFunc(time.Now)
	}
	return c
}

// PasswordGrant exchanges a username and password for an identity token.
type PasswordGrant interface {
	InitiateAuth(ctx context.Context, in *cognito.InitiateAuthInput) (*cognito.InitiateAuthOutput, error)
}

// IdentityBroker resolves identities and issues temporary credentials.
type IdentityBroker interface {
	GetID(ctx context.Context, in *cognito.GetIDInput) (*cognito.GetIDOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *cognito.GetCredentialsForIdentityInput) (*cognito.GetCredentialsForIdentityOutput, error)
}

// TokenPersister stores the identity token across process restarts.
// Load returns nil, nil when nothing is stored.
type TokenPersister interface {
	Load(ctx context.Context) (*IdentityToken, error)
	Save(ctx context.Context, token *IdentityToken) error
	Clear(ctx context.Context) error
}

var _ PasswordGrant = (*cognito.Client)(nil)
var _ IdentityBroker = (*cognito.Client)(nil)

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] PLANTAUTH " + formatLine(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] PLANTAUTH " + formatLine(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] PLANTAUTH " + formatLine(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] PLANTAUTH " + formatLine(msg, args...))
}

func formatLine(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}
