package auth_test

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/cognito"
	"github.com/stretchr/testify/mock"
)

// MockPasswordGrant implements auth.PasswordGrant
type MockPasswordGrant struct {
	mock.Mock
}

func (m *MockPasswordGrant) InitiateAuth(ctx context.Context, in *cognito.InitiateAuthInput) (*cognito.InitiateAuthOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*cognito.InitiateAuthOutput)
	return out, args.Error(1)
}

// MockIdentityBroker implements auth.IdentityBroker
type MockIdentityBroker struct {
	mock.Mock
}

func (m *MockIdentityBroker) GetID(ctx context.Context, in *cognito.GetIDInput) (*cognito.GetIDOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*cognito.GetIDOutput)
	return out, args.Error(1)
}

func (m *MockIdentityBroker) GetCredentialsForIdentity(ctx context.Context, in *cognito.GetCredentialsForIdentityInput) (*cognito.GetCredentialsForIdentityOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*cognito.GetCredentialsForIdentityOutput)
	return out, args.Error(1)
}

// fakeClock is a settable auth.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func authResult(idToken string, expiresIn int64) *cognito.InitiateAuthOutput {
	return &cognito.InitiateAuthOutput{
		AuthenticationResult: &cognito.AuthenticationResult{
			IDToken:      idToken,
			RefreshToken: "refresh-" + idToken,
			AccessToken:  "access-" + idToken,
			ExpiresIn:    expiresIn,
			TokenType:    "Bearer",
		},
	}
}

type logCall struct {
	level   string
	message string
	args    []any
}

// captureLogger records log calls.
type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

func (l *captureLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, call := range l.calls {
		if call.level == level {
			out = append(out, call.message)
		}
	}
	return out
}

type loggerProviderSpy struct {
	logger auth.Logger
	byName map[string]auth.Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) auth.Logger {
	p.names = append(p.names, name)
	if p.byName != nil {
		if logger, ok := p.byName[name]; ok {
			return logger
		}
	}
	return p.logger
}
