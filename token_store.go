package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-plantauth/cognito"
)

// TokenStore owns the identity token: it runs the password grant, keeps the
// token in memory and mirrors it to a TokenPersister.
type TokenStore struct {
	grant     PasswordGrant
	clientID  string
	persister TokenPersister
	verifier  IDTokenVerifier
	clock     Clock

	logger         Logger
	loggerProvider LoggerProvider

	loadOnce sync.Once
	mu       sync.RWMutex
	token    *IdentityToken
}

// NewTokenStore creates a store that logs in through grant with the given
// app client id. A nil persister keeps the token in memory only.
func NewTokenStore(grant PasswordGrant, clientID string, persister TokenPersister) *TokenStore {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	return &TokenStore{
		grant:     grant,
		clientID:  clientID,
		persister: persister,
		clock:     normalizeClock(nil),
		logger:    defLogger{},
	}
}

// WithLogger sets the logger.
func (s *TokenStore) WithLogger(logger Logger) *TokenStore {
	s.logger = ResolveLogger("plantauth.tokens", s.loggerProvider, logger)
	return s
}

// WithLoggerProvider sets the logger provider.
func (s *TokenStore) WithLoggerProvider(provider LoggerProvider) *TokenStore {
	s.loggerProvider = provider
	s.logger = ResolveLogger("plantauth.tokens", provider, s.logger)
	return s
}

// WithClock overrides the time source.
func (s *TokenStore) WithClock(clock Clock) *TokenStore {
	s.clock = normalizeClock(clock)
	return s
}

// WithVerifier makes Login check the issued token signature.
func (s *TokenStore) WithVerifier(verifier IDTokenVerifier) *TokenStore {
	s.verifier = verifier
	return s
}

// Login runs the password grant. On success the token replaces any previous
// one and is persisted. On failure the stored token is left untouched.
func (s *TokenStore) Login(ctx context.Context, username, password string) (*IdentityToken, error) {
	s.ensureLoaded()

	if strings.TrimSpace(username) == "" || password == "" {
		return nil, withError(ErrInvalidCredentials, nil, map[string]any{"reason": "missing_username_or_password"})
	}

	requestedAt := s.clock.Now()
	out, err := s.grant.InitiateAuth(ctx, &cognito.InitiateAuthInput{
		AuthFlow: cognito.AuthFlowUserPassword,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
		ClientID: s.clientID,
	})
	if err != nil {
		return nil, classifyRemoteError(err, ErrInvalidCredentials, "login", loginRejections)
	}

	if out.ChallengeName != "" {
		return nil, withError(ErrProtocol, nil, map[string]any{
			"operation": "login",
			"challenge": out.ChallengeName,
		})
	}

	result := out.AuthenticationResult
	if result == nil || result.IDToken == "" || result.ExpiresIn <= 0 {
		return nil, withError(ErrProtocol, nil, map[string]any{
			"operation": "login",
			"error":     "authentication result without id token or lifetime",
		})
	}

	if s.verifier != nil {
		if _, err := s.verifier.Verify(ctx, result.IDToken); err != nil {
			s.logger.Error("issued identity token failed verification", "error", err)
			return nil, withError(ErrProtocol, err, map[string]any{
				"operation": "login",
				"error":     err.Error(),
			})
		}
	}

	token := &IdentityToken{
		Token:        result.IDToken,
		RefreshToken: result.RefreshToken,
		// persisted form keeps millisecond precision
		ExpiresAt: requestedAt.Add(time.Duration(result.ExpiresIn) * time.Second).Truncate(time.Millisecond),
	}

	if err := s.persister.Save(ctx, token); err != nil {
		s.logger.Error("failed to persist identity token", "error", err)
		return nil, withError(ErrStorage, err, map[string]any{
			"operation": "login",
			"error":     err.Error(),
		})
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	copied := *token
	return &copied, nil
}

// Current returns the identity token, valid or not. The persisted value is
// read the first time the store is consulted.
func (s *TokenStore) Current() (IdentityToken, bool) {
	s.ensureLoaded()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return IdentityToken{}, false
	}
	return *s.token, true
}

// IsValid reports whether a token exists and outlives now+margin.
func (s *TokenStore) IsValid(margin time.Duration) bool {
	token, ok := s.Current()
	if !ok {
		return false
	}
	return token.ValidAt(s.clock.Now(), margin)
}

// Logout drops the token from memory and from the persister.
func (s *TokenStore) Logout(ctx context.Context) error {
	s.ensureLoaded()

	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()

	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Error("failed to clear persisted identity token", "error", err)
		return withError(ErrStorage, err, map[string]any{
			"operation": "logout",
			"error":     err.Error(),
		})
	}
	return nil
}

func (s *TokenStore) ensureLoaded() {
	s.loadOnce.Do(func() {
		token, err := s.persister.Load(context.Background())
		if err != nil {
			s.logger.Warn("failed to load persisted identity token", "error", err)
			return
		}
		if token == nil || token.Token == "" {
			return
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	})
}

// MemoryPersister keeps the token in process memory.
type MemoryPersister struct {
	mu    sync.Mutex
	token *IdentityToken
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Load implements TokenPersister.
func (m *MemoryPersister) Load(context.Context) (*IdentityToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, nil
	}
	copied := *m.token
	return &copied, nil
}

// Save implements TokenPersister.
func (m *MemoryPersister) Save(_ context.Context, token *IdentityToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == nil {
		m.token = nil
		return nil
	}
	copied := *token
	m.token = &copied
	return nil
}

// Clear implements TokenPersister.
func (m *MemoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	return nil
}
