package auth

import (
	"sync"

	"github.com/google/uuid"
)

// SessionState describes where a Client stands in the login lifecycle.
type SessionState string

const (
	// SessionNone means no identity token is held.
	SessionNone SessionState = "no_session"
	// SessionReady means a valid identity token is held.
	SessionReady SessionState = "ready"
	// SessionExpired means a token is held but is past its margin.
	SessionExpired SessionState = "expired"
)

// Session caches the derived identity and credentials for one client. Every
// entry is keyed by the identity token it was derived from, so a new login
// makes previous entries unreachable without explicit resets.
type Session struct {
	id     string
	tokens TokenSource

	mu          sync.Mutex
	identity    *ResolvedIdentity
	credentials *credentialsEntry
}

type credentialsEntry struct {
	identityID  string
	token       string
	credentials TemporaryCredentials
}

// TokenSource exposes the current identity token.
type TokenSource interface {
	Current() (IdentityToken, bool)
}

// NewSession returns an empty session with a fresh id. When tokens is set,
// entries derived from a token that is no longer current are not stored.
func NewSession(tokens TokenSource) *Session {
	return &Session{id: uuid.NewString(), tokens: tokens}
}

// ID identifies the session in logs and activity events.
func (s *Session) ID() string {
	return s.id
}

// Identity returns the memoized identity for token.
func (s *Session) Identity(token string) (ResolvedIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.identity.Token != token {
		return ResolvedIdentity{}, false
	}
	return *s.identity, true
}

// StoreIdentity memoizes identity, replacing any entry for another token.
// It reports false when the token was replaced while the identity was being
// resolved.
func (s *Session) StoreIdentity(identity ResolvedIdentity) bool {
	if !s.isCurrent(identity.Token) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = &identity
	return true
}

// Credentials returns cached credentials for the identity and token pair.
// Expiry is not checked here.
func (s *Session) Credentials(identityID, token string) (TemporaryCredentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.credentials
	if entry == nil || entry.identityID != identityID || entry.token != token {
		return TemporaryCredentials{}, false
	}
	return entry.credentials, true
}

// StoreCredentials caches creds for the identity and token pair. Like
// StoreIdentity it skips tokens that are no longer current.
func (s *Session) StoreCredentials(identityID, token string, creds TemporaryCredentials) bool {
	if !s.isCurrent(token) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = &credentialsEntry{
		identityID:  identityID,
		token:       token,
		credentials: creds,
	}
	return true
}

func (s *Session) isCurrent(token string) bool {
	if s.tokens == nil {
		return true
	}
	current, ok := s.tokens.Current()
	return ok && current.Token == token
}

// Reset drops every cached entry.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.credentials = nil
}
