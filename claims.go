package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUseID is the token_use claim of identity tokens.
const TokenUseID = "id"

// IDTokenClaims are the claims carried by an identity token issued by the
// user pool.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Username      string `json:"cognito:username,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	TokenUse      string `json:"token_use,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
}

// UserID returns the subject.
func (c *IDTokenClaims) UserID() string {
	return c.Subject
}

// DisplayName returns the username, falling back to email then subject.
func (c *IDTokenClaims) DisplayName() string {
	switch {
	case c.Username != "":
		return c.Username
	case c.Email != "":
		return c.Email
	}
	return c.Subject
}

// Expires returns the exp claim or the zero time.
func (c *IDTokenClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the iat claim or the zero time.
func (c *IDTokenClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// ParseIDTokenClaims decodes the payload of an identity token without
// checking its signature. Use an IDTokenVerifier when the signature matters.
func ParseIDTokenClaims(token string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, withError(ErrProtocol, err, map[string]any{"error": err.Error()})
	}
	return claims, nil
}
