package auth

import (
	"encoding/json"
	"time"
)

// IdentityToken is the proof of a successful login. Token is the opaque id
// token, ExpiresAt the instant it stops being valid.
type IdentityToken struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

// ValidAt reports whether the token is still usable at now with margin of
// headroom. A token expiring exactly at now+margin is not valid.
func (t IdentityToken) ValidAt(now time.Time, margin time.Duration) bool {
	if t.Token == "" {
		return false
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// Claims decodes the token payload without verifying its signature.
func (t IdentityToken) Claims() (*IDTokenClaims, error) {
	return ParseIDTokenClaims(t.Token)
}

type persistedToken struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	Expires      int64  `json:"expires"`
}

// MarshalJSON encodes the token with ExpiresAt as epoch milliseconds.
func (t IdentityToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(persistedToken{
		IDToken:      t.Token,
		RefreshToken: t.RefreshToken,
		Expires:      t.ExpiresAt.UnixMilli(),
	})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (t *IdentityToken) UnmarshalJSON(data []byte) error {
	var p persistedToken
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	t.Token = p.IDToken
	t.RefreshToken = p.RefreshToken
	t.ExpiresAt = time.UnixMilli(p.Expires)
	return nil
}

// ResolvedIdentity is the federated identity bound to an identity token.
type ResolvedIdentity struct {
	IdentityID string
	Token      string
}

// TemporaryCredentials are short lived signing credentials issued for an
// identity.
type TemporaryCredentials struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
	ExpiresAt    time.Time
}

// ValidAt reports whether the credentials can still sign at now with margin
// of headroom.
func (c TemporaryCredentials) ValidAt(now time.Time, margin time.Duration) bool {
	if c.AccessKeyID == "" || c.SecretKey == "" {
		return false
	}
	return now.Add(margin).Before(c.ExpiresAt)
}

func epochSeconds(v float64) time.Time {
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
