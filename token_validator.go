package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// IDTokenVerifier checks the signature and standard claims of an identity
// token.
type IDTokenVerifier interface {
	Verify(ctx context.Context, token string) (*IDTokenClaims, error)
}

// IDTokenVerifierFunc adapts a function into an IDTokenVerifier.
type IDTokenVerifierFunc func(ctx context.Context, token string) (*IDTokenClaims, error)

// Verify satisfies IDTokenVerifier.
func (f IDTokenVerifierFunc) Verify(ctx context.Context, token string) (*IDTokenClaims, error) {
	if f == nil {
		return ParseIDTokenClaims(token)
	}
	return f(ctx, token)
}

// Issuer returns the issuer of identity tokens minted by a user pool.
func Issuer(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// JWKSURL returns the public key set location for a user pool.
func JWKSURL(region, userPoolID string) string {
	return Issuer(region, userPoolID) + "/.well-known/jwks.json"
}

// JWKSVerifier validates identity tokens against a key set.
type JWKSVerifier struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	audience string
	methods  []string
	clock    Clock
	closer   func()
}

// NewJWKSVerifier builds a verifier from a key func. issuer and audience are
// enforced when non empty.
func NewJWKSVerifier(keyFunc jwt.Keyfunc, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		keyFunc:  keyFunc,
		issuer:   issuer,
		audience: audience,
		methods:  []string{"RS256"},
		clock:    normalizeClock(nil),
	}
}

// NewRemoteJWKSVerifier fetches the key set at jwksURL and keeps it fresh in
// the background until Close is called.
func NewRemoteJWKSVerifier(jwksURL, issuer, audience string, logger Logger) (*JWKSVerifier, error) {
	if logger == nil {
		logger = defLogger{}
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to refresh identity token key set", "url", jwksURL, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, withError(ErrNetwork, err, map[string]any{
			"operation": "load_key_set",
			"url":       jwksURL,
			"error":     err.Error(),
		})
	}

	v := NewJWKSVerifier(jwks.Keyfunc, issuer, audience)
	v.closer = jwks.EndBackground
	return v, nil
}

// NewStaticKeyVerifier verifies tokens signed with a single known key.
func NewStaticKeyVerifier(kid string, key any, algorithm, issuer, audience string) *JWKSVerifier {
	given := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		kid: keyfunc.NewGivenCustom(key, keyfunc.GivenKeyOptions{Algorithm: algorithm}),
	})
	v := NewJWKSVerifier(given.Keyfunc, issuer, audience)
	v.methods = []string{algorithm}
	return v
}

// WithClock overrides the time source used for exp and iat checks.
func (v *JWKSVerifier) WithClock(clock Clock) *JWKSVerifier {
	v.clock = normalizeClock(clock)
	return v
}

// Verify satisfies IDTokenVerifier.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*IDTokenClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &IDTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, withError(ErrInvalidToken, err, map[string]any{"error": err.Error()})
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken.Clone()
	}
	if claims.TokenUse != "" && claims.TokenUse != TokenUseID {
		return nil, withError(ErrInvalidToken, nil, map[string]any{"token_use": claims.TokenUse})
	}
	return claims, nil
}

// Close stops the background key refresh, if any.
func (v *JWKSVerifier) Close() {
	if v.closer != nil {
		v.closer()
	}
}
