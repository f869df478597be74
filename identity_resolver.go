package auth

import (
	"context"

	"github.com/goliatone/go-plantauth/cognito"
)

// IdentityResolver trades an identity token for the federated identity id.
type IdentityResolver struct {
	broker         IdentityBroker
	identityPoolID string
	providerName   string

	logger         Logger
	loggerProvider LoggerProvider
}

// NewIdentityResolver creates a resolver for an identity pool. providerName
// is the logins key of the user pool, see cognito.ProviderName.
func NewIdentityResolver(broker IdentityBroker, identityPoolID, providerName string) *IdentityResolver {
	return &IdentityResolver{
		broker:         broker,
		identityPoolID: identityPoolID,
		providerName:   providerName,
		logger:         defLogger{},
	}
}

// WithLogger sets the logger.
func (r *IdentityResolver) WithLogger(logger Logger) *IdentityResolver {
	r.logger = ResolveLogger("plantauth.identity", r.loggerProvider, logger)
	return r
}

// WithLoggerProvider sets the logger provider.
func (r *IdentityResolver) WithLoggerProvider(provider LoggerProvider) *IdentityResolver {
	r.loggerProvider = provider
	r.logger = ResolveLogger("plantauth.identity", provider, r.logger)
	return r
}

// Resolve returns the identity id for token. The result is memoized in
// session for as long as token stays current, so repeated calls with the
// same token reach the network once.
func (r *IdentityResolver) Resolve(ctx context.Context, session *Session, token string) (string, error) {
	if session != nil {
		if cached, ok := session.Identity(token); ok {
			return cached.IdentityID, nil
		}
	}

	out, err := r.broker.GetID(ctx, &cognito.GetIDInput{
		IdentityPoolID: r.identityPoolID,
		Logins:         logins(r.providerName, token),
	})
	if err != nil {
		r.logger.Error("identity resolution failed", "error", err)
		return "", classifyRemoteError(err, ErrInvalidToken, "resolve_identity", tokenRejections)
	}

	if session != nil && !session.StoreIdentity(ResolvedIdentity{IdentityID: out.IdentityID, Token: token}) {
		r.logger.Debug("identity token replaced during resolution, result not cached")
	}

	return out.IdentityID, nil
}

func logins(providerName, token string) map[string]string {
	return map[string]string{providerName: token}
}
