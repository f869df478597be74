package auth

import (
	"context"

	"github.com/goliatone/go-plantauth/cognito"
)

// CredentialBroker exchanges an identity id and its token for temporary
// signing credentials. It keeps no state; callers cache the result.
type CredentialBroker struct {
	broker       IdentityBroker
	providerName string

	logger         Logger
	loggerProvider LoggerProvider
}

// NewCredentialBroker creates a broker. providerName is the logins key of
// the user pool.
func NewCredentialBroker(broker IdentityBroker, providerName string) *CredentialBroker {
	return &CredentialBroker{
		broker:       broker,
		providerName: providerName,
		logger:       defLogger{},
	}
}

// WithLogger sets the logger.
func (b *CredentialBroker) WithLogger(logger Logger) *CredentialBroker {
	b.logger = ResolveLogger("plantauth.credentials", b.loggerProvider, logger)
	return b
}

// WithLoggerProvider sets the logger provider.
func (b *CredentialBroker) WithLoggerProvider(provider LoggerProvider) *CredentialBroker {
	b.loggerProvider = provider
	b.logger = ResolveLogger("plantauth.credentials", provider, b.logger)
	return b
}

// Exchange requests fresh credentials for identityID.
func (b *CredentialBroker) Exchange(ctx context.Context, identityID, token string) (TemporaryCredentials, error) {
	out, err := b.broker.GetCredentialsForIdentity(ctx, &cognito.GetCredentialsForIdentityInput{
		IdentityID: identityID,
		Logins:     logins(b.providerName, token),
	})
	if err != nil {
		b.logger.Error("credential exchange failed", "identity_id", identityID, "error", err)
		return TemporaryCredentials{}, classifyRemoteError(err, ErrInvalidToken, "exchange_credentials", tokenRejections)
	}

	creds := out.Credentials
	if creds.Expiration <= 0 {
		return TemporaryCredentials{}, withError(ErrProtocol, nil, map[string]any{
			"operation":   "exchange_credentials",
			"identity_id": identityID,
			"error":       "credentials without expiration",
		})
	}

	return TemporaryCredentials{
		AccessKeyID:  creds.AccessKeyID,
		SecretKey:    creds.SecretKey,
		SessionToken: creds.SessionToken,
		ExpiresAt:    epochSeconds(creds.Expiration),
	}, nil
}
