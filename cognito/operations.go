package cognito

import (
	"context"
	"errors"
)

// AuthFlowUserPassword is the password grant flow.
const AuthFlowUserPassword = "USER_PASSWORD_AUTH"

// InitiateAuthInput is the password grant request.
type InitiateAuthInput struct {
	AuthFlow       string            `json:"AuthFlow"`
	AuthParameters map[string]string `json:"AuthParameters"`
	ClientID       string            `json:"ClientId"`
}

// AuthenticationResult carries the issued tokens.
type AuthenticationResult struct {
	AccessToken  string `json:"AccessToken"`
	ExpiresIn    int64  `json:"ExpiresIn"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	TokenType    string `json:"TokenType"`
}

// InitiateAuthOutput is the password grant response. ChallengeName is set
// instead of AuthenticationResult when the pool requires another step.
type InitiateAuthOutput struct {
	AuthenticationResult *AuthenticationResult `json:"AuthenticationResult"`
	ChallengeName        string                `json:"ChallengeName"`
	Session              string                `json:"Session"`
}

// GetIDInput trades an identity token for an identity id.
type GetIDInput struct {
	IdentityPoolID string            `json:"IdentityPoolId"`
	Logins         map[string]string `json:"Logins"`
}

// GetIDOutput is the identity resolution response.
type GetIDOutput struct {
	IdentityID string `json:"IdentityId"`
}

// GetCredentialsForIdentityInput trades an identity id and token for
// temporary credentials.
type GetCredentialsForIdentityInput struct {
	IdentityID string            `json:"IdentityId"`
	Logins     map[string]string `json:"Logins"`
}

// Credentials are temporary access credentials. Expiration is in epoch
// seconds.
type Credentials struct {
	AccessKeyID  string  `json:"AccessKeyId"`
	SecretKey    string  `json:"SecretKey"`
	SessionToken string  `json:"SessionToken"`
	Expiration   float64 `json:"Expiration"`
}

// GetCredentialsForIdentityOutput is the credential exchange response.
type GetCredentialsForIdentityOutput struct {
	Credentials *Credentials `json:"Credentials"`
	IdentityID  string       `json:"IdentityId"`
}

// InitiateAuth runs the password grant against the identity provider.
func (c *Client) InitiateAuth(ctx context.Context, in *InitiateAuthInput) (*InitiateAuthOutput, error) {
	var out InitiateAuthOutput
	if err := c.call(ctx, c.config.IdentityProviderURL, TargetInitiateAuth, in, &out); err != nil {
		return nil, err
	}
	if out.AuthenticationResult == nil && out.ChallengeName == "" {
		return nil, &DecodeError{Target: TargetInitiateAuth, Status: 200, Err: errors.New("missing AuthenticationResult")}
	}
	return &out, nil
}

// GetID resolves the identity id for the logins map.
func (c *Client) GetID(ctx context.Context, in *GetIDInput) (*GetIDOutput, error) {
	var out GetIDOutput
	if err := c.call(ctx, c.config.IdentityBrokerURL, TargetGetID, in, &out); err != nil {
		return nil, err
	}
	if out.IdentityID == "" {
		return nil, &DecodeError{Target: TargetGetID, Status: 200, Err: errors.New("missing IdentityId")}
	}
	return &out, nil
}

// GetCredentialsForIdentity exchanges an identity for temporary credentials.
func (c *Client) GetCredentialsForIdentity(ctx context.Context, in *GetCredentialsForIdentityInput) (*GetCredentialsForIdentityOutput, error) {
	var out GetCredentialsForIdentityOutput
	if err := c.call(ctx, c.config.IdentityBrokerURL, TargetGetCredentialsForIdentity, in, &out); err != nil {
		return nil, err
	}
	if out.Credentials == nil || out.Credentials.AccessKeyID == "" || out.Credentials.SecretKey == "" {
		return nil, &DecodeError{Target: TargetGetCredentialsForIdentity, Status: 200, Err: errors.New("missing Credentials")}
	}
	return &out, nil
}
