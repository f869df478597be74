package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(Config{
		Region:              "us-west-2",
		IdentityProviderURL: server.URL + "/idp",
		IdentityBrokerURL:   server.URL + "/identity",
		HTTPClient:          server.Client(),
	})
}

func TestNewDefaultsToRegionalEndpoints(t *testing.T) {
	client := New(Config{Region: "us-west-2"})
	assert.Equal(t, "https://cognito-idp.us-west-2.amazonaws.com/", client.config.IdentityProviderURL)
	assert.Equal(t, "https://cognito-identity.us-west-2.amazonaws.com/", client.config.IdentityBrokerURL)
	assert.Equal(t, "cognito-idp.us-west-2.amazonaws.com/us-west-2_abc", ProviderName("us-west-2", "us-west-2_abc"))
}

func TestInitiateAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/idp", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, TargetInitiateAuth, r.Header.Get(HeaderTarget))
		assert.Equal(t, ContentType, r.Header.Get("Content-Type"))

		var in InitiateAuthInput
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, AuthFlowUserPassword, in.AuthFlow)
		assert.Equal(t, "client-id", in.ClientID)
		assert.Equal(t, "ada", in.AuthParameters["USERNAME"])
		assert.Equal(t, "secret", in.AuthParameters["PASSWORD"])

		w.Header().Set("Content-Type", ContentType)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"AuthenticationResult": map[string]any{
				"IdToken":      "id-token",
				"RefreshToken": "refresh-token",
				"AccessToken":  "access-token",
				"ExpiresIn":    3600,
				"TokenType":    "Bearer",
			},
		})
	})

	out, err := client.InitiateAuth(context.Background(), &InitiateAuthInput{
		AuthFlow:       AuthFlowUserPassword,
		AuthParameters: map[string]string{"USERNAME": "ada", "PASSWORD": "secret"},
		ClientID:       "client-id",
	})
	require.NoError(t, err)
	require.NotNil(t, out.AuthenticationResult)
	assert.Equal(t, "id-token", out.AuthenticationResult.IDToken)
	assert.Equal(t, "refresh-token", out.AuthenticationResult.RefreshToken)
	assert.Equal(t, int64(3600), out.AuthenticationResult.ExpiresIn)
}

func TestInitiateAuthRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"__type":"com.amazonaws.cognito#NotAuthorizedException","message":"Incorrect username or password."}`))
	})

	_, err := client.InitiateAuth(context.Background(), &InitiateAuthInput{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, TypeNotAuthorized, apiErr.Type)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Incorrect username or password.", apiErr.Message)
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, TargetInitiateAuth, apiErr.Metadata()["target"])
}

func TestAPIErrorWithoutType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})

	_, err := client.GetID(context.Background(), &GetIDInput{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Type)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.True(t, apiErr.Retryable())
}

func TestGetIDAndCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/identity", r.URL.Path)
		switch r.Header.Get(HeaderTarget) {
		case TargetGetID:
			var in GetIDInput
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "pool-id", in.IdentityPoolID)
			assert.Equal(t, "id-token", in.Logins["cognito-idp.us-west-2.amazonaws.com/us-west-2_abc"])
			_ = json.NewEncoder(w).Encode(map[string]any{"IdentityId": "us-west-2:identity"})
		case TargetGetCredentialsForIdentity:
			var in GetCredentialsForIdentityInput
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "us-west-2:identity", in.IdentityID)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"IdentityId": "us-west-2:identity",
				"Credentials": map[string]any{
					"AccessKeyId":  "ASIA1",
					"SecretKey":    "secret",
					"SessionToken": "session",
					"Expiration":   1.7e9,
				},
			})
		default:
			t.Errorf("unexpected target %q", r.Header.Get(HeaderTarget))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	logins := map[string]string{ProviderName("us-west-2", "us-west-2_abc"): "id-token"}

	id, err := client.GetID(context.Background(), &GetIDInput{IdentityPoolID: "pool-id", Logins: logins})
	require.NoError(t, err)
	assert.Equal(t, "us-west-2:identity", id.IdentityID)

	creds, err := client.GetCredentialsForIdentity(context.Background(), &GetCredentialsForIdentityInput{IdentityID: id.IdentityID, Logins: logins})
	require.NoError(t, err)
	assert.Equal(t, "ASIA1", creds.Credentials.AccessKeyID)
	assert.Equal(t, "secret", creds.Credentials.SecretKey)
	assert.Equal(t, "session", creds.Credentials.SessionToken)
	assert.Equal(t, 1.7e9, creds.Credentials.Expiration)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(*Client) error
	}{
		{
			name: "invalid json",
			body: `not json`,
			call: func(c *Client) error {
				_, err := c.GetID(context.Background(), &GetIDInput{})
				return err
			},
		},
		{
			name: "missing identity id",
			body: `{}`,
			call: func(c *Client) error {
				_, err := c.GetID(context.Background(), &GetIDInput{})
				return err
			},
		},
		{
			name: "missing credentials",
			body: `{"IdentityId":"x"}`,
			call: func(c *Client) error {
				_, err := c.GetCredentialsForIdentity(context.Background(), &GetCredentialsForIdentityInput{})
				return err
			},
		},
		{
			name: "missing authentication result",
			body: `{}`,
			call: func(c *Client) error {
				_, err := c.InitiateAuth(context.Background(), &InitiateAuthInput{})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			var decodeErr *DecodeError
			require.True(t, errors.As(tt.call(client), &decodeErr))
		})
	}
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := New(Config{Region: "us-west-2", IdentityBrokerURL: endpoint})
	_, err := client.GetID(context.Background(), &GetIDInput{})

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, TargetGetID, transportErr.Target)
}
