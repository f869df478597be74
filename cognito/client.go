package cognito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContentType is the media type of every request and response.
const ContentType = "application/x-amz-json-1.1"

// HeaderTarget selects the operation on the shared endpoint.
const HeaderTarget = "X-Amz-Target"

const (
	TargetInitiateAuth              = "AWSCognitoIdentityProviderService.InitiateAuth"
	TargetGetID                     = "AWSCognitoIdentityService.GetId"
	TargetGetCredentialsForIdentity = "AWSCognitoIdentityService.GetCredentialsForIdentity"
)

// Config holds endpoint configuration.
type Config struct {
	Region string

	// IdentityProviderURL overrides https://cognito-idp.<region>.amazonaws.com/.
	IdentityProviderURL string
	// IdentityBrokerURL overrides https://cognito-identity.<region>.amazonaws.com/.
	IdentityBrokerURL string

	HTTPClient *http.Client
}

// Client calls the identity provider and identity broker endpoints.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a Client. Endpoints default to the regional public ones.
func New(cfg Config) *Client {
	if cfg.IdentityProviderURL == "" {
		cfg.IdentityProviderURL = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/", cfg.Region)
	}
	if cfg.IdentityBrokerURL == "" {
		cfg.IdentityBrokerURL = fmt.Sprintf("https://cognito-identity.%s.amazonaws.com/", cfg.Region)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		config:     cfg,
		httpClient: client,
	}
}

// ProviderName returns the logins map key for a user pool.
func ProviderName(region, userPoolID string) string {
	return fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

func (c *Client) call(ctx context.Context, endpoint, target string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("cognito: encode %s: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cognito: build %s request: %w", target, err)
	}
	req.Header.Set(HeaderTarget, target)
	req.Header.Set("Content-Type", ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Target: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Target: target, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return apiError(target, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Target: target, Status: resp.StatusCode, Err: err}
	}

	return nil
}

type errorResponse struct {
	Type         string `json:"__type"`
	Message      string `json:"message"`
	MessageUpper string `json:"Message"`
}

func apiError(target string, status int, body []byte) error {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Type == "" {
		return &APIError{
			Target:  target,
			Status:  status,
			Message: strings.TrimSpace(string(body)),
		}
	}

	errType := parsed.Type
	if idx := strings.LastIndex(errType, "#"); idx >= 0 {
		errType = errType[idx+1:]
	}

	message := parsed.Message
	if message == "" {
		message = parsed.MessageUpper
	}

	return &APIError{
		Target:  target,
		Status:  status,
		Type:    errType,
		Message: message,
	}
}
