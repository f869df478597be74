package sigv4ware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-plantauth/middleware/sigv4ware"
	"github.com/goliatone/go-plantauth/sigv4"
)

var (
	signedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	profile  = sigv4.ProfileFor("lambda", "us-east-1")
	creds    = sigv4.Credentials{
		AccessKeyID:  "ASIATESTKEY",
		SecretKey:    "test-secret",
		SessionToken: "test-session",
	}
)

func newVerifier() *sigv4.Verifier {
	return &sigv4.Verifier{
		Profile: profile,
		Secrets: sigv4.SecretProviderFunc(func(_ context.Context, accessKeyID string) (sigv4.Credentials, error) {
			if accessKeyID != creds.AccessKeyID {
				return sigv4.Credentials{}, errors.New("not found")
			}
			return creds, nil
		}),
		Now: func() time.Time { return signedAt },
	}
}

func newApp(cfg sigv4ware.Config) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/api/:operation", sigv4ware.New(cfg), func(c *fiber.Ctx) error {
		local, ok := sigv4ware.FromLocals(c, "")
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		fromCtx, ok := sigv4ware.FromContext(c.UserContext())
		if !ok || fromCtx != local {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"access_key_id": local.AccessKeyID})
	})
	return app
}

func signedRequest(t *testing.T, body []byte, signer sigv4.Credentials) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/getPlant", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header = sigv4.Sign(sigv4.SigningContext{
		Method:      req.Method,
		Path:        req.URL.EscapedPath(),
		Host:        req.Host,
		Header:      req.Header,
		Body:        body,
		Credentials: signer,
		Time:        signedAt,
		Profile:     profile,
	})
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestSignedRequestPasses(t *testing.T) {
	app := newApp(sigv4ware.Config{Verifier: newVerifier()})

	resp, err := app.Test(signedRequest(t, []byte(`{"plantId":"fern"}`), creds), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, creds.AccessKeyID, decodeBody(t, resp)["access_key_id"])
}

func TestRejectedRequests(t *testing.T) {
	app := newApp(sigv4ware.Config{Verifier: newVerifier()})

	unsigned := httptest.NewRequest(http.MethodPost, "http://example.com/api/getPlant", nil)

	wrongSecret := creds
	wrongSecret.SecretKey = "other-secret"

	tampered := signedRequest(t, []byte(`{"plantId":"fern"}`), creds)
	tampered.Body = io.NopCloser(bytes.NewReader([]byte(`{"plantId":"moss"}`)))

	tests := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{name: "unsigned", req: unsigned, message: sigv4.ErrMissingAuthorization.Message},
		{name: "wrong secret", req: signedRequest(t, nil, wrongSecret), message: sigv4.ErrSignatureMismatch.Message},
		{name: "tampered body", req: tampered, message: sigv4.ErrPayloadMismatch.Message},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(tt.req, -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, tt.message, decodeBody(t, resp)["Message"])
		})
	}
}

func TestValidationListenerRejects(t *testing.T) {
	var seen *sigv4.Result
	app := newApp(sigv4ware.Config{
		Verifier: newVerifier(),
		ValidationListeners: []sigv4ware.ValidationListener{
			nil,
			func(_ *fiber.Ctx, result *sigv4.Result) error {
				seen = result
				return fiber.NewError(fiber.StatusForbidden, "The security token included in the request is expired")
			},
		},
	})

	resp, err := app.Test(signedRequest(t, nil, creds), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "The security token included in the request is expired", decodeBody(t, resp)["Message"])
	require.NotNil(t, seen)
	assert.Equal(t, creds.SessionToken, seen.SessionToken)
}

func TestFilterSkipsVerification(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", sigv4ware.New(sigv4ware.Config{
		Verifier: newVerifier(),
		Filter:   func(c *fiber.Ctx) bool { return c.Path() == "/health" },
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingVerifierPanics(t *testing.T) {
	assert.Panics(t, func() { sigv4ware.New() })
}
