package sigv4

import (
	"bytes"
	"context"
	"crypto/hmac"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeMissingAuthorization   = "sigv4_missing_authorization"
	TextCodeMalformedAuthorization = "sigv4_malformed_authorization"
	TextCodeScopeMismatch          = "sigv4_scope_mismatch"
	TextCodeRequestExpired         = "sigv4_request_expired"
	TextCodeUnknownAccessKey       = "sigv4_unknown_access_key"
	TextCodeSignatureMismatch      = "sigv4_signature_mismatch"
	TextCodePayloadMismatch        = "sigv4_payload_mismatch"
)

// ErrMissingAuthorization is returned when the request carries no Authorization header.
var ErrMissingAuthorization = errors.New("missing authorization header", errors.CategoryAuth).
	WithTextCode(TextCodeMissingAuthorization).
	WithCode(errors.CodeUnauthorized)

// ErrMalformedAuthorization is returned when the Authorization header cannot be parsed.
var ErrMalformedAuthorization = errors.New("malformed authorization header", errors.CategoryBadInput).
	WithTextCode(TextCodeMalformedAuthorization).
	WithCode(errors.CodeBadRequest)

// ErrScopeMismatch is returned when the credential scope names another region or service.
var ErrScopeMismatch = errors.New("credential scope does not match", errors.CategoryAuth).
	WithTextCode(TextCodeScopeMismatch).
	WithCode(errors.CodeForbidden)

// ErrRequestExpired is returned when X-Amz-Date is outside the allowed skew.
var ErrRequestExpired = errors.New("request time outside allowed skew", errors.CategoryAuth).
	WithTextCode(TextCodeRequestExpired).
	WithCode(errors.CodeForbidden)

// ErrUnknownAccessKey is returned when the secret provider does not know the key.
var ErrUnknownAccessKey = errors.New("unknown access key", errors.CategoryAuth).
	WithTextCode(TextCodeUnknownAccessKey).
	WithCode(errors.CodeForbidden)

// ErrSignatureMismatch is returned when the recomputed signature differs.
var ErrSignatureMismatch = errors.New("signature does not match", errors.CategoryAuth).
	WithTextCode(TextCodeSignatureMismatch).
	WithCode(errors.CodeForbidden)

// ErrPayloadMismatch is returned when the body does not hash to X-Amz-Content-Sha256.
var ErrPayloadMismatch = errors.New("payload hash does not match body", errors.CategoryAuth).
	WithTextCode(TextCodePayloadMismatch).
	WithCode(errors.CodeBadRequest)

// Authorization is the parsed form of an Authorization header.
type Authorization struct {
	AccessKeyID   string
	Date          string
	Region        string
	Service       string
	SignedHeaders []string
	Signature     string
}

// Scope returns the credential scope carried by the header.
func (a Authorization) Scope() string {
	return Scope(a.Date, a.Region, a.Service)
}

// ParseAuthorization parses
// "AWS4-HMAC-SHA256 Credential=AKID/date/region/service/aws4_request, SignedHeaders=a;b, Signature=hex".
func ParseAuthorization(value string) (*Authorization, error) {
	algorithm, rest, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || algorithm != Algorithm {
		return nil, malformed("unsupported algorithm")
	}

	fields := map[string]string{}
	for _, part := range strings.Split(rest, ",") {
		name, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, malformed("invalid field " + part)
		}
		fields[name] = val
	}

	credential := strings.Split(fields["Credential"], "/")
	if len(credential) != 5 || credential[4] != scopeTerminator {
		return nil, malformed("invalid credential")
	}
	if fields["SignedHeaders"] == "" || fields["Signature"] == "" {
		return nil, malformed("missing signed headers or signature")
	}

	return &Authorization{
		AccessKeyID:   credential[0],
		Date:          credential[1],
		Region:        credential[2],
		Service:       credential[3],
		SignedHeaders: strings.Split(fields["SignedHeaders"], ";"),
		Signature:     fields["Signature"],
	}, nil
}

func malformed(reason string) error {
	return ErrMalformedAuthorization.Clone().WithMetadata(map[string]any{"reason": reason})
}

// SecretProvider resolves the credentials behind an access key id.
type SecretProvider interface {
	Credentials(ctx context.Context, accessKeyID string) (Credentials, error)
}

// SecretProviderFunc adapts a function to SecretProvider.
type SecretProviderFunc func(ctx context.Context, accessKeyID string) (Credentials, error)

// Credentials implements SecretProvider.
func (f SecretProviderFunc) Credentials(ctx context.Context, accessKeyID string) (Credentials, error) {
	return f(ctx, accessKeyID)
}

// Request is the receiving side view of a signed request. Header must
// contain Host.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// RequestFromHTTP reads r's body and returns its receiving side view. The
// body is replaced so r can still be consumed afterwards.
func RequestFromHTTP(r *http.Request) (Request, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			return Request{}, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if header.Get(HeaderHost) == "" {
		header.Set(HeaderHost, r.Host)
	}

	return Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Header: header,
		Body:   body,
	}, nil
}

// Result describes a verified signature.
type Result struct {
	AccessKeyID   string
	SessionToken  string
	SignedAt      time.Time
	SignedHeaders []string
}

// Verifier checks signed requests for a single profile.
type Verifier struct {
	Profile Profile
	Secrets SecretProvider
	// AllowedClockSkew bounds the distance between X-Amz-Date and Now.
	// Defaults to 5 minutes.
	AllowedClockSkew time.Duration
	// Now overrides the time source.
	Now func() time.Time
}

// Verify recomputes the signature of req and compares it in constant time.
func (v *Verifier) Verify(ctx context.Context, req Request) (*Result, error) {
	raw := req.Header.Get(HeaderAuthorization)
	if raw == "" {
		return nil, ErrMissingAuthorization
	}

	authz, err := ParseAuthorization(raw)
	if err != nil {
		return nil, err
	}

	if authz.Region != v.Profile.Region || authz.Service != v.Profile.Service {
		return nil, ErrScopeMismatch.Clone().WithMetadata(map[string]any{
			"region":  authz.Region,
			"service": authz.Service,
		})
	}

	signedAt, err := time.Parse(TimeFormat, req.Header.Get(HeaderDate))
	if err != nil || signedAt.Format(ShortTimeFormat) != authz.Date {
		return nil, malformed("invalid " + HeaderDate)
	}

	skew := v.AllowedClockSkew
	if skew == 0 {
		skew = 5 * time.Minute
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if d := now().Sub(signedAt); d > skew || d < -skew {
		return nil, ErrRequestExpired.Clone().WithMetadata(map[string]any{"signed_at": signedAt})
	}

	signed := http.Header{}
	for _, name := range authz.SignedHeaders {
		values := req.Header.Values(name)
		if len(values) == 0 {
			return nil, malformed("signed header " + name + " missing")
		}
		for _, value := range values {
			signed.Add(name, value)
		}
	}
	if signed.Get(HeaderHost) == "" || signed.Get(HeaderDate) == "" {
		return nil, malformed("host and x-amz-date must be signed")
	}

	payloadHash := PayloadHash(req.Body)
	if declared := req.Header.Get(HeaderContentSHA256); declared != "" && declared != payloadHash {
		return nil, ErrPayloadMismatch
	}

	creds, err := v.Secrets.Credentials(ctx, authz.AccessKeyID)
	if err != nil || creds.SecretKey == "" {
		return nil, ErrUnknownAccessKey.Clone().WithMetadata(map[string]any{"access_key_id": authz.AccessKeyID})
	}

	sessionToken := req.Header.Get(HeaderSecurityToken)
	if creds.SessionToken != "" && !hmac.Equal([]byte(creds.SessionToken), []byte(sessionToken)) {
		return nil, ErrSignatureMismatch.Clone().WithMetadata(map[string]any{"reason": "session token"})
	}

	canonical := Canonicalize(req.Method, req.Path, req.Query, signed, payloadHash, v.Profile.PathEncoding)
	key := DeriveKey(creds.SecretKey, authz.Date, authz.Region, authz.Service)
	expected := Signature(key, StringToSign(signedAt.Format(TimeFormat), authz.Scope(), canonical))

	if !hmac.Equal([]byte(expected), []byte(authz.Signature)) {
		return nil, ErrSignatureMismatch
	}

	return &Result{
		AccessKeyID:   authz.AccessKeyID,
		SessionToken:  sessionToken,
		SignedAt:      signedAt,
		SignedHeaders: authz.SignedHeaders,
	}, nil
}
