package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-plantauth/cognito"
	"github.com/goliatone/go-plantauth/sigv4"
)

// Client logs a user in and signs outgoing API requests with temporary
// credentials derived from the login.
type Client struct {
	tokens   *TokenStore
	resolver *IdentityResolver
	broker   *CredentialBroker
	session  *Session

	baseURL *url.URL
	profile sigv4.Profile

	httpClient        *http.Client
	clock             Clock
	tokenMargin       time.Duration
	credentialsMargin time.Duration

	activitySink   ActivitySink
	logger         Logger
	loggerProvider LoggerProvider
}

// NewClient wires the identity components described by cfg. A nil persister
// keeps the identity token in memory.
func NewClient(cfg *Config, persister TokenPersister) (*Client, error) {
	if cfg == nil {
		return nil, goerrors.New("config is required", goerrors.CategoryBadInput)
	}

	base, err := parseBaseURL(cfg.APIURL)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	remote := cognito.New(cognito.Config{
		Region:              cfg.Region,
		IdentityProviderURL: cfg.Endpoints.IdentityProvider,
		IdentityBrokerURL:   cfg.Endpoints.IdentityBroker,
		HTTPClient:          httpClient,
	})

	tokens := NewTokenStore(remote, cfg.UserPoolClientID, persister)
	c := &Client{
		tokens:            tokens,
		resolver:          NewIdentityResolver(remote, cfg.IdentityPoolID, cfg.ProviderName()),
		broker:            NewCredentialBroker(remote, cfg.ProviderName()),
		session:           NewSession(tokens),
		baseURL:           base,
		profile:           sigv4.ProfileFor(cfg.Service, cfg.Region),
		httpClient:        httpClient,
		clock:             normalizeClock(nil),
		tokenMargin:       cfg.TokenMargin,
		credentialsMargin: cfg.CredentialsMargin,
		activitySink:      normalizeActivitySink(nil),
		logger:            defLogger{},
	}
	return c, nil
}

// NewClientFromComponents assembles a client from prebuilt parts.
func NewClientFromComponents(tokens *TokenStore, resolver *IdentityResolver, broker *CredentialBroker, baseURL string, profile sigv4.Profile) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		tokens:            tokens,
		resolver:          resolver,
		broker:            broker,
		session:           NewSession(tokens),
		baseURL:           base,
		profile:           profile,
		httpClient:        &http.Client{Timeout: DefaultHTTPTimeout},
		clock:             normalizeClock(nil),
		tokenMargin:       DefaultTokenMargin,
		credentialsMargin: DefaultCredentialsMargin,
		activitySink:      normalizeActivitySink(nil),
		logger:            defLogger{},
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	base, err := url.Parse(raw)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid api url").
			WithMetadata(map[string]any{"api_url": raw})
	}
	if !base.IsAbs() {
		return nil, goerrors.New("api url must be absolute", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"api_url": raw})
	}
	return base, nil
}

// WithLogger sets the logger on the client and its components.
func (c *Client) WithLogger(logger Logger) *Client {
	c.logger = ResolveLogger("plantauth.client", c.loggerProvider, logger)
	c.tokens.WithLogger(logger)
	c.resolver.WithLogger(logger)
	c.broker.WithLogger(logger)
	return c
}

// WithLoggerProvider sets the logger provider on the client and its components.
func (c *Client) WithLoggerProvider(provider LoggerProvider) *Client {
	c.loggerProvider = provider
	c.logger = ResolveLogger("plantauth.client", provider, c.logger)
	c.tokens.WithLoggerProvider(provider)
	c.resolver.WithLoggerProvider(provider)
	c.broker.WithLoggerProvider(provider)
	return c
}

// WithHTTPClient replaces the client used for API requests.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// WithClock overrides the time source for expiry checks and signing.
func (c *Client) WithClock(clock Clock) *Client {
	c.clock = normalizeClock(clock)
	c.tokens.WithClock(clock)
	return c
}

// WithMargins overrides the expiry headroom for the identity token and the
// temporary credentials.
func (c *Client) WithMargins(token, credentials time.Duration) *Client {
	c.tokenMargin = token
	c.credentialsMargin = credentials
	return c
}

// WithActivitySink sets the sink receiving lifecycle events.
func (c *Client) WithActivitySink(sink ActivitySink) *Client {
	c.activitySink = normalizeActivitySink(sink)
	return c
}

// WithIDTokenVerifier makes Login verify the issued identity token.
func (c *Client) WithIDTokenVerifier(verifier IDTokenVerifier) *Client {
	c.tokens.WithVerifier(verifier)
	return c
}

// Tokens exposes the token store.
func (c *Client) Tokens() *TokenStore {
	return c.tokens
}

// Session exposes the derived identity cache.
func (c *Client) Session() *Session {
	return c.session
}

// Login authenticates with username and password. Identity and credentials
// are resolved lazily on the first signed request.
func (c *Client) Login(ctx context.Context, username, password string) (*IdentityToken, error) {
	token, err := c.tokens.Login(ctx, username, password)
	if err != nil {
		c.logger.Warn("login failed", "username", username, "error", err)
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Username:  username,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	c.logger.Info("login succeeded", "username", username, "expires_at", token.ExpiresAt)
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Username:  username,
		Metadata:  map[string]any{"expires_at": token.ExpiresAt},
	})
	return token, nil
}

// Logout forgets the identity token and every derived value.
func (c *Client) Logout(ctx context.Context) error {
	err := c.tokens.Logout(ctx)
	c.session.Reset()
	c.recordActivity(ctx, ActivityEvent{EventType: ActivityEventLogout})
	return err
}

// LoggedIn reports whether a non expired identity token is held.
func (c *Client) LoggedIn() bool {
	return c.tokens.IsValid(c.tokenMargin)
}

// State reports the session lifecycle state.
func (c *Client) State() SessionState {
	token, ok := c.tokens.Current()
	switch {
	case !ok:
		return SessionNone
	case token.ValidAt(c.clock.Now(), c.tokenMargin):
		return SessionReady
	}
	return SessionExpired
}

// Do signs req with the session's temporary credentials and sends it.
// Relative URLs resolve against the configured API URL. No network call is
// made when the identity token is missing or expired.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, ok := c.tokens.Current()
	if !ok {
		return nil, sessionExpired(ReasonNoSession)
	}
	if !token.ValidAt(c.clock.Now(), c.tokenMargin) {
		c.logger.Info("identity token expired", "expires_at", token.ExpiresAt)
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionExpired,
			Metadata:  map[string]any{"reason": ReasonTokenExpired},
		})
		return nil, sessionExpired(ReasonTokenExpired)
	}

	creds, identityID, err := c.credentials(ctx, token.Token)
	if err != nil {
		return nil, err
	}

	if !creds.ValidAt(c.clock.Now(), c.credentialsMargin) {
		c.logger.Info("temporary credentials expired", "identity_id", identityID, "expires_at", creds.ExpiresAt)
		c.recordActivity(ctx, ActivityEvent{
			EventType:  ActivityEventSessionExpired,
			IdentityID: identityID,
			Metadata:   map[string]any{"reason": ReasonCredentialsExpired},
		})
		return nil, sessionExpired(ReasonCredentialsExpired)
	}

	signed, err := c.sign(req, creds)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(signed)
	if err != nil {
		return nil, withError(ErrNetwork, err, map[string]any{
			"operation": "request",
			"url":       signed.URL.String(),
			"error":     err.Error(),
		})
	}
	return resp, nil
}

func (c *Client) credentials(ctx context.Context, token string) (TemporaryCredentials, string, error) {
	_, known := c.session.Identity(token)
	identityID, err := c.resolver.Resolve(ctx, c.session, token)
	if err != nil {
		return TemporaryCredentials{}, "", err
	}
	if !known {
		c.recordActivity(ctx, ActivityEvent{EventType: ActivityEventIdentityResolved, IdentityID: identityID})
	}

	if creds, ok := c.session.Credentials(identityID, token); ok {
		return creds, identityID, nil
	}

	creds, err := c.broker.Exchange(ctx, identityID, token)
	if err != nil {
		return TemporaryCredentials{}, "", err
	}
	// a stale result still signs the in-flight request
	c.session.StoreCredentials(identityID, token, creds)
	c.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventCredentialsIssued,
		IdentityID: identityID,
		Metadata:   map[string]any{"expires_at": creds.ExpiresAt},
	})
	return creds, identityID, nil
}

func (c *Client) sign(req *http.Request, creds TemporaryCredentials) (*http.Request, error) {
	target := req.URL
	if !target.IsAbs() {
		target = c.baseURL.ResolveReference(req.URL)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, withError(ErrNetwork, err, map[string]any{"operation": "read_body", "error": err.Error()})
		}
	}

	host := req.Host
	if host == "" {
		host = target.Host
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	header := sigv4.Sign(sigv4.SigningContext{
		Method: method,
		Path:   target.EscapedPath(),
		Query:  target.RawQuery,
		Host:   host,
		Header: req.Header,
		Body:   body,
		Credentials: sigv4.Credentials{
			AccessKeyID:  creds.AccessKeyID,
			SecretKey:    creds.SecretKey,
			SessionToken: creds.SessionToken,
		},
		Time:    c.clock.Now(),
		Profile: c.profile,
	})
	// net/http sends Host from Request.Host
	header.Del(sigv4.HeaderHost)

	out := req.Clone(req.Context())
	out.Method = method
	out.URL = target
	out.Host = host
	out.Header = header
	out.RequestURI = ""
	out.ContentLength = int64(len(body))
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	if len(body) == 0 {
		out.Body = http.NoBody
	}
	return out, nil
}

func (c *Client) recordActivity(ctx context.Context, event ActivityEvent) {
	event.SessionID = c.session.ID()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.clock.Now()
	}
	if err := c.activitySink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error", "event", event.EventType, "error", err)
	}
}
