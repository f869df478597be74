package devserver

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/cognito"
	"github.com/goliatone/go-plantauth/middleware/sigv4ware"
	"github.com/goliatone/go-plantauth/sigv4"
	"github.com/google/uuid"
)

// Server emulates the identity provider, the identity broker and a signed
// plant catalogue API on a single fiber app.
type Server struct {
	config Config
	users  *Users
	store  *PlantStore
	clock  auth.Clock
	logger auth.Logger
	app    *fiber.App

	issuer    string
	keyID     string
	key       *rsa.PrivateKey
	tokens    *auth.JWKSVerifier
	requests  *sigv4.Verifier
	uploadKey []byte

	mu     sync.Mutex
	issued map[string]issuedCredentials
}

type issuedCredentials struct {
	credentials sigv4.Credentials
	identityID  string
	username    string
	expiresAt   time.Time
}

// New creates a Server for cfg and users. A nil users pool starts empty.
func New(cfg Config, users *Users) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid dev server config")
	}

	if users == nil {
		var err error
		if users, err = NewUsers(cfg.Users); err != nil {
			return nil, err
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "generate signing key")
	}

	uploadKey := make([]byte, 32)
	if _, err := rand.Read(uploadKey); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "generate upload key")
	}

	s := &Server{
		config:    cfg,
		users:     users,
		store:     NewPlantStore(),
		clock:     auth.ClockFunc(time.Now),
		logger:    auth.ResolveLogger("plantauth.devserver", nil, nil),
		issuer:    auth.Issuer(cfg.Region, cfg.UserPoolID),
		keyID:     uuid.NewString(),
		key:       key,
		uploadKey: uploadKey,
		issued:    map[string]issuedCredentials{},
	}

	s.tokens = auth.NewStaticKeyVerifier(s.keyID, &key.PublicKey, "RS256", s.issuer, cfg.ClientID).
		WithClock(auth.ClockFunc(s.now))
	s.requests = &sigv4.Verifier{
		Profile: sigv4.ProfileFor(cfg.Service, cfg.Region),
		Secrets: sigv4.SecretProviderFunc(s.secretFor),
		Now:     s.now,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "plantauth-devserver",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Post("/", s.handleIdentity)
	s.app.Get("/:pool/.well-known/jwks.json", s.handleJWKS)
	s.app.Post(auth.RPCPathPrefix+":operation", sigv4ware.New(sigv4ware.Config{
		Verifier:            s.requests,
		ErrorHandler:        s.rejectUnsigned,
		ValidationListeners: []sigv4ware.ValidationListener{s.checkIssued},
	}), s.handleAPI)
	s.app.Put("/uploads/:key", s.handleUpload)
}

// WithLogger sets the logger.
func (s *Server) WithLogger(logger auth.Logger) *Server {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source for tokens, credentials and
// signature checks.
func (s *Server) WithClock(clock auth.Clock) *Server {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Server) now() time.Time {
	return s.clock.Now()
}

// App exposes the fiber app, mostly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.config
}

// Users returns the user pool.
func (s *Server) Users() *Users {
	return s.users
}

// Store returns the plant catalogue.
func (s *Server) Store() *PlantStore {
	return s.store
}

// Issuer returns the iss claim of minted tokens.
func (s *Server) Issuer() string {
	return s.issuer
}

// ProviderName returns the login provider key expected in Logins.
func (s *Server) ProviderName() string {
	return cognito.ProviderName(s.config.Region, s.config.UserPoolID)
}

// KeySetPath returns the path serving the token signing key set.
func (s *Server) KeySetPath() string {
	return "/" + s.config.UserPoolID + "/.well-known/jwks.json"
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("dev server listening", "addr", addr, "region", s.config.Region, "user_pool_id", s.config.UserPoolID)
	return s.app.Listen(addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("dev server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) secretFor(_ context.Context, accessKeyID string) (sigv4.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issued, ok := s.issued[accessKeyID]
	if !ok {
		return sigv4.Credentials{}, goerrors.New("unknown access key", goerrors.CategoryAuth).
			WithCode(http.StatusForbidden)
	}
	return issued.credentials, nil
}

func (s *Server) issuedFor(accessKeyID string) (issuedCredentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.issued[accessKeyID]
	return issued, ok
}
