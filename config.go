package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-plantauth/cognito"
)

// ConfigEnvVar names the environment variable holding the config file path.
const ConfigEnvVar = "PLANTAUTH_CONFIG"

const (
	DefaultService           = "lambda"
	DefaultTokenMargin       = 60 * time.Second
	DefaultCredentialsMargin = 60 * time.Second
	DefaultHTTPTimeout       = 30 * time.Second
)

// Storage kinds.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSealed = "sealed"
	StorageSQLite = "sqlite"
)

// Config is the client configuration, usually read from YAML.
type Config struct {
	Region            string        `yaml:"region"`
	UserPoolID        string        `yaml:"user_pool_id"`
	UserPoolClientID  string        `yaml:"user_pool_client_id"`
	IdentityPoolID    string        `yaml:"identity_pool_id"`
	APIURL            string        `yaml:"api_url"`
	Service           string        `yaml:"service"`

	// Margins and the timeout treat zero as unset and fall back to the
	// defaults, so a margin cannot be switched off.
	TokenMargin       time.Duration `yaml:"token_margin"`
	CredentialsMargin time.Duration `yaml:"credentials_margin"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`

	Endpoints EndpointsConfig `yaml:"endpoints"`

	VerifyIDToken bool   `yaml:"verify_id_token"`
	JWKSURL       string `yaml:"jwks_url"`

	Storage StorageConfig `yaml:"storage"`
}

// EndpointsConfig overrides the regional identity endpoints.
type EndpointsConfig struct {
	IdentityProvider string `yaml:"identity_provider"`
	IdentityBroker   string `yaml:"identity_broker"`
}

// StorageConfig selects where the identity token is persisted.
type StorageConfig struct {
	Kind         string `yaml:"kind"`
	Path         string `yaml:"path"`
	IdentityFile string `yaml:"identity_file"`
}

// Validate implements validation.Validatable.
func (s StorageConfig) Validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&s.Kind, validation.In(StorageMemory, StorageFile, StorageSealed, StorageSQLite)),
	}
	if s.Kind != "" && s.Kind != StorageMemory {
		fields = append(fields, validation.Field(&s.Path, validation.Required))
	}
	if s.Kind == StorageSealed {
		fields = append(fields, validation.Field(&s.IdentityFile, validation.Required))
	}
	return validation.ValidateStruct(&s, fields...)
}

// LoadConfig reads and validates a YAML config file. An empty path falls
// back to $PLANTAUTH_CONFIG.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	if path == "" {
		return nil, goerrors.New("no config file given and "+ConfigEnvVar+" is not set", goerrors.CategoryBadInput).
			WithTextCode("config_missing")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes YAML, applies defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode config")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset optional fields. Zero durations count as unset.
func (c *Config) ApplyDefaults() {
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.TokenMargin == 0 {
		c.TokenMargin = DefaultTokenMargin
	}
	if c.CredentialsMargin == 0 {
		c.CredentialsMargin = DefaultCredentialsMargin
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = StorageMemory
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
}

// Validate checks required fields.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.UserPoolID, validation.Required),
		validation.Field(&c.UserPoolClientID, validation.Required),
		validation.Field(&c.IdentityPoolID, validation.Required),
		validation.Field(&c.APIURL, validation.Required, is.URL),
		validation.Field(&c.Service, validation.Required),
		validation.Field(&c.TokenMargin, validation.Min(time.Duration(0))),
		validation.Field(&c.CredentialsMargin, validation.Min(time.Duration(0))),
		validation.Field(&c.HTTPTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.JWKSURL, is.URL),
		validation.Field(&c.Storage),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid config").
			WithTextCode("config_invalid")
	}
	return nil
}

// ProviderName is the logins key of the configured user pool.
func (c *Config) ProviderName() string {
	return cognito.ProviderName(c.Region, c.UserPoolID)
}

// Issuer is the expected iss claim of identity tokens.
func (c *Config) Issuer() string {
	return Issuer(c.Region, c.UserPoolID)
}

// KeySetURL returns the configured key set location or the user pool one.
func (c *Config) KeySetURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return JWKSURL(c.Region, c.UserPoolID)
}

// NewIDTokenVerifier returns a key set verifier for the configured pool, or
// nil when verify_id_token is off. Close it when done.
func (c *Config) NewIDTokenVerifier(logger Logger) (*JWKSVerifier, error) {
	if !c.VerifyIDToken {
		return nil, nil
	}
	return NewRemoteJWKSVerifier(c.KeySetURL(), c.Issuer(), c.UserPoolClientID, logger)
}

func (c *Config) String() string {
	return fmt.Sprintf("region=%s user_pool=%s identity_pool=%s api=%s service=%s",
		c.Region, c.UserPoolID, c.IdentityPoolID, c.APIURL, c.Service)
}
