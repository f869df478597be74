package devserver

import (
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRegion         = "us-east-1"
	DefaultUserPoolID     = "us-east-1_devpool"
	DefaultClientID       = "dev-client"
	DefaultIdentityPoolID = "us-east-1:00000000-0000-0000-0000-000000000000"
	DefaultService        = "lambda"
	DefaultTokenTTL       = time.Hour
	DefaultCredentialsTTL = time.Hour
)

// Config describes the emulated pools. Users maps a username to its
// bcrypt hash.
type Config struct {
	Region         string            `yaml:"region"`
	UserPoolID     string            `yaml:"user_pool_id"`
	ClientID       string            `yaml:"user_pool_client_id"`
	IdentityPoolID string            `yaml:"identity_pool_id"`
	Service        string            `yaml:"service"`
	TokenTTL       time.Duration     `yaml:"token_ttl"`
	CredentialsTTL time.Duration     `yaml:"credentials_ttl"`
	Users          map[string]string `yaml:"users"`
}

// DefaultConfig returns a config with every field defaulted.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.UserPoolID == "" {
		c.UserPoolID = DefaultUserPoolID
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.IdentityPoolID == "" {
		c.IdentityPoolID = DefaultIdentityPoolID
	}
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.CredentialsTTL == 0 {
		c.CredentialsTTL = DefaultCredentialsTTL
	}
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Region, validation.Required),
		validation.Field(&c.UserPoolID, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.IdentityPoolID, validation.Required),
		validation.Field(&c.Service, validation.Required),
		validation.Field(&c.TokenTTL, validation.Min(time.Second)),
		validation.Field(&c.CredentialsTTL, validation.Min(time.Second)),
	)
}

// LoadConfig reads a YAML config file. An empty path yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "read dev server config").
			WithMetadata(map[string]any{"path": path})
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse dev server config").
			WithMetadata(map[string]any{"path": path})
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid dev server config").
			WithMetadata(map[string]any{"path": path})
	}
	return cfg, nil
}
