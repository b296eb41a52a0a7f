// Package config loads the process-wide, read-only configuration: an
// optional YAML file overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	DevelopmentBaseURL = "https://be.pawaret.uk"
	ProductionBaseURL  = "https://world.pawaret.dev"
	CallbackPath       = "/callback/world-id"
)

const DefaultConfigPath = "config/worldgate.yaml"

type Endpoints struct {
	AuthorizeURL string `yaml:"authorize_url" env:"WORLD_ID_AUTHORIZE_URL" validate:"required,url"`
	TokenURL     string `yaml:"token_url" env:"WORLD_ID_TOKEN_URL" validate:"required,url"`
	UserInfoURL  string `yaml:"userinfo_url" env:"WORLD_ID_USERINFO_URL" validate:"required,url"`
	VerifyURL    string `yaml:"verify_url" env:"WORLD_ID_VERIFY_URL" validate:"required,url"`
}

type Config struct {
	ClientID        string        `yaml:"client_id" env:"WORLD_ID_CLIENT_ID" validate:"required"`
	ClientSecret    SecretString  `yaml:"client_secret" env:"WORLD_ID_CLIENT_SECRET"`
	Environment     string        `yaml:"environment" env:"WORLDGATE_ENV" validate:"oneof=development production"`
	Addr            string        `yaml:"addr" env:"WORLDGATE_ADDR" validate:"required"`
	BaseURL         string        `yaml:"base_url" env:"WORLDGATE_BASE_URL" validate:"omitempty,url"`
	ProviderTimeout time.Duration `yaml:"provider_timeout" env:"WORLDGATE_PROVIDER_TIMEOUT" validate:"gt=0"`
	HandoffTTL      time.Duration `yaml:"handoff_ttl" env:"WORLDGATE_HANDOFF_TTL" validate:"gt=0"`
	RedisURL        string        `yaml:"redis_url" env:"WORLDGATE_REDIS_URL" validate:"omitempty,url"`
	EnforceState    bool          `yaml:"enforce_state" env:"WORLDGATE_ENFORCE_STATE"`
	LogLevel        string        `yaml:"log_level" env:"WORLDGATE_LOG_LEVEL" validate:"oneof=debug info warn error"`
	PrettyLogs      bool          `yaml:"pretty_logs" env:"PRETTY_LOGS"`
	Endpoints       Endpoints     `yaml:"endpoints"`
}

// Default returns the configuration used for every key that neither the
// file nor the environment sets.
func Default() Config {
	return Config{
		Environment:     EnvDevelopment,
		Addr:            ":8080",
		ProviderTimeout: 10 * time.Second,
		HandoffTTL:      5 * time.Minute,
		EnforceState:    true,
		LogLevel:        "info",
		PrettyLogs:      true,
		Endpoints: Endpoints{
			AuthorizeURL: "https://id.worldcoin.org/authorize",
			TokenURL:     "https://id.worldcoin.org/token",
			UserInfoURL:  "https://id.worldcoin.org/userinfo",
			VerifyURL:    "https://developer.worldcoin.org/api/v2/verify",
		},
	}
}

// Path returns the config file location from WORLDGATE_CONFIG.
func Path() string {
	if p := os.Getenv("WORLDGATE_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads the file at path, if there is one, and applies the environment
// on top. A nil environ means the process environment.
func Load(path string, environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("No config file, using environment only", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("unmarshal config file '%s': %w", path, err)
			}
		}
	}

	// NODE_ENV is shared with the web frontend: anything but "development"
	// means production. WORLDGATE_ENV, parsed below, takes precedence.
	if nodeEnv := environ["NODE_ENV"]; nodeEnv != "" {
		if nodeEnv == EnvDevelopment {
			cfg.Environment = EnvDevelopment
		} else {
			cfg.Environment = EnvProduction
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = environ["NEXT_PUBLIC_WORLD_ID_CLIENT_ID"]
	}
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.ClientSecret.IsEmpty() {
		return errors.New("validate config: client secret is required (WORLD_ID_CLIENT_SECRET)")
	}
	return nil
}

// PublicBaseURL is the externally visible origin of this service.
func (c *Config) PublicBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	if c.Environment == EnvProduction {
		return ProductionBaseURL
	}
	return DevelopmentBaseURL
}

// RedirectURI is the callback registered with the provider.
func (c *Config) RedirectURI() string {
	u, err := url.JoinPath(c.PublicBaseURL(), CallbackPath)
	if err != nil {
		return c.PublicBaseURL() + CallbackPath
	}
	return u
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
