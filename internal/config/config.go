// Package config loads configuration for the reference server and the
// console: defaults, then an optional YAML file, then a .env file, then
// environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Console ConsoleConfig `yaml:"console"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the reference Remote Store backend.
type ServerConfig struct {
	Addr        string        `yaml:"addr" validate:"required"`
	DatabaseURL string        `yaml:"database_url"` // sqlite DSN; empty keeps data in memory
	JWTSecret   string        `yaml:"jwt_secret" validate:"required,min=16"`
	JWTIssuer   string        `yaml:"jwt_issuer" validate:"required"`
	TokenTTL    time.Duration `yaml:"token_ttl" validate:"gt=0"`
	RequireAuth bool          `yaml:"require_auth"`
	Seed        bool          `yaml:"seed"`

	// OpenRegistration keeps POST /user/create public when RequireAuth is set.
	OpenRegistration bool          `yaml:"open_registration"`
	ResetTokenTTL    time.Duration `yaml:"reset_token_ttl" validate:"gt=0"`
	ResetLinkBase    string        `yaml:"reset_link_base" validate:"required,url"`
}

// ConsoleConfig configures the console process.
type ConsoleConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	APIBase         string        `yaml:"api_base" validate:"required,url"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	CredentialsFile string        `yaml:"credentials_file" validate:"required"`
	SessionIdle     time.Duration `yaml:"session_idle" validate:"gte=0"`
	SessionMaxAge   time.Duration `yaml:"session_max_age" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":5000",
			JWTSecret: "development-secret-change-me",
			JWTIssuer: "collegeadmin",
			TokenTTL:  24 * time.Hour,
			Seed:      true,

			OpenRegistration: true,
			ResetTokenTTL:    time.Hour,
			ResetLinkBase:    "http://localhost:3000/verify-reset-token/",
		},
		Console: ConsoleConfig{
			Addr:            ":8080",
			APIBase:         "http://localhost:5000/api",
			RequestTimeout:  15 * time.Second,
			CredentialsFile: ".collegeadmin/credentials.json",
			SessionIdle:     30 * time.Minute,
			SessionMaxAge:   12 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path names an optional YAML file; a
// missing file is not an error. A .env file in the working directory is
// loaded if present; variables already set in the environment win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = getenv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.DatabaseURL = getenv("DATABASE_URL", cfg.Server.DatabaseURL)
	cfg.Server.JWTSecret = getenv("JWT_SECRET", cfg.Server.JWTSecret)
	cfg.Server.JWTIssuer = getenv("JWT_ISSUER", cfg.Server.JWTIssuer)
	cfg.Server.TokenTTL = getenvDuration("TOKEN_TTL", cfg.Server.TokenTTL)

	var err error
	if cfg.Server.RequireAuth, err = getenvBool("REQUIRE_AUTH", cfg.Server.RequireAuth); err != nil {
		return err
	}
	if cfg.Server.Seed, err = getenvBool("SEED", cfg.Server.Seed); err != nil {
		return err
	}
	if cfg.Server.OpenRegistration, err = getenvBool("OPEN_REGISTRATION", cfg.Server.OpenRegistration); err != nil {
		return err
	}
	cfg.Server.ResetTokenTTL = getenvDuration("RESET_TOKEN_TTL", cfg.Server.ResetTokenTTL)
	cfg.Server.ResetLinkBase = getenv("RESET_LINK_BASE", cfg.Server.ResetLinkBase)

	cfg.Console.Addr = getenv("CONSOLE_ADDR", cfg.Console.Addr)
	cfg.Console.APIBase = getenv("API_BASE", cfg.Console.APIBase)
	cfg.Console.RequestTimeout = getenvDuration("REQUEST_TIMEOUT", cfg.Console.RequestTimeout)
	cfg.Console.CredentialsFile = getenv("CREDENTIALS_FILE", cfg.Console.CredentialsFile)
	cfg.Console.SessionIdle = getenvDuration("SESSION_IDLE", cfg.Console.SessionIdle)
	cfg.Console.SessionMaxAge = getenvDuration("SESSION_MAX_AGE", cfg.Console.SessionMaxAge)

	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	if cfg.Log.Pretty, err = getenvBool("LOG_PRETTY", cfg.Log.Pretty); err != nil {
		return err
	}
	return nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
