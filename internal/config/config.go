// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (PAPERCITE_*, plus DATABASE_URL and
//     GEMINI_API_KEY honored directly)
//  2. Config file (~/.papercite/config.yaml)
//  3. Default values
//
// Security: the PostgreSQL password is masked in MarshalJSON and never
// logged. Validation uses sentinel errors for errors.Is checks.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercite/papercite/internal/rag"
)

var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProfile indicates an unknown retrieval profile.
	ErrInvalidProfile = errors.New("invalid retrieval profile")

	// ErrInvalidThreshold indicates the match threshold is outside [-1, 1].
	ErrInvalidThreshold = errors.New("invalid match threshold")

	// ErrInvalidMatchCount indicates a non-positive match count.
	ErrInvalidMatchCount = errors.New("invalid match count")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
)

// DefaultAddr is the default HTTP listen address.
const DefaultAddr = "127.0.0.1:3400"

// Retrieval profile names and the similarity thresholds they imply.
// The two profiles correspond to the two deployed prompt variants:
// strict citations with a high bar for relevance, or lenient citations
// with a wide net.
const (
	ProfileStrict  = string(rag.ProfileStrict)
	ProfileLenient = string(rag.ProfileLenient)

	StrictThreshold  = 0.5
	LenientThreshold = 0.1
)

// UnsetThreshold is the default match_threshold value, deliberately
// outside the valid [-1, 1] range so that an explicit 0.0 remains
// distinguishable from "not configured".
const UnsetThreshold = -2.0

// Config stores application configuration.
type Config struct {
	// HTTP server
	Addr string `mapstructure:"addr" json:"addr"`

	// AI models
	ModelName     string `mapstructure:"model_name" json:"model_name"`         // e.g. "googleai/gemini-2.5-flash"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"` // e.g. "text-embedding-004"

	// Retrieval
	Profile        string  `mapstructure:"profile" json:"profile"`                 // "strict" or "lenient"
	MatchThreshold float64 `mapstructure:"match_threshold" json:"match_threshold"` // UnsetThreshold = derive from profile
	MatchCount     int     `mapstructure:"match_count" json:"match_count"`

	// Storage
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"` // empty = tracing disabled
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "****"
	}
	return json.Marshal(masked)
}

// Load reads configuration from defaults, the optional config file and
// the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")
	v.SetDefault("profile", ProfileStrict)
	v.SetDefault("match_threshold", UnsetThreshold)
	v.SetDefault("match_count", 5)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "papercite")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "papercite")
	v.SetDefault("postgres_ssl_mode", "disable")
	v.SetDefault("otlp_endpoint", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".papercite"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAPERCITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env take over.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for the serve command.
func (c *Config) Validate() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidModelName)
	}
	if c.Profile != ProfileStrict && c.Profile != ProfileLenient {
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidProfile, c.Profile, ProfileStrict, ProfileLenient)
	}
	if c.MatchThreshold != UnsetThreshold && (c.MatchThreshold < -1 || c.MatchThreshold > 1) {
		return fmt.Errorf("%w: %v outside [-1, 1]", ErrInvalidThreshold, c.MatchThreshold)
	}
	if c.MatchCount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMatchCount, c.MatchCount)
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	return nil
}

// RetrievalProfile returns the typed citation profile.
func (c *Config) RetrievalProfile() rag.Profile {
	return rag.Profile(c.Profile)
}

// ResolvedThreshold returns the similarity threshold: the explicit
// match_threshold when configured (0.0 included), otherwise the profile
// default.
func (c *Config) ResolvedThreshold() float64 {
	if c.MatchThreshold != UnsetThreshold {
		return c.MatchThreshold
	}
	if c.Profile == ProfileLenient {
		return LenientThreshold
	}
	return StrictThreshold
}
