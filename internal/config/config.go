// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Duration is a time.Duration written as a Go duration string ("90s", "5m") in JSON and
// environment variables.
type Duration time.Duration

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration. Values come from the environment (with
// defaults) and may be overridden by a JSON file.
type Config struct {
	// Upstream services
	APIKey      string `json:"api_key,omitempty" envconfig:"GEMINI_API_KEY"`         // Gemini API key
	DatabaseURL string `json:"database_url,omitempty" envconfig:"DATABASE_URL"`      // PostgreSQL connection URL, optional
	RedisURL    string `json:"redis_url,omitempty" envconfig:"REDIS_URL"`            // Redis URL for shared limiter state, optional
	RedisPrefix string `json:"redis_prefix,omitempty" envconfig:"REDIS_PREFIX"`      // Key namespace in Redis
	Migrate     bool   `json:"migrate,omitempty" envconfig:"DATABASE_AUTO_MIGRATE"` // Apply migrations on startup

	// Model overrides per tier; empty keeps the built-in model
	ModelLite     string `json:"model_lite,omitempty" envconfig:"GEMINI_MODEL_LITE"`
	ModelStandard string `json:"model_standard,omitempty" envconfig:"GEMINI_MODEL_STANDARD"`
	ModelAdvanced string `json:"model_advanced,omitempty" envconfig:"GEMINI_MODEL_ADVANCED"`

	// Server
	Port     int    `json:"port,omitempty" envconfig:"PORT" default:"8080" validate:"gte=0,lte=65535"`
	LogLevel string `json:"log_level,omitempty" envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	// Proxies (IPs or CIDRs) allowed to set X-Forwarded-For; empty ignores the header
	TrustedProxies []string `json:"trusted_proxies,omitempty" envconfig:"TRUSTED_PROXIES" validate:"dive,cidr|ip"`

	// Pipeline
	DuplicateWindow   Duration `json:"duplicate_window,omitempty" envconfig:"DUPLICATE_WINDOW" default:"5m"`
	ExtractionTimeout Duration `json:"extraction_timeout,omitempty" envconfig:"EXTRACTION_TIMEOUT" default:"60s"`
	AnalysisTimeout   Duration `json:"analysis_timeout,omitempty" envconfig:"ANALYSIS_TIMEOUT" default:"90s"`

	// CLI
	Concurrency int  `json:"concurrency,omitempty" envconfig:"PROCESS_CONCURRENCY" default:"4" validate:"gte=1,lte=64"`
	Verbose     bool `json:"verbose,omitempty" envconfig:"VERBOSE"` // Print detailed debug information
}

// FromEnv reads the configuration from environment variables, applying defaults for unset keys.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment config: %w", err)
	}
	return &cfg, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load reads the environment and, when path is set, lets the file's values win over it.
func Load(path string) (*Config, error) {
	env, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return env, env.Validate()
	}

	file, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	merged := file.MergeWithDefaults(*env)
	return &merged, merged.Validate()
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.DuplicateWindow < 0 {
		return fmt.Errorf("config error: 'duplicate_window' must be non-negative")
	}
	if c.ExtractionTimeout < 0 {
		return fmt.Errorf("config error: 'extraction_timeout' must be non-negative")
	}
	if c.AnalysisTimeout < 0 {
		return fmt.Errorf("config error: 'analysis_timeout' must be non-negative")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.RedisPrefix == "" {
		result.RedisPrefix = defaults.RedisPrefix
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.ModelLite == "" {
		result.ModelLite = defaults.ModelLite
	}
	if result.ModelStandard == "" {
		result.ModelStandard = defaults.ModelStandard
	}
	if result.ModelAdvanced == "" {
		result.ModelAdvanced = defaults.ModelAdvanced
	}

	if len(result.TrustedProxies) == 0 {
		result.TrustedProxies = defaults.TrustedProxies
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.DuplicateWindow == 0 {
		result.DuplicateWindow = defaults.DuplicateWindow
	}
	if result.ExtractionTimeout == 0 {
		result.ExtractionTimeout = defaults.ExtractionTimeout
	}
	if result.AnalysisTimeout == 0 {
		result.AnalysisTimeout = defaults.AnalysisTimeout
	}

	// Bool fields: either source may switch them on
	result.Migrate = result.Migrate || defaults.Migrate
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}
