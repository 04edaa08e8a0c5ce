package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	MaxRequests     int           // Requests allowed per Window
	Window          time.Duration // Sliding window length
	BurstLimit      int           // Requests allowed per BurstWindow
	BurstWindow     time.Duration // Burst window length, also the block duration on a burst
	CleanupInterval time.Duration // How often idle identifiers are swept from memory
	Whitelist       map[string]bool
	Blacklist       map[string]bool
}

// DefaultConfig returns the limits applied when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		MaxRequests:     10,
		Window:          60 * time.Second,
		BurstLimit:      5,
		BurstWindow:     10 * time.Second,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
	}
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	defaults := DefaultConfig()

	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		defaults.Enabled = false
		return defaults
	}

	return &Config{
		Enabled:         true,
		MaxRequests:     getEnvInt("RATE_LIMIT_MAX_REQUESTS", defaults.MaxRequests),
		Window:          getEnvDuration("RATE_LIMIT_WINDOW", defaults.Window),
		BurstLimit:      getEnvInt("RATE_LIMIT_BURST_LIMIT", defaults.BurstLimit),
		BurstWindow:     getEnvDuration("RATE_LIMIT_BURST_WINDOW", defaults.BurstWindow),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", defaults.CleanupInterval),
		Whitelist:       parseIDList(getEnvString("RATE_LIMIT_WHITELIST", "")),
		Blacklist:       parseIDList(getEnvString("RATE_LIMIT_BLACKLIST", "")),
	}
}

// policy extracts the window parameters handed to a Store
func (c *Config) policy() Policy {
	return Policy{
		MaxRequests: c.MaxRequests,
		Window:      c.Window,
		BurstLimit:  c.BurstLimit,
		BurstWindow: c.BurstWindow,
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIDList parses a comma-separated list of client identifiers into a set.
func parseIDList(list string) map[string]bool {
	result := make(map[string]bool)
	if list == "" {
		return result
	}

	for _, id := range strings.Split(list, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			result[id] = true
		}
	}

	return result
}
