// Package config holds the handful of settings SEREBO's core needs that
// aren't named by a data row: where the black box file lives, and which
// notary to talk to by default. Command-line parsing belongs to the
// CLI that embeds this core, so nothing here reads flags.
package config

import (
	"os"
	"time"
)

const (
	// DefaultBlackboxPath is where the black box file lives when the
	// environment does not say otherwise.
	DefaultBlackboxPath = "serebo_blackbox/blackbox.sdb"

	// DefaultNotaryURL is the notary endpoint used when
	// SEREBO_NOTARY_URL is not set. The URL stored with a local notary
	// registration does not override it.
	DefaultNotaryURL = "https://notary.example.org/serebo_notary/services/call/xmlrpc"

	// DefaultSelfSignInterval is how often the daemon self-notarizes
	// the black box head.
	DefaultSelfSignInterval = 1 * time.Hour
)

const (
	envBlackboxPath     = "SEREBO_BLACKBOX_PATH"
	envNotaryURL        = "SEREBO_NOTARY_URL"
	envSelfSignInterval = "SEREBO_SELFSIGN_INTERVAL"
)

// Config is the small set of environment-overridable settings the core
// needs. Zero value is not meaningful; use Load.
type Config struct {
	BlackboxPath     string
	NotaryURL        string
	SelfSignInterval time.Duration
}

// Load reads configuration from the environment, falling back to the
// documented defaults. A malformed SEREBO_SELFSIGN_INTERVAL falls back
// to the default rather than failing startup.
func Load() Config {
	return Config{
		BlackboxPath:     fromEnv(envBlackboxPath, DefaultBlackboxPath),
		NotaryURL:        fromEnv(envNotaryURL, DefaultNotaryURL),
		SelfSignInterval: durationFromEnv(envSelfSignInterval, DefaultSelfSignInterval),
	}
}

func fromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
