package credential

import (
	"os"
	"time"
)

// Config defines all runtime configuration for the credential subsystem.
//
// It controls the access/refresh token windows, clock skew tolerance,
// the signing secret, and the background sweep cadence.
type Config struct {
	// Issuer is the value set in the "iss" claim of both tokens.
	Issuer string

	// AccessTTL defines the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL defines the lifetime of refresh tokens and their records.
	RefreshTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// SweepInterval is the cadence of the expired-record sweep.
	SweepInterval time.Duration

	// SigningKey is the HMAC-SHA256 secret used to sign both tokens.
	SigningKey []byte
}

// DefaultConfig returns a secure default configuration suitable for development.
func DefaultConfig() Config {
	return Config{
		Issuer:        "souq",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ClockSkew:     30 * time.Second,
		SweepInterval: time.Hour,
	}
}

// LoadConfigFromEnv loads credential configuration from environment variables.
//
// Required:
//   - SOUQ_AUTH_SIGNING_KEY (>= 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - SOUQ_AUTH_ISSUER
//   - SOUQ_AUTH_ACCESS_TTL
//   - SOUQ_AUTH_REFRESH_TTL
//   - SOUQ_AUTH_CLOCK_SKEW
//   - SOUQ_AUTH_SWEEP_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("SOUQ_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("SOUQ_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("SOUQ_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("SOUQ_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("SOUQ_AUTH_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	key := os.Getenv("SOUQ_AUTH_SIGNING_KEY")
	if len(key) < 32 {
		return Config{}, ErrConfig
	}
	cfg.SigningKey = []byte(key)

	// Invariant: the refresh window must outlast the access window, otherwise
	// rotation could mint an access token that survives its own refresh record.
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
