package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Failed-login throttling, keyed by client IP and by submitted email.
	LoginIPMax      int
	LoginIPWindow   time.Duration
	LoginUserMax    int
	LoginUserWindow time.Duration
}

// DefaultConfig returns safe defaults for the auth API.
func DefaultConfig() Config {
	return Config{
		TrustProxy:      false,
		MaxBodyBytes:    1 << 20, // 1 MiB
		LoginIPMax:      20,
		LoginIPWindow:   5 * time.Minute,
		LoginUserMax:    5,
		LoginUserWindow: 15 * time.Minute,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables.
//
// Optional:
//   - SOUQ_AUTH_TRUST_PROXY (bool)
//   - SOUQ_AUTH_MAX_BODY_BYTES (int)
//   - SOUQ_AUTH_LOGIN_IP_MAX (int), SOUQ_AUTH_LOGIN_IP_WINDOW (duration)
//   - SOUQ_AUTH_LOGIN_USER_MAX (int), SOUQ_AUTH_LOGIN_USER_WINDOW (duration)
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.TrustProxy = envBool("SOUQ_AUTH_TRUST_PROXY", cfg.TrustProxy)
	cfg.MaxBodyBytes = envInt64("SOUQ_AUTH_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.LoginIPMax = envInt("SOUQ_AUTH_LOGIN_IP_MAX", cfg.LoginIPMax)
	cfg.LoginIPWindow = envDuration("SOUQ_AUTH_LOGIN_IP_WINDOW", cfg.LoginIPWindow)
	cfg.LoginUserMax = envInt("SOUQ_AUTH_LOGIN_USER_MAX", cfg.LoginUserMax)
	cfg.LoginUserWindow = envDuration("SOUQ_AUTH_LOGIN_USER_WINDOW", cfg.LoginUserWindow)

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
