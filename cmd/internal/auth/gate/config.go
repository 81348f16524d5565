package gate

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls the credential cookie transport.
type Config struct {
	AccessCookieName  string
	RefreshCookieName string

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// DefaultConfig returns cookie settings suitable for development.
func DefaultConfig() Config {
	return Config{
		AccessCookieName:  "accessToken",
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieSecure:      false,
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads cookie transport configuration.
//
// Optional:
//   - SOUQ_COOKIE_ACCESS_NAME, SOUQ_COOKIE_REFRESH_NAME
//   - SOUQ_COOKIE_PATH, SOUQ_COOKIE_DOMAIN
//   - SOUQ_COOKIE_SECURE (bool)
//   - SOUQ_COOKIE_SAMESITE (lax|strict|none)
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SOUQ_COOKIE_ACCESS_NAME")); v != "" {
		cfg.AccessCookieName = v
	}
	if v := strings.TrimSpace(os.Getenv("SOUQ_COOKIE_REFRESH_NAME")); v != "" {
		cfg.RefreshCookieName = v
	}
	if v := strings.TrimSpace(os.Getenv("SOUQ_COOKIE_PATH")); v != "" {
		cfg.CookiePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SOUQ_COOKIE_DOMAIN")); v != "" {
		cfg.CookieDomain = v
	}
	if v := strings.TrimSpace(os.Getenv("SOUQ_COOKIE_SECURE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CookieSecure = b
		}
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SOUQ_COOKIE_SAMESITE"))) {
	case "strict":
		cfg.CookieSameSite = http.SameSiteStrictMode
	case "none":
		cfg.CookieSameSite = http.SameSiteNoneMode
	case "lax":
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	return cfg
}
