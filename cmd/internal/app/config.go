package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, SOUQ_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and credential
	// digests must be HMAC-based.
	RequireTokenHMAC bool

	// AdminToken guards the operational endpoints. Empty disables them.
	AdminToken string

	// Browser origin policy for the cookie-authenticated API.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
//
// Note that WriteTimeout deliberately defaults to 0 (disabled): the push
// transports hold responses open indefinitely and a server-wide write
// deadline would sever them.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SOUQ_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SOUQ_LOG_LEVEL", "info"),
		LogPretty: EnvBool("SOUQ_LOG_PRETTY", false),

		ReadHeaderTimeout: EnvDuration("SOUQ_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SOUQ_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SOUQ_HTTP_WRITE_TIMEOUT", 0),
		IdleTimeout:       EnvDuration("SOUQ_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SOUQ_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("SOUQ_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("SOUQ_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("SOUQ_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("SOUQ_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("SOUQ_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("SOUQ_REQUIRE_TOKEN_HMAC", false),

		AdminToken: EnvString("SOUQ_ADMIN_TOKEN", ""),

		CORSAllowedOrigins:   EnvCSV("SOUQ_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("SOUQ_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("SOUQ_CORS_MAX_AGE_SECONDS", 600),
	}
}
