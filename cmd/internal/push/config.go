package push

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config tunes the push transports and registry.
type Config struct {
	SendQueueSize     int
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration

	// Origin policy for the websocket transport.
	OriginRequired bool
	AllowedOrigins []string

	// Inbound rate limits for websocket clients.
	RateEvents int
	RateWindow time.Duration
}

// DefaultConfig returns secure development defaults.
func DefaultConfig() Config {
	return Config{
		SendQueueSize:     defaultSendQueueSize,
		HeartbeatInterval: defaultHeartbeatInterval,
		WriteTimeout:      defaultWriteTimeout,
		OriginRequired:    true,
		AllowedOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		RateEvents:        rateLimitEvents,
		RateWindow:        rateLimitWindow,
	}
}

// LoadConfigFromEnv loads push configuration from environment variables.
//
// Optional:
//   - SOUQ_PUSH_SEND_QUEUE (int)
//   - SOUQ_PUSH_HEARTBEAT_INTERVAL, SOUQ_PUSH_WRITE_TIMEOUT (durations)
//   - SOUQ_PUSH_ORIGIN_REQUIRED (bool)
//   - SOUQ_PUSH_ALLOWED_ORIGINS (comma-separated)
//   - SOUQ_PUSH_RATE_EVENTS (int), SOUQ_PUSH_RATE_WINDOW (duration)
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if n := envInt("SOUQ_PUSH_SEND_QUEUE", cfg.SendQueueSize); n >= minSendQueueSize {
		cfg.SendQueueSize = n
	}
	cfg.HeartbeatInterval = envDuration("SOUQ_PUSH_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.WriteTimeout = envDuration("SOUQ_PUSH_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.OriginRequired = envBool("SOUQ_PUSH_ORIGIN_REQUIRED", cfg.OriginRequired)
	if vs := envCSV("SOUQ_PUSH_ALLOWED_ORIGINS"); len(vs) > 0 {
		cfg.AllowedOrigins = vs
	}
	cfg.RateEvents = envInt("SOUQ_PUSH_RATE_EVENTS", cfg.RateEvents)
	cfg.RateWindow = envDuration("SOUQ_PUSH_RATE_WINDOW", cfg.RateWindow)

	return cfg
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

func envCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
