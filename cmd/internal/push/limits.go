package push

import "time"

// Limits and defaults for the push layer.
const (
	// Heartbeat cadence per connection.
	defaultHeartbeatInterval = 30 * time.Second

	// Per-connection send queue bounds.
	defaultSendQueueSize = 256
	minSendQueueSize     = 32

	// Transport write deadline per event.
	defaultWriteTimeout = 5 * time.Second

	// Max bytes per websocket frame read (client frames are control-only).
	maxFrameBytes = 4 << 10 // 4 KiB

	// Per-connection inbound rate limits (websocket reads per window).
	rateLimitEvents = 60
	rateLimitWindow = 10 * time.Second
)
