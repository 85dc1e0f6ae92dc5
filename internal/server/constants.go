// Package server provides the HTTP and WebSocket surface of the engine.
package server

import "time"

// Server configuration constants
const (
	// Per-connection inbound rate limiting
	RateLimitMessages = 50          // max messages per window
	RateLimitWindow   = time.Second // sliding window duration

	ReadTimeout  = 10 * time.Second
	WriteTimeout = 10 * time.Second
)
