package ecgsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/ecgsync/internal/adapters/ws"
	"github.com/bft-labs/ecgsync/pkg/transport"
)

// ErrInvalidConfig is wrapped by every configuration validation error.
var ErrInvalidConfig = errors.New("ecgsync: invalid configuration")

// DefaultNamespace is the server path the event API is mounted on.
const DefaultNamespace = "/api"

// Config configures a Client.
type Config struct {
	// ServerURL is the server base URL (http, https, ws or wss). Required.
	ServerURL string

	// Namespace is appended to ServerURL. Default: "/api".
	Namespace string

	// HandshakeTimeout bounds connection establishment. Default: 10s.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive period. Default: 25s.
	PingInterval time.Duration

	// WriteTimeout bounds a single write. Default: 10s.
	WriteTimeout time.Duration

	// ReconnectInitial is the first reconnection delay. Default: 1s.
	ReconnectInitial time.Duration

	// ReconnectMax caps the reconnection delay. Default: 5s.
	ReconnectMax time.Duration

	// ReconnectAttempts limits consecutive failed reconnections; the client
	// crashes when they are exhausted. Zero retries forever.
	ReconnectAttempts int

	// ShutdownTimeout bounds Stop. Default: 30s.
	ShutdownTimeout time.Duration
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	defaults := ws.DefaultConfig()
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaults.PingInterval
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = transport.DefaultReconnectInitial
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = transport.DefaultReconnectMax
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server URL is required", ErrInvalidConfig)
	}
	if _, err := c.Endpoint(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for name, d := range map[string]time.Duration{
		"handshake timeout": c.HandshakeTimeout,
		"ping interval":     c.PingInterval,
		"write timeout":     c.WriteTimeout,
		"reconnect initial": c.ReconnectInitial,
		"reconnect max":     c.ReconnectMax,
		"shutdown timeout":  c.ShutdownTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if c.ReconnectMax > 0 && c.ReconnectInitial > c.ReconnectMax {
		return fmt.Errorf("%w: reconnect initial %s exceeds reconnect max %s",
			ErrInvalidConfig, c.ReconnectInitial, c.ReconnectMax)
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("%w: reconnect attempts must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Endpoint returns the websocket URL the client dials.
func (c Config) Endpoint() (string, error) {
	return ws.URL(c.ServerURL, c.Namespace)
}
