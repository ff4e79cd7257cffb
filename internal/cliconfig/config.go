package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/ecgsync/pkg/ecgsync"
)

// DefaultServerURL is the address of a locally running review server.
const DefaultServerURL = "http://localhost:9090"

// Log output formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config holds CLI configuration for ecgsync.
type Config struct {
	ServerURL string
	Namespace string

	LogLevel  string
	LogFormat string

	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int

	// Timeout bounds how long a one-shot command waits for the server.
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServerURL:        DefaultServerURL,
		Namespace:        ecgsync.DefaultNamespace,
		LogLevel:         "info",
		LogFormat:        LogFormatConsole,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     25 * time.Second,
		ReconnectInitial: time.Second,
		ReconnectMax:     5 * time.Second,
		Timeout:          30 * time.Second,
	}
}

// Validate checks the configuration for errors and normalizes it.
func (c *Config) Validate() error {
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.ServerURL == "" {
		return fmt.Errorf("server-url is required")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log-level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("log-format must be %q or %q", LogFormatConsole, LogFormatJSON)
	}

	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	if c.ReconnectInitial <= 0 || c.ReconnectMax <= 0 {
		return fmt.Errorf("reconnect delays must be positive")
	}
	if c.ReconnectInitial > c.ReconnectMax {
		return fmt.Errorf("reconnect-initial must not exceed reconnect-max")
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts must not be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// ClientConfig converts the CLI configuration into a client configuration.
func (c Config) ClientConfig() ecgsync.Config {
	return ecgsync.Config{
		ServerURL:         c.ServerURL,
		Namespace:         c.Namespace,
		HandshakeTimeout:  c.HandshakeTimeout,
		PingInterval:      c.PingInterval,
		ReconnectInitial:  c.ReconnectInitial,
		ReconnectMax:      c.ReconnectMax,
		ReconnectAttempts: c.ReconnectAttempts,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}
