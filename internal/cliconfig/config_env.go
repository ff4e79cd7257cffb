package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies configuration from environment variables (ECGSYNC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server-url", os.Getenv("ECGSYNC_SERVER_URL"), &cfg.ServerURL)
	s.setString("namespace", os.Getenv("ECGSYNC_NAMESPACE"), &cfg.Namespace)
	s.setString("log-level", os.Getenv("ECGSYNC_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("ECGSYNC_LOG_FORMAT"), &cfg.LogFormat)

	durations := []struct {
		flag string
		env  string
		dst  *time.Duration
	}{
		{"handshake-timeout", "ECGSYNC_HANDSHAKE_TIMEOUT", &cfg.HandshakeTimeout},
		{"ping-interval", "ECGSYNC_PING_INTERVAL", &cfg.PingInterval},
		{"reconnect-initial", "ECGSYNC_RECONNECT_INITIAL", &cfg.ReconnectInitial},
		{"reconnect-max", "ECGSYNC_RECONNECT_MAX", &cfg.ReconnectMax},
		{"timeout", "ECGSYNC_TIMEOUT", &cfg.Timeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, os.Getenv(d.env), d.dst); err != nil {
			return err
		}
	}

	return s.setIntFromString("reconnect-attempts", os.Getenv("ECGSYNC_RECONNECT_ATTEMPTS"), &cfg.ReconnectAttempts)
}
