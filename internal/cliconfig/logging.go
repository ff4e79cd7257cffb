package cliconfig

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/ecgsync/pkg/log"
)

// Logger builds the CLI logger for cfg writing to w. The level is applied
// globally so SetLogLevel can change it on a running process.
func Logger(cfg Config, w io.Writer) (zerolog.Logger, error) {
	if err := SetLogLevel(cfg.LogLevel); err != nil {
		return zerolog.Nop(), err
	}

	zerolog.DurationFieldUnit = time.Millisecond
	if cfg.LogFormat == LogFormatJSON {
		return zerolog.New(w).With().Timestamp().Logger(), nil
	}
	return log.NewConsoleLogger(w), nil
}

// SetLogLevel changes the process-wide log level.
func SetLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
