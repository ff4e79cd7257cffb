package cliconfig

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func resetLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestSetLogLevel(t *testing.T) {
	resetLogLevel(t)

	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: "WARN", want: zerolog.WarnLevel},
		{level: "", want: zerolog.InfoLevel},
		{level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := SetLogLevel(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Error("SetLogLevel() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetLogLevel() unexpected error: %v", err)
			}
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("GlobalLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_JSON(t *testing.T) {
	resetLogLevel(t)

	cfg := DefaultConfig()
	cfg.LogFormat = LogFormatJSON
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := Logger(cfg, &buf)
	if err != nil {
		t.Fatalf("Logger() error: %v", err)
	}

	logger.Info().Msg("dropped")
	logger.Warn().Str("id", "rec-1").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["message"] != "kept" || entry["id"] != "rec-1" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no timestamp")
	}
}

func TestLogger_Console(t *testing.T) {
	resetLogLevel(t)

	var buf bytes.Buffer
	logger, err := Logger(DefaultConfig(), &buf)
	if err != nil {
		t.Fatalf("Logger() error: %v", err)
	}
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("console output = %q, want it to contain hello", buf.String())
	}
}

func TestLogger_InvalidLevel(t *testing.T) {
	resetLogLevel(t)

	cfg := DefaultConfig()
	cfg.LogLevel = "chatty"
	if _, err := Logger(cfg, &bytes.Buffer{}); err == nil {
		t.Error("Logger() expected error for invalid level")
	}
}
