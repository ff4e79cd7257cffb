package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf))

	l.Info("fetched",
		String("id", "abc"),
		Int("channels", 12),
		Bool("annotated", true),
		Strings("annotation", []string{"A", "B/C"}),
		Duration("took", 2*time.Second),
		Err(errors.New("boom")),
	)

	m := decodeLine(t, &buf)
	if m["message"] != "fetched" {
		t.Errorf("message = %v, want fetched", m["message"])
	}
	if m["id"] != "abc" {
		t.Errorf("id = %v, want abc", m["id"])
	}
	if m["channels"] != float64(12) {
		t.Errorf("channels = %v, want 12", m["channels"])
	}
	if m["annotated"] != true {
		t.Errorf("annotated = %v, want true", m["annotated"])
	}
	if m["error"] != "boom" {
		t.Errorf("error = %v, want boom", m["error"])
	}
	if ann, ok := m["annotation"].([]interface{}); !ok || len(ann) != 2 {
		t.Errorf("annotation = %v, want 2 entries", m["annotation"])
	}
}

func TestZerologAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterWithLogger(zerolog.New(&buf).Level(zerolog.WarnLevel))

	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}

	l.Warn("shown")
	m := decodeLine(t, &buf)
	if m["level"] != "warn" {
		t.Errorf("level = %v, want warn", m["level"])
	}
}

func TestWith_PrependsFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewZerologAdapterWithLogger(zerolog.New(&buf))

	scopedLogger := With(With(base, String("component", "transport")), String("session", "s1"))
	scopedLogger.Error("dropped", String("event", "ECG_GET_LIST"))

	m := decodeLine(t, &buf)
	for key, want := range map[string]string{
		"component": "transport",
		"session":   "s1",
		"event":     "ECG_GET_LIST",
	} {
		if m[key] != want {
			t.Errorf("%s = %v, want %s", key, m[key], want)
		}
	}
}

func TestWith_NoFieldsReturnsSameLogger(t *testing.T) {
	base := NewNoopLogger()
	if got := With(base); got != Logger(base) {
		t.Errorf("With without fields should return the logger unchanged")
	}
}
