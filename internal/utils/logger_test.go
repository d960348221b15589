package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", true)
	logger.Info("dropped")
	logger.Warn("kept", slog.String("keyword", "oat milk"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" || entry["service"] != "trendpulse" || entry["keyword"] != "oat milk" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
