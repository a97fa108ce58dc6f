package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", "json")
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug level to be enabled")
	}
	l.Info("inbound received", slog.String("channel", "sms"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if record["msg"] != "inbound received" || record["channel"] != "sms" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestContextLogger(t *testing.T) {
	Init("info", "text")
	custom := L.With("request_id", "12345")

	ctx := WithContext(context.Background(), custom)
	if got := FromContext(ctx); got != custom {
		t.Fatal("FromContext should return the stored logger")
	}
	if got := FromContext(context.Background()); got != L {
		t.Fatal("FromContext should fall back to the global logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize("  hi  "); got != "hi" {
		t.Fatalf("Summarize short = %q", got)
	}
	long := strings.Repeat("é", 80)
	got := Summarize(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 64 {
		t.Fatalf("expected 64 runes, got %d", n)
	}
}
