package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestLogger_WritesServiceAndArgs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "amm-connector", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "gas price updated", "gwei", "1.5")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, buf.String())
	}
	if rec["service"] != "amm-connector" {
		t.Errorf("expected service field, got %v", rec["service"])
	}
	if rec["gwei"] != "1.5" {
		t.Errorf("expected gwei=1.5, got %v", rec["gwei"])
	}
	if rec["trace_id"] != "abc123" {
		t.Errorf("expected trace_id, got %v", rec["trace_id"])
	}
}

func TestLogger_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %s", buf.String())
	}

	log.Warn(context.Background(), "kept")
	if buf.Len() == 0 {
		t.Fatal("expected warn record")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
