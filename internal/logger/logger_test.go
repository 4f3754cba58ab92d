package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", true)
	defer Init("info", false)

	ctx := WithRequestID(context.Background(), "req-1")
	WithContext(ctx).Info("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["request_id"] != "req-1" || line["msg"] != "hello" {
		t.Fatalf("unexpected log line %v", line)
	}
	if RequestID(context.Background()) != "" {
		t.Fatalf("empty context must not carry a request id")
	}
}
