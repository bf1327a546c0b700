package logger

import (
	"bytes"
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
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestInitWritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "info")

	WithComponent("search").Info("index configured", "index", "conversations")
	WithComponent("search").Debug("dropped at info level")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected exactly one record, got %d: %s", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal(lines[0], &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["component"] != "search" || record["msg"] != "index configured" {
		t.Fatalf("unexpected record: %v", record)
	}

	SetLevel("debug")
	buf.Reset()
	Get().Debug("now visible")
	if buf.Len() == 0 {
		t.Fatal("expected debug record after SetLevel")
	}
}
