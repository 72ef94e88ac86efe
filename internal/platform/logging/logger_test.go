package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q): got=%s want=%s", raw, got, want)
		}
	}
}

func TestLogger_WritesStaticAndCallFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(Options{Level: LevelInfo, ServiceName: "lotto-feed", Environment: "test", Output: &buf})

	logger.Debug("hidden")
	logger.Named("merger").With("round", 1181).Warn("official fetch failed", "error", errors.New("boom"))
	if err := logger.Sync(); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := sonic.UnmarshalString(lines[0], &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "lotto-feed" || entry["env"] != "test" {
		t.Fatalf("missing static fields: %v", entry)
	}
	if entry["component"] != "merger" {
		t.Fatalf("missing component name: %v", entry)
	}
	if entry["error"] != "boom" {
		t.Fatalf("missing error field: %v", entry)
	}
	if round, _ := entry["round"].(float64); round != 1181 {
		t.Fatalf("missing round field: %v", entry)
	}
}

func TestCronLogger_ErrorIncludesCause(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	adapter := NewCronLogger(New(Options{Level: LevelDebug, Output: &buf}))
	adapter.Info("schedule", "entry", 1)
	adapter.Error(errors.New("panic"), "job failed", "entry", 1)

	out := buf.String()
	if !strings.Contains(out, `"component":"cron"`) {
		t.Fatalf("expected cron component: %s", out)
	}
	if !strings.Contains(out, `"error":"panic"`) || !strings.Contains(out, "job failed") {
		t.Fatalf("expected error entry: %s", out)
	}
}
