package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewCLIFormatsRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelInfo)

	logger.Info("assembly started", "kernel", "k", "note", "has spaces")

	line := buf.String()
	if !strings.Contains(line, "INFO ") {
		t.Fatalf("expected level label in %q", line)
	}
	if !strings.Contains(line, "assembly started") {
		t.Fatalf("expected message in %q", line)
	}
	if !strings.Contains(line, "kernel=k") {
		t.Fatalf("expected attribute in %q", line)
	}
	if !strings.Contains(line, `note="has spaces"`) {
		t.Fatalf("expected quoted attribute in %q", line)
	}
}

func TestNewCLIHonorsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should have been filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewCLIGroupsPrefixKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewCLI(&buf, slog.LevelInfo).WithGroup("stage").With("name", "collect")

	logger.Info("done")

	if !strings.Contains(buf.String(), "stage.name=collect") {
		t.Fatalf("expected dotted group key in %q", buf.String())
	}
}

func TestNewJSONEmitsValidJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSON(&buf, slog.LevelInfo)

	logger.Info("assembled", "output", "k.iso")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode JSON record: %v", err)
	}
	if record["msg"] != "assembled" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["output"] != "k.iso" {
		t.Fatalf("unexpected output attr: %v", record["output"])
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	if mode, err := ParseMode("json"); err != nil || mode != ModeJSON {
		t.Fatalf("ParseMode(json) = %v, %v", mode, err)
	}
	if mode, err := ParseMode(" Text "); err != nil || mode != ModeCLI {
		t.Fatalf("ParseMode(text) = %v, %v", mode, err)
	}
	if _, err := ParseMode("xml"); err == nil {
		t.Fatalf("ParseMode(xml) error = nil, want error")
	}
}

func TestEnsureFallsBackToDefault(t *testing.T) {
	t.Parallel()

	if Ensure(nil) != slog.Default() {
		t.Fatalf("Ensure(nil) should return the default logger")
	}

	logger := NewCLI(&bytes.Buffer{}, slog.LevelInfo)
	if Ensure(logger) != logger {
		t.Fatalf("Ensure should return the provided logger")
	}
}
