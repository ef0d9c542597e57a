package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"discstack/internal/config"
)

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	NewComponentLogger(logger, "stack").Info("frame stacked", String(FieldPath, "a b.tbc"), Int(FieldFrame, 12))

	line := buf.String()
	if !strings.Contains(line, " INFO [stack] frame stacked") {
		t.Fatalf("unexpected header: %q", line)
	}
	if !strings.Contains(line, `path="a b.tbc"`) {
		t.Fatalf("expected quoted path, got %q", line)
	}
	if !strings.Contains(line, "frame=12") {
		t.Fatalf("expected frame field, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should render in the header only: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("unexpected colour codes for a buffer writer: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestConsoleHandlerColour(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Writer: &buf, Color: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Error("boom")
	if !strings.Contains(buf.String(), ansiRed+"ERROR"+ansiReset) {
		t.Fatalf("expected coloured level, got %q", buf.String())
	}
}

func TestJSONHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", Int(FieldSource, 2))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["msg"] != "hello" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key: %v", record)
	}
	if record[FieldSource] != float64(2) {
		t.Fatalf("unexpected source field: %v", record[FieldSource])
	}
}

func TestJSONHandlerWritesSecondsAndCaller(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("stack run complete", Int(FieldSource, 1), Duration("elapsed", 1500*time.Millisecond))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["elapsed"] != 1.5 {
		t.Fatalf("expected elapsed in seconds, got %v", record["elapsed"])
	}
	if record[FieldSource] != float64(1) {
		t.Fatalf("expected capture index kept under source, got %v", record[FieldSource])
	}
	caller, ok := record[CallerKey].(string)
	if !ok || !strings.HasPrefix(caller, "logger_test.go:") {
		t.Fatalf("expected caller location, got %v", record[CallerKey])
	}
	ts, _ := record["ts"].(string)
	if _, err := time.Parse(jsonTimeLayout, ts); err != nil {
		t.Fatalf("unexpected timestamp %q: %v", ts, err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestNewFromConfigTeesToLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var stdout bytes.Buffer
	logger, closeLog, err := NewFromConfig(config.Logging{Format: "console", Level: "info", Dir: dir}, &stdout)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("stacking complete")
	if err := closeLog(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	if !strings.Contains(stdout.String(), "stacking complete") {
		t.Fatalf("expected console output, got %q", stdout.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"stacking complete"`) {
		t.Fatalf("expected JSON record in log file, got %q", data)
	}
}

func TestWithContextAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(Options{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := WithRunID(context.Background(), "abc123")
	WithContext(ctx, base).Info("started")
	if !strings.Contains(buf.String(), "run_id=abc123") {
		t.Fatalf("expected run id, got %q", buf.String())
	}
	if WithContext(context.Background(), base) != base {
		t.Fatal("expected logger unchanged without context fields")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	WarnWithContext(logger, "source skipped", "frame_unavailable", String(FieldImpact, "frame stacked from fewer sources"))
	out := buf.String()
	if !strings.Contains(out, "event_type=frame_unavailable") {
		t.Fatalf("expected event type, got %q", out)
	}
	if !strings.Contains(out, `impact="frame stacked from fewer sources"`) {
		t.Fatalf("expected caller impact preserved, got %q", out)
	}
}

func TestTeeHandlerFiltersEachSide(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer
	h := TeeHandler(
		slog.NewTextHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(h).With("k", "v")
	logger.Info("info message")
	logger.Error("error message")

	if strings.Contains(consoleBuf.String(), "info message") || !strings.Contains(consoleBuf.String(), "k=v") {
		t.Fatalf("console handler got unexpected output: %q", consoleBuf.String())
	}
	if !strings.Contains(fileBuf.String(), "info message") || !strings.Contains(fileBuf.String(), "error message") {
		t.Fatalf("file handler missing records: %q", fileBuf.String())
	}
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when no handlers supplied")
	}
	console := slog.NewTextHandler(&consoleBuf, nil)
	if TeeHandler(console, nil) != slog.Handler(console) {
		t.Fatal("expected the console handler alone when no file handler is supplied")
	}
}

func TestNewFromConfigRunLogKeepsInfoUnderQuietConsole(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var stdout bytes.Buffer
	logger, closeLog, err := NewFromConfig(config.Logging{Format: "console", Level: "error", Dir: dir}, &stdout)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("stacking progress", Int(FieldFrame, 40))
	logger.Debug("per-frame detail")
	if err := closeLog(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	if stdout.Len() != 0 {
		t.Fatalf("expected a quiet console, got %q", stdout.String())
	}
	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"stacking progress"`) || strings.Contains(string(data), "per-frame detail") {
		t.Fatalf("unexpected run log content %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		" WARN": slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}
