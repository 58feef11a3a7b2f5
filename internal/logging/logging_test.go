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
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"credential", true},
		{"CREDENTIAL", true},
		{"access_token", true},
		{"authorization", true},
		{"api_key", true},
		{"user_hash", true},
		{"client_secret", true},
		{"provider", false},
		{"file_name", false},
		{"url", false},
		{"event_id", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, got, test.expected)
			}
		})
	}
}

func TestRedactionInOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: LevelInfo, Format: FormatJSON, Component: "test"}
	logger := &Logger{Logger: slog.New(newHandler(cfg, &buf)), config: cfg}

	logger.Info("configured uploader", "provider", "imgur", "credential", "super-secret")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["credential"] != "[REDACTED]" {
		t.Errorf("credential not redacted: %v", record["credential"])
	}
	if record["provider"] != "imgur" {
		t.Errorf("provider mangled: %v", record["provider"])
	}
	if record["component"] != "test" {
		t.Errorf("component attr missing: %v", record["component"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Level: LevelInfo, Format: FormatJSON}
	logger := &Logger{Logger: slog.New(newHandler(cfg, &buf)), config: cfg}

	logger.WithComponent("engine").Info("ready")

	if !strings.Contains(buf.String(), `"component":"engine"`) {
		t.Errorf("component missing from output: %s", buf.String())
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-42")
	if got := RequestIDFromContext(ctx); got != "req-42" {
		t.Errorf("expected req-42, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := RequestIDFromContext(nil); got != "" {
		t.Errorf("expected empty for nil context, got %q", got)
	}
}

func TestNewRequestIDUnique(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "stderr"
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	id1 := logger.NewRequestID()
	id2 := logger.NewRequestID()
	if id1 == "" || id1 == id2 {
		t.Errorf("request IDs not unique: %q, %q", id1, id2)
	}
	if !strings.HasPrefix(id1, "pasteupd-") {
		t.Errorf("request ID should carry the component, got %q", id1)
	}
}

func TestFileRotatorWrite(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "pasteupd.log")

	cfg := &Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   false,
	}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	line := []byte("upload finished\n")
	n, err := rotator.Write(line)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != len(line) {
		t.Errorf("short write: %d of %d", n, len(line))
	}
	if err := rotator.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestFileRotatorRotatesOnSize(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "pasteupd.log")

	cfg := &Config{
		FilePath:   logPath,
		MaxSize:    0, // any write crosses a zero threshold once size > 0
		MaxBackups: 5,
		Compress:   false,
	}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	// MaxSize 0 disables size rotation; use a 1 MB threshold instead
	// and write past it.
	cfg.MaxSize = 1
	payload := bytes.Repeat([]byte("x"), 512*1024)
	for i := 0; i < 3; i++ {
		if _, err := rotator.Write(payload); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("expected a rotated file next to the live log, found %d entries", len(entries))
	}
}

func TestFileOutputViaLogger(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(tmpDir, "out.log")
	cfg.Format = FormatText
	cfg.Compress = false

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("hello")
	if err := logger.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	defer logger.Close()

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing record: %s", data)
	}
}
