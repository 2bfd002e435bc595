package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
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
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
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
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("expected json, got %v (%v)", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("expected text for empty, got %v (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "halfkbd" {
		t.Errorf("expected component halfkbd, got %s", cfg.Component)
	}
}

func TestJSONDurationsInMillis(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Level = LevelDebug
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debug("chord", "symbols", []string{"S-", "T-"}, "overlap", 150*time.Millisecond+500*time.Microsecond)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "chord" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["overlap"] != 150.5 {
		t.Errorf("expected overlap 150.5 ms, got %v", entry["overlap"])
	}
	if entry["component"] != "halfkbd" {
		t.Errorf("expected component halfkbd, got %v", entry["component"])
	}
}

func TestTextDurationsUnchanged(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("chord", "overlap", 150*time.Millisecond)

	if !strings.Contains(buf.String(), "overlap=150ms") {
		t.Errorf("text output should keep the duration string: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = LevelWarn
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line missing")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	child := logger.With("component", "engine")

	child.Debug("before")
	logger.SetLevel(LevelDebug)
	child.Debug("after")

	if logger.Level() != LevelDebug {
		t.Errorf("expected debug level, got %v", logger.Level())
	}
	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("debug line logged before the level changed")
	}
	if !strings.Contains(out, "after") {
		t.Error("derived logger should follow the new level")
	}
}

func TestSetDefault(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	prev := slog.Default()
	SetDefault(logger)
	defer slog.SetDefault(prev)

	slog.Info("through the default")
	if !strings.Contains(buf.String(), "through the default") {
		t.Errorf("slog default should write to the logger: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l == nil {
		t.Fatal("Discard returned nil")
	}
	l.Error("dropped")
}

func TestFileOutputNeedsPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "file"
	if _, err := New(cfg); !errors.Is(err, ErrNoLogFile) {
		t.Errorf("expected ErrNoLogFile, got %v", err)
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "halfkbd.log")
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = logPath

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing line: %s", data)
	}
}

func TestFileRotatorWrite(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := &Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxAge:     7,
		MaxBackups: 3,
	}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	testData := []byte("test log line\n")
	n, err := rotator.Write(testData)
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if n != len(testData) {
		t.Errorf("expected to write %d bytes, wrote %d", len(testData), n)
	}
	if err := rotator.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := &Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxAge:     7,
		MaxBackups: 2,
		Compress:   true,
	}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer rotator.Close()

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 4; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	files, err := rotator.LogFiles()
	if err != nil {
		t.Fatal(err)
	}
	// Current file plus at most MaxBackups rotated ones.
	if len(files) < 2 || len(files) > 3 {
		t.Errorf("expected 2-3 log files, got %v", files)
	}
	for _, f := range files[1:] {
		if !strings.HasSuffix(f, ".gz") {
			t.Errorf("rotated file should be compressed: %s", f)
		}
	}
}

func TestFileRotatorRotatesByDay(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	cfg := &Config{FilePath: logPath, MaxSize: 10, MaxBackups: 5}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer rotator.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	rotator.now = func() time.Time { return day }
	rotator.opened = day

	rotator.Write([]byte("before midnight\n"))
	day = day.Add(2 * time.Minute)
	rotator.Write([]byte("after midnight\n"))

	files, err := rotator.LogFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected a rotation at midnight, got %v", files)
	}

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "before midnight") {
		t.Error("current file should only hold the new day's lines")
	}
}
