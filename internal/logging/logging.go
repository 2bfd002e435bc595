// Package logging sets up the slog loggers halfkbd writes to.
//
// Text output is meant for a terminal running "halfkbd run". JSON output is
// meant for a log collector, and renders every time.Duration attribute (the
// engine's overlap and gap measurements) as fractional milliseconds so that
// chord timing can be compared without unit parsing.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log level.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format is a log encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config describes where and how to log.
type Config struct {
	Level  Level
	Format Format

	// Output is "stdout", "stderr", "file", "both" (stderr and file) or
	// "discard".
	Output string

	// File output. MaxSize is in megabytes and MaxAge in days.
	FilePath   string
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool

	AddSource bool

	// Component is attached to every record when set.
	Component string

	// Writer replaces Output when set.
	Writer io.Writer
}

// DefaultConfig logs text at info to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		MaxSize:    10,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "halfkbd",
	}
}

// ErrNoLogFile is returned when file output is requested without a path.
var ErrNoLogFile = errors.New("file output needs a log file path")

// Logger is a slog.Logger that owns its log file, if any.
type Logger struct {
	*slog.Logger
	level   *slog.LevelVar
	rotator *FileRotator
	mu      sync.Mutex
}

// New builds a logger from cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{level: new(slog.LevelVar)}
	l.level.Set(cfg.Level)

	w, err := l.open(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     l.level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		opts.ReplaceAttr = durationsAsMillis
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

func (l *Logger) open(cfg *Config) (io.Writer, error) {
	if cfg.Writer != nil {
		return cfg.Writer, nil
	}

	output := strings.ToLower(cfg.Output)
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "discard":
		return io.Discard, nil
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, ErrNoLogFile
		}
		rotator, err := NewFileRotator(cfg)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.rotator = rotator
		if output == "both" {
			return io.MultiWriter(os.Stderr, rotator), nil
		}
		return rotator, nil
	default:
		return os.Stderr, nil
	}
}

// durationsAsMillis renders time.Duration values as float milliseconds.
func durationsAsMillis(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		d := a.Value.Duration()
		return slog.Float64(a.Key, float64(d)/float64(time.Millisecond))
	}
	return a
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator == nil {
		return nil
	}
	err := l.rotator.Close()
	l.rotator = nil
	return err
}

// SetDefault makes l the slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel parses debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// ParseFormat parses text (or empty) and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %q", s)
	}
}
