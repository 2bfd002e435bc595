// Package config handles configuration loading and validation for halfkbd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"halfkbd/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration. The chord timing
// thresholds are fixed and deliberately absent.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Keymap selects the keymap file.
	Keymap KeymapConfig `toml:"keymap" json:"keymap" yaml:"keymap"`

	// Capture configures the keyboard backend.
	Capture CaptureConfig `toml:"capture" json:"capture" yaml:"capture"`

	// Journal configures the stroke journal.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// DBus configures the session bus sink.
	DBus DBusConfig `toml:"dbus" json:"dbus" yaml:"dbus"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// KeymapConfig holds keymap file settings.
type KeymapConfig struct {
	// Path is the keymap file. TOML, YAML and JSON are accepted.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Watch reloads the keymap when the file changes.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// CaptureConfig holds keyboard capture settings.
type CaptureConfig struct {
	// Backend is "evdev" or "simulated".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Devices lists input devices to read. Empty means autodetect.
	Devices []string `toml:"devices" json:"devices" yaml:"devices"`

	// Suppress keeps keymap keys from reaching other applications.
	Suppress bool `toml:"suppress" json:"suppress" yaml:"suppress"`
}

// JournalConfig holds stroke journal settings.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`

	// Buffer is the number of strokes held while the database is busy.
	Buffer int `toml:"buffer" json:"buffer" yaml:"buffer"`
}

// DBusConfig holds session bus settings.
type DBusConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	BusName    string `toml:"bus_name" json:"bus_name" yaml:"bus_name"`
	ObjectPath string `toml:"object_path" json:"object_path" yaml:"object_path"`
}

// MetricsConfig holds metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is the host:port the /metrics endpoint binds to.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file, both or discard.
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Version: Version,
		Keymap: KeymapConfig{
			Path:  filepath.Join(dir, "keymap.toml"),
			Watch: true,
		},
		Capture: CaptureConfig{
			Backend:  "evdev",
			Devices:  []string{},
			Suppress: true,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "journal.db"),
			Buffer:  1024,
		},
		DBus: DBusConfig{
			Enabled:    false,
			BusName:    "io.github.halfkbd",
			ObjectPath: "/io/github/halfkbd",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(dir, "halfkbd.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the configured files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Keymap.Path)}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies HALFKBD_* environment variables. Unparsable
// values are reported and leave the field unchanged.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidationErrors

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	boolean := func(name, field string, dst *bool) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s: not a boolean: %q", name, v),
			})
			return
		}
		*dst = b
	}

	str("HALFKBD_KEYMAP", &c.Keymap.Path)
	boolean("HALFKBD_KEYMAP_WATCH", "keymap.watch", &c.Keymap.Watch)

	str("HALFKBD_CAPTURE_BACKEND", &c.Capture.Backend)
	if v := os.Getenv("HALFKBD_CAPTURE_DEVICES"); v != "" {
		c.Capture.Devices = splitList(v)
	}
	boolean("HALFKBD_SUPPRESS", "capture.suppress", &c.Capture.Suppress)

	boolean("HALFKBD_JOURNAL", "journal.enabled", &c.Journal.Enabled)
	str("HALFKBD_JOURNAL_PATH", &c.Journal.Path)

	boolean("HALFKBD_DBUS", "dbus.enabled", &c.DBus.Enabled)
	str("HALFKBD_DBUS_NAME", &c.DBus.BusName)

	boolean("HALFKBD_METRICS", "metrics.enabled", &c.Metrics.Enabled)
	str("HALFKBD_METRICS_LISTEN", &c.Metrics.Listen)

	str("HALFKBD_LOG_LEVEL", &c.Logging.Level)
	str("HALFKBD_LOG_FORMAT", &c.Logging.Format)
	str("HALFKBD_LOG_OUTPUT", &c.Logging.Output)
	str("HALFKBD_LOG_PATH", &c.Logging.FilePath)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Capture.Devices = append([]string{}, c.Capture.Devices...)
	return &clone
}

// LoggerConfig converts the logging section for logging.New.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	if c.Logging.FilePath != "" {
		lc.FilePath = c.Logging.FilePath
	}
	lc.MaxSize = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.MaxAge = c.Logging.MaxAgeDays
	lc.Compress = c.Logging.Compress
	return lc, nil
}
