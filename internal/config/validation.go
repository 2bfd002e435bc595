package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning reports whether the problem is non-fatal. Input devices may not
// be plugged in yet.
func (e *ValidationError) IsWarning() bool {
	return strings.HasPrefix(e.Field, "capture.devices[")
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrInvalidConfig) hold for any ValidationErrors.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// ValidateConfig returns the fatal problems in c, or nil.
func ValidateConfig(c *Config) error {
	if errs := Check(c).Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// Check returns every problem in c, warnings included.
func Check(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateKeymap(&c.Keymap)...)
	errs = append(errs, validateCapture(&c.Capture)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateDBus(&c.DBus)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateLogging(&c.Logging)...)
	return errs
}

func validateKeymap(k *KeymapConfig) ValidationErrors {
	if strings.TrimSpace(k.Path) == "" {
		return ValidationErrors{{Field: "keymap.path", Message: "keymap path is required"}}
	}
	return nil
}

func validateCapture(c *CaptureConfig) ValidationErrors {
	var errs ValidationErrors

	switch c.Backend {
	case "evdev", "simulated":
	default:
		errs = append(errs, ValidationError{
			Field:   "capture.backend",
			Message: fmt.Sprintf("invalid backend: %s (valid: evdev, simulated)", c.Backend),
		})
	}

	for i, dev := range c.Devices {
		field := fmt.Sprintf("capture.devices[%d]", i)
		if strings.TrimSpace(dev) == "" {
			errs = append(errs, ValidationError{Field: "capture.devices", Message: "device path cannot be empty"})
			continue
		}
		if _, err := os.Stat(dev); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("device %s not found", dev)})
		}
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if j.Enabled && strings.TrimSpace(j.Path) == "" {
		errs = append(errs, ValidationError{
			Field:   "journal.path",
			Message: "journal path is required when the journal is enabled",
		})
	}
	if j.Buffer < 0 {
		errs = append(errs, ValidationError{
			Field:   "journal.buffer",
			Message: "buffer cannot be negative",
		})
	}

	return errs
}

func validateDBus(d *DBusConfig) ValidationErrors {
	if !d.Enabled {
		return nil
	}
	var errs ValidationErrors

	if !isValidBusName(d.BusName) {
		errs = append(errs, ValidationError{
			Field:   "dbus.bus_name",
			Message: fmt.Sprintf("invalid well-known bus name: %q", d.BusName),
		})
	}
	if !dbus.ObjectPath(d.ObjectPath).IsValid() {
		errs = append(errs, ValidationError{
			Field:   "dbus.object_path",
			Message: fmt.Sprintf("invalid object path: %q", d.ObjectPath),
		})
	}

	return errs
}

// isValidBusName checks a well-known name: two or more dot separated
// elements of [A-Za-z0-9_-], none starting with a digit, at most 255 bytes.
func isValidBusName(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	elems := strings.Split(name, ".")
	if len(elems) < 2 {
		return false
	}
	for _, e := range elems {
		if e == "" || (e[0] >= '0' && e[0] <= '9') {
			return false
		}
		for _, r := range e {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			default:
				return false
			}
		}
	}
	return true
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		return ValidationErrors{{
			Field:   "metrics.listen",
			Message: fmt.Sprintf("invalid listen address %q: %v", m.Listen, err),
		}}
	}
	return nil
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both, discard)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}
