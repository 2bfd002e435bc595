package config

import (
	"os"
	"path/filepath"
)

// Dir returns the base halfkbd directory, ~/.halfkbd unless HALFKBD_DIR is
// set.
func Dir() string {
	if dir := os.Getenv("HALFKBD_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".halfkbd"
	}
	return filepath.Join(home, ".halfkbd")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// SupportedConfigFormats returns the accepted config file extensions.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns HALFKBD_CONFIG if set, otherwise the first
// config.<ext> found in the working directory or Dir. It returns "" when
// there is none.
func FindConfigFile() string {
	if path := os.Getenv("HALFKBD_CONFIG"); path != "" {
		return path
	}

	for _, dir := range []string{".", Dir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
