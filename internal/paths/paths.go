// Package paths resolves where the gazetteer keeps its configuration and its
// store. Each location is taken from the first source that sets it: command
// flag, config.yaml (data only), environment, then a default.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName = "gazetteer"

	// DefaultDataDirName is the data directory created in the working
	// directory when nothing else names one.
	DefaultDataDirName = ".gazetteer-db"

	// ConfigFileName is the configuration file inside the config directory.
	ConfigFileName = "config.yaml"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "GAZETTEER_CONFIG_DIR"
	EnvDataDir   = "GAZETTEER_DATA_DIR"
)

// userConfigDir is replaced in tests.
var userConfigDir = os.UserConfigDir

// DefaultConfigDir returns the per-user configuration directory:
// $XDG_CONFIG_HOME/gazetteer or ~/.config/gazetteer on Linux,
// ~/Library/Application Support/gazetteer on macOS and %AppData%\gazetteer
// on Windows.
func DefaultConfigDir() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// ResolveConfigDir returns flag, else $GAZETTEER_CONFIG_DIR, else
// DefaultConfigDir. Overrides are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstSet(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns flag, else the data_dir of config.yaml, else
// $GAZETTEER_DATA_DIR, else DefaultDataDirName in the working directory.
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir := firstSet(flag, configValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return filepath.Abs(DefaultDataDirName)
}

// ConfigFile returns the path of config.yaml in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
