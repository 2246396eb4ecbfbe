package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Save errors.
var (
	ErrUnknownKey       = errors.New("unknown config key")
	ErrSecretInLocal    = errors.New("credentials cannot be stored in the local config")
	ErrNoGlobalDir      = errors.New("global config directory not configured")
	ErrNoLocalConfig    = errors.New("local config name not configured")
	ErrLocalDirRequired = errors.New("local config directory is required")
)

// SaveConfig writes configuration values back to the config files.
type SaveConfig struct {
	// GlobalConfigDir is the directory under ~/.config/ for global config.
	GlobalConfigDir string

	// GlobalConfigFile is the filename. Defaults to "config.yaml".
	GlobalConfigFile string

	// LocalConfigName is the filename for local config.
	LocalConfigName string

	// ValidGlobalKeys lists keys that can be set in global config.
	ValidGlobalKeys []string

	// ValidLocalKeys lists keys that can be set in local config.
	ValidLocalKeys []string
}

// DefaultSaveConfig returns the guaclink save settings.
func DefaultSaveConfig() SaveConfig {
	return SaveConfig{
		GlobalConfigDir: AppDir,
		LocalConfigName: LocalConfigName,
		ValidGlobalKeys: Keys,
		ValidLocalKeys:  LocalKeys(),
	}
}

func (c SaveConfig) globalConfigFile() string {
	if c.GlobalConfigFile != "" {
		return c.GlobalConfigFile
	}
	return "config.yaml"
}

// GlobalPath returns the global config file path.
func (c SaveConfig) GlobalPath() (string, error) {
	if c.GlobalConfigDir == "" {
		return "", ErrNoGlobalDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", c.GlobalConfigDir, c.globalConfigFile()), nil
}

// SaveGlobal saves a key-value pair to the global config file.
// The file is created with owner-only permissions since it may hold
// credentials.
func (c SaveConfig) SaveGlobal(key, value string) error {
	if len(c.ValidGlobalKeys) > 0 && !contains(c.ValidGlobalKeys, key) {
		return fmt.Errorf("%w: %s\n\nValid keys: %s",
			ErrUnknownKey, key, strings.Join(c.ValidGlobalKeys, ", "))
	}

	configPath, err := c.GlobalPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return err
	}

	return writeKey(configPath, key, value, 0o600)
}

// SaveLocal saves a key-value pair to the local config file in dir.
// Secret keys are refused.
func (c SaveConfig) SaveLocal(dir, key, value string) error {
	if dir == "" {
		return ErrLocalDirRequired
	}
	if c.LocalConfigName == "" {
		return ErrNoLocalConfig
	}
	if IsSecret(key) {
		return fmt.Errorf("%w: %s", ErrSecretInLocal, key)
	}
	if len(c.ValidLocalKeys) > 0 && !contains(c.ValidLocalKeys, key) {
		return fmt.Errorf("%w: %s\n\nValid keys: %s",
			ErrUnknownKey, key, strings.Join(c.ValidLocalKeys, ", "))
	}

	// Local config is shared and should be readable
	return writeKey(filepath.Join(dir, c.LocalConfigName), key, value, 0o644)
}

// DeleteGlobalKey removes a key from the global config.
func (c SaveConfig) DeleteGlobalKey(key string) error {
	configPath, err := c.GlobalPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil // Nothing to delete
	}

	var existing map[string]interface{}
	if err := yaml.Unmarshal(data, &existing); err != nil {
		return nil
	}

	delete(existing, key)

	data, err = yaml.Marshal(existing)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0o600)
}

// writeKey merges key into the YAML file at path. A malformed file is
// replaced.
func writeKey(path, key, value string, perm os.FileMode) error {
	var existing map[string]interface{}
	if data, readErr := os.ReadFile(path); readErr == nil {
		_ = yaml.Unmarshal(data, &existing)
	}
	if existing == nil {
		existing = make(map[string]interface{})
	}

	existing[key] = parseValue(value)

	data, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, perm) //nolint:gosec
}

// parseValue converts string values to appropriate types for YAML.
func parseValue(value string) interface{} {
	lower := strings.ToLower(value)
	if lower == "true" {
		return true
	}
	if lower == "false" {
		return false
	}
	return value
}
