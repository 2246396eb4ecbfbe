package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Standard locations for guaclink configuration.
const (
	EnvPrefix       = "GUACLINK_"
	AppDir          = "guaclink"
	LocalConfigName = ".guaclink.yaml"
	DotEnvName      = ".env"
)

// ResolverConfig configures the hierarchical config resolver.
type ResolverConfig struct {
	// EnvPrefix is prepended to key names for environment variable lookup.
	// With "GUACLINK_", key "ssh_port" maps to GUACLINK_SSH_PORT.
	EnvPrefix string

	// GlobalConfigDir is the name of the directory under ~/.config/
	// where the global config is stored.
	GlobalConfigDir string

	// GlobalConfigFile is the filename for global config.
	// Defaults to "config.yaml" if empty.
	GlobalConfigFile string

	// LocalConfigName is the filename for local config in the git root,
	// or in the working directory outside a repository.
	LocalConfigName string

	// DotEnvName is the dotenv file read from the working directory.
	// Entries use the same names as environment variables.
	DotEnvName string

	// Defaults provides the default values for configuration keys.
	Defaults map[string]string

	// ValidGlobalKeys lists keys that can be set in global config.
	// If nil, all keys are valid.
	ValidGlobalKeys []string

	// ValidLocalKeys lists keys that can be set in local config.
	// If nil, all keys are valid.
	ValidLocalKeys []string

	// GitRootFinder is a function that finds the git root directory.
	// If nil, uses a simple git root detection.
	GitRootFinder func(startDir string) (string, error)

	// ErrWriter is where warnings are written.
	// Defaults to os.Stderr if nil.
	ErrWriter io.Writer
}

// DefaultResolverConfig returns the guaclink resolver settings.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		EnvPrefix:       EnvPrefix,
		GlobalConfigDir: AppDir,
		LocalConfigName: LocalConfigName,
		DotEnvName:      DotEnvName,
		Defaults:        Defaults(),
		ValidGlobalKeys: Keys,
		ValidLocalKeys:  LocalKeys(),
	}
}

func (c ResolverConfig) globalConfigFile() string {
	if c.GlobalConfigFile != "" {
		return c.GlobalConfigFile
	}
	return "config.yaml"
}

// Resolver handles hierarchical configuration resolution.
type Resolver struct {
	config     ResolverConfig
	globalPath string
	localPath  string
	dotEnvPath string
	gitRoot    string

	// Warnings collects non-fatal issues during resolution.
	Warnings []string
}

// NewResolver creates a new configuration resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	resolver := &Resolver{
		config: cfg,
	}

	if cfg.ErrWriter == nil {
		resolver.config.ErrWriter = os.Stderr
	}

	workDir, err := filepath.Abs(".")
	if err != nil {
		workDir = "."
	}

	if cfg.GitRootFinder != nil {
		if root, err := cfg.GitRootFinder("."); err == nil && root != "" {
			resolver.gitRoot = root
		}
	} else {
		resolver.gitRoot = findGitRoot(".")
	}

	if cfg.LocalConfigName != "" {
		localDir := resolver.gitRoot
		if localDir == "" {
			localDir = workDir
		}
		resolver.localPath = filepath.Join(localDir, cfg.LocalConfigName)
	}

	if cfg.DotEnvName != "" {
		resolver.dotEnvPath = filepath.Join(workDir, cfg.DotEnvName)
	}

	if cfg.GlobalConfigDir != "" {
		if home, err := os.UserHomeDir(); err == nil {
			resolver.globalPath = filepath.Join(
				home, ".config", cfg.GlobalConfigDir, cfg.globalConfigFile(),
			)
		}
	}

	return resolver
}

// NewResolverWithPaths creates a resolver with explicit file paths.
// An empty path disables that layer.
func NewResolverWithPaths(cfg ResolverConfig, globalPath, localPath, dotEnvPath string) *Resolver {
	resolver := &Resolver{
		config:     cfg,
		globalPath: globalPath,
		localPath:  localPath,
		dotEnvPath: dotEnvPath,
	}

	if cfg.ErrWriter == nil {
		resolver.config.ErrWriter = os.Stderr
	}

	return resolver
}

func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.config.ErrWriter != nil {
		fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
	}
}

// Resolved holds the final merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or empty string if not set.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns the source of a key's value.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// GetWithSource returns both the value and its source.
func (c *Resolved) GetWithSource(key string) (string, Source) {
	return c.values[key], c.sources[key]
}

// All returns a copy of all key-value pairs.
func (c *Resolved) All() map[string]string {
	result := make(map[string]string, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Keys returns all configuration keys.
func (c *Resolved) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}

// Resolve builds the final config by merging all sources.
// Priority (highest to lowest): env > .env > local > global > defaults.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}

	r.applyDefaults(cfg)
	r.applyFile(cfg, r.globalPath, r.config.ValidGlobalKeys, SourceGlobal)
	r.applyFile(cfg, r.localPath, r.config.ValidLocalKeys, SourceLocal)
	r.applyDotEnv(cfg)
	r.applyEnv(cfg)

	return cfg
}

// ResolveWithFlags resolves config and applies flag overrides.
// Empty flag values are ignored.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()

	for key, value := range flags {
		if value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceFlag
		}
	}

	return cfg
}

func (r *Resolver) applyDefaults(cfg *Resolved) {
	for key, value := range r.config.Defaults {
		cfg.values[key] = value
		cfg.sources[key] = SourceDefault
	}
}

func (r *Resolver) applyFile(cfg *Resolved, path string, validKeys []string, source Source) {
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist - not an error
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return
	}

	for key, value := range parsed {
		if len(validKeys) > 0 && !contains(validKeys, key) {
			r.warn(fmt.Sprintf("ignoring key %q in %s", key, path))
			continue
		}
		if strVal := toString(value); strVal != "" {
			cfg.values[key] = strVal
			cfg.sources[key] = source
		}
	}
}

func (r *Resolver) applyDotEnv(cfg *Resolved) {
	if r.dotEnvPath == "" || r.config.EnvPrefix == "" {
		return
	}

	vars, err := godotenv.Read(r.dotEnvPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.warn(fmt.Sprintf("could not parse %s: %v", r.dotEnvPath, err))
		}
		return
	}

	for _, key := range r.knownKeys(cfg) {
		if value := vars[r.envName(key)]; value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceDotEnv
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	if r.config.EnvPrefix != "" {
		for _, key := range r.knownKeys(cfg) {
			if value := os.Getenv(r.envName(key)); value != "" {
				cfg.values[key] = value
				cfg.sources[key] = SourceEnv
			}
		}
	}

	// Also check standard NO_COLOR env var (always, regardless of prefix)
	if _, hasNoColor := os.LookupEnv("NO_COLOR"); hasNoColor {
		cfg.values[KeyNoColor] = "true"
		cfg.sources[KeyNoColor] = SourceEnv
	}
}

// knownKeys returns every key that may be set from the environment.
func (r *Resolver) knownKeys(cfg *Resolved) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range r.config.ValidGlobalKeys {
		add(k)
	}
	for k := range r.config.Defaults {
		add(k)
	}
	for k := range cfg.values {
		add(k)
	}
	return keys
}

// EnvName returns the environment variable consulted for key.
func (r *Resolver) EnvName(key string) string {
	return r.envName(key)
}

func (r *Resolver) envName(key string) string {
	return r.config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// GitRoot returns the detected git root directory.
func (r *Resolver) GitRoot() string {
	return r.gitRoot
}

// GlobalPath returns the path to the global config file.
func (r *Resolver) GlobalPath() string {
	return r.globalPath
}

// LocalPath returns the path to the local config file.
func (r *Resolver) LocalPath() string {
	return r.localPath
}

// DotEnvPath returns the path to the dotenv file.
func (r *Resolver) DotEnvPath() string {
	return r.dotEnvPath
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}

// findGitRoot finds the git root by looking for .git directory.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
