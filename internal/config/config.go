package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents tsvalidate configuration options
type Config struct {
	// MaxConcurrency is the maximum number of packages validated at once
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout bounds each install or type-check command (0 = no timeout)
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs and report streams are written
	LogDir string `yaml:"log_dir"`

	// OutputPath is the sandbox root, wiped at the start of every run
	OutputPath string `yaml:"output_path"`

	// TypesPath is the directory holding one sub-directory per package
	TypesPath string `yaml:"types_path"`

	// Scope is the registry scope packages are published under
	Scope string `yaml:"scope"`

	// InstallCommand installs the package under test inside a sandbox
	InstallCommand string `yaml:"install_command"`

	// TypeCheckCommand type-checks a sandbox without emitting output
	TypeCheckCommand string `yaml:"typecheck_command"`

	// AllowStderr accepts stderr output from commands that exit 0
	AllowStderr bool `yaml:"allow_stderr"`

	// HistoryDB is the SQLite run history file (empty disables history)
	HistoryDB string `yaml:"history_db"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:   25,
		Timeout:          10 * time.Minute,
		LogLevel:         "info",
		LogDir:           ".tsvalidate/logs",
		OutputPath:       ".tsvalidate/validate",
		TypesPath:        "types",
		Scope:            "@types",
		InstallCommand:   "npm install --no-audit --no-fund",
		TypeCheckCommand: "npx tsc",
		AllowStderr:      false,
		HistoryDB:        ".tsvalidate/history.db",
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are read as strings so "10m" parses
	type yamlConfig struct {
		MaxConcurrency   int    `yaml:"max_concurrency"`
		Timeout          string `yaml:"timeout"`
		LogLevel         string `yaml:"log_level"`
		LogDir           string `yaml:"log_dir"`
		OutputPath       string `yaml:"output_path"`
		TypesPath        string `yaml:"types_path"`
		Scope            string `yaml:"scope"`
		InstallCommand   string `yaml:"install_command"`
		TypeCheckCommand string `yaml:"typecheck_command"`
		AllowStderr      bool   `yaml:"allow_stderr"`
		HistoryDB        string `yaml:"history_db"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Keys present with a zero value still matter for a few settings
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	present := func(key string) bool {
		_, ok := rawMap[key]
		return ok
	}

	if present("max_concurrency") {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.OutputPath != "" {
		cfg.OutputPath = yamlCfg.OutputPath
	}
	if yamlCfg.TypesPath != "" {
		cfg.TypesPath = yamlCfg.TypesPath
	}
	if yamlCfg.Scope != "" {
		cfg.Scope = yamlCfg.Scope
	}
	if yamlCfg.InstallCommand != "" {
		cfg.InstallCommand = yamlCfg.InstallCommand
	}
	if yamlCfg.TypeCheckCommand != "" {
		cfg.TypeCheckCommand = yamlCfg.TypeCheckCommand
	}
	if present("allow_stderr") {
		cfg.AllowStderr = yamlCfg.AllowStderr
	}
	// An explicit empty history_db turns history off
	if present("history_db") {
		cfg.HistoryDB = yamlCfg.HistoryDB
	}

	return cfg, nil
}

// ConfigPath returns the default config file location inside dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, ".tsvalidate", "config.yaml")
}

// LoadConfigFromDir loads configuration from .tsvalidate/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(ConfigPath(dir))
}

// FlagOverrides carries CLI flag values. Nil fields were not set on the
// command line and leave the configuration untouched.
type FlagOverrides struct {
	MaxConcurrency *int
	Timeout        *time.Duration
	LogDir         *string
	LogLevel       *string
	OutputPath     *string
	TypesPath      *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if f.MaxConcurrency != nil {
		c.MaxConcurrency = *f.MaxConcurrency
	}
	if f.Timeout != nil {
		c.Timeout = *f.Timeout
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.OutputPath != nil {
		c.OutputPath = *f.OutputPath
	}
	if f.TypesPath != nil {
		c.TypesPath = *f.TypesPath
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	if strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("output_path cannot be empty")
	}
	if clean := filepath.Clean(c.OutputPath); clean == "/" || clean == "." {
		return fmt.Errorf("output_path %q would wipe a directory that is not a sandbox root", c.OutputPath)
	}
	if strings.TrimSpace(c.LogDir) == "" {
		return fmt.Errorf("log_dir cannot be empty")
	}
	if strings.TrimSpace(c.TypesPath) == "" {
		return fmt.Errorf("types_path cannot be empty")
	}
	if !strings.HasPrefix(c.Scope, "@") || strings.Contains(c.Scope, "/") {
		return fmt.Errorf("scope must look like @name, got %q", c.Scope)
	}
	if strings.TrimSpace(c.InstallCommand) == "" {
		return fmt.Errorf("install_command cannot be empty")
	}
	if strings.TrimSpace(c.TypeCheckCommand) == "" {
		return fmt.Errorf("typecheck_command cannot be empty")
	}

	return nil
}
