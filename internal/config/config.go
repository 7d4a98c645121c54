package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/iot-device-migrator/internal/logger"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// StoreConfig selects where hub jobs are persisted.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// AzureConfig holds tenant level settings.
type AzureConfig struct {
	TenantID      string `yaml:"tenant_id"`
	CentralDomain string `yaml:"central_domain"`
}

// Config holds all configuration (CLI flags + config file).
type Config struct {
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	LogFile      string        `yaml:"log_file"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Store        StoreConfig   `yaml:"store"`
	Azure        AzureConfig   `yaml:"azure"`

	// internal: path to config file (from CLI flag)
	configFile string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dir := ".iot-device-migrator"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, dir)
	}
	return &Config{
		Listen:       ":8080",
		LogLevel:     "info",
		PollInterval: 5 * time.Second,
		Store:        StoreConfig{Backend: StoreFile, Dir: dir},
		Azure:        AzureConfig{CentralDomain: "azureiotcentral.com"},
	}
}

// BindFlags registers the persistent flags. Defaults come from c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&c.Listen, "listen", c.Listen, "HTTP listen address")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Also write logs to this file")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Job status poll interval")
	fs.StringVar(&c.Store.Backend, "store", c.Store.Backend, "Hub job store backend (memory, file, sqlite)")
	fs.StringVar(&c.Store.Dir, "store-dir", c.Store.Dir, "Directory for the file and sqlite stores")
	fs.StringVar(&c.Azure.TenantID, "tenant-id", c.Azure.TenantID, "Azure tenant to authenticate against")
}

// Load overlays the config file, if one was given, and validates the result.
// Flags that were set explicitly take precedence over file values.
func (c *Config) Load(fs *pflag.FlagSet) error {
	if c.configFile != "" {
		if err := c.loadFile(c.configFile, fs); err != nil {
			return err
		}
	}
	return c.Validate()
}

// loadFile reads a YAML config file. Values from the file are only applied
// if the corresponding CLI flag was not explicitly set.
func (c *Config) loadFile(path string, fs *pflag.FlagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	set := func(flag string) bool { return fs != nil && fs.Changed(flag) }

	if !set("listen") && file.Listen != "" {
		c.Listen = file.Listen
	}
	if !set("log-level") && file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if !set("log-file") && file.LogFile != "" {
		c.LogFile = file.LogFile
	}
	if !set("poll-interval") && file.PollInterval != 0 {
		c.PollInterval = file.PollInterval
	}
	if !set("store") && file.Store.Backend != "" {
		c.Store.Backend = file.Store.Backend
	}
	if !set("store-dir") && file.Store.Dir != "" {
		c.Store.Dir = file.Store.Dir
	}
	if !set("tenant-id") && file.Azure.TenantID != "" {
		c.Azure.TenantID = file.Azure.TenantID
	}

	// No flag for this one.
	if file.Azure.CentralDomain != "" {
		c.Azure.CentralDomain = file.Azure.CentralDomain
	}

	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if err := logger.ValidateLevel(c.LogLevel); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if c.Store.Dir == "" {
			return fmt.Errorf("store backend %q needs a directory", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Azure.CentralDomain == "" {
		return fmt.Errorf("azure.central_domain must not be empty")
	}
	return nil
}
