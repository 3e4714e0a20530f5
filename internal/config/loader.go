package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/Downsort/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. DOWNSORT_SCAN_ROOT
const EnvPrefix = "DOWNSORT"

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	// Add user config directory
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "downsort"))
	}

	// Add home directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "downsort"))
		paths = append(paths, filepath.Join(homeDir, ".downsort"))
	}

	return paths
}

// newViper returns a viper instance seeded with Default() and env overrides
func newViper() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("scan.root", d.Scan.Root)
	v.SetDefault("scan.recursive", d.Scan.Recursive)
	v.SetDefault("scan.include_hidden", d.Scan.IncludeHidden)
	v.SetDefault("scan.ignore", []string{})

	v.SetDefault("fingerprint.algorithm", d.Fingerprint.Algorithm)
	v.SetDefault("fingerprint.head_bytes", d.Fingerprint.HeadBytes)
	v.SetDefault("fingerprint.min_size", d.Fingerprint.MinSize)
	v.SetDefault("fingerprint.max_size", d.Fingerprint.MaxSize)
	v.SetDefault("fingerprint.workers", d.Fingerprint.Workers)
	v.SetDefault("fingerprint.buffer_size", d.Fingerprint.BufferSize)

	v.SetDefault("grouping.date_mode", d.Grouping.DateMode)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.redact_paths", d.Log.RedactPaths)
	v.SetDefault("log.file.enabled", d.Log.File.Enabled)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.compress", d.Log.File.Compress)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.dir", d.History.Dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads and parses a configuration file
// If path is empty, searches default locations for config.yaml
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		// Use specific file
		v.SetConfigFile(path)
	} else {
		// Search default paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrConfigNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

// LoadOrDefault behaves like Load but falls back to defaults (with env
// overrides) when no config file exists
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, domain.ErrConfigNotFound) && path == "" {
		return decode(newViper())
	}
	return cfg, err
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	cfg.Scan.Root = ExpandPath(cfg.Scan.Root)
	cfg.History.Dir = ExpandPath(cfg.History.Dir)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
