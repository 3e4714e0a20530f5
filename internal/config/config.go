package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ning0612/Downsort/internal/core/checksum"
	"github.com/Ning0612/Downsort/internal/core/enumerate"
	"github.com/Ning0612/Downsort/internal/core/fingerprint"
	"github.com/Ning0612/Downsort/internal/core/grouping"
	"github.com/Ning0612/Downsort/internal/domain"
	"github.com/Ning0612/Downsort/internal/logger"
)

// Config represents the complete configuration for downsort
type Config struct {
	Scan        ScanConfig        `mapstructure:"scan"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
	Grouping    GroupingConfig    `mapstructure:"grouping"`
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	History     HistoryConfig     `mapstructure:"history"`
}

// ScanConfig controls directory enumeration
type ScanConfig struct {
	// Root is the directory to scan; defaults to the user's Downloads folder
	Root          string   `mapstructure:"root"`
	Recursive     bool     `mapstructure:"recursive"`
	IncludeHidden bool     `mapstructure:"include_hidden"`
	Ignore        []string `mapstructure:"ignore"`
}

// FingerprintConfig controls content comparison
type FingerprintConfig struct {
	Algorithm  string `mapstructure:"algorithm"`
	HeadBytes  int64  `mapstructure:"head_bytes"`
	MinSize    int64  `mapstructure:"min_size"`
	MaxSize    int64  `mapstructure:"max_size"`
	Workers    int    `mapstructure:"workers"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// GroupingConfig controls date bucketing
type GroupingConfig struct {
	DateMode string `mapstructure:"date_mode"`
}

// LogConfig mirrors logger.Config in file form
type LogConfig struct {
	Level       string        `mapstructure:"level"`
	Format      string        `mapstructure:"format"`
	File        LogFileConfig `mapstructure:"file"`
	RedactPaths bool          `mapstructure:"redact_paths"`
}

// LogFileConfig configures rotated file output
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig configures the HTTP boundary
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// HistoryConfig configures the scan history database
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Default returns the configuration used when no file is found
func Default() *Config {
	fp := fingerprint.DefaultOptions()
	return &Config{
		Scan: ScanConfig{
			Root:          DefaultRoot(),
			IncludeHidden: true,
		},
		Fingerprint: FingerprintConfig{
			Algorithm:  string(fp.Algorithm),
			HeadBytes:  fp.HeadBytes,
			MinSize:    fp.MinSize,
			MaxSize:    fp.MaxSize,
			Workers:    fp.Workers,
			BufferSize: fp.BufferSize,
		},
		Grouping: GroupingConfig{DateMode: string(grouping.DateModeRelative)},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File: LogFileConfig{
				Path:       filepath.Join(DefaultDataDir(), "logs", "downsort.log"),
				MaxSizeMB:  10,
				MaxAgeDays: 30,
				MaxBackups: 3,
			},
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:7878",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		History: HistoryConfig{Dir: DefaultDataDir()},
	}
}

// DefaultRoot returns the user's Downloads directory.
// XDG_DOWNLOAD_DIR wins when set.
func DefaultRoot() string {
	if dir := os.Getenv("XDG_DOWNLOAD_DIR"); dir != "" {
		return ExpandPath(dir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Downloads")
	}
	return "."
}

// DefaultDataDir returns where downsort keeps logs and history
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "downsort")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".downsort")
	}
	return ".downsort"
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Scan.Root) == "" {
		return fmt.Errorf("%w: scan.root cannot be empty", domain.ErrConfigInvalid)
	}
	for _, p := range c.Scan.Ignore {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("%w: scan.ignore pattern %q: %v", domain.ErrConfigInvalid, p, err)
		}
	}

	fp := c.Fingerprint
	if !checksum.IsSupported(checksum.Algorithm(fp.Algorithm)) {
		return fmt.Errorf("%w: fingerprint.algorithm: %s", domain.ErrConfigInvalid, fp.Algorithm)
	}
	if fp.HeadBytes <= 0 {
		return fmt.Errorf("%w: fingerprint.head_bytes must be positive", domain.ErrConfigInvalid)
	}
	if fp.MinSize < 0 || fp.MaxSize < 0 {
		return fmt.Errorf("%w: fingerprint sizes cannot be negative", domain.ErrConfigInvalid)
	}
	if fp.MaxSize > 0 && fp.MaxSize < fp.MinSize {
		return fmt.Errorf("%w: fingerprint.max_size below min_size", domain.ErrConfigInvalid)
	}
	if fp.Workers < 0 || fp.BufferSize < 0 {
		return fmt.Errorf("%w: fingerprint workers and buffer_size cannot be negative", domain.ErrConfigInvalid)
	}

	if !grouping.DateMode(c.Grouping.DateMode).IsValid() {
		return fmt.Errorf("%w: grouping.date_mode: %s", domain.ErrConfigInvalid, c.Grouping.DateMode)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", domain.ErrConfigInvalid, err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("%w: log.format: %v", domain.ErrConfigInvalid, err)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path required when file logging is enabled", domain.ErrConfigInvalid)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("%w: server timeouts cannot be negative", domain.ErrConfigInvalid)
	}

	if c.History.Enabled && c.History.Dir == "" {
		return fmt.Errorf("%w: history.dir required when history is enabled", domain.ErrConfigInvalid)
	}

	return nil
}

// EnumerateOptions returns the enumerator settings
func (c *Config) EnumerateOptions() enumerate.Options {
	return enumerate.Options{
		Recursive:     c.Scan.Recursive,
		IncludeHidden: c.Scan.IncludeHidden,
		Ignore:        c.Scan.Ignore,
	}
}

// FingerprintOptions returns the fingerprint engine settings
func (c *Config) FingerprintOptions() fingerprint.Options {
	return fingerprint.Options{
		Algorithm:  checksum.Algorithm(c.Fingerprint.Algorithm),
		HeadBytes:  c.Fingerprint.HeadBytes,
		MinSize:    c.Fingerprint.MinSize,
		MaxSize:    c.Fingerprint.MaxSize,
		Workers:    c.Fingerprint.Workers,
		BufferSize: c.Fingerprint.BufferSize,
	}
}

// LoggerConfig converts the log section into a logger.Config writing to stderr
// and, when enabled, to a rotated file
func (c *Config) LoggerConfig() logger.Config {
	level, _ := logger.ParseLevel(c.Log.Level)
	format, _ := logger.ParseFormat(c.Log.Format)

	cfg := logger.Config{
		Level:       level,
		Format:      format,
		Outputs:     []logger.OutputConfig{{Type: logger.OutputStderr}},
		RedactPaths: c.Log.RedactPaths,
		File: logger.FileConfig{
			Enabled:    c.Log.File.Enabled,
			Path:       ExpandPath(c.Log.File.Path),
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			MaxBackups: c.Log.File.MaxBackups,
			Compress:   c.Log.File.Compress,
		},
	}
	if c.Log.File.Enabled {
		cfg.Outputs = append(cfg.Outputs, logger.OutputConfig{Type: logger.OutputFile})
	}
	return cfg
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	// Expand environment variables
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
