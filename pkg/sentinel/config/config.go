// Package config loads sentinel settings from the YAML config file and
// SENTINEL_ environment variables, and keeps mutable host state (last check
// and sweep times) in a separate state file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// JournalConfig configures run history.
type JournalConfig struct {
	Enabled       bool `mapstructure:"enabled" yaml:"enabled"`
	RetentionDays int  `mapstructure:"retention_days" yaml:"retention_days"`
}

// WatchConfig configures `sentinel watch`.
type WatchConfig struct {
	AutoSweep bool   `mapstructure:"auto_sweep" yaml:"auto_sweep"`
	Debounce  string `mapstructure:"debounce" yaml:"debounce"`
}

// Config is the application configuration.
type Config struct {
	CheckSizeFraction float64       `mapstructure:"check_size_fraction" yaml:"check_size_fraction"`
	SweepIntervalDays int           `mapstructure:"sweep_interval_days" yaml:"sweep_interval_days"`
	SafetyMargin      string        `mapstructure:"safety_margin" yaml:"safety_margin"`
	ChunkSize         string        `mapstructure:"chunk_size" yaml:"chunk_size"`
	MaxBatchSize      string        `mapstructure:"max_batch_size" yaml:"max_batch_size"`
	DataDir           string        `mapstructure:"data_dir" yaml:"data_dir"`
	Journal           JournalConfig `mapstructure:"journal" yaml:"journal"`
	Watch             WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Logging           LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("check_size_fraction", DefaultCheckSizeFraction)
	v.SetDefault("sweep_interval_days", DefaultSweepIntervalDays)
	v.SetDefault("safety_margin", DefaultSafetyMargin)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("max_batch_size", DefaultMaxBatchSize)
	v.SetDefault("data_dir", "")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.retention_days", DefaultJournalRetentionDays)

	v.SetDefault("watch.auto_sweep", true)
	v.SetDefault("watch.debounce", DefaultWatchDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MiB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.components", map[string]string{
		"check":    "info",
		"manifest": "info",
		"sweep":    "info",
		"watcher":  "warn",
	})
}

// New returns a viper instance with sentinel's search paths, environment
// binding and defaults. The config file has not been read yet.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// Load reads $XDG_CONFIG_HOME/sentinel/config.yaml (if present) and
// SENTINEL_* environment variables over the defaults.
func Load() (*Config, error) {
	return LoadFrom(New())
}

// LoadFrom reads the config file known to v, if any, and decodes it. A
// missing file is not an error.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and sizes.
func (c *Config) Validate() error {
	if c.CheckSizeFraction < 0 || c.CheckSizeFraction > 1 {
		return fmt.Errorf("%w: check_size_fraction %v not in [0, 1]", ErrInvalidConfig, c.CheckSizeFraction)
	}
	if c.SweepIntervalDays < 1 {
		return fmt.Errorf("%w: sweep_interval_days must be at least 1", ErrInvalidConfig)
	}
	for key, val := range map[string]string{
		"safety_margin":  c.SafetyMargin,
		"chunk_size":     c.ChunkSize,
		"max_batch_size": c.MaxBatchSize,
	} {
		if _, err := types.ParseSize(val); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("%w: watch.debounce: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func mustSize(s string) int64 {
	n, _ := types.ParseSize(s)
	return n
}

// SafetyMarginBytes returns the parsed safety margin.
func (c *Config) SafetyMarginBytes() int64 { return mustSize(c.SafetyMargin) }

// ChunkBytes returns the parsed chunk size.
func (c *Config) ChunkBytes() int { return int(mustSize(c.ChunkSize)) }

// MaxBatchBytes returns the parsed batch bound.
func (c *Config) MaxBatchBytes() int64 { return mustSize(c.MaxBatchSize) }

// WatchDebounce returns the parsed debounce, or zero.
func (c *Config) WatchDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// ManifestDir returns where the manifest database lives.
func (c *Config) ManifestDir() string {
	return filepath.Join(c.dataDir(), "manifests")
}

// JournalDir returns where run history is written.
func (c *Config) JournalDir() string {
	return filepath.Join(c.dataDir(), "journal")
}

// StatePath returns the host state file.
func (c *Config) StatePath() string {
	return filepath.Join(c.dataDir(), "state.yaml")
}

// LockDir returns where per-drive lock files are created.
func (c *Config) LockDir() string {
	return filepath.Join(c.dataDir(), "locks")
}

func (c *Config) dataDir() string {
	if c.DataDir != "" {
		if p, err := ExpandPath(c.DataDir); err == nil {
			return p
		}
		return c.DataDir
	}
	return DataDir()
}

// ConfigDir returns $XDG_CONFIG_HOME/sentinel.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sentinel")
	}
	return filepath.Join(xdg.ConfigHome, "sentinel")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns $XDG_DATA_HOME/sentinel.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sentinel")
	}
	return filepath.Join(xdg.DataHome, "sentinel")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// WriteDefault writes a commented default config file. It does nothing if
// the file exists and reports whether it wrote one.
func WriteDefault() (bool, error) {
	path := ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}

	content := fmt.Sprintf(`# Sentinel configuration

# Share of drive capacity tested by a quick check (0 = recommend by capacity)
check_size_fraction: %.2f

# Days between full sweeps
sweep_interval_days: %d

# Free space never written by a check or sweep
safety_margin: %s

# Read/write unit and largest single test file
chunk_size: %s
max_batch_size: %s

# Host data (manifests, state, history). Empty uses $XDG_DATA_HOME/sentinel
data_dir: ""

journal:
  enabled: true
  retention_days: %d

watch:
  # Run a full sweep when a newly mounted drive is due
  auto_sweep: true
  debounce: %s

logging:
  # debug, info, warn, error
  level: info
  # Empty uses $XDG_STATE_HOME/sentinel/sentinel.log
  path: ""
  rotation:
    max_size: 10MiB
    max_age: 30
    max_backups: 5
  components:
    check: info
    manifest: info
    sweep: info
    watcher: warn
`, DefaultCheckSizeFraction, DefaultSweepIntervalDays, DefaultSafetyMargin,
		DefaultChunkSize, DefaultMaxBatchSize, DefaultJournalRetentionDays, DefaultWatchDebounce)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("writing default config: %w", err)
	}
	return true, nil
}

// settable lists the keys `config set` accepts.
var settable = map[string]bool{
	"check_size_fraction":    true,
	"sweep_interval_days":    true,
	"safety_margin":          true,
	"chunk_size":             true,
	"max_batch_size":         true,
	"data_dir":               true,
	"journal.enabled":        true,
	"journal.retention_days": true,
	"watch.auto_sweep":       true,
	"watch.debounce":         true,
	"logging.level":          true,
}

// ErrUnknownKey is returned by Set for keys it does not manage.
var ErrUnknownKey = errors.New("unknown config key")

// Set updates one key in the config file, creating the file from defaults if
// needed. The resulting configuration is validated before it is written.
func Set(key, value string) error {
	if !settable[key] {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if _, err := WriteDefault(); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath())
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	v.Set(key, typed(value))

	check := viper.New()
	SetDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	var cfg Config
	if err := check.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// typed converts a command-line value so the written YAML keeps numbers and
// booleans unquoted.
func typed(value string) interface{} {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
