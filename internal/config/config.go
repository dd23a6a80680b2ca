// Package config loads BitTask settings from defaults, an optional TOML
// file and BITTASK_* environment variables, in increasing precedence.
// Command-line flags bound by the caller win over all three.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DaveSongnata/BitTask/internal/store"
)

// EnvPrefix is prepended to every environment override (BITTASK_DB_PATH).
const EnvPrefix = "BITTASK"

// Config is the resolved configuration.
type Config struct {
	DB    DBConfig    `mapstructure:"db"`
	Log   LogConfig   `mapstructure:"log"`
	Sync  SyncConfig  `mapstructure:"sync"`
	Feed  FeedConfig  `mapstructure:"feed"`
	Watch WatchConfig `mapstructure:"watch"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type SyncConfig struct {
	// URL is the server base URL. Empty disables syncing.
	URL             string        `mapstructure:"url"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BatchSize       int           `mapstructure:"batch_size"`
	Interval        time.Duration `mapstructure:"interval"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// Token is the bearer credential for the remote. It only ever comes
	// from the environment or the config file and is never stored.
	Token string `mapstructure:"token"`
}

type FeedConfig struct {
	Port int `mapstructure:"port"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DataDir returns the directory holding the database:
// $XDG_DATA_HOME/bittask, else ~/.local/share/bittask.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "bittask")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "bittask")
	}
	return ".bittask"
}

// ConfigDir returns the directory searched for config.toml.
func ConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "bittask")
	}
	return ".bittask"
}

// New returns a viper instance with every default and the environment
// bindings set. Callers bind flags on it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("db.path", filepath.Join(DataDir(), store.FileName))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("sync.url", "")
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.cleanup_interval", 10*time.Minute)
	v.SetDefault("sync.token", "")
	v.SetDefault("feed.port", 8080)
	v.SetDefault("watch.debounce", 150*time.Millisecond)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and returns the merged configuration. An
// explicit file must exist; the default location is optional.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(ConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DB.Path) == "" {
		problems = append(problems, "db.path is empty")
	}
	if c.Sync.MaxRetries <= 0 {
		problems = append(problems, "sync.max_retries must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		problems = append(problems, "sync.batch_size must be positive")
	}
	if c.Sync.Interval <= 0 || c.Sync.CleanupInterval <= 0 {
		problems = append(problems, "sync intervals must be positive")
	}
	if c.Feed.Port < 0 || c.Feed.Port > 65535 {
		problems = append(problems, fmt.Sprintf("feed.port %d out of range", c.Feed.Port))
	}
	if c.Watch.Debounce <= 0 {
		problems = append(problems, "watch.debounce must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
