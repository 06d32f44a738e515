// Package config loads client settings from flags, GYMTRACK_* environment
// variables and an optional gymtrack.yaml.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/msomdec/gymtrack/internal/localstore"
)

const (
	EnvPrefix = "GYMTRACK"
	FileName  = "gymtrack"
)

// Keys.
const (
	KeyServerURL      = "server_url"
	KeyDataDir        = "data_dir"
	KeySlotKey        = "slot_key"
	KeyPersistence    = "persistence"
	KeyCompactEvery   = "compact_every"
	KeyPullInterval   = "pull_interval"
	KeyProbeInterval  = "probe_interval"
	KeyRequestTimeout = "request_timeout"
	KeyLogFile        = "log_file"
	KeyLogLevel       = "log_level"
	KeyStatusAddr     = "status_addr"
)

// Persistence strategies.
const (
	PersistSnapshot = "snapshot"
	PersistJournal  = "journal"
)

// Config is the resolved client configuration.
type Config struct {
	ServerURL      string        `mapstructure:"server_url"`
	DataDir        string        `mapstructure:"data_dir"`
	SlotKey        string        `mapstructure:"slot_key"`
	Persistence    string        `mapstructure:"persistence"`
	CompactEvery   int           `mapstructure:"compact_every"`
	PullInterval   time.Duration `mapstructure:"pull_interval"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	LogFile        string        `mapstructure:"log_file"`
	LogLevel       string        `mapstructure:"log_level"`
	StatusAddr     string        `mapstructure:"status_addr"`
}

// New returns a viper instance with defaults, environment binding and the
// config file location set. An explicit file must exist; otherwise
// gymtrack.yaml is looked up in the working directory and the data dir.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	dataDir := defaultDataDir()

	v.SetDefault(KeyServerURL, "http://localhost:3001")
	v.SetDefault(KeyDataDir, dataDir)
	v.SetDefault(KeySlotKey, localstore.DefaultSlotKey)
	v.SetDefault(KeyPersistence, PersistSnapshot)
	v.SetDefault(KeyCompactEvery, localstore.DefaultCompactEvery)
	v.SetDefault(KeyPullInterval, 30*time.Second)
	v.SetDefault(KeyProbeInterval, 15*time.Second)
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStatusAddr, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(dataDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gymtrack")
	}
	return ".gymtrack"
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that would otherwise fail later and obscurely.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: %s must be an http(s) url, got %q", KeyServerURL, c.ServerURL)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: %s is required", KeyDataDir)
	}
	switch c.Persistence {
	case PersistSnapshot, PersistJournal:
	default:
		return fmt.Errorf("config: %s must be %q or %q, got %q",
			KeyPersistence, PersistSnapshot, PersistJournal, c.Persistence)
	}
	if c.PullInterval < time.Second {
		return fmt.Errorf("config: %s must be at least 1s", KeyPullInterval)
	}
	if c.ProbeInterval < time.Second {
		return fmt.Errorf("config: %s must be at least 1s", KeyProbeInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: %s must be positive", KeyRequestTimeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	return l, nil
}

// SlotsPath is the slot store file inside the data dir.
func (c *Config) SlotsPath() string { return filepath.Join(c.DataDir, "slots.db") }

// LogPath is the log file, defaulting into the data dir.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, "gymtrack.log")
}

// Watch reloads the config file on change and hands each valid result to
// onChange. Invalid edits are logged and ignored. It is a no-op when no
// config file was read.
func Watch(v *viper.Viper, logger *slog.Logger, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := Load(v)
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(c)
	})
	v.WatchConfig()
}
