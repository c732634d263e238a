package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ViewerConfig identifies the signed-in viewer on this device.
type ViewerConfig struct {
	UserID          string `mapstructure:"user_id" yaml:"user_id"`
	HomeBranch      string `mapstructure:"home_branch" yaml:"home_branch"`
	Role            string `mapstructure:"role" yaml:"role"`
	SimulatedBranch string `mapstructure:"simulated_branch" yaml:"simulated_branch"`
}

// EventSourceConfig holds the connection settings for the inventory change log.
type EventSourceConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver" yaml:"driver"`

	// DSN is a lib/pq connection string. The password may be omitted and
	// looked up in the system keyring under PasswordKey instead.
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`

	// NotifyChannel is the LISTEN channel fired on every insert.
	NotifyChannel string `mapstructure:"notify_channel" yaml:"notify_channel"`

	// FetchLimit is how many records each refresh pulls.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// Bootstrap installs the tables and notify trigger when missing.
	Bootstrap bool `mapstructure:"bootstrap" yaml:"bootstrap"`
}

// NotificationConfig tunes the refresh loop and the notification surfaces.
type NotificationConfig struct {
	PollIntervalSec int  `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	LedgerSize      int  `mapstructure:"ledger_size" yaml:"ledger_size"`
	ToastLimit      int  `mapstructure:"toast_limit" yaml:"toast_limit"`
	ToastTTLSec     int  `mapstructure:"toast_ttl_sec" yaml:"toast_ttl_sec"`
	ToastMaxAgeSec  int  `mapstructure:"toast_max_age_sec" yaml:"toast_max_age_sec"`
	Sound           bool `mapstructure:"sound" yaml:"sound"`
}

// PollInterval returns the fallback poll interval.
func (c NotificationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// ToastTTL returns how long a toast stays on screen.
func (c NotificationConfig) ToastTTL() time.Duration {
	return time.Duration(c.ToastTTLSec) * time.Second
}

// ToastMaxAge returns the age beyond which a record never toasts.
func (c NotificationConfig) ToastMaxAge() time.Duration {
	return time.Duration(c.ToastMaxAgeSec) * time.Second
}

// StorageConfig locates the device-local state database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	Level      string `mapstructure:"level" yaml:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Viewer        ViewerConfig       `mapstructure:"viewer" yaml:"viewer"`
	EventSource   EventSourceConfig  `mapstructure:"event_source" yaml:"event_source"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Log           LogConfig          `mapstructure:"log" yaml:"log"`
	Display       DisplayConfig      `mapstructure:"display" yaml:"display"`
}

// ViewerContext builds the initial viewer context from the configuration.
func (c *AppConfig) ViewerContext() ViewerContext {
	role := Role(strings.ToLower(strings.TrimSpace(c.Viewer.Role)))
	if role != RoleAdmin {
		role = RoleStaff
	}
	return ViewerContext{
		UserID:          c.Viewer.UserID,
		HomeBranch:      BranchID(c.Viewer.HomeBranch),
		Role:            role,
		SimulatedBranch: BranchID(c.Viewer.SimulatedBranch),
	}
}

// configDir returns ~/.config/toolroom, falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "toolroom")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/toolroom/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Viewer: ViewerConfig{
			Role: string(RoleStaff),
		},
		EventSource: EventSourceConfig{
			Driver:        "postgres",
			NotifyChannel: "inventory_logs",
			FetchLimit:    50,
		},
		Notifications: NotificationConfig{
			PollIntervalSec: 15,
			LedgerSize:      20,
			ToastLimit:      3,
			ToastTTLSec:     5,
			ToastMaxAgeSec:  120,
			Sound:           true,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dir, "device.db"),
		},
		Log: LogConfig{
			Path:       filepath.Join(dir, "toolroom.log"),
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// setDefaults mirrors defaultAppConfig into v so missing keys resolve and
// every key is known to AutomaticEnv.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("viewer.user_id", d.Viewer.UserID)
	v.SetDefault("viewer.home_branch", d.Viewer.HomeBranch)
	v.SetDefault("viewer.role", d.Viewer.Role)
	v.SetDefault("viewer.simulated_branch", d.Viewer.SimulatedBranch)
	v.SetDefault("event_source.driver", d.EventSource.Driver)
	v.SetDefault("event_source.dsn", d.EventSource.DSN)
	v.SetDefault("event_source.password_key", d.EventSource.PasswordKey)
	v.SetDefault("event_source.bootstrap", d.EventSource.Bootstrap)
	v.SetDefault("event_source.notify_channel", d.EventSource.NotifyChannel)
	v.SetDefault("event_source.fetch_limit", d.EventSource.FetchLimit)
	v.SetDefault("notifications.poll_interval_sec", d.Notifications.PollIntervalSec)
	v.SetDefault("notifications.ledger_size", d.Notifications.LedgerSize)
	v.SetDefault("notifications.toast_limit", d.Notifications.ToastLimit)
	v.SetDefault("notifications.toast_ttl_sec", d.Notifications.ToastTTLSec)
	v.SetDefault("notifications.toast_max_age_sec", d.Notifications.ToastMaxAgeSec)
	v.SetDefault("notifications.sound", d.Notifications.Sound)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults are used. TOOLROOM_* environment
// variables override file values (e.g. TOOLROOM_EVENT_SOURCE_DSN).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("toolroom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := defaultAppConfig()
	setDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Zero or negative tunables fall back to defaults.
	n := &cfg.Notifications
	if n.PollIntervalSec <= 0 {
		n.PollIntervalSec = defaults.Notifications.PollIntervalSec
	}
	if n.LedgerSize <= 0 {
		n.LedgerSize = defaults.Notifications.LedgerSize
	}
	if n.ToastLimit <= 0 {
		n.ToastLimit = defaults.Notifications.ToastLimit
	}
	if n.ToastTTLSec <= 0 {
		n.ToastTTLSec = defaults.Notifications.ToastTTLSec
	}
	if n.ToastMaxAgeSec <= 0 {
		n.ToastMaxAgeSec = defaults.Notifications.ToastMaxAgeSec
	}
	if cfg.EventSource.FetchLimit <= 0 {
		cfg.EventSource.FetchLimit = defaults.EventSource.FetchLimit
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("viewer", cfg.Viewer)
	v.Set("event_source", cfg.EventSource)
	v.Set("notifications", cfg.Notifications)
	v.Set("storage", cfg.Storage)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
