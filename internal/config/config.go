// Package config loads focuslock configuration from defaults, an optional
// TOML file, FOCUSLOCK_* environment variables and flag overrides, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix (FOCUSLOCK_LOCK_TICK_INTERVAL, ...).
const EnvPrefix = "FOCUSLOCK"

// Config is the full daemon and CLI configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Launcher LauncherConfig `mapstructure:"launcher"`
	Lock     LockConfig     `mapstructure:"lock"`
	DND      DNDConfig      `mapstructure:"dnd"`
	Store    StoreConfig    `mapstructure:"store"`
	Control  ControlConfig  `mapstructure:"control"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Watchdog WatchdogConfig `mapstructure:"watchdog"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Input    InputConfig    `mapstructure:"input"`
	Log      LogConfig      `mapstructure:"log"`
}

// AppConfig identifies the locking app on the device.
type AppConfig struct {
	Package              string `mapstructure:"package"`
	Activity             string `mapstructure:"activity"`
	NotificationListener string `mapstructure:"notification_listener"`
}

// ChannelConfig configures the privileged command channel.
type ChannelConfig struct {
	Prefix       string        `mapstructure:"prefix"`
	ProbeCommand string        `mapstructure:"probe_command"`
	ProbeTTL     time.Duration `mapstructure:"probe_ttl"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LauncherConfig names the launcher used when no original was recorded.
type LauncherConfig struct {
	FallbackPackage   string `mapstructure:"fallback_package"`
	FallbackComponent string `mapstructure:"fallback_component"`
}

// LockConfig controls the countdown task.
type LockConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	IdleInterval time.Duration `mapstructure:"idle_interval"`
}

// DNDConfig bounds the notification-policy permission wait.
type DNDConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollAttempts int           `mapstructure:"poll_attempts"`
}

// StoreConfig selects the lock store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// ControlConfig configures the local control API.
type ControlConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// WatchdogConfig throttles foreground re-assertion.
type WatchdogConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// MonitorConfig controls the polling signal sources.
type MonitorConfig struct {
	ForegroundInterval   time.Duration `mapstructure:"foreground_interval"`
	NotificationInterval time.Duration `mapstructure:"notification_interval"`
	AllowPackages        []string      `mapstructure:"allow_packages"`
}

// InputConfig controls input-host readiness tracking.
type InputConfig struct {
	HostTTL time.Duration `mapstructure:"host_ttl"`
}

// LogConfig controls daemon logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigPath is an explicit TOML file. Empty uses <data_dir>/config.toml.
	ConfigPath string
	// DataDir is the default data directory (from the exec mode).
	DataDir string
	// FlagOverrides are applied last (highest precedence).
	FlagOverrides map[string]any
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.package", "com.focusd.locker")
	v.SetDefault("app.activity", "com.focusd.locker.MainActivity")
	v.SetDefault("app.notification_listener", "com.focusd.locker/com.focusd.locker.NotificationBlocker")

	v.SetDefault("channel.prefix", "sh -c")
	v.SetDefault("channel.probe_command", "id")
	v.SetDefault("channel.probe_ttl", 5*time.Second)
	v.SetDefault("channel.timeout", 15*time.Second)

	v.SetDefault("launcher.fallback_package", "com.android.launcher3")
	v.SetDefault("launcher.fallback_component", "com.android.launcher3.Launcher")

	v.SetDefault("lock.tick_interval", 500*time.Millisecond)
	v.SetDefault("lock.idle_interval", time.Second)

	v.SetDefault("dnd.poll_interval", 200*time.Millisecond)
	v.SetDefault("dnd.poll_attempts", 10)

	v.SetDefault("store.backend", "encrypted")
	v.SetDefault("store.data_dir", "")

	v.SetDefault("control.addr", "127.0.0.1:7781")
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("watchdog.min_interval", time.Second)

	v.SetDefault("monitor.foreground_interval", time.Second)
	v.SetDefault("monitor.notification_interval", 2*time.Second)
	v.SetDefault("monitor.allow_packages", []string{})

	v.SetDefault("input.host_ttl", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load builds the configuration.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)
	if opts.DataDir != "" {
		v.SetDefault("store.data_dir", opts.DataDir)
	}

	path := opts.ConfigPath
	if path == "" && opts.DataDir != "" {
		path = opts.DataDir + string(os.PathSeparator) + "config.toml"
	}
	if err := mergeConfigFile(v, path); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeConfigFile merges a TOML file. Empty or missing paths are a no-op.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	v.SetConfigType("toml")
	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func Validate(cfg Config) error {
	var errs []error
	if cfg.App.Package == "" {
		errs = append(errs, errors.New("app.package is required"))
	}
	if cfg.App.Activity == "" {
		errs = append(errs, errors.New("app.activity is required"))
	}
	if strings.TrimSpace(cfg.Channel.Prefix) == "" {
		errs = append(errs, errors.New("channel.prefix is required"))
	}
	if cfg.Channel.Timeout <= 0 {
		errs = append(errs, errors.New("channel.timeout must be positive"))
	}
	if cfg.Lock.TickInterval <= 0 || cfg.Lock.TickInterval > time.Second {
		errs = append(errs, errors.New("lock.tick_interval must be in (0, 1s]"))
	}
	if cfg.Lock.IdleInterval <= 0 {
		errs = append(errs, errors.New("lock.idle_interval must be positive"))
	}
	if cfg.DND.PollInterval <= 0 {
		errs = append(errs, errors.New("dnd.poll_interval must be positive"))
	}
	if cfg.DND.PollAttempts < 0 {
		errs = append(errs, errors.New("dnd.poll_attempts must not be negative"))
	}
	switch cfg.Store.Backend {
	case "encrypted", "file":
	default:
		errs = append(errs, fmt.Errorf("store.backend %q must be encrypted or file", cfg.Store.Backend))
	}
	if cfg.Control.Addr == "" {
		errs = append(errs, errors.New("control.addr is required"))
	}
	if cfg.Watchdog.MinInterval < 0 {
		errs = append(errs, errors.New("watchdog.min_interval must not be negative"))
	}
	if cfg.Monitor.ForegroundInterval < 0 || cfg.Monitor.NotificationInterval < 0 {
		errs = append(errs, errors.New("monitor intervals must not be negative"))
	}
	if cfg.Input.HostTTL <= 0 {
		errs = append(errs, errors.New("input.host_ttl must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}
