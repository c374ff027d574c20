// Package config provides YAML-based configuration loading for the bridge.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// AppName is the logical name of the bridge process.
	AppName string `mapstructure:"app_name"`

	// Target selects which firmware target this bridge fronts. It scopes
	// log/metric labels and the set of enabled topics.
	Target string `mapstructure:"target"`

	// Log holds logging configuration.
	Log LogConfig `mapstructure:"log"`

	// Listeners configures the inbound transports feeding the bridge.
	Listeners []ListenerConfig `mapstructure:"listeners"`

	// Metrics controls the optional Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Topics lists the topic names enabled for this target.
	Topics []string `mapstructure:"topics"`

	// Params holds parameter store options.
	Params ParamConfig `mapstructure:"params"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation for file outputs.
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options.
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// ListenerConfig describes one inbound transport.
type ListenerConfig struct {
	// Kind: tcp or mem
	Kind string `mapstructure:"kind"`
	// Address in the transport's own format (host:port for tcp,
	// a bare name for mem).
	Address string `mapstructure:"address"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

// ParamConfig holds parameter store options.
type ParamConfig struct {
	// DefaultTTLMS applies to sets that carry no explicit TTL; 0 keeps
	// parameters until deleted.
	DefaultTTLMS int `mapstructure:"default_ttl_ms"`
	// MaxBytes caps the total size of stored values; 0 means no limit.
	MaxBytes uint64 `mapstructure:"max_bytes"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		AppName: "protobridge",
		Target:  "talos",
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Listeners: []ListenerConfig{
			{Kind: "tcp", Address: ":50124"},
		},
		Metrics: MetricsConfig{Enable: false, Addr: ":9090"},
		Topics: []string{
			"kill_switch",
			"depth_telemetry",
			"imu_telemetry",
			"actuator_status",
			"actuator_command",
		},
		Params: ParamConfig{DefaultTTLMS: 0, MaxBytes: 0},
	}
}

// Load reads configuration from the provided path (if non-empty), otherwise
// it searches common locations and supports environment overrides. Env vars
// use the prefix PROTOBRIDGE and `.`/`-` are replaced with `_`.
// Example: PROTOBRIDGE_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PROTOBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("target", cfg.Target)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("listeners", cfg.Listeners)
	v.SetDefault("metrics.enable", cfg.Metrics.Enable)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("topics", cfg.Topics)
	v.SetDefault("params.default_ttl_ms", cfg.Params.DefaultTTLMS)
	v.SetDefault("params.max_bytes", cfg.Params.MaxBytes)

	if path == "" {
		if envPath := os.Getenv("PROTOBRIDGE_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("protobridge")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".protobridge"))
		}
	}

	// Missing config file is fine; defaults plus env carry the day.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if strings.TrimSpace(c.Target) == "" {
		return errors.New("target must not be empty")
	}
	for i := range c.Listeners {
		kind := strings.ToLower(strings.TrimSpace(c.Listeners[i].Kind))
		switch kind {
		case "tcp", "mem":
			c.Listeners[i].Kind = kind
		default:
			return fmt.Errorf("invalid listener kind: %q", c.Listeners[i].Kind)
		}
		if strings.TrimSpace(c.Listeners[i].Address) == "" {
			return fmt.Errorf("listener %d: address must not be empty", i)
		}
	}
	if c.Metrics.Enable && strings.TrimSpace(c.Metrics.Addr) == "" {
		return errors.New("metrics.addr must not be empty when metrics are enabled")
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
