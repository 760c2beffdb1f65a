package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OracleConfig configures the hosted reasoning service adapter. An empty
// base URL runs the engine fully offline on the deterministic adapter.
type OracleConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// SessionConfig configures session retention.
type SessionConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes"`
	Capacity   int `mapstructure:"capacity"`
}

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig  `mapstructure:"server"`
	Oracle      OracleConfig  `mapstructure:"oracle"`
	Session     SessionConfig `mapstructure:"session"`
	CatalogPath string        `mapstructure:"catalog_path"`
	LogLevel    string        `mapstructure:"log_level"`
}

// OracleTimeout returns the per-call oracle budget.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// SessionTTL returns the session retention window.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// Load reads configuration from sahayak.yaml (working directory or home),
// overridable via SAHAYAK_* environment variables. A missing file is fine;
// defaults cover a local offline run. path, when non-empty, pins an
// explicit config file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.timeout_seconds", 8)
	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("session.ttl_minutes", 30)
	v.SetDefault("session.capacity", 4096)
	v.SetDefault("catalog_path", "data/programs.yaml")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("SAHAYAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("sahayak")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Oracle.TimeoutSeconds <= 0 {
		cfg.Oracle.TimeoutSeconds = 8
	}
	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 30
	}

	return &cfg, nil
}
