// Package config loads gateway configuration from a YAML file with
// environment-variable overrides (AXTGATE_* variables win over the file).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// BotConfig identifies the bot on the open platform.
type BotConfig struct {
	AppID     string `yaml:"appid" env:"AXTGATE_BOT_APPID"`
	AppSecret string `yaml:"appsecret" env:"AXTGATE_BOT_APPSECRET"`
	// BotQQ is the bot's own account id, used to strip self-mentions
	// from channel mention messages.
	BotQQ string `yaml:"qq" env:"AXTGATE_BOT_QQ"`
}

// NetworkConfig describes the webhook listener.
type NetworkConfig struct {
	Host string `yaml:"host" env:"AXTGATE_HOST"`
	Port int    `yaml:"port" env:"AXTGATE_PORT"`
	// Path is the webhook callback route registered on the platform.
	Path string `yaml:"path" env:"AXTGATE_WEBHOOK_PATH"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"AXTGATE_LOG_LEVEL"`
	Format string `yaml:"format" env:"AXTGATE_LOG_FORMAT"`
}

// StoreConfig locates the message databases.
type StoreConfig struct {
	Path string `yaml:"path" env:"AXTGATE_STORE_PATH"`
}

// GatewayConfig tunes the processing pipeline.
type GatewayConfig struct {
	// Workers is the number of goroutines consuming the inbound queue.
	Workers int `yaml:"workers" env:"AXTGATE_WORKERS"`
	// ShutdownGrace bounds how long in-flight dispatches may run after
	// the process is asked to stop.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" env:"AXTGATE_SHUTDOWN_GRACE"`
	// StatsSchedule is a cron expression gating the statistics snapshot.
	StatsSchedule string `yaml:"stats_schedule" env:"AXTGATE_STATS_SCHEDULE"`
}

// Config is the root configuration object.
type Config struct {
	Bot     BotConfig     `yaml:"bot"`
	Network NetworkConfig `yaml:"network"`
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// Default returns a configuration with working defaults for everything
// except the bot credentials.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{Host: "0.0.0.0", Port: 8080, Path: "/webhook"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{Path: "data"},
		Gateway: GatewayConfig{
			Workers:       4,
			ShutdownGrace: 10 * time.Second,
			StatsSchedule: "*/5 * * * *",
		},
	}
}

// Load reads the YAML file at path (missing file is fine, defaults apply),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the platform-side constraints.
func (c *Config) Validate() error {
	if c.Bot.AppID == "" || c.Bot.AppSecret == "" {
		return fmt.Errorf("bot appid and appsecret are required")
	}
	// The open platform only delivers webhooks to these ports.
	switch c.Network.Port {
	case 80, 443, 8080, 8443:
	default:
		return fmt.Errorf("webhook port must be one of 80, 443, 8080, 8443; got %d", c.Network.Port)
	}
	if c.Network.Path == "" || c.Network.Path[0] != '/' {
		return fmt.Errorf("webhook path must begin with /")
	}
	if c.Gateway.Workers <= 0 {
		c.Gateway.Workers = 1
	}
	return nil
}
