// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Rooms  RoomsConfig  `yaml:"rooms"`
	Wallet WalletConfig `yaml:"wallet"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Path  string      `yaml:"path" default:"/ws"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// RoomsConfig represents room lifecycle configuration.
type RoomsConfig struct {
	HostGraceSec   int `yaml:"host_grace_sec" default:"300" validate:"gte=10,lte=3600"`
	InvoicePollSec int `yaml:"invoice_poll_sec" default:"3" validate:"gte=1,lte=60"`
}

// WalletConfig represents wallet backend configuration. Settings are decoded
// by the wallet package, not here.
type WalletConfig struct {
	Settings map[string]any `yaml:"settings"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SATSBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SATSBOX_WS_PATH"); v != "" {
		c.Server.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// HostGrace returns the window a disconnected host has to rejoin.
func (c *Config) HostGrace() time.Duration {
	return time.Duration(c.Rooms.HostGraceSec) * time.Second
}

// InvoicePoll returns the wallet polling interval.
func (c *Config) InvoicePoll() time.Duration {
	return time.Duration(c.Rooms.InvoicePollSec) * time.Second
}
