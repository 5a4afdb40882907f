// Package config loads the exchange daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the daemon needs to start.
type Config struct {
	Server struct {
		Addr              string        `yaml:"addr"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
		ReadTimeout       time.Duration `yaml:"read_timeout"`
		ShutdownGrace     time.Duration `yaml:"shutdown_grace"`
		RateLimit         struct {
			Enabled   bool    `yaml:"enabled"`
			MaxBurst  int     `yaml:"max_burst"`
			PerSecond float64 `yaml:"per_second"`
		} `yaml:"rate_limit"`
		ErrorThreshold int `yaml:"error_threshold"`
	} `yaml:"server"`

	Dashboard struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"dashboard"`

	Storage struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Users []User `yaml:"users"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// User is a seeded credential pair. Plaintext here, hashed at load time.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads and validates a config file, applying defaults for anything
// unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":9100"
	}
	if c.Server.HeartbeatInterval <= 0 {
		c.Server.HeartbeatInterval = 1 * time.Second
	}
	if c.Server.HeartbeatTimeout <= 0 {
		c.Server.HeartbeatTimeout = 10 * time.Second
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 500 * time.Millisecond
	}
	if c.Server.ShutdownGrace <= 0 {
		c.Server.ShutdownGrace = 5 * time.Second
	}
	if c.Server.ErrorThreshold <= 0 {
		c.Server.ErrorThreshold = 5
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.MaxBurst <= 0 {
			c.Server.RateLimit.MaxBurst = 100
		}
		if c.Server.RateLimit.PerSecond <= 0 {
			c.Server.RateLimit.PerSecond = 50
		}
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":9101"
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "trades"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the parts defaults cannot fix.
func (c *Config) Validate() error {
	if c.Server.HeartbeatTimeout <= c.Server.HeartbeatInterval {
		return fmt.Errorf("heartbeat timeout %s must exceed interval %s",
			c.Server.HeartbeatTimeout, c.Server.HeartbeatInterval)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	seen := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("users must have both username and password")
		}
		if _, dup := seen[u.Username]; dup {
			return fmt.Errorf("duplicate user %q", u.Username)
		}
		seen[u.Username] = struct{}{}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}
