// config/config.go
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Messages MessagesConfig `yaml:"messages"`
	Purge    PurgeConfig    `yaml:"purge"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	BaseURL      string        `yaml:"base_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type StoreConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MessagesConfig struct {
	// Delays are the selectable expiry windows, in minutes.
	Delays       []int         `yaml:"delays"`
	DefaultDelay int           `yaml:"default_delay"`
	Retention    time.Duration `yaml:"retention"`
}

type PurgeConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			BaseURL:      "http://localhost:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Type: StoreSQLite,
			SQLite: SQLiteConfig{
				Path: "burnnote.db",
			},
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Password:  "",
				DB:        0,
				KeyPrefix: "message:",
			},
		},
		Messages: MessagesConfig{
			Delays:       []int{15, 30, 60, 120, 1440},
			DefaultDelay: 15,
			Retention:    30 * 24 * time.Hour,
		},
		Purge: PurgeConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLite.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}

	if v := os.Getenv("RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Messages.Retention = d
		}
	}
	if v := os.Getenv("DEFAULT_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Messages.DefaultDelay = n
		}
	}

	if v := os.Getenv("PURGE_ENABLED"); v != "" {
		c.Purge.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PURGE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Purge.Interval = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required when store type is 'sqlite'")
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when store type is 'redis'")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid store type: %s (must be 'sqlite', 'redis' or 'memory')", c.Store.Type)
	}

	if len(c.Messages.Delays) == 0 {
		return fmt.Errorf("at least one delay is required")
	}
	for _, d := range c.Messages.Delays {
		if d <= 0 {
			return fmt.Errorf("delays must be positive, got %d", d)
		}
	}
	if !slices.Contains(c.Messages.Delays, c.Messages.DefaultDelay) {
		return fmt.Errorf("default_delay %d is not one of the delays %v", c.Messages.DefaultDelay, c.Messages.Delays)
	}

	if c.Messages.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}

	if c.Purge.Enabled && c.Purge.Interval <= 0 {
		return fmt.Errorf("purge interval must be positive when purge is enabled")
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'console')", c.Log.Format)
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
