// Package config loads service configuration from defaults, an optional YAML
// file, and environment variables, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/casafind/listingcache/cache/redis"
)

// envPrefix namespaces environment overrides. A double underscore separates
// nesting levels so single underscores survive inside key names:
// LISTINGCACHE_REDIS__POOL_SIZE maps to redis.pool_size.
const envPrefix = "LISTINGCACHE_"

// Config is the full service configuration.
//
// The cache TTLs (listings, count, page cache) are fixed constants in the
// listing and server packages, not configuration: the TTL ordering between
// the two cache tiers is a design invariant, not a tuning knob.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Redis    redis.Config   `koanf:"redis"`
	Database DatabaseConfig `koanf:"database"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Address returns the listen address in "host:port" format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig controls the PostgreSQL connection.
type DatabaseConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	Name         string `koanf:"name"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	SSLMode      string `koanf:"ssl_mode"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// DSN returns a libpq-style connection string.
func (c *DatabaseConfig) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("dbname=%s", c.Name),
		fmt.Sprintf("user=%s", c.User),
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
	}
	return strings.Join(parts, " ")
}

// Load reads configuration from defaults, the YAML file at path (optional,
// skipped when empty or missing), and LISTINGCACHE_-prefixed environment
// variables, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, envPrefix)
			key = strings.ReplaceAll(strings.ToLower(key), "__", ".")
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"log.level":  "info",
		"log.pretty": false,

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.shutdown_timeout": "10s",

		"redis.host":              "localhost",
		"redis.port":              6379,
		"redis.database":          0,
		"redis.pool_size":         10,
		"redis.dial_timeout":      "5s",
		"redis.read_timeout":      "3s",
		"redis.write_timeout":     "3s",
		"redis.max_retries":       3,
		"redis.min_retry_backoff": "8ms",
		"redis.max_retry_backoff": "512ms",
		"redis.pattern_delete":    true,

		"database.host":           "localhost",
		"database.port":           5432,
		"database.name":           "listings",
		"database.user":           "listings",
		"database.ssl_mode":       "disable",
		"database.max_open_conns": 10,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Validate performs fail-fast validation of the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: invalid port %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout: must be positive")
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host: host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name: database name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user: user is required")
	}
	return nil
}
