package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

// Environment variables that override file values.
const (
	EnvConfigPath = "TASKFLOW_CONFIG"
	EnvDBPath     = "TASKFLOW_DB_PATH"
	EnvJWTSecret  = "TASKFLOW_JWT_SECRET"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Notify   NotifyConfig   `toml:"notify"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
}

// NotifyConfig enables board change fan-out when RedisAddr is set.
type NotifyConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Channel       string `toml:"channel"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	// DevFile, when set, receives a logfmt copy of every log line.
	DevFile string `toml:"dev_file"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api",
		},
		Notify: NotifyConfig{
			Channel: "taskflow:board",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overlays environment overrides; lookup is usually os.LookupEnv.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) Config {
	if lookup == nil {
		return c
	}
	if v, ok := lookup(EnvDBPath); ok && strings.TrimSpace(v) != "" {
		c.Database.Path = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvJWTSecret); ok && strings.TrimSpace(v) != "" {
		c.Auth.JWTSecret = strings.TrimSpace(v)
	}
	return c
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if bind := strings.TrimSpace(c.Server.HTTPBind); bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("invalid server.http_bind %q: %w", c.Server.HTTPBind, err)
		}
	}
	if endpoint := strings.TrimSpace(c.Server.APIEndpoint); endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("server.api_endpoint must start with '/': %q", c.Server.APIEndpoint)
	}

	if addr := strings.TrimSpace(c.Notify.RedisAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid notify.redis_addr %q: %w", c.Notify.RedisAddr, err)
		}
	}
	if c.Notify.RedisDB < 0 {
		return fmt.Errorf("notify.redis_db must be >= 0")
	}

	if strings.TrimSpace(c.Logging.Level) != "" {
		if _, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(c.Logging.Level))); err != nil {
			return fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
		}
	}
	return nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c Config) ValidateServe() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required to serve (or set %s)", EnvJWTSecret)
	}
	return nil
}

// LogLevel returns the configured level, defaulting to info.
func (c Config) LogLevel() log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(c.Logging.Level)))
	if err != nil || strings.TrimSpace(c.Logging.Level) == "" {
		return log.InfoLevel
	}
	return level
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
