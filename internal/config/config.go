package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all container configuration.
type Config struct {
	Server    ServerConfig
	Boxd      BoxdConfig
	Modules   ModulesConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Watcher   WatcherConfig
	Store     StoreConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BoxdConfig holds box daemon configuration. The daemon is the
// external provider that hosts isolated execution contexts.
type BoxdConfig struct {
	Address string `envconfig:"BOXD_ADDR" default:"http://localhost:7070"`
	Retries int    `envconfig:"BOXD_RETRIES" default:"2"`
}

// ModulesConfig holds module resolution options passed through to the
// box provider on every deploy.
type ModulesConfig struct {
	ResolveDependencies bool     `envconfig:"MODULES_RESOLVE_DEPS" default:"true"`
	IsolationPatterns   []string `envconfig:"MODULES_ISOLATION_PATTERNS" default:"internal/**,vendor/**"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds management API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// WatcherConfig holds hot-deploy watcher configuration.
type WatcherConfig struct {
	Enabled bool   `envconfig:"WATCH_ENABLED" default:"false"`
	Dir     string `envconfig:"WATCH_DIR" default:"./deploy"`
	Glob    string `envconfig:"WATCH_GLOB" default:"**/*.{toml,yaml,yml,mod}"`
}

// StoreConfig holds event journal configuration.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"./container-journal.db"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Host: "0.0.0.0"},
		Boxd:   BoxdConfig{Address: "http://localhost:7070", Retries: 2},
		Modules: ModulesConfig{
			ResolveDependencies: true,
			IsolationPatterns:   []string{"internal/**", "vendor/**"},
		},
		Logging:   LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200, Enabled: true},
		Watcher:   WatcherConfig{Dir: "./deploy", Glob: "**/*.{toml,yaml,yml,mod}"},
		Store:     StoreConfig{Path: "./container-journal.db"},
	}
}

func (c *Config) validate() error {
	for _, p := range c.Modules.IsolationPatterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid isolation pattern %q", p)
		}
	}
	if c.Watcher.Glob != "" && !doublestar.ValidatePattern(c.Watcher.Glob) {
		return fmt.Errorf("invalid watcher glob %q", c.Watcher.Glob)
	}
	return nil
}

// Section returns a named configuration section as a generic structure.
// This is the configuration capability handed to module start functions.
func (c *Config) Section(name string) (map[string]interface{}, bool) {
	switch name {
	case "server":
		return map[string]interface{}{"port": c.Server.Port, "host": c.Server.Host}, true
	case "modules":
		return map[string]interface{}{
			"resolve_dependencies": c.Modules.ResolveDependencies,
			"isolation_patterns":   c.Modules.IsolationPatterns,
		}, true
	case "boxd":
		return map[string]interface{}{"address": c.Boxd.Address}, true
	case "watcher":
		return map[string]interface{}{"dir": c.Watcher.Dir, "glob": c.Watcher.Glob}, true
	}
	return nil, false
}
