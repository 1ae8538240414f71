package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Marketrelay MarketrelayConfig `yaml:"marketrelay"`
	Server      ServerConfig      `yaml:"server"`
	Source      SourceConfig      `yaml:"source"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type MarketrelayConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address       string `yaml:"address"`
	TemplatesGlob string `yaml:"templates_glob"`
	StaticDir     string `yaml:"static_dir"`
}

type SourceConfig struct {
	Indodax IndodaxSourceConfig `yaml:"indodax"`
}

type IndodaxSourceConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Timeout        time.Duration        `yaml:"timeout"`
	FetchInterval  time.Duration        `yaml:"fetch_interval"`
	DepthLimit     int                  `yaml:"depth_limit"`
	Symbols        []string             `yaml:"symbols"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type BroadcastConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

const (
	defaultFetchInterval = 2 * time.Second
	defaultTimeout       = 5 * time.Second
	defaultDepthLimit    = 10
	defaultWriteTimeout  = 5 * time.Second
)

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Override deploy-sensitive settings from environment variables if available
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		config.Server.Address = strings.TrimSpace(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Address = ":" + strings.TrimSpace(v)
	}
	if v := os.Getenv("INDODAX_BASE_URL"); v != "" {
		config.Source.Indodax.BaseURL = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	src := &cfg.Source.Indodax
	if src.FetchInterval <= 0 {
		src.FetchInterval = defaultFetchInterval
	}
	if src.Timeout <= 0 {
		src.Timeout = defaultTimeout
	}
	if src.DepthLimit <= 0 {
		src.DepthLimit = defaultDepthLimit
	}
	if cfg.Broadcast.WriteTimeout <= 0 {
		cfg.Broadcast.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Marketrelay.Name == "" {
		return fmt.Errorf("marketrelay.name is required")
	}

	if cfg.Marketrelay.Version == "" {
		return fmt.Errorf("marketrelay.version is required")
	}

	src := cfg.Source.Indodax
	if src.BaseURL == "" {
		return fmt.Errorf("source.indodax.base_url is required")
	}
	if u, err := url.Parse(src.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.indodax.base_url '%s' is not a valid URL", src.BaseURL)
	}

	if len(src.Symbols) == 0 {
		return fmt.Errorf("source.indodax.symbols must list at least one pair")
	}
	seen := make(map[string]struct{}, len(src.Symbols))
	for _, symbol := range src.Symbols {
		if symbol == "" {
			return fmt.Errorf("source.indodax.symbols contains an empty pair")
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("source.indodax.symbols contains duplicate pair '%s'", symbol)
		}
		seen[symbol] = struct{}{}
	}

	if src.RateLimit.RequestsPerSecond < 0 || src.RateLimit.BurstSize < 0 {
		return fmt.Errorf("source.indodax.rate_limit values must not be negative")
	}

	return nil
}
