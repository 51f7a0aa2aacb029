package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cache policies understood by the count resolver.
const (
	CachePolicyCacheThenFetch = "cache_then_fetch"
	CachePolicyCacheFirst     = "cache_first"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	ProvidersFile  string `mapstructure:"providers_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`
	CachePolicy string `mapstructure:"cache_policy"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	RenderInput            string        `mapstructure:"render_input"`
	RenderOutput           string        `mapstructure:"render_output"`
	RefreshIntervalSeconds int64         `mapstructure:"refresh_interval"`
	RefreshInterval        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("app_name", "openshare-counts")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("providers_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/counts.db")
	v.SetDefault("cache_policy", CachePolicyCacheThenFetch)
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("render_input", "")
	v.SetDefault("render_output", "")
	v.SetDefault("refresh_interval", 0) // seconds, 0 renders once

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CachePolicy = strings.ToLower(strings.TrimSpace(cfg.CachePolicy))
	switch cfg.CachePolicy {
	case CachePolicyCacheThenFetch, CachePolicyCacheFirst:
	default:
		return nil, fmt.Errorf("invalid cache_policy %q (want %s or %s)", cfg.CachePolicy, CachePolicyCacheThenFetch, CachePolicyCacheFirst)
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.RefreshIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid refresh_interval (must be zero or positive seconds)")
	}
	cfg.RefreshInterval = time.Duration(cfg.RefreshIntervalSeconds) * time.Second

	return &cfg, nil
}
