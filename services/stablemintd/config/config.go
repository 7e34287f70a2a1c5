package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the stablemint daemon. Engine
// economics live in the separate TOML file; this file covers only how the
// process listens and protects itself.
type Config struct {
	ListenAddress string           `yaml:"listen"`
	Log           LogConfig        `yaml:"log"`
	Auth          AuthConfig       `yaml:"auth"`
	RateLimits    RateLimitsConfig `yaml:"rate_limits"`
	CORS          CORSConfig       `yaml:"cors"`
}

// LogConfig controls optional rotated file output alongside stdout.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig enables bearer-token authentication on mutating routes. The
// shared secret is read from the named environment variable so it never
// lands in the config file.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretEnv string `yaml:"secret_env"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// RateLimitConfig is one token-bucket budget.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// RateLimitsConfig holds the per-group budgets.
type RateLimitsConfig struct {
	Reads     RateLimitConfig `yaml:"reads"`
	Mutations RateLimitConfig `yaml:"mutations"`
}

// CORSConfig names browser origins allowed to call the gateway.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8560"
	}
	cfg.Auth.SecretEnv = strings.TrimSpace(cfg.Auth.SecretEnv)
	if cfg.Auth.SecretEnv == "" {
		cfg.Auth.SecretEnv = "STABLEMINT_AUTH_SECRET"
	}
	if cfg.RateLimits.Reads.RequestsPerMinute <= 0 {
		cfg.RateLimits.Reads = RateLimitConfig{RequestsPerMinute: 600, Burst: 60}
	}
	if cfg.RateLimits.Mutations.RequestsPerMinute <= 0 {
		cfg.RateLimits.Mutations = RateLimitConfig{RequestsPerMinute: 120, Burst: 20}
	}
}

func (cfg *Config) validate() error {
	if cfg.Auth.Enabled {
		if secret := strings.TrimSpace(os.Getenv(cfg.Auth.SecretEnv)); secret == "" {
			return fmt.Errorf("auth enabled but %s is not set", cfg.Auth.SecretEnv)
		}
	}
	return nil
}

// Secret resolves the shared HMAC secret from the environment.
func (cfg Config) Secret() string {
	return strings.TrimSpace(os.Getenv(cfg.Auth.SecretEnv))
}
