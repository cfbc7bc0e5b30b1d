package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nulzo/model-hub/internal/core/domain"
)

type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Log       LogConfig               `mapstructure:"log"`
	Database  DatabaseConfig          `mapstructure:"database"`
	RateLimit RateLimitConfig         `mapstructure:"rate_limit"`
	Registry  RegistryConfig          `mapstructure:"registry"`
	Providers []domain.ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port"`
	Env     string   `mapstructure:"env"`
	APIKeys []string `mapstructure:"api_keys"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN     string `mapstructure:"dsn"`
	Enabled bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RegistryConfig tunes the model registry caches. Durations accept the
// usual Go syntax ("30m", "90s").
type RegistryConfig struct {
	ListTTL    time.Duration `mapstructure:"list_ttl"`
	LearnedTTL time.Duration `mapstructure:"learned_ttl"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.dsn", "file:hub.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("database.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("registry.list_ttl", 30*time.Minute)
	v.SetDefault("registry.learned_ttl", 15*time.Minute)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve "ENV:VAR" indirection on provider credentials, both the
	// primary key and any extra rotated keys.
	for i, p := range cfg.Providers {
		cfg.Providers[i].APIKey = resolveEnvRef(v, p.APIKey)
		for j, k := range p.APIKeys {
			cfg.Providers[i].APIKeys[j] = resolveEnvRef(v, k)
		}
	}

	return &cfg, nil
}

func resolveEnvRef(v *viper.Viper, value string) string {
	if !strings.HasPrefix(value, "ENV:") {
		return value
	}
	envVar := strings.TrimPrefix(value, "ENV:")
	// Process environment wins; viper may have it from other sources
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return v.GetString(envVar)
}
