package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server             ServerConfig             `mapstructure:"server"`
	Auth               AuthConfig               `mapstructure:"auth"`
	CORS               CORSConfig               `mapstructure:"cors"`
	RateLimit          RateLimitConfig          `mapstructure:"rate_limit"`
	Redis              RedisConfig              `mapstructure:"redis"`
	Supabase           SupabaseConfig           `mapstructure:"supabase"`
	Store              StoreConfig              `mapstructure:"store"`
	Dispatch           DispatchConfig           `mapstructure:"dispatch"`
	RecipientRateLimit RecipientRateLimitConfig `mapstructure:"recipient_rate_limit"`
	Sweeper            SweeperConfig            `mapstructure:"sweeper"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// StoreConfig selects the notification store backend.
// Driver is "supabase" or "memory"; Seed loads demo records into an empty
// store on startup (development only).
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Seed   bool   `mapstructure:"seed"`
}

// DispatchConfig holds simulated delivery settings. Failure chances are
// percentages in [0,100]; delays are millisecond bounds for the artificial
// provider latency. Set a chance to 0 or 100 to force an outcome.
type DispatchConfig struct {
	EmailFailurePercent  int `mapstructure:"email_failure_percent"`
	SMSFailurePercent    int `mapstructure:"sms_failure_percent"`
	ResendFailurePercent int `mapstructure:"resend_failure_percent"`

	EmailDelayMinMs  int `mapstructure:"email_delay_min_ms"`
	EmailDelayMaxMs  int `mapstructure:"email_delay_max_ms"`
	SMSDelayMinMs    int `mapstructure:"sms_delay_min_ms"`
	SMSDelayMaxMs    int `mapstructure:"sms_delay_max_ms"`
	ResendDelayMinMs int `mapstructure:"resend_delay_min_ms"`
	ResendDelayMaxMs int `mapstructure:"resend_delay_max_ms"`
}

// RecipientRateLimitConfig holds per-recipient send quota settings.
type RecipientRateLimitConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxPerHour int  `mapstructure:"max_per_hour"`
}

// SweeperConfig holds stale-Pending sweeper settings (durations as seconds
// for YAML/env compat).
type SweeperConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	IntervalSec       int  `mapstructure:"interval_sec"`
	StaleThresholdSec int  `mapstructure:"stale_threshold_sec"`
	BatchSize         int  `mapstructure:"batch_size"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the NOTIHUB_ prefix and underscore separators.
// Example: NOTIHUB_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	// Environment variable settings
	v.SetEnvPrefix("NOTIHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8082)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("store.driver", "supabase")
	v.SetDefault("store.seed", false)
	v.SetDefault("dispatch.email_failure_percent", 5)
	v.SetDefault("dispatch.sms_failure_percent", 3)
	v.SetDefault("dispatch.resend_failure_percent", 20)
	v.SetDefault("dispatch.email_delay_min_ms", 100)
	v.SetDefault("dispatch.email_delay_max_ms", 500)
	v.SetDefault("dispatch.sms_delay_min_ms", 50)
	v.SetDefault("dispatch.sms_delay_max_ms", 300)
	v.SetDefault("dispatch.resend_delay_min_ms", 100)
	v.SetDefault("dispatch.resend_delay_max_ms", 500)
	v.SetDefault("recipient_rate_limit.enabled", false)
	v.SetDefault("recipient_rate_limit.max_per_hour", 30)
	v.SetDefault("sweeper.enabled", false)
	v.SetDefault("sweeper.interval_sec", 300)
	v.SetDefault("sweeper.stale_threshold_sec", 3600)
	v.SetDefault("sweeper.batch_size", 50)

	// Read config file (optional — env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Handle comma-separated API keys from env var
	if apiKeysStr := v.GetString("auth.api_keys"); apiKeysStr != "" && len(cfg.Auth.APIKeys) == 0 {
		keys := strings.Split(apiKeysStr, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Auth.APIKeys = keys
	}

	return &cfg, nil
}
