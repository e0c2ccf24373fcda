package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort     string `mapstructure:"APP_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB     int    `mapstructure:"REDIS_CACHE_DB"`
	RedisRateLimitDB int    `mapstructure:"REDIS_RATELIMIT_DB"`
	RedisQueueDB     int    `mapstructure:"REDIS_QUEUE_DB"`

	// Stripe configuration.
	StripeKey           string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	CheckoutSuccessURL  string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL   string `mapstructure:"CHECKOUT_CANCEL_URL"`

	// Reservation tunables. Operational knobs, not protocol invariants;
	// adjust per deployment.
	HoldDurationMin   int `mapstructure:"HOLD_DURATION_MIN"`
	SweepIntervalMin  int `mapstructure:"SWEEP_INTERVAL_MIN"`
	IdempotencyTTLMin int `mapstructure:"IDEMPOTENCY_TTL_MIN"`
	MinNoticeMin      int `mapstructure:"MIN_NOTICE_MIN"`
	BufferBeforeMin   int `mapstructure:"BUFFER_BEFORE_MIN"`
	BufferAfterMin    int `mapstructure:"BUFFER_AFTER_MIN"`

	// Rate limit tunables.
	ReserveLimitPerIdentity int `mapstructure:"RESERVE_LIMIT_PER_IDENTITY"`
	ReserveLimitPerIP       int `mapstructure:"RESERVE_LIMIT_PER_IP"`
	ReserveLimitGlobal      int `mapstructure:"RESERVE_LIMIT_GLOBAL"`
	RateLimitWindowSec      int `mapstructure:"RATE_LIMIT_WINDOW_SEC"`
	// Per-IP budget of the in-process fallback bucket used when the shared
	// counter store is unreachable on non-financial endpoints.
	FallbackIPLimitPerMin int `mapstructure:"FALLBACK_IP_LIMIT_PER_MIN"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_RATELIMIT_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:8080/checkout/success")
	viper.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:8080/checkout/cancel")
	viper.SetDefault("HOLD_DURATION_MIN", 30)
	viper.SetDefault("SWEEP_INTERVAL_MIN", 5)
	viper.SetDefault("IDEMPOTENCY_TTL_MIN", 15)
	viper.SetDefault("MIN_NOTICE_MIN", 60)
	viper.SetDefault("BUFFER_BEFORE_MIN", 0)
	viper.SetDefault("BUFFER_AFTER_MIN", 0)
	viper.SetDefault("RESERVE_LIMIT_PER_IDENTITY", 10)
	viper.SetDefault("RESERVE_LIMIT_PER_IP", 30)
	viper.SetDefault("RESERVE_LIMIT_GLOBAL", 600)
	viper.SetDefault("RATE_LIMIT_WINDOW_SEC", 60)
	viper.SetDefault("FALLBACK_IP_LIMIT_PER_MIN", 200)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// HoldDuration returns how long a new hold stays valid before the sweeper
// may reclaim it.
func HoldDuration() time.Duration {
	return time.Duration(AppConfig.HoldDurationMin) * time.Minute
}

// SweepInterval returns the period between expiration sweeps.
func SweepInterval() time.Duration {
	return time.Duration(AppConfig.SweepIntervalMin) * time.Minute
}

// IdempotencyTTL returns how long cached request results are replayed.
func IdempotencyTTL() time.Duration {
	return time.Duration(AppConfig.IdempotencyTTLMin) * time.Minute
}
