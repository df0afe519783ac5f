package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	DB        DBConfig        `mapstructure:"db"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type AppConfig struct {
	Port            string  `mapstructure:"port"`
	Env             string  `mapstructure:"env"` // e.g., "local", "prod"
	Symbol          string  `mapstructure:"symbol"`
	StartingBalance float64 `mapstructure:"starting_balance"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	Secret     string `mapstructure:"secret"`
	TokenTTLMs int64  `mapstructure:"token_ttl_ms"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMs) * time.Millisecond
}

type FeedConfig struct {
	InitialPrice int64 `mapstructure:"initial_price"`
	FloorPrice   int64 `mapstructure:"floor_price"`
	MaxDelta     int64 `mapstructure:"max_delta"`
	IntervalMs   int64 `mapstructure:"interval_ms"`
}

func (f FeedConfig) Interval() time.Duration {
	return time.Duration(f.IntervalMs) * time.Millisecond
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled  bool  `mapstructure:"enabled"`
	Limit    int64 `mapstructure:"limit"`
	WindowMs int64 `mapstructure:"window_ms"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	// This ensures variables like APP_PORT are available as real env vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.symbol", "ACME")
	v.SetDefault("app.starting_balance", 1000000.0)

	v.SetDefault("logger.level", "info")

	v.SetDefault("db.dsn", "trading_game.db")

	v.SetDefault("auth.secret", "dev-only-secret")
	v.SetDefault("auth.token_ttl_ms", 15*60*1000)

	v.SetDefault("feed.initial_price", 50000)
	v.SetDefault("feed.floor_price", 1000)
	v.SetDefault("feed.max_delta", 600)
	v.SetDefault("feed.interval_ms", 1500)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "trade_events")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.limit", 30)
	v.SetDefault("ratelimit.window_ms", 60*1000)

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (APP_PORT) to nested structs (App.Port)
	bindEnv(v, "app.port", "app.env", "app.symbol", "app.starting_balance")
	bindEnv(v, "logger.level")
	bindEnv(v, "db.dsn")
	bindEnv(v, "auth.secret", "auth.token_ttl_ms")
	bindEnv(v, "feed.initial_price", "feed.floor_price", "feed.max_delta", "feed.interval_ms")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "ratelimit.enabled", "ratelimit.limit", "ratelimit.window_ms")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Basic Validation
	if cfg.Feed.FloorPrice <= 0 {
		return nil, fmt.Errorf("feed floor price must be positive")
	}
	if cfg.Feed.MaxDelta <= 0 {
		return nil, fmt.Errorf("feed max delta must be positive")
	}
	if cfg.Feed.InitialPrice < cfg.Feed.FloorPrice {
		return nil, fmt.Errorf("feed initial price cannot be below the floor")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}

	return &cfg, nil
}

// NewLogger builds a zap logger according to the logger config.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %v", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	return zapCfg.Build()
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
