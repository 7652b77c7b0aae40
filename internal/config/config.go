package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string `mapstructure:"LISTEN_ADDR"`

	DBDriver string `mapstructure:"DB_DRIVER"`
	DBConn   string `mapstructure:"DB_CONN"`

	JWTSecret   string        `mapstructure:"JWT_SECRET"`
	TokenExpiry time.Duration `mapstructure:"TOKEN_EXPIRY"`

	InstancePlan       string `mapstructure:"INSTANCE_PLAN"`
	InstanceConfigFile string `mapstructure:"INSTANCE_CONFIG_FILE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	KafkaBrokers []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string   `mapstructure:"KAFKA_TOPIC"`

	WebhookTimeout      time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
	WebhookMinInterval  time.Duration `mapstructure:"WEBHOOK_MIN_INTERVAL"`
	WebhookAllowPrivate bool          `mapstructure:"WEBHOOK_ALLOW_PRIVATE"`

	ExpirySweepInterval time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`
}

var defaults = map[string]any{
	"LISTEN_ADDR":           ":8080",
	"DB_DRIVER":             "sqlite3",
	"DB_CONN":               "./keepit.db",
	"JWT_SECRET":            "",
	"TOKEN_EXPIRY":          "24h",
	"INSTANCE_PLAN":         "self_hosted",
	"INSTANCE_CONFIG_FILE":  "",
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"KAFKA_BROKERS":         "",
	"KAFKA_TOPIC":           "keepit.note-events",
	"WEBHOOK_TIMEOUT":       "5s",
	"WEBHOOK_MIN_INTERVAL":  "1s",
	"WEBHOOK_ALLOW_PRIVATE": false,
	"EXPIRY_SWEEP_INTERVAL": "1h",
	"LOG_LEVEL":             "info",
	"LOG_PRETTY":            false,
}

// Load reads configuration from the environment, falling back to a .env
// file in dir when one exists.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	if cfg.DBDriver != "sqlite3" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return &cfg, nil
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
