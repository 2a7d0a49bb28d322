package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Migration MigrationConfig `mapstructure:"migration"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type WebhooksConfig struct {
	DeliveryTimeout  time.Duration `mapstructure:"delivery_timeout"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	DefaultRetries   int           `mapstructure:"default_retries"`
	MaxResponseBytes int           `mapstructure:"max_response_bytes"`
}

type RateLimitConfig struct {
	CapturePerMinute  int `mapstructure:"capture_per_minute"`
	APIWritePerMinute int `mapstructure:"api_write_per_minute"`
}

type MigrationConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("webhooks.delivery_timeout", 30*time.Second)
	viper.SetDefault("webhooks.retry_backoff", 2*time.Second)
	viper.SetDefault("webhooks.default_retries", 3)
	viper.SetDefault("webhooks.max_response_bytes", 1000)
	viper.SetDefault("rate_limit.capture_per_minute", 60)
	viper.SetDefault("rate_limit.api_write_per_minute", 100)
	viper.SetDefault("migration.batch_size", 10)
	viper.SetDefault("logging.level", "info")
}
