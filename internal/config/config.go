// Package config loads dashboard service configuration from the environment
// and an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds application configuration
type Config struct {
	Port              string `mapstructure:"PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	KafkaBrokers      string `mapstructure:"KAFKA_BROKERS"`
	NotificationTopic string `mapstructure:"NOTIFICATION_TOPIC"`
	DischargeTopic    string `mapstructure:"DISCHARGE_TOPIC"`
	APIKeys           string `mapstructure:"API_KEYS"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	OTLPEndpoint      string `mapstructure:"OTLP_ENDPOINT"`
	Environment       string `mapstructure:"ENV"`
	CORSOrigin        string `mapstructure:"CORS_ORIGIN"`

	BreakerFailureThreshold uint32        `mapstructure:"STORE_BREAKER_FAILURES"`
	BreakerFailureRatio     float64       `mapstructure:"STORE_BREAKER_RATIO"`
	BreakerMinRequests      uint32        `mapstructure:"STORE_BREAKER_MIN_REQUESTS"`
	BreakerTimeout          time.Duration `mapstructure:"STORE_BREAKER_TIMEOUT"`

	FetchWorkers int    `mapstructure:"FETCH_WORKERS"`
	ParentRoute  string `mapstructure:"PARENT_ROUTE"`
}

var keys = []string{
	"PORT", "DATABASE_URL", "KAFKA_BROKERS", "NOTIFICATION_TOPIC", "DISCHARGE_TOPIC",
	"API_KEYS", "LOG_LEVEL", "OTLP_ENDPOINT", "ENV", "CORS_ORIGIN",
	"STORE_BREAKER_FAILURES", "STORE_BREAKER_RATIO", "STORE_BREAKER_MIN_REQUESTS", "STORE_BREAKER_TIMEOUT",
	"FETCH_WORKERS", "PARENT_ROUTE",
}

// Load reads configuration. envFile may be empty; a missing file is not an error.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	v.SetDefault("PORT", "8081")
	v.SetDefault("NOTIFICATION_TOPIC", "ward.notifications")
	v.SetDefault("DISCHARGE_TOPIC", "ward.discharges")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("STORE_BREAKER_FAILURES", 5)
	v.SetDefault("STORE_BREAKER_RATIO", 0.6)
	v.SetDefault("STORE_BREAKER_MIN_REQUESTS", 10)
	v.SetDefault("STORE_BREAKER_TIMEOUT", "15s")
	v.SetDefault("FETCH_WORKERS", 6)
	v.SetDefault("PARENT_ROUTE", "/dashboard")

	// Unmarshal only sees env vars that are bound
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if envFile != "" {
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.FetchWorkers < 1 {
		return fmt.Errorf("FETCH_WORKERS must be positive, got %d", c.FetchWorkers)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("STORE_BREAKER_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if !strings.HasPrefix(c.ParentRoute, "/") {
		return fmt.Errorf("PARENT_ROUTE must be an absolute path, got %q", c.ParentRoute)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if _, err := c.APIKeyMap(); err != nil {
		return err
	}
	return nil
}

// Brokers splits KAFKA_BROKERS; empty means publishing is disabled
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// APIKeyMap parses API_KEYS ("key:client,key2:client2"). An empty value
// disables authentication.
func (c *Config) APIKeyMap() (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitList(c.APIKeys) {
		key, client, ok := strings.Cut(pair, ":")
		if !ok || key == "" || client == "" {
			return nil, fmt.Errorf("API_KEYS entry %q is not key:client", pair)
		}
		out[key] = client
	}
	return out, nil
}

// UsesDemoStore reports whether no database is configured
func (c *Config) UsesDemoStore() bool {
	return c.DatabaseURL == ""
}

// NewLogger builds the process logger; debug selects the development config
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
