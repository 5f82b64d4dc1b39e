// Package config loads libraflow settings from an optional YAML file and
// LIBRAFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete service configuration
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Circulation CirculationConfig `mapstructure:"circulation"`
	Mail        MailConfig        `mapstructure:"mail"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the repositories. An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig enables cross-process item locks when URL is set.
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is host:port of an OTLP/HTTP collector; empty disables export
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is json or text
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	ExpiryInterval   time.Duration `mapstructure:"expiry_interval"`
	OverdueInterval  time.Duration `mapstructure:"overdue_interval"`
}

type CirculationConfig struct {
	HoldDays         int           `mapstructure:"hold_days"`
	ReminderLead     time.Duration `mapstructure:"reminder_lead"`
	RevokeWindow     time.Duration `mapstructure:"revoke_window"`
	UndoHistoryLimit int           `mapstructure:"undo_history_limit"`
}

// MailConfig throttles outgoing mail. A zero rate sends without limit.
type MailConfig struct {
	RatePerMinute int `mapstructure:"rate_per_minute"`
	Burst         int `mapstructure:"burst"`
	QueueSize     int `mapstructure:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8082",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{MaxOpenConns: 20},
		Redis:    RedisConfig{LockTTL: 10 * time.Second},
		Kafka:    KafkaConfig{Topic: "libraflow.notifications"},
		Telemetry: TelemetryConfig{
			ServiceName: "libraflow-circulation",
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			ReminderInterval: time.Hour,
			ExpiryInterval:   15 * time.Minute,
			OverdueInterval:  time.Hour,
		},
		Circulation: CirculationConfig{
			HoldDays:         7,
			ReminderLead:     48 * time.Hour,
			RevokeWindow:     2 * time.Hour,
			UndoHistoryLimit: 20,
		},
		Mail: MailConfig{RatePerMinute: 60, Burst: 10, QueueSize: 256},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)

	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.lock_ttl", d.Redis.LockTTL)

	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)

	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("scheduler.enabled", d.Scheduler.Enabled)
	v.SetDefault("scheduler.reminder_interval", d.Scheduler.ReminderInterval)
	v.SetDefault("scheduler.expiry_interval", d.Scheduler.ExpiryInterval)
	v.SetDefault("scheduler.overdue_interval", d.Scheduler.OverdueInterval)

	v.SetDefault("circulation.hold_days", d.Circulation.HoldDays)
	v.SetDefault("circulation.reminder_lead", d.Circulation.ReminderLead)
	v.SetDefault("circulation.revoke_window", d.Circulation.RevokeWindow)
	v.SetDefault("circulation.undo_history_limit", d.Circulation.UndoHistoryLimit)

	v.SetDefault("mail.rate_per_minute", d.Mail.RatePerMinute)
	v.SetDefault("mail.burst", d.Mail.Burst)
	v.SetDefault("mail.queue_size", d.Mail.QueueSize)
}

// Load reads the config file (if any) and the environment. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("LIBRAFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("libraflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/libraflow")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Circulation.HoldDays < 0 {
		return fmt.Errorf("circulation.hold_days must not be negative, got %d", c.Circulation.HoldDays)
	}
	if c.Circulation.RevokeWindow <= 0 {
		return fmt.Errorf("circulation.revoke_window must be positive")
	}
	if c.Circulation.UndoHistoryLimit <= 0 {
		return fmt.Errorf("circulation.undo_history_limit must be positive, got %d", c.Circulation.UndoHistoryLimit)
	}
	if c.Mail.RatePerMinute < 0 {
		return fmt.Errorf("mail.rate_per_minute must not be negative, got %d", c.Mail.RatePerMinute)
	}
	if c.Mail.RatePerMinute > 0 && c.Mail.Burst <= 0 {
		return fmt.Errorf("mail.burst must be positive, got %d", c.Mail.Burst)
	}
	if c.Mail.QueueSize <= 0 {
		return fmt.Errorf("mail.queue_size must be positive, got %d", c.Mail.QueueSize)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}
