// Package config handles application configuration loading and validation using Viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig        `mapstructure:"server"`
	Stripe       StripeConfig        `mapstructure:"stripe"`
	Database     DatabaseConfig      `mapstructure:"database"`
	Alerts       AlertsConfig        `mapstructure:"alerts"`
	Scheduler    SchedulerConfig     `mapstructure:"scheduler"`
	Metrics      MetricsConfig       `mapstructure:"metrics"`
	Logging      LoggingConfig       `mapstructure:"logging"`
	Achievements []AchievementConfig `mapstructure:"achievements"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
}

// StripeConfig contains payment provider credentials and settings.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Currency      string `mapstructure:"currency"`
}

// DatabaseConfig contains database connection settings for PostgreSQL and Redis.
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains PostgreSQL database connection and pool settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig contains Redis cache connection and pool settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Enabled  bool   `mapstructure:"enabled"`
}

// AlertsConfig contains ops alert webhook settings.
type AlertsConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Enabled    bool   `mapstructure:"enabled"`
}

// SchedulerConfig contains background job scheduling settings.
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CampaignSweepCron  string `mapstructure:"campaign_sweep_cron"`
	ReconciliationCron string `mapstructure:"reconciliation_cron"`
	AchievementCron    string `mapstructure:"achievement_cron"`
	Timezone           string `mapstructure:"timezone"`
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AchievementConfig represents one achievement catalog entry seeded at startup.
type AchievementConfig struct {
	Name           string `mapstructure:"name"`
	Description    string `mapstructure:"description"`
	Icon           string `mapstructure:"icon"`
	Category       string `mapstructure:"category"`
	RequiredPoints int    `mapstructure:"required_points"`
	Secret         bool   `mapstructure:"secret"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/doefacil/")
	}

	// Bind specific environment variables (explicit bindings for 12-factor app compliance)
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.environment", "SERVER_ENVIRONMENT")

	_ = v.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	_ = v.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	_ = v.BindEnv("stripe.currency", "STRIPE_CURRENCY")

	_ = v.BindEnv("database.postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("database.postgres.database", "POSTGRES_DB")
	_ = v.BindEnv("database.postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("database.postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("database.postgres.ssl_mode", "POSTGRES_SSL_MODE")
	_ = v.BindEnv("database.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME")

	_ = v.BindEnv("database.redis.host", "REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "REDIS_DB")
	_ = v.BindEnv("database.redis.pool_size", "REDIS_POOL_SIZE")
	_ = v.BindEnv("database.redis.enabled", "REDIS_ENABLED")

	_ = v.BindEnv("alerts.webhook_url", "ALERTS_WEBHOOK_URL")
	_ = v.BindEnv("alerts.channel", "ALERTS_CHANNEL")
	_ = v.BindEnv("alerts.enabled", "ALERTS_ENABLED")

	_ = v.BindEnv("logging.level", "LOG_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT")
	_ = v.BindEnv("logging.output", "LOG_OUTPUT")

	_ = v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	_ = v.BindEnv("scheduler.campaign_sweep_cron", "SCHEDULER_CAMPAIGN_SWEEP_CRON")
	_ = v.BindEnv("scheduler.reconciliation_cron", "SCHEDULER_RECONCILIATION_CRON")
	_ = v.BindEnv("scheduler.achievement_cron", "SCHEDULER_ACHIEVEMENT_CRON")
	_ = v.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid. Missing payment or database
// credentials fail here, at startup, not at first request.
func (c *Config) Validate() error {
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe.secret_key is required")
	}
	if c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret is required")
	}
	if c.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if c.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if c.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	for i, a := range c.Achievements {
		if a.Name == "" {
			return fmt.Errorf("achievements[%d].name is required", i)
		}
		if a.RequiredPoints < 0 {
			return fmt.Errorf("achievements[%d].required_points must not be negative", i)
		}
	}
	return nil
}

// GetCurrency returns the configured donation currency, defaulting to BRL.
func (c *StripeConfig) GetCurrency() string {
	if c.Currency == "" {
		return "brl"
	}
	return c.Currency
}
