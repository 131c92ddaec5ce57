/*
Package config loads service configuration with viper.

SOURCES (highest precedence first):
  1. Environment: QUOTER_<SECTION>_<KEY>, e.g. QUOTER_SERVER_ADDR.
     The webhook URL is also read from plain WEBHOOK_URL.
  2. Optional YAML file passed with --config
  3. Defaults below

SEE ALSO:
  - logger.go: Builds the zap logger from LoggingConfig
  - cmd/server/main.go: Flag wiring
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/settlement-quoter/calendar"
)

const (
	EnvPrefix = "QUOTER"

	DefaultTimeZone = "America/Bogota"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Session SessionConfig `mapstructure:"session"`
	Quote   QuoteConfig   `mapstructure:"quote"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type WebhookConfig struct {
	// URL is what GET /api/config advertises. Empty means unset.
	URL string `mapstructure:"url"`
	// ConfigEndpoint is fetched once at startup to fill the submitter target.
	// Empty means the service's own /api/config.
	ConfigEndpoint string        `mapstructure:"config_endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// ServePlaceholder makes /api/config answer with the placeholder URL
	// instead of 500 when URL is unset. Local development only.
	ServePlaceholder bool `mapstructure:"serve_placeholder"`
}

type SessionConfig struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

type QuoteConfig struct {
	TimeZone   string `mapstructure:"time_zone"`
	YearsAhead int    `mapstructure:"years_ahead"`
}

type StoreConfig struct {
	// DeliveryLogPath is the SQLite file for the delivery log. Empty disables it.
	DeliveryLogPath string `mapstructure:"delivery_log_path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputFile string `mapstructure:"output_file"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.config_endpoint", "")
	v.SetDefault("webhook.timeout", 15*time.Second)
	v.SetDefault("webhook.serve_placeholder", false)

	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.sweep_interval", 5*time.Minute)
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)

	v.SetDefault("quote.time_zone", DefaultTimeZone)
	v.SetDefault("quote.years_ahead", calendar.DefaultYearsAhead)

	v.SetDefault("store.delivery_log_path", "./data/deliveries.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_file", "")

	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration from defaults, the optional file at path, and the
// environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("webhook.url", "WEBHOOK_URL", EnvPrefix+"_WEBHOOK_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind WEBHOOK_URL: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Webhook.URL = strings.TrimSpace(cfg.Webhook.URL)

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return &cfg, nil
}

// Validate returns every problem found, not just the first.
func (c *Config) Validate() []string {
	var problems []string

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Webhook.Timeout <= 0 {
		problems = append(problems, "webhook.timeout must be positive")
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		problems = append(problems, fmt.Sprintf("session.backend must be %q or %q, got %q",
			SessionBackendMemory, SessionBackendRedis, c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "session.ttl must be positive")
	}
	if c.Quote.YearsAhead < 0 {
		problems = append(problems, "quote.years_ahead must not be negative")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("quote.time_zone: %v", err))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format: %s", c.Logging.Format))
	}
	return problems
}

// Location resolves the time zone "today" is computed in.
func (c *Config) Location() (*time.Location, error) {
	name := c.Quote.TimeZone
	if name == "" {
		name = DefaultTimeZone
	}
	return time.LoadLocation(name)
}
