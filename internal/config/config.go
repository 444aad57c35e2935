package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	EasyPost  EasyPostConfig  `yaml:"easypost"`
	Mail      MailConfig      `yaml:"mail"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cron      CronConfig      `yaml:"cron"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// RedisConfig holds the optional Redis connection used for distributed
// locking around scheduled runs. Empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EasyPostConfig holds the webhook verification secret
type EasyPostConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

// MailConfig selects and configures the outbound email provider.
// Provider is "resend" or "ses".
type MailConfig struct {
	Provider  string       `yaml:"provider"`
	FromName  string       `yaml:"from_name"`
	FromEmail string       `yaml:"from_email"`
	ReplyTo   string       `yaml:"reply_to"`
	Resend    ResendConfig `yaml:"resend"`
	SES       SESConfig    `yaml:"ses"`
}

// ResendConfig holds Resend API settings
type ResendConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SESConfig holds AWS SES settings
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// SchedulerConfig controls the in-process subscription scheduler
type SchedulerConfig struct {
	Enabled             bool `yaml:"enabled"`
	TickIntervalMinutes int  `yaml:"tick_interval_minutes"`
	RunHourUTC          int  `yaml:"run_hour_utc"`
}

// CronConfig holds the shared secret protecting the manual trigger endpoints
type CronConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML file (when present) then overrides from the
// environment. A .env file is loaded first so local development needs no
// exported variables.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env if present (ignore error if not found)
	_ = godotenv.Load()

	var cfg *Config
	if _, err := os.Stat(path); err == nil {
		cfg, err = Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EASYPOST_WEBHOOK_SECRET"); v != "" {
		cfg.EasyPost.WebhookSecret = v
	}
	if v := os.Getenv("MAIL_PROVIDER"); v != "" {
		cfg.Mail.Provider = v
	}
	if v := os.Getenv("MAIL_FROM_NAME"); v != "" {
		cfg.Mail.FromName = v
	}
	if v := os.Getenv("MAIL_FROM_EMAIL"); v != "" {
		cfg.Mail.FromEmail = v
	}
	if v := os.Getenv("MAIL_REPLY_TO"); v != "" {
		cfg.Mail.ReplyTo = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Mail.Resend.APIKey = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mail.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mail.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mail.SES.Region = v
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Cron.Secret = v
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = v == "true" || v == "1"
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifeMins == 0 {
		c.Database.ConnMaxLifeMins = 30
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "resend"
	}
	if c.Mail.Resend.BaseURL == "" {
		c.Mail.Resend.BaseURL = "https://api.resend.com"
	}
	if c.Mail.SES.Region == "" {
		c.Mail.SES.Region = "us-east-1"
	}
	if c.Scheduler.TickIntervalMinutes == 0 {
		c.Scheduler.TickIntervalMinutes = 30
	}
	if c.Scheduler.RunHourUTC == 0 {
		c.Scheduler.RunHourUTC = 10
	}
}

// Validate checks that required settings are present for serving traffic.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.EasyPost.WebhookSecret == "" {
		return fmt.Errorf("easypost webhook secret is required")
	}
	switch c.Mail.Provider {
	case "resend":
		if c.Mail.Resend.APIKey == "" {
			return fmt.Errorf("resend api key is required")
		}
	case "ses":
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	if c.Mail.FromEmail == "" {
		return fmt.Errorf("mail from email is required")
	}
	return nil
}
