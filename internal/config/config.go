// Package config provides YAML-based configuration loading for Tally.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the top-level Tally configuration, loaded from tally.yaml.
type Config struct {
	Org       string          `yaml:"org"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Provision ProvisionConfig `yaml:"provision"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DatabaseConfig holds connection settings for the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	SSLMode  string `yaml:"sslmode"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// ScheduleConfig holds the optional regeneration schedule.
type ScheduleConfig struct {
	Regenerate string `yaml:"regenerate"`
}

// ProvisionConfig configures the identity-provisioning client. Either the
// client-credentials triple or a static token may be set.
type ProvisionConfig struct {
	URL          string `yaml:"url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Token        string `yaml:"token"`
	Timeout      string `yaml:"timeout"`
}

// TimeoutDuration returns the parsed request timeout. Validation guarantees
// the string parses.
func (p ProvisionConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// NotifyConfig holds optional webhook targets for run summaries.
type NotifyConfig struct {
	SlackWebhookURL     string `yaml:"slack_webhook_url"`
	DiscordWebhookID    string `yaml:"discord_webhook_id"`
	DiscordWebhookToken string `yaml:"discord_webhook_token"`
}

// envOverrides maps environment variables to the secret fields they replace.
var envOverrides = map[string]func(*Config) *string{
	"TALLY_DB_PASSWORD":             func(c *Config) *string { return &c.Database.Password },
	"TALLY_PROVISION_CLIENT_SECRET": func(c *Config) *string { return &c.Provision.ClientSecret },
	"TALLY_PROVISION_TOKEN":         func(c *Config) *string { return &c.Provision.Token },
	"TALLY_SLACK_WEBHOOK_URL":       func(c *Config) *string { return &c.Notify.SlackWebhookURL },
	"TALLY_DISCORD_WEBHOOK_TOKEN":   func(c *Config) *string { return &c.Notify.DiscordWebhookToken },
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the config, if present, is loaded into the process
// environment first; variables already set are not overwritten.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envPath, err)
		}
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Secret fields are
// overridden from TALLY_* environment variables when set.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	for key, field := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field(c) = v
		}
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	case DriverPostgres:
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.User == "" {
			c.Database.User = "postgres"
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = "tally.db"
		}
	}
	if c.Database.Name == "" && c.Org != "" {
		c.Database.Name = "tally_" + c.Org
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Provision.Timeout == "" {
		c.Provision.Timeout = "15s"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Org == "" {
		errs = append(errs, "org is required")
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (mysql, postgres, sqlite)", c.Database.Driver))
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}
	if c.Schedule.Regenerate != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Schedule.Regenerate); err != nil {
			errs = append(errs, fmt.Sprintf("schedule.regenerate: %v", err))
		}
	}
	if _, err := time.ParseDuration(c.Provision.Timeout); err != nil {
		errs = append(errs, fmt.Sprintf("provision.timeout %q is not a duration", c.Provision.Timeout))
	}
	if c.Provision.URL != "" && c.Provision.Token == "" {
		if c.Provision.TokenURL == "" || c.Provision.ClientID == "" || c.Provision.ClientSecret == "" {
			errs = append(errs, "provision requires token or token_url, client_id and client_secret")
		}
	}
	if (c.Notify.DiscordWebhookID == "") != (c.Notify.DiscordWebhookToken == "") {
		errs = append(errs, "notify.discord_webhook_id and discord_webhook_token must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
