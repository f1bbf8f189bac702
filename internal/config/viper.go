// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Empty-identifier policies for records that arrive without a gateway GUID.
const (
	EmptyIDReject = "reject"
	EmptyIDInsert = "insert"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// LogConfig controls the logrus adapter.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig controls the HTTP ingress.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" yaml:"port"`
	WebhookPath            string `mapstructure:"webhook_path" yaml:"webhook_path"`
	RequestTimeoutSeconds  int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig selects and configures the message store.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`
	URL        string `mapstructure:"url" yaml:"-"` // may carry credentials
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MaxConns   int    `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns   int    `mapstructure:"min_conns" yaml:"min_conns"`
}

// GatewayConfig describes the SMSMobileAPI upstream.
type GatewayConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// PollerConfig controls the scheduled fetch.
type PollerConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule   string `mapstructure:"schedule" yaml:"schedule"`
	UnreadOnly bool   `mapstructure:"unread_only" yaml:"unread_only"`
	DeviceID   string `mapstructure:"device_id" yaml:"device_id"`
	AutoCutoff bool   `mapstructure:"auto_cutoff" yaml:"auto_cutoff"`
}

// ProviderConfig carries the regional constants of the mobile-money provider.
type ProviderConfig struct {
	Name           string   `mapstructure:"name" yaml:"name"`
	BrandTokens    []string `mapstructure:"brand_tokens" yaml:"brand_tokens"`
	CountryCode    string   `mapstructure:"country_code" yaml:"country_code"`
	MobilePrefix   string   `mapstructure:"mobile_prefix" yaml:"mobile_prefix"`
	UTCOffsetHours int      `mapstructure:"utc_offset_hours" yaml:"utc_offset_hours"`
}

// IngestConfig tunes the orchestrator.
type IngestConfig struct {
	EmptyIDPolicy  string `mapstructure:"empty_id_policy" yaml:"empty_id_policy"`
	ExtractWorkers int    `mapstructure:"extract_workers" yaml:"extract_workers"`
}

// Config represents the complete application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Gateway  GatewayConfig  `mapstructure:"gateway" yaml:"gateway"`
	Poller   PollerConfig   `mapstructure:"poller" yaml:"poller"`
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	return InitializeConfigFromFile("")
}

// InitializeConfigFromFile behaves like InitializeConfig but reads an explicit
// config file instead of searching the default locations. An empty path
// falls back to the search.
func InitializeConfigFromFile(path string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.smsledger")
		v.AddConfigPath(".smsledger")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix("SMSLEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless explicitly requested)
	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. Secrets are read from their conventional unprefixed names
	if err := v.BindEnv("gateway.api_key", "SMSLEDGER_GATEWAY_API_KEY", "SMSMOBILE_API_KEY"); err != nil {
		fmt.Printf("Warning: failed to bind SMSMOBILE_API_KEY environment variable: %v\n", err)
	}
	if err := v.BindEnv("database.url", "SMSLEDGER_DATABASE_URL", "DATABASE_URL"); err != nil {
		fmt.Printf("Warning: failed to bind DATABASE_URL environment variable: %v\n", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.webhook_path", "/webhook/sms")
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "smsledger.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)

	v.SetDefault("gateway.base_url", "https://api.smsmobileapi.com")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.timeout_seconds", 30)

	v.SetDefault("poller.enabled", false)
	v.SetDefault("poller.schedule", "@every 5m")
	v.SetDefault("poller.unread_only", true)
	v.SetDefault("poller.device_id", "")
	v.SetDefault("poller.auto_cutoff", true)

	v.SetDefault("provider.name", "MPESA")
	v.SetDefault("provider.brand_tokens", []string{"mpesa", "m-pesa"})
	v.SetDefault("provider.country_code", "254")
	v.SetDefault("provider.mobile_prefix", "7")
	v.SetDefault("provider.utc_offset_hours", 3)

	v.SetDefault("ingest.empty_id_policy", EmptyIDReject)
	v.SetDefault("ingest.extract_workers", 4)
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", config.Server.Port)
	}

	if !strings.HasPrefix(config.Server.WebhookPath, "/") {
		return fmt.Errorf("server.webhook_path must start with '/', got: %s", config.Server.WebhookPath)
	}

	switch config.Database.Driver {
	case DriverPostgres:
		if config.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL required when database.driver is postgres")
		}
	case DriverSQLite:
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path required when database.driver is sqlite")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid database driver: %s (must be 'postgres', 'sqlite' or 'memory')", config.Database.Driver)
	}

	if config.Gateway.TimeoutSeconds < 1 || config.Gateway.TimeoutSeconds > 300 {
		return fmt.Errorf("gateway.timeout_seconds must be between 1 and 300, got: %d", config.Gateway.TimeoutSeconds)
	}

	if config.Poller.Enabled {
		if config.Gateway.APIKey == "" {
			return fmt.Errorf("SMSMOBILE_API_KEY required when the poller is enabled")
		}
		if config.Poller.Schedule == "" {
			return fmt.Errorf("poller.schedule required when the poller is enabled")
		}
	}

	if config.Provider.UTCOffsetHours < -12 || config.Provider.UTCOffsetHours > 14 {
		return fmt.Errorf("provider.utc_offset_hours must be between -12 and 14, got: %d", config.Provider.UTCOffsetHours)
	}

	if config.Provider.CountryCode == "" {
		return fmt.Errorf("provider.country_code cannot be empty")
	}

	if !hasToken(config.Provider.BrandTokens) {
		return fmt.Errorf("provider.brand_tokens must contain at least one non-empty token")
	}

	if config.Ingest.EmptyIDPolicy != EmptyIDReject && config.Ingest.EmptyIDPolicy != EmptyIDInsert {
		return fmt.Errorf("invalid ingest.empty_id_policy: %s (must be 'reject' or 'insert')", config.Ingest.EmptyIDPolicy)
	}

	if config.Ingest.ExtractWorkers < 1 || config.Ingest.ExtractWorkers > 64 {
		return fmt.Errorf("ingest.extract_workers must be between 1 and 64, got: %d", config.Ingest.ExtractWorkers)
	}

	return nil
}

// GatewayTimeout returns the upstream request timeout.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP handler timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long the server waits for in-flight requests.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Location returns the provider's fixed local zone.
func (c *Config) Location() *time.Location {
	offset := c.Provider.UTCOffsetHours
	return time.FixedZone(fmt.Sprintf("UTC%+03d:00", offset), offset*3600)
}

func hasToken(tokens []string) bool {
	for _, t := range tokens {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}
