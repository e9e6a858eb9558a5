// Package config loads application configuration from an optional yaml file
// plus LEADSCORE_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadscore/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Places      PlacesConfig      `yaml:"places" mapstructure:"places"`
	CompanyData CompanyDataConfig `yaml:"company_data" mapstructure:"company_data"`
	WebTech     WebTechConfig     `yaml:"webtech" mapstructure:"webtech"`
	Salesforce  SalesforceConfig  `yaml:"salesforce" mapstructure:"salesforce"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the audit store backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PlacesConfig holds Places API settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CompanyDataConfig holds company-data API settings.
type CompanyDataConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WebTechConfig configures the headless-browser tracker detection.
type WebTechConfig struct {
	PageTimeoutSecs int `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
}

// SalesforceConfig holds the username-password OAuth credentials.
type SalesforceConfig struct {
	LoginURL        string  `yaml:"login_url" mapstructure:"login_url"`
	Username        string  `yaml:"username" mapstructure:"username"`
	Password        string  `yaml:"password" mapstructure:"password"`
	SecurityToken   string  `yaml:"security_token" mapstructure:"security_token"`
	ClientID        string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret    string  `yaml:"client_secret" mapstructure:"client_secret"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// EnrichConfig configures pipeline timeouts.
type EnrichConfig struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	SourceTimeoutSecs  int `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 20)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("webtech.page_timeout_secs", 15)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit_per_sec", 5)
	v.SetDefault("enrich.request_timeout_secs", 60)
	v.SetDefault("enrich.source_timeout_secs", 30)
	v.SetDefault("server.port", 4900)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that every key the pipeline cannot run without is present.
// It reports all missing keys at once.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"places.key", c.Places.Key},
		{"company_data.key", c.CompanyData.Key},
		{"store.database_url", c.Store.DatabaseURL},
		{"server.api_key", c.Server.APIKey},
		{"salesforce.username", c.Salesforce.Username},
		{"salesforce.password", c.Salesforce.Password},
		{"salesforce.security_token", c.Salesforce.SecurityToken},
		{"salesforce.client_id", c.Salesforce.ClientID},
		{"salesforce.client_secret", c.Salesforce.ClientSecret},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required keys: %s", strings.Join(missing, ", "))
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store driver: %s", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
