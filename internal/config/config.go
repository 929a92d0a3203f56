package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	TaxAuthority TaxAuthorityConfig `mapstructure:"tax_authority"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// TaxAuthorityConfig holds tax authority gateway configuration
type TaxAuthorityConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	SubmitTimeout     time.Duration `mapstructure:"submit_timeout"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileAge      time.Duration `mapstructure:"reconcile_age"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/invoices.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Tax authority defaults
	viper.SetDefault("tax_authority.submit_timeout", 30*time.Second)
	viper.SetDefault("tax_authority.reconcile_interval", time.Minute)
	viper.SetDefault("tax_authority.reconcile_age", 5*time.Minute)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("tax_authority.base_url", "TAX_AUTHORITY_BASE_URL")
	viper.BindEnv("tax_authority.api_key", "TAX_AUTHORITY_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TaxAuthority.BaseURL == "" {
		return fmt.Errorf("tax_authority.base_url is required")
	}
	if c.TaxAuthority.APIKey == "" {
		return fmt.Errorf("tax_authority.api_key is required")
	}
	if c.TaxAuthority.SubmitTimeout <= 0 {
		return fmt.Errorf("tax_authority.submit_timeout must be positive")
	}
	if c.TaxAuthority.ReconcileInterval <= 0 {
		return fmt.Errorf("tax_authority.reconcile_interval must be positive")
	}
	if c.TaxAuthority.ReconcileAge <= 0 {
		return fmt.Errorf("tax_authority.reconcile_age must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}
