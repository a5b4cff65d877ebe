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
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Notification NotificationConfig `mapstructure:"notification"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Export       ExportConfig       `mapstructure:"export"`
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
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// DirectoryConfig holds HR directory API configuration
type DirectoryConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIToken   string        `mapstructure:"api_token"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// NotificationConfig holds outbound notification configuration. An empty
// webhook URL switches delivery to log-only mode.
type NotificationConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// ExportConfig holds agreement register export configuration
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
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
	viper.SetDefault("database.path", "data/docflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Directory defaults
	viper.SetDefault("directory.api_timeout", 10*time.Second)
	viper.SetDefault("directory.cache_ttl", 5*time.Minute)

	// Notification defaults
	viper.SetDefault("notification.timeout", 10*time.Second)

	// Storage defaults
	viper.SetDefault("storage.base_dir", "attachments")

	// Export defaults
	viper.SetDefault("export.output_dir", "exports")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("directory.base_url", "DIRECTORY_BASE_URL")
	viper.BindEnv("directory.api_token", "DIRECTORY_API_TOKEN")
	viper.BindEnv("notification.webhook_url", "NOTIFICATION_WEBHOOK_URL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("directory.base_url is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	return nil
}
