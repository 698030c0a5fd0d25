package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Ads         AdsConfig        `mapstructure:"ads"`
	Events      EventsConfig     `mapstructure:"events"`
	Source      SourceConfig     `mapstructure:"source"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int `mapstructure:"idle_timeout_seconds"`
	ShowWaitSeconds     int `mapstructure:"show_wait_seconds"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	SSLMode                string `mapstructure:"ssl_mode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Host                string `mapstructure:"host"`
	Port                int    `mapstructure:"port"`
	Password            string `mapstructure:"password"`
	DB                  int    `mapstructure:"db"`
	PoolSize            int    `mapstructure:"pool_size"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

// AdsConfig points at the ad unit document
type AdsConfig struct {
	DocumentPath string `mapstructure:"document_path"`
}

// EventsConfig holds event pipeline configuration
type EventsConfig struct {
	MemoryCapacity       int    `mapstructure:"memory_capacity"`
	BufferSize           int    `mapstructure:"buffer_size"`
	BatchSize            int    `mapstructure:"batch_size"`
	FlushIntervalMS      int    `mapstructure:"flush_interval_ms"`
	LogEvents            bool   `mapstructure:"log_events"`
	RedisListKey         string `mapstructure:"redis_list_key"`
	RedisChannel         string `mapstructure:"redis_channel"`
	RedisMaxListLength   int64  `mapstructure:"redis_max_list_length"`
	PostgresWriteTimeout int    `mapstructure:"postgres_write_timeout_seconds"`
}

// SourceConfig tunes the simulated ad network
type SourceConfig struct {
	FillRate          float64 `mapstructure:"fill_rate"`
	MinLatencyMS      int     `mapstructure:"min_latency_ms"`
	MaxLatencyMS      int     `mapstructure:"max_latency_ms"`
	DisplayDurationMS int     `mapstructure:"display_duration_ms"`
	PresentFailRate   float64 `mapstructure:"present_fail_rate"`
	RevenueMicros     int64   `mapstructure:"revenue_micros"`
	Currency          string  `mapstructure:"currency"`
	TestMode          bool    `mapstructure:"test_mode"`
	Seed              int64   `mapstructure:"seed"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Structured bool   `mapstructure:"structured"`
	Format     string `mapstructure:"format"`
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"`
}

// Load loads configuration from .env, the config file and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Determine config file name based on environment
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}

	// Set config file path
	configName := "config"
	if env == "production" {
		configName = "production"
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath("/app/configs")
	setDefaults(v)

	// Read config file (it's okay if it doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	// Process the config with environment variable substitution
	processedConfig := v.AllSettings()

	// Process {ENV-default} patterns recursively
	processEnvPatterns(processedConfig)

	// Create a new viper instance with processed config
	processedViper := viper.New()
	for key, value := range processedConfig {
		processedViper.Set(key, value)
	}

	var config Config
	if err := processedViper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processed config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.show_wait_seconds", 10)
	v.SetDefault("ads.document_path", "./configs/ads.yaml")
	v.SetDefault("events.memory_capacity", 1000)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.flush_interval_ms", 500)
	v.SetDefault("events.redis_list_key", "ad_events:recent")
	v.SetDefault("events.redis_channel", "ad_events")
	v.SetDefault("events.redis_max_list_length", 10000)
	v.SetDefault("events.postgres_write_timeout_seconds", 5)
	v.SetDefault("source.fill_rate", 0.9)
	v.SetDefault("source.min_latency_ms", 200)
	v.SetDefault("source.max_latency_ms", 1500)
	v.SetDefault("source.display_duration_ms", 3000)
	v.SetDefault("source.revenue_micros", 1500)
	v.SetDefault("source.currency", "USD")
	v.SetDefault("monitoring.metrics.enabled", true)
	v.SetDefault("monitoring.metrics.path", "/metrics")
}

// processEnvPatterns processes {ENV-default} patterns recursively
func processEnvPatterns(config map[string]interface{}) {
	for key, value := range config {
		config[key] = processValue(value)
	}
}

var envPattern = regexp.MustCompile(`\{([A-Z_]+)-([^}]*)\}`)

// processValue processes a single value for environment variable substitution
func processValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if matches := envPattern.FindStringSubmatch(v); len(matches) == 3 {
			envVar := matches[1]
			defaultValue := matches[2]

			// Get environment variable value or use default
			if envValue := os.Getenv(envVar); envValue != "" {
				return convertValue(envValue, defaultValue)
			}
			return convertValue(defaultValue, defaultValue)
		}
		return v
	case map[string]interface{}:
		processEnvPatterns(v)
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = processValue(item)
		}
		return v
	default:
		return v
	}
}

// convertValue converts string values to appropriate types
func convertValue(value, defaultValue string) interface{} {
	// Special case: if default is empty, always return the value as string (even if empty)
	if defaultValue == "" {
		return value
	}

	// If value is empty and default is not empty, try to convert default
	if value == "" {
		return convertToType(defaultValue)
	}

	// Convert the actual value
	return convertToType(value)
}

// convertToType converts a string to the most appropriate type
func convertToType(value string) interface{} {
	if value == "" {
		return ""
	}

	// Try boolean conversion first
	if strings.ToLower(value) == "true" {
		return true
	}
	if strings.ToLower(value) == "false" {
		return false
	}

	if intVal, err := strconv.Atoi(value); err == nil {
		return intVal
	}

	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}

	return value
}
