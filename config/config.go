package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Admission AdmissionConfig `mapstructure:"admission"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// DockerConfig holds container runtime configuration
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// RedisConfig holds rate-limit store configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdmissionConfig bounds concurrent executions and the wait queue
type AdmissionConfig struct {
	MaxConcurrent  int `mapstructure:"max_concurrent"`
	QueueCapacity  int `mapstructure:"queue_capacity"`
	MaxSourceBytes int `mapstructure:"max_source_bytes"`
}

// RateLimitConfig holds the per-requestor sliding window parameters
type RateLimitConfig struct {
	WindowSec int `mapstructure:"window_sec"`
	Limit     int `mapstructure:"limit"`
}

// ExecutionConfig holds per-session execution limits
type ExecutionConfig struct {
	DefaultTimeoutSec int `mapstructure:"default_timeout_sec"`
	MaxTimeoutSec     int `mapstructure:"max_timeout_sec"`
	KillGraceSec      int `mapstructure:"kill_grace_sec"`
	OutputLimitBytes  int `mapstructure:"output_limit_bytes"`
}

// ProfilesConfig points at an optional runtime-profile override file
type ProfilesConfig struct {
	File string `mapstructure:"file"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("docker.host", "")
	viper.SetDefault("redis.addr", "127.0.0.1:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("admission.max_concurrent", 4)
	viper.SetDefault("admission.queue_capacity", 16)
	viper.SetDefault("admission.max_source_bytes", 64*1024)
	viper.SetDefault("rate_limit.window_sec", 60)
	viper.SetDefault("rate_limit.limit", 5)
	viper.SetDefault("execution.default_timeout_sec", 30)
	viper.SetDefault("execution.max_timeout_sec", 60)
	viper.SetDefault("execution.kill_grace_sec", 5)
	viper.SetDefault("execution.output_limit_bytes", 16*1024)
	viper.SetDefault("profiles.file", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}

	if c.Admission.MaxConcurrent <= 0 {
		return fmt.Errorf("admission.max_concurrent must be positive, got: %d", c.Admission.MaxConcurrent)
	}

	if c.Admission.QueueCapacity < 0 {
		return fmt.Errorf("admission.queue_capacity must not be negative, got: %d", c.Admission.QueueCapacity)
	}

	if c.Admission.MaxSourceBytes <= 0 {
		return fmt.Errorf("admission.max_source_bytes must be positive, got: %d", c.Admission.MaxSourceBytes)
	}

	if c.RateLimit.WindowSec <= 0 {
		return fmt.Errorf("rate_limit.window_sec must be positive, got: %d", c.RateLimit.WindowSec)
	}

	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive, got: %d", c.RateLimit.Limit)
	}

	if c.Execution.DefaultTimeoutSec <= 0 {
		return fmt.Errorf("execution.default_timeout_sec must be positive, got: %d", c.Execution.DefaultTimeoutSec)
	}

	if c.Execution.MaxTimeoutSec < c.Execution.DefaultTimeoutSec {
		return fmt.Errorf("execution.max_timeout_sec must be >= default_timeout_sec, got: %d < %d",
			c.Execution.MaxTimeoutSec, c.Execution.DefaultTimeoutSec)
	}

	if c.Execution.KillGraceSec <= 0 {
		return fmt.Errorf("execution.kill_grace_sec must be positive, got: %d", c.Execution.KillGraceSec)
	}

	if c.Execution.OutputLimitBytes <= 0 {
		return fmt.Errorf("execution.output_limit_bytes must be positive, got: %d", c.Execution.OutputLimitBytes)
	}

	return nil
}

// DefaultTimeout returns the default execution timeout as a duration
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Execution.DefaultTimeoutSec) * time.Second
}

// MaxTimeout returns the hard per-session timeout ceiling as a duration
func (c *Config) MaxTimeout() time.Duration {
	return time.Duration(c.Execution.MaxTimeoutSec) * time.Second
}

// KillGrace returns the bounded grace period for a forced kill
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Execution.KillGraceSec) * time.Second
}

// RateWindow returns the sliding window duration
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSec) * time.Second
}
