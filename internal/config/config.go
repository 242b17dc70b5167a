package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the cluster proxy configuration.
type Config struct {
	// Server settings
	GRPCAddr    string `mapstructure:"grpc_addr"`
	GRPCPort    int    `mapstructure:"grpc_port"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	// gRPC transport limits and keepalive, applied to the control-plane
	// gRPC server (which serves the health and reflection services).
	GRPCMaxMsgSize       int           `mapstructure:"grpc_max_msg_size"`
	GRPCKeepaliveIdle    time.Duration `mapstructure:"grpc_keepalive_idle"`
	GRPCKeepaliveAge     time.Duration `mapstructure:"grpc_keepalive_age"`
	GRPCKeepaliveTime    time.Duration `mapstructure:"grpc_keepalive_time"`
	GRPCKeepaliveMinTime time.Duration `mapstructure:"grpc_keepalive_min_time"`

	// Cluster contact point. Exactly one of SeedHost or SeedSocket is used;
	// SeedSocket takes precedence when set.
	SeedHost   string `mapstructure:"seed_host"`
	SeedPort   int    `mapstructure:"seed_port"`
	SeedSocket string `mapstructure:"seed_socket"`
	AuthSecret string `mapstructure:"auth_secret"`

	// Connection handling
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReconnectRate  float64       `mapstructure:"reconnect_rate"`
	ReconnectBurst int           `mapstructure:"reconnect_burst"`

	// Reconfiguration
	ReconfigPollInterval time.Duration `mapstructure:"reconfig_poll_interval"`

	// Worker duplication
	WorkerCount int `mapstructure:"worker_count"`

	// Rate limiting for the demo listener
	EnableRateLimiting    bool    `mapstructure:"enable_rate_limiting"`
	DefaultConnectionRate float64 `mapstructure:"default_connection_rate"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	viper.SetDefault("grpc_addr", "0.0.0.0")
	viper.SetDefault("grpc_port", 50052)
	viper.SetDefault("metrics_addr", ":7002")

	viper.SetDefault("grpc_max_msg_size", 16*1024*1024) // 16MB
	viper.SetDefault("grpc_keepalive_idle", 15*time.Minute)
	viper.SetDefault("grpc_keepalive_age", 30*time.Minute)
	viper.SetDefault("grpc_keepalive_time", 5*time.Second)
	viper.SetDefault("grpc_keepalive_min_time", 5*time.Second)

	viper.SetDefault("seed_host", "127.0.0.1")
	viper.SetDefault("seed_port", 6379)

	viper.SetDefault("dial_timeout", 5*time.Second)
	viper.SetDefault("reconnect_rate", 0.5) // one attempt per 2s
	viper.SetDefault("reconnect_burst", 1)

	viper.SetDefault("reconfig_poll_interval", 10*time.Second)

	viper.SetDefault("worker_count", 4)

	viper.SetDefault("enable_rate_limiting", true)
	viper.SetDefault("default_connection_rate", 100.0)

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CLUSTERPROXY")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port: must be 1-65535")
	}

	if c.SeedSocket == "" {
		if c.SeedHost == "" {
			return fmt.Errorf("seed_host is required when seed_socket is not set")
		}
		if c.SeedPort <= 0 || c.SeedPort > 65535 {
			return fmt.Errorf("invalid seed_port: must be 1-65535")
		}
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be > 0")
	}

	if c.ReconnectRate <= 0 {
		return fmt.Errorf("reconnect_rate must be > 0")
	}

	if c.ReconnectBurst <= 0 {
		return fmt.Errorf("reconnect_burst must be > 0")
	}

	if c.ReconfigPollInterval <= 0 {
		return fmt.Errorf("reconfig_poll_interval must be > 0")
	}

	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be > 0")
	}

	if c.EnableRateLimiting && c.DefaultConnectionRate <= 0 {
		return fmt.Errorf("default_connection_rate must be > 0")
	}

	if c.GRPCMaxMsgSize <= 0 {
		return fmt.Errorf("grpc_max_msg_size must be > 0")
	}

	if c.GRPCKeepaliveIdle <= 0 || c.GRPCKeepaliveAge <= 0 || c.GRPCKeepaliveTime <= 0 || c.GRPCKeepaliveMinTime <= 0 {
		return fmt.Errorf("grpc keepalive durations must be > 0")
	}

	return nil
}
