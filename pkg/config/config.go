// Package config provides configuration management for the dynlb harness.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"

	apperrors "github.com/dynlb/pkg/errors"
)

// Config holds all configuration for the balancer harness.
type Config struct {
	Balance    BalanceConfig    `mapstructure:"balance"`
	Collective CollectiveConfig `mapstructure:"collective"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// BalanceConfig holds the partitioning parameters.
type BalanceConfig struct {
	// Mode selects the partitioner: "radix" or "rcb".
	Mode string `mapstructure:"mode"`
	// Cutoff is the radix leaf-size bound, or the rcb target leaf
	// count. 0 selects the mode-specific default; so does any negative
	// value in radix mode, while a negative rcb value is read as the
	// negated leaf count.
	Cutoff int `mapstructure:"cutoff"`
	// Epsilon is the imbalance slack; a rebuild triggers when the
	// current imbalance exceeds 1 + epsilon.
	Epsilon float64 `mapstructure:"epsilon"`
	// TaskHint bounds the parallelism of internal loops; 0 uses the
	// hardware optimum.
	TaskHint int `mapstructure:"task_hint"`
}

// CollectiveConfig holds the collective transport configuration.
type CollectiveConfig struct {
	Transport string `mapstructure:"transport"` // local or grpc
	Addr      string `mapstructure:"addr"`      // coordinator address for grpc
	Size      int    `mapstructure:"size"`      // world size
	Rank      int    `mapstructure:"rank"`      // this process's rank for grpc
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/dynlb")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file anywhere on the search path, run on defaults.
		} else if os.IsNotExist(err) {
			// File was named explicitly but is absent, run on defaults.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("balance.mode", "radix")
	v.SetDefault("balance.cutoff", 0)
	v.SetDefault("balance.epsilon", 0.5)
	v.SetDefault("balance.task_hint", 0)

	v.SetDefault("collective.transport", "local")
	v.SetDefault("collective.addr", "127.0.0.1:7621")
	v.SetDefault("collective.size", 4)
	v.SetDefault("collective.rank", 0)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	switch c.Balance.Mode {
	case "radix", "rcb":
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown balance mode %q (valid: radix, rcb)", c.Balance.Mode)
	}

	if c.Balance.Epsilon < 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "epsilon must be >= 0, got %g", c.Balance.Epsilon)
	}

	switch c.Collective.Transport {
	case "local", "grpc":
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown collective transport %q (valid: local, grpc)", c.Collective.Transport)
	}

	if c.Collective.Size <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "collective size must be > 0, got %d", c.Collective.Size)
	}

	if c.Collective.Rank < 0 || c.Collective.Rank >= c.Collective.Size {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "collective rank %d out of range [0, %d)", c.Collective.Rank, c.Collective.Size)
	}

	return nil
}
