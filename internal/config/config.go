package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/raaihank/moji-sentinel/internal/logger"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/moji-sentinel/")
	viper.AddConfigPath("$HOME/.moji-sentinel/")

	// Environment variable overrides
	viper.SetEnvPrefix("MOJI")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshalConfig()
}

// unmarshalConfig builds a validated Config from viper's current state,
// layering file and environment values over the defaults. Load and Watch
// share it so a reload resolves unset keys exactly like the initial load.
func unmarshalConfig() (*Config, error) {
	config := GetDefaults()

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid max body bytes: %d", config.Server.MaxBodyBytes)
	}

	if config.Server.RateLimit.Enabled && config.Server.RateLimit.RPS <= 0 {
		return fmt.Errorf("invalid rate limit rps: %f", config.Server.RateLimit.RPS)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Detector.MaxSamples <= 0 {
		return fmt.Errorf("invalid detector max samples: %d", config.Detector.MaxSamples)
	}

	if config.Detector.SampleLines <= 0 {
		return fmt.Errorf("invalid detector sample lines: %d", config.Detector.SampleLines)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache is enabled but redis_url is empty")
	}

	if config.Cache.Enabled && config.Cache.TTL <= 0 {
		return fmt.Errorf("invalid cache ttl: %v", config.Cache.TTL)
	}

	if config.Store.Enabled && config.Store.DatabaseURL == "" {
		return fmt.Errorf("store is enabled but database_url is empty")
	}

	return nil
}

// Watch starts watching the configuration file for changes. A change that
// fails to parse or validate is logged and skipped, leaving the previous
// configuration in effect.
func Watch(log *logger.Logger, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := unmarshalConfig()
		if err != nil {
			log.Warn("Ignoring configuration change",
				zap.String("file", e.Name),
				zap.Error(err))
			return
		}

		log.Info("Configuration file changed", zap.String("file", e.Name))
		callback(newConfig)
	})

	return nil
}
