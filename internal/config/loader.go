// Package config provides configuration management for the prediction engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "FANTASY_EDGE"

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with the documented policy defaults for
// every optional field. A missing file is not an error.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := newViper()
	SetDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// SetDefaults registers the policy defaults on a viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fantasy-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("redis.alert_stream", "risk.alerts")
	v.SetDefault("redis.stream_max_len", 10000)

	v.SetDefault("inference.artifact_dir", "models")
	v.SetDefault("inference.per_model_timeout_ms", 250)
	v.SetDefault("inference.sequence_length", 5)
	v.SetDefault("inference.cache_ttl_seconds", 300)
	v.SetDefault("inference.cache_max_size", 5000)

	v.SetDefault("ensemble.min_responders", 1)
	v.SetDefault("ensemble.weights", map[string]map[string]float64{
		"default": {
			"neural_network":    0.9,
			"random_forest":     1.2,
			"sequence":          1.0,
			"gradient_boosting": 1.3,
		},
	})

	v.SetDefault("patterns.min_factor", 0.8)
	v.SetDefault("patterns.max_factor", 1.2)
	v.SetDefault("patterns.report_threshold", 0.05)
	v.SetDefault("patterns.revenge_game", 1.15)
	v.SetDefault("patterns.rest_per_day", 0.02)
	v.SetDefault("patterns.primetime", 1.05)
	v.SetDefault("patterns.bad_weather_passing", 0.88)
	v.SetDefault("patterns.bad_weather_wind_mph", 15)
	v.SetDefault("patterns.back_to_back", 0.94)
	v.SetDefault("patterns.divisional_underdog", 1.06)

	v.SetDefault("learning.minimum_sample_size", 50)
	v.SetDefault("learning.retrain_threshold", 0.55)
	v.SetDefault("learning.high_tier_confidence", 0.4)
	v.SetDefault("learning.medium_tier_confidence", 0.2)
	v.SetDefault("learning.sweep_schedule", "@every 5m")
	v.SetDefault("learning.job_poll_schedule", "@every 1m")

	v.SetDefault("training.url", "http://localhost:8000")
	v.SetDefault("training.request_timeout_seconds", 10)
	v.SetDefault("training.retry_attempts", 3)
	v.SetDefault("training.rate_limit_per_second", 2)

	v.SetDefault("risk.default_profile.bankroll", 1000)
	v.SetDefault("risk.default_profile.max_bet_percent", 1)
	v.SetDefault("risk.default_profile.max_daily_loss_percent", 3)
	v.SetDefault("risk.default_profile.max_weekly_loss_percent", 8)
	v.SetDefault("risk.default_profile.kelly_multiplier", 0.1)
	v.SetDefault("risk.pattern_min_win_rate", 0.55)
	v.SetDefault("risk.pattern_min_samples", 10)
	v.SetDefault("risk.drawdown_warning", 0.15)
	v.SetDefault("risk.drawdown_critical", 0.25)
	v.SetDefault("risk.losing_streak", 5)
	v.SetDefault("risk.loss_limit_warning_ratio", 0.8)
	v.SetDefault("risk.max_open_exposure_percent", 15)
	v.SetDefault("risk.warnings_to_skip", 3)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.health_port", 8081)
	v.SetDefault("api.read_timeout_seconds", 5)
	v.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.daemon_addr", "127.0.0.1:2000")
	v.SetDefault("tracing.sampling_rate", 0.05)
}

// ReloadFromEnv reloads the configuration from FANTASY_EDGE_CONFIG_PATH when set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := Load(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}

	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}
