// Package config provides configuration management for the prediction engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Inference InferenceConfig `mapstructure:"inference" validate:"required"`
	Ensemble  EnsembleConfig  `mapstructure:"ensemble" validate:"required"`
	Patterns  PatternConfig   `mapstructure:"patterns" validate:"required"`
	Learning  LearningConfig  `mapstructure:"learning" validate:"required"`
	Training  TrainingConfig  `mapstructure:"training" validate:"required"`
	Risk      RiskConfig      `mapstructure:"risk" validate:"required"`
	API       APIConfig       `mapstructure:"api" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics" validate:"required"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// RedisConfig configures the alert stream. An empty address disables it.
type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db" validate:"gte=0"`
	AlertStream  string `mapstructure:"alert_stream"`
	StreamMaxLen int64  `mapstructure:"stream_max_len" validate:"gte=0"`
}

// InferenceConfig represents model adapter configuration
type InferenceConfig struct {
	ArtifactDir       string              `mapstructure:"artifact_dir" validate:"required"`
	Models            []string            `mapstructure:"models"`
	PerModelTimeoutMs int                 `mapstructure:"per_model_timeout_ms" validate:"required,gt=0"`
	SequenceLength    int                 `mapstructure:"sequence_length" validate:"required,gt=0,lte=20"`
	CacheTTLSeconds   int                 `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	CacheMaxSize      int                 `mapstructure:"cache_max_size" validate:"gte=0"`
	Remote            []RemoteModelConfig `mapstructure:"remote" validate:"dive"`
}

// RemoteModelConfig describes a model served by an external inference process
type RemoteModelConfig struct {
	Name                string `mapstructure:"name" validate:"required"`
	Family              string `mapstructure:"family" validate:"required,modelfamily"`
	FeatureSet          string `mapstructure:"feature_set" validate:"required,oneof=game offensive schedule sequence"`
	InputSize           int    `mapstructure:"input_size" validate:"required,gt=0"`
	Address             string `mapstructure:"address" validate:"required"`
	BreakerFailures     uint32 `mapstructure:"breaker_failures" validate:"gte=0"`
	BreakerResetSeconds int    `mapstructure:"breaker_reset_seconds" validate:"gte=0"`
}

// EnsembleConfig represents combiner configuration. Weights are keyed by sport
// then model name; the "default" sport row applies when a sport has no entry.
type EnsembleConfig struct {
	MinResponders int                           `mapstructure:"min_responders" validate:"required,gt=0"`
	Weights       map[string]map[string]float64 `mapstructure:"weights" validate:"required"`
}

// PatternConfig holds the situational multipliers and their bounds
type PatternConfig struct {
	MinFactor          float64 `mapstructure:"min_factor" validate:"required,gt=0"`
	MaxFactor          float64 `mapstructure:"max_factor" validate:"required,gt=0"`
	ReportThreshold    float64 `mapstructure:"report_threshold" validate:"gte=0,lt=1"`
	RevengeGame        float64 `mapstructure:"revenge_game" validate:"required,gt=0"`
	RestPerDay         float64 `mapstructure:"rest_per_day" validate:"gte=0"`
	Primetime          float64 `mapstructure:"primetime" validate:"required,gt=0"`
	BadWeatherPassing  float64 `mapstructure:"bad_weather_passing" validate:"required,gt=0"`
	BadWeatherWindMph  float64 `mapstructure:"bad_weather_wind_mph" validate:"required,gt=0"`
	BackToBack         float64 `mapstructure:"back_to_back" validate:"required,gt=0"`
	DivisionalUnderdog float64 `mapstructure:"divisional_underdog" validate:"required,gt=0"`
}

// LearningConfig represents continuous learning tracker configuration
type LearningConfig struct {
	MinimumSampleSize    int64   `mapstructure:"minimum_sample_size" validate:"required,gt=0"`
	RetrainThreshold     float64 `mapstructure:"retrain_threshold" validate:"required,gt=0,lt=1"`
	HighTierConfidence   float64 `mapstructure:"high_tier_confidence" validate:"required,gt=0,lte=1"`
	MediumTierConfidence float64 `mapstructure:"medium_tier_confidence" validate:"required,gt=0,lte=1"`
	SweepSchedule        string  `mapstructure:"sweep_schedule" validate:"required,cronspec"`
	JobPollSchedule      string  `mapstructure:"job_poll_schedule" validate:"required,cronspec"`
}

// TrainingConfig represents the external training service client configuration
type TrainingConfig struct {
	URL                   string  `mapstructure:"url" validate:"required,url"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
	RetryAttempts         int     `mapstructure:"retry_attempts" validate:"gte=0"`
	RateLimitPerSecond    float64 `mapstructure:"rate_limit_per_second" validate:"required,gt=0"`
}

// RiskConfig represents risk manager thresholds and the fallback profile
type RiskConfig struct {
	DefaultProfile         DefaultProfileConfig `mapstructure:"default_profile" validate:"required"`
	PatternMinWinRate      float64              `mapstructure:"pattern_min_win_rate" validate:"required,gt=0,lt=1"`
	PatternMinSamples      int                  `mapstructure:"pattern_min_samples" validate:"gte=0"`
	DrawdownWarning        float64              `mapstructure:"drawdown_warning" validate:"required,gt=0,lt=1"`
	DrawdownCritical       float64              `mapstructure:"drawdown_critical" validate:"required,gt=0,lt=1"`
	LosingStreak           int                  `mapstructure:"losing_streak" validate:"required,gt=0"`
	LossLimitWarningRatio  float64              `mapstructure:"loss_limit_warning_ratio" validate:"required,gt=0,lte=1"`
	MaxOpenExposurePercent float64              `mapstructure:"max_open_exposure_percent" validate:"required,gt=0,lte=100"`
	WarningsToSkip         int                  `mapstructure:"warnings_to_skip" validate:"required,gt=0"`
}

// DefaultProfileConfig is the conservative profile used when a user has none
type DefaultProfileConfig struct {
	Bankroll             float64 `mapstructure:"bankroll" validate:"required,gt=0"`
	MaxBetPercent        float64 `mapstructure:"max_bet_percent" validate:"required,gt=0,lte=100"`
	MaxDailyLossPercent  float64 `mapstructure:"max_daily_loss_percent" validate:"required,gt=0,lte=100"`
	MaxWeeklyLossPercent float64 `mapstructure:"max_weekly_loss_percent" validate:"required,gt=0,lte=100"`
	KellyMultiplier      float64 `mapstructure:"kelly_multiplier" validate:"required,gt=0,lte=1"`
}

// APIConfig represents the evaluation API listener
type APIConfig struct {
	Port               int      `mapstructure:"port" validate:"required,min=1,max=65535"`
	HealthPort         int      `mapstructure:"health_port" validate:"required,min=1,max=65535"`
	ReadTimeoutSeconds int      `mapstructure:"read_timeout_seconds" validate:"required,gt=0"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// TracingConfig configures AWS X-Ray segments for the API and the ensemble
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DaemonAddr   string  `mapstructure:"daemon_addr"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"gte=0,lte=1"`
}

// SecretsConfig selects an AWS Secrets Manager secret to overlay on load
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// PerModelTimeout returns the adapter call deadline
func (c *InferenceConfig) PerModelTimeout() time.Duration {
	return time.Duration(c.PerModelTimeoutMs) * time.Millisecond
}

// CacheTTL returns the model output cache lifetime; zero disables caching
func (c *InferenceConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
