// Package config provides configuration management for the prediction engine.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("modelfamily", validateModelFamily)
	_ = v.RegisterValidation("cronspec", validateCronSpec)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateModelFamily(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "neural_network", "random_forest", "sequence", "gradient_boosting":
		return true
	default:
		return false
	}
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cronParser.Parse(fl.Field().String())
	return err == nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	if cfg.Patterns.MinFactor >= cfg.Patterns.MaxFactor {
		return fmt.Errorf("patterns.min_factor must be below patterns.max_factor")
	}
	if cfg.Patterns.MinFactor > 1 || cfg.Patterns.MaxFactor < 1 {
		return fmt.Errorf("pattern factor bounds must contain 1.0")
	}

	if cfg.Learning.MediumTierConfidence >= cfg.Learning.HighTierConfidence {
		return fmt.Errorf("learning.medium_tier_confidence must be below learning.high_tier_confidence")
	}

	if cfg.Risk.DrawdownWarning >= cfg.Risk.DrawdownCritical {
		return fmt.Errorf("risk.drawdown_warning must be below risk.drawdown_critical")
	}

	if _, ok := cfg.Ensemble.Weights["default"]; !ok {
		return fmt.Errorf("ensemble.weights must contain a default row")
	}
	for sport, row := range cfg.Ensemble.Weights {
		for model, w := range row {
			if w < 0 {
				return fmt.Errorf("ensemble weight for %s/%s must not be negative", sport, model)
			}
		}
	}

	seen := make(map[string]bool)
	for _, name := range cfg.Inference.Models {
		seen[name] = true
	}
	for _, remote := range cfg.Inference.Remote {
		if seen[remote.Name] {
			return fmt.Errorf("model %q is configured both locally and remotely", remote.Name)
		}
		seen[remote.Name] = true
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "modelfamily":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: neural_network, random_forest, sequence, gradient_boosting\n", field)
		case "cronspec":
			errMsg += fmt.Sprintf("- Field '%s' is not a valid cron schedule: '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
