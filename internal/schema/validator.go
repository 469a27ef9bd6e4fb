package schema

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator handles validation of threats against the canonical schema.
type Validator struct {
	validate  *validator.Validate
	maxAge    time.Duration
	maxFuture time.Duration
}

// ValidatorConfig holds configuration for the validator.
type ValidatorConfig struct {
	MaxAge    time.Duration
	MaxFuture time.Duration
}

// DefaultValidatorConfig returns the default validator configuration.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxAge:    24 * time.Hour,
		MaxFuture: 5 * time.Minute,
	}
}

// NewValidator creates a new Validator with default configuration.
func NewValidator() *Validator {
	return NewValidatorWithConfig(DefaultValidatorConfig())
}

// NewValidatorWithConfig creates a new Validator with the specified configuration.
func NewValidatorWithConfig(cfg ValidatorConfig) *Validator {
	v := validator.New()

	v.RegisterValidation("threat_type", func(fl validator.FieldLevel) bool {
		return ThreatType(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return Severity(fl.Field().String()).IsValid()
	})

	return &Validator{
		validate:  v,
		maxAge:    cfg.MaxAge,
		maxFuture: cfg.MaxFuture,
	}
}

// Validate validates a threat against the canonical schema.
// Returns an error if validation fails.
func (v *Validator) Validate(threat *Threat) error {
	if err := v.validate.Struct(threat); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Timestamp bounds check
	now := time.Now().UTC()

	if threat.DetectedAt.IsZero() {
		return fmt.Errorf("detected_at is required")
	}

	if threat.DetectedAt.Before(now.Add(-v.maxAge)) {
		return fmt.Errorf("detected_at too old: %v (max age: %v)", threat.DetectedAt, v.maxAge)
	}

	if threat.DetectedAt.After(now.Add(v.maxFuture)) {
		return fmt.Errorf("detected_at in future: %v (max future: %v)", threat.DetectedAt, v.maxFuture)
	}

	return nil
}
