package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section's struct tags and then the cross-section
// rules that tags cannot express. The first failure is returned.
func Validate(cfg *Config) error {
	sections := []struct {
		name string
		v    any
	}{
		{"http", cfg.HTTP},
		{"queue", cfg.Queue},
		{"agent", cfg.Agent},
		{"remediation", cfg.Remediation},
		{"retention", cfg.Retention},
		{"logs", cfg.Logs},
		{"slack", cfg.Slack},
		{"github", cfg.GitHub},
		{"pagerduty", cfg.PagerDuty},
	}
	for _, s := range sections {
		if isNilPointer(s.v) {
			return NewValidationError(s.name, "", ErrMissingRequiredField)
		}
		if err := structValidator.Struct(s.v); err != nil {
			return toValidationError(s.name, err)
		}
	}

	if cfg.DashboardURL != "" {
		if _, err := url.ParseRequestURI(cfg.DashboardURL); err != nil {
			return NewValidationError("system", "dashboard_url", fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
	}

	if cfg.Slack.IsEnabled() {
		if cfg.Slack.Token() == "" {
			return NewValidationError("slack", "token_env",
				fmt.Errorf("%w: slack is enabled but %s is not set", ErrMissingRequiredField, cfg.Slack.TokenEnv))
		}
	}

	for _, tool := range cfg.Agent.DiagnosisTools {
		if isWriteTool(tool) {
			return NewValidationError("agent", "diagnosis_tools",
				fmt.Errorf("%w: %q grants write access", ErrInvalidValue, tool))
		}
	}

	return nil
}

// isWriteTool reports whether an agent capability can modify the repository.
func isWriteTool(tool string) bool {
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case "edit", "write", "multiedit", "bash", "notebookedit":
		return true
	}
	return false
}

func toValidationError(section string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return NewValidationError(section, fe.Field(),
			fmt.Errorf("%w: failed '%s' check (value %v)", ErrInvalidValue, fe.Tag(), fe.Value()))
	}
	return NewValidationError(section, "", err)
}
