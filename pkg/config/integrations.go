package config

import (
	"os"
	"time"
)

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// DefaultHTTPConfig returns the built-in HTTP defaults.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LogsConfig controls log retrieval around an alert.
type LogsConfig struct {
	// WindowBefore and WindowAfter bound the query around the alert time.
	WindowBefore time.Duration `yaml:"window_before" validate:"gte=0"`
	WindowAfter  time.Duration `yaml:"window_after" validate:"gte=0"`
	Severity     string        `yaml:"severity" validate:"required"`
	MaxLines     int           `yaml:"max_lines" validate:"min=1"`
	Environment  string        `yaml:"environment"`

	Datadog    *DatadogConfig    `yaml:"datadog"`
	CloudWatch *CloudWatchConfig `yaml:"cloudwatch"`
	Masking    *MaskingConfig    `yaml:"masking"`
}

// MaskingConfig selects the redaction applied to fetched logs before they
// reach the agent, the pull request or chat.
type MaskingConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// PatternGroups and Patterns name built-in patterns; both are unioned.
	PatternGroups []string `yaml:"pattern_groups"`
	Patterns      []string `yaml:"patterns"`

	CustomPatterns []MaskingPattern `yaml:"custom_patterns" validate:"dive"`
}

// IsEnabled reports whether masking is switched on.
func (c *MaskingConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// MaskingPattern is a user-supplied regex and its replacement.
type MaskingPattern struct {
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement" validate:"required"`
	Description string `yaml:"description"`
}

// DatadogConfig holds Datadog Logs API settings.
type DatadogConfig struct {
	Site          string  `yaml:"site"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	AppKeyEnv     string  `yaml:"app_key_env"`
	RatePerSecond float64 `yaml:"rate_per_second" validate:"gte=0"`
}

// APIKey returns the resolved Datadog API key.
func (c *DatadogConfig) APIKey() string { return os.Getenv(c.APIKeyEnv) }

// AppKey returns the resolved Datadog application key.
func (c *DatadogConfig) AppKey() string { return os.Getenv(c.AppKeyEnv) }

// CloudWatchConfig holds CloudWatch Logs settings. Credentials come from the
// default AWS chain.
type CloudWatchConfig struct {
	Region   string `yaml:"region"`
	LogGroup string `yaml:"log_group"`
}

// DefaultLogsConfig returns the built-in log retrieval defaults.
func DefaultLogsConfig() *LogsConfig {
	enabled := true
	return &LogsConfig{
		WindowBefore: 5 * time.Minute,
		WindowAfter:  2 * time.Minute,
		Severity:     "ERROR",
		MaxLines:     200,
		Environment:  "production",
		Datadog: &DatadogConfig{
			Site:          "datadoghq.com",
			APIKeyEnv:     "DATADOG_API_KEY",
			AppKeyEnv:     "DATADOG_APP_KEY",
			RatePerSecond: 2,
		},
		CloudWatch: &CloudWatchConfig{},
		Masking: &MaskingConfig{
			Enabled:       &enabled,
			PatternGroups: []string{"logs"},
		},
	}
}

// SlackConfig holds Slack notification and interaction settings.
type SlackConfig struct {
	Enabled     *bool   `yaml:"enabled,omitempty"`
	TokenEnv    string  `yaml:"token_env"`
	AppTokenEnv string  `yaml:"app_token_env"`
	Channel     string  `yaml:"channel"`
	RateLimit   float64 `yaml:"rate_limit" validate:"gte=0"`
}

// IsEnabled reports whether Slack is switched on.
func (c *SlackConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// Token returns the resolved bot token.
func (c *SlackConfig) Token() string { return os.Getenv(c.TokenEnv) }

// AppToken returns the resolved socket-mode app token.
func (c *SlackConfig) AppToken() string { return os.Getenv(c.AppTokenEnv) }

// DefaultSlackConfig returns the built-in Slack defaults.
func DefaultSlackConfig() *SlackConfig {
	enabled := false
	return &SlackConfig{
		Enabled:     &enabled,
		TokenEnv:    "SLACK_BOT_TOKEN",
		AppTokenEnv: "SLACK_APP_TOKEN",
		RateLimit:   1,
	}
}

// GitHubConfig holds GitHub integration settings.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env"`

	// APIURL is the REST base URL; GraphQL is derived from it.
	APIURL string `yaml:"api_url" validate:"required,url"`

	// CloneBaseURL is prefixed to owner/repo for HTTPS clones.
	CloneBaseURL string `yaml:"clone_base_url" validate:"required,url"`

	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Token returns the resolved GitHub token.
func (c *GitHubConfig) Token() string { return os.Getenv(c.TokenEnv) }

// DefaultGitHubConfig returns the built-in GitHub defaults.
func DefaultGitHubConfig() *GitHubConfig {
	return &GitHubConfig{
		TokenEnv:     "GITHUB_TOKEN",
		APIURL:       "https://api.github.com",
		CloneBaseURL: "https://github.com",
		AuthorName:   "Incident Responder",
		AuthorEmail:  "incident-responder@users.noreply.github.com",
	}
}

// PagerDutyConfig holds inbound webhook settings.
type PagerDutyConfig struct {
	WebhookSecretEnv string `yaml:"webhook_secret_env"`
}

// WebhookSecret returns the resolved signing secret. Empty disables
// signature verification.
func (c *PagerDutyConfig) WebhookSecret() string { return os.Getenv(c.WebhookSecretEnv) }

// DefaultPagerDutyConfig returns the built-in PagerDuty defaults.
func DefaultPagerDutyConfig() *PagerDutyConfig {
	return &PagerDutyConfig{WebhookSecretEnv: "PAGERDUTY_WEBHOOK_SECRET"}
}
