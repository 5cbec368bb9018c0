package config

// Config is the umbrella configuration object returned by Initialize and
// handed to every component at startup.
type Config struct {
	configDir string

	DashboardURL string

	HTTP        *HTTPConfig
	Queue       *QueueConfig
	Agent       *AgentConfig
	Remediation *RemediationConfig
	Retention   *RetentionConfig
	Logs        *LogsConfig
	Slack       *SlackConfig
	GitHub      *GitHubConfig
	PagerDuty   *PagerDutyConfig
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}
