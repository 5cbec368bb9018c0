package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "responder.yaml"

// ResponderYAMLConfig represents the complete responder.yaml file structure.
type ResponderYAMLConfig struct {
	DashboardURL string             `yaml:"dashboard_url"`
	HTTP         *HTTPConfig        `yaml:"http"`
	Queue        *QueueConfig       `yaml:"queue"`
	Agent        *AgentConfig       `yaml:"agent"`
	Remediation  *RemediationConfig `yaml:"remediation"`
	Retention    *RetentionConfig   `yaml:"retention"`
	Logs         *LogsConfig        `yaml:"logs"`
	Slack        *SlackConfig       `yaml:"slack"`
	GitHub       *GitHubConfig      `yaml:"github"`
	PagerDuty    *PagerDutyConfig   `yaml:"pagerduty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load responder.yaml from configDir (a missing file means all defaults)
//  2. Expand {{.VAR}} environment references
//  3. Merge the file over built-in defaults
//  4. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"workers", cfg.Queue.WorkerCount,
		"agent_cli", cfg.Agent.CLIPath,
		"slack_enabled", cfg.Slack.IsEnabled(),
		"min_confidence", cfg.Remediation.MinConfidence)
	return cfg, nil
}

// Defaults returns a Config populated only with built-in defaults.
func Defaults() *Config {
	return &Config{
		DashboardURL: "http://localhost:3000",
		HTTP:         DefaultHTTPConfig(),
		Queue:        DefaultQueueConfig(),
		Agent:        DefaultAgentConfig(),
		Remediation:  DefaultRemediationConfig(),
		Retention:    DefaultRetentionConfig(),
		Logs:         DefaultLogsConfig(),
		Slack:        DefaultSlackConfig(),
		GitHub:       DefaultGitHubConfig(),
		PagerDuty:    DefaultPagerDutyConfig(),
	}
}

func load(_ context.Context, configDir string) (*Config, error) {
	file, err := loadYAML(filepath.Join(configDir, FileName))
	if err != nil {
		return nil, NewLoadError(FileName, err)
	}

	cfg := Defaults()
	cfg.configDir = configDir
	if file == nil {
		slog.Warn("No configuration file found, using defaults", "file", FileName, "config_dir", configDir)
		return cfg, nil
	}

	if file.DashboardURL != "" {
		cfg.DashboardURL = file.DashboardURL
	}

	// Non-zero values in the file override the defaults.
	sections := []struct {
		name string
		dst  any
		src  any
	}{
		{"http", cfg.HTTP, file.HTTP},
		{"queue", cfg.Queue, file.Queue},
		{"agent", cfg.Agent, file.Agent},
		{"remediation", cfg.Remediation, file.Remediation},
		{"retention", cfg.Retention, file.Retention},
		{"logs", cfg.Logs, file.Logs},
		{"slack", cfg.Slack, file.Slack},
		{"github", cfg.GitHub, file.GitHub},
		{"pagerduty", cfg.PagerDuty, file.PagerDuty},
	}
	for _, s := range sections {
		if isNilPointer(s.src) {
			continue
		}
		if err := mergo.Merge(s.dst, s.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}

// loadYAML reads, expands and parses path. A missing file yields (nil, nil).
func loadYAML(path string) (*ResponderYAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var file ResponderYAMLConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &file, nil
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *HTTPConfig:
		return p == nil
	case *QueueConfig:
		return p == nil
	case *AgentConfig:
		return p == nil
	case *RemediationConfig:
		return p == nil
	case *LogsConfig:
		return p == nil
	case *SlackConfig:
		return p == nil
	case *GitHubConfig:
		return p == nil
	case *PagerDutyConfig:
		return p == nil
	default:
		return v == nil
	}
}
