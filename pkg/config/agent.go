package config

import "time"

// AgentConfig describes how the external diagnostic agent CLI is invoked.
type AgentConfig struct {
	// CLIPath is the agent executable, resolved through PATH when relative.
	CLIPath string `yaml:"cli_path" validate:"required"`

	MaxTurns     int    `yaml:"max_turns" validate:"min=1"`
	OutputFormat string `yaml:"output_format" validate:"oneof=text json stream-json"`

	// Timeout is the hard wall-clock limit for one invocation.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`

	// KillGrace is how long the process has to exit after SIGTERM before it
	// is killed.
	KillGrace time.Duration `yaml:"kill_grace" validate:"gt=0"`

	// DiagnosisTools is the read-only capability allowlist.
	DiagnosisTools []string `yaml:"diagnosis_tools" validate:"min=1,dive,required"`

	// FixTools is the read/write capability allowlist used to apply a fix.
	FixTools []string `yaml:"fix_tools" validate:"min=1,dive,required"`

	// APIKeyEnv names the env var holding the agent's model API key. It is
	// forwarded to the subprocess.
	APIKeyEnv string `yaml:"api_key_env"`

	// ScratchDir holds per-invocation prompt files. Defaults to the OS temp dir.
	ScratchDir string `yaml:"scratch_dir"`
}

// DefaultAgentConfig returns the built-in agent defaults.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		CLIPath:        "claude",
		MaxTurns:       25,
		OutputFormat:   "text",
		Timeout:        300 * time.Second,
		KillGrace:      5 * time.Second,
		DiagnosisTools: []string{"Read", "Grep", "Glob"},
		FixTools:       []string{"Read", "Grep", "Glob", "Edit", "Write"},
		APIKeyEnv:      "ANTHROPIC_API_KEY",
	}
}

// RemediationConfig controls gating and local repository workspaces.
type RemediationConfig struct {
	// MinConfidence is the lowest diagnosis confidence that may trigger
	// repository writes.
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`

	// WorkspaceDir is the root for per-incident repository clones.
	WorkspaceDir string `yaml:"workspace_dir" validate:"required"`
}

// DefaultRemediationConfig returns the built-in remediation defaults.
func DefaultRemediationConfig() *RemediationConfig {
	return &RemediationConfig{
		MinConfidence: 0.3,
		WorkspaceDir:  "/tmp/incident-responder/repos",
	}
}
