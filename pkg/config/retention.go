package config

import "time"

// RetentionConfig controls how long per-incident clones are kept in the
// workspace once their incident is finished.
type RetentionConfig struct {
	// WorkspaceRetention is how long a clone survives after its incident
	// reached a terminal state.
	WorkspaceRetention time.Duration `yaml:"workspace_retention" validate:"gt=0"`

	// CleanupInterval is how often the workspace is swept.
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		WorkspaceRetention: 24 * time.Hour,
		CleanupInterval:    1 * time.Hour,
	}
}
