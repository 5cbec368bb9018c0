package github

import "github.com/codeready-toolchain/responder/pkg/config"

// VCS combines local clone management with the pull request API.
type VCS struct {
	*Workspace
	*Client
}

// New creates the version-control collaborator.
func New(cfg *config.GitHubConfig, workspaceDir string) *VCS {
	return &VCS{
		Workspace: NewWorkspace(cfg, workspaceDir),
		Client:    NewClient(cfg),
	}
}
