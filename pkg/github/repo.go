package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/codeready-toolchain/responder/pkg/config"
)

// BranchPrefix prefixes every fix branch.
const BranchPrefix = "incident-responder/fix-"

const remoteName = "origin"

// Workspace manages per-incident local clones.
type Workspace struct {
	root        string
	cloneBase   string
	token       string
	authorName  string
	authorEmail string
	logger      *slog.Logger
}

// NewWorkspace creates a Workspace rooted at dir.
func NewWorkspace(cfg *config.GitHubConfig, dir string) *Workspace {
	return &Workspace{
		root:        dir,
		cloneBase:   strings.TrimSuffix(cfg.CloneBaseURL, "/"),
		token:       cfg.Token(),
		authorName:  cfg.AuthorName,
		authorEmail: cfg.AuthorEmail,
		logger:      slog.With("component", "git_workspace"),
	}
}

// BranchName returns the fix branch for an incident.
func BranchName(incidentID string) string {
	return BranchPrefix + incidentID
}

// CloneDir returns the clone location for one incident.
func (w *Workspace) CloneDir(owner, repo, incidentID string) string {
	return filepath.Join(w.root, owner, repo, incidentID)
}

// EnsureClone makes sure the incident's clone exists and sits on the tip of
// the base branch with a clean worktree. An existing clone is fetched and
// hard-reset instead of cloned again.
func (w *Workspace) EnsureClone(ctx context.Context, owner, repo, base, incidentID string) (string, error) {
	dir := w.CloneDir(owner, repo, incidentID)
	url := fmt.Sprintf("%s/%s/%s.git", w.cloneBase, owner, repo)
	baseRef := plumbing.NewBranchReferenceName(base)

	r, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return "", fmt.Errorf("create workspace dir: %w", err)
		}
		w.logger.Info("Cloning repository", "repo", owner+"/"+repo, "branch", base, "dir", dir)
		_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           url,
			Auth:          w.auth(url),
			RemoteName:    remoteName,
			ReferenceName: baseRef,
			SingleBranch:  true,
		})
		if err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("clone %s/%s: %w", owner, repo, err)
		}
		return dir, nil
	}
	if err != nil {
		return "", fmt.Errorf("open clone %s: %w", dir, err)
	}

	w.logger.Debug("Clone exists, fetching latest", "dir", dir)
	err = r.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Auth:       w.auth(url),
		Force:      true,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", base, remoteName, base)),
		},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("fetch %s/%s: %w", owner, repo, err)
	}

	remote, err := r.Reference(plumbing.NewRemoteReferenceName(remoteName, base), true)
	if err != nil {
		return "", fmt.Errorf("resolve %s/%s: %w", remoteName, base, err)
	}
	if err := r.Storer.SetReference(plumbing.NewHashReference(baseRef, remote.Hash())); err != nil {
		return "", fmt.Errorf("update %s: %w", base, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: baseRef, Force: true}); err != nil {
		return "", fmt.Errorf("checkout %s: %w", base, err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remote.Hash(), Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("reset to %s: %w", base, err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return "", fmt.Errorf("clean worktree: %w", err)
	}
	return dir, nil
}

// CreateBranch points the incident's fix branch at HEAD and checks it out.
// A branch left over from an earlier attempt is reset.
func (w *Workspace) CreateBranch(_ context.Context, dir, incidentID string) (string, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("open clone %s: %w", dir, err)
	}
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	branch := BranchName(incidentID)
	ref := plumbing.NewBranchReferenceName(branch)
	if err := r.Storer.SetReference(plumbing.NewHashReference(ref, head.Hash())); err != nil {
		return "", fmt.Errorf("create branch %s: %w", branch, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Force: true}); err != nil {
		return "", fmt.Errorf("checkout %s: %w", branch, err)
	}
	w.logger.Info("Created fix branch", "branch", branch, "dir", dir)
	return branch, nil
}

// CommitAndPush stages every change, commits and force-pushes the branch.
// It reports false without pushing when there is nothing to commit.
func (w *Workspace) CommitAndPush(ctx context.Context, dir, branch, message string) (bool, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("open clone %s: %w", dir, err)
	}
	wt, err := r.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("stage changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("read status: %w", err)
	}
	if status.IsClean() {
		w.logger.Warn("No changes to commit after fix application", "branch", branch)
		return false, nil
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: w.authorName, Email: w.authorEmail, When: time.Now()},
	})
	if err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	remote, err := r.Remote(remoteName)
	if err != nil {
		return false, fmt.Errorf("resolve remote: %w", err)
	}
	url := remote.Config().URLs[0]
	err = r.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		Auth:       w.auth(url),
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/heads/%s", branch, branch)),
		},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("push %s: %w", branch, err)
	}

	w.logger.Info("Pushed fix branch", "branch", branch, "commit", hash.String()[:8], "files", len(status))
	return true, nil
}

// Remove deletes an incident's clone.
func (w *Workspace) Remove(dir string) error {
	if !strings.HasPrefix(filepath.Clean(dir), filepath.Clean(w.root)+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s outside workspace %s", dir, w.root)
	}
	return os.RemoveAll(dir)
}

// Clone is one incident's checkout inside the workspace.
type Clone struct {
	Owner      string
	Repo       string
	IncidentID string
	Dir        string
	ModTime    time.Time
}

// Clones lists the incident clones under the workspace root. A missing root
// yields no clones.
func (w *Workspace) Clones() ([]Clone, error) {
	matches, err := filepath.Glob(filepath.Join(w.root, "*", "*", "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace: %w", err)
	}
	clones := make([]Clone, 0, len(matches))
	for _, dir := range matches {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(w.root, dir)
		if err != nil {
			continue
		}
		parts := strings.Split(rel, string(filepath.Separator))
		clones = append(clones, Clone{
			Owner:      parts[0],
			Repo:       parts[1],
			IncidentID: parts[2],
			Dir:        dir,
			ModTime:    info.ModTime(),
		})
	}
	return clones, nil
}

// auth returns token credentials for HTTP(S) remotes only.
func (w *Workspace) auth(url string) transport.AuthMethod {
	if w.token == "" || !(strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")) {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: w.token}
}
