// Package github implements the version-control collaborator: local clones
// with go-git and pull requests over the GitHub REST and GraphQL APIs.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/version"
)

// Client talks to the GitHub API.
type Client struct {
	httpClient *http.Client
	apiURL     string
	graphqlURL string
	token      string
	logger     *slog.Logger
}

// NewClient creates an API client. The GraphQL endpoint is derived from the
// REST base URL, which also covers GitHub Enterprise "/api/v3" URLs.
func NewClient(cfg *config.GitHubConfig) *Client {
	api := strings.TrimSuffix(cfg.APIURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     api,
		graphqlURL: strings.TrimSuffix(api, "/v3") + "/graphql",
		token:      cfg.Token(),
		logger:     slog.With("component", "github"),
	}
}

type pullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	NodeID  string `json:"node_id"`
	Draft   bool   `json:"draft"`
	State   string `json:"state"`
}

func (p pullRequest) ref() *models.PullRequestRef {
	return &models.PullRequestRef{URL: p.HTMLURL, Number: p.Number}
}

// createDraftPR opens a draft pull request from head into base.
func (c *Client) createDraftPR(ctx context.Context, owner, repo, head, base, title, body string) (*models.PullRequestRef, error) {
	var pr pullRequest
	err := c.do(ctx, http.MethodPost, c.repoPath(owner, repo, "pulls"), map[string]any{
		"title": title,
		"body":  body,
		"head":  head,
		"base":  base,
		"draft": true,
	}, &pr, http.StatusCreated)
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	c.logger.Info("Draft PR created", "repo", owner+"/"+repo, "number", pr.Number, "url", pr.HTMLURL)
	return pr.ref(), nil
}

// FindOpenPR returns the open pull request whose head is branch, or nil.
func (c *Client) FindOpenPR(ctx context.Context, owner, repo, branch string) (*models.PullRequestRef, error) {
	q := url.Values{"head": {owner + ":" + branch}, "state": {"open"}}
	var prs []pullRequest
	if err := c.do(ctx, http.MethodGet, c.repoPath(owner, repo, "pulls")+"?"+q.Encode(), nil, &prs, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return prs[0].ref(), nil
}

// MarkReady converts a draft pull request into one ready for review. The
// REST API cannot un-draft, so this goes through GraphQL.
func (c *Client) MarkReady(ctx context.Context, owner, repo string, number int) error {
	var pr pullRequest
	if err := c.do(ctx, http.MethodGet, c.repoPath(owner, repo, fmt.Sprintf("pulls/%d", number)), nil, &pr, http.StatusOK); err != nil {
		return fmt.Errorf("get pull request #%d: %w", number, err)
	}
	if !pr.Draft {
		c.logger.Info("PR already ready for review", "repo", owner+"/"+repo, "number", number)
		return nil
	}

	var resp struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	err := c.doURL(ctx, http.MethodPost, c.graphqlURL, map[string]any{
		"query": `mutation($id: ID!) {
  markPullRequestReadyForReview(input: { pullRequestId: $id }) {
    pullRequest { id }
  }
}`,
		"variables": map[string]string{"id": pr.NodeID},
	}, &resp, http.StatusOK)
	if err != nil {
		return fmt.Errorf("mark pull request #%d ready: %w", number, err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("mark pull request #%d ready: %s", number, resp.Errors[0].Message)
	}
	c.logger.Info("PR marked as ready for review", "repo", owner+"/"+repo, "number", number)
	return nil
}

// ClosePR closes a pull request without merging.
func (c *Client) ClosePR(ctx context.Context, owner, repo string, number int) error {
	err := c.do(ctx, http.MethodPatch, c.repoPath(owner, repo, fmt.Sprintf("pulls/%d", number)),
		map[string]string{"state": "closed"}, nil, http.StatusOK)
	if err != nil {
		return fmt.Errorf("close pull request #%d: %w", number, err)
	}
	c.logger.Info("PR closed", "repo", owner+"/"+repo, "number", number)
	return nil
}

func (c *Client) repoPath(owner, repo, rest string) string {
	return fmt.Sprintf("/repos/%s/%s/%s", url.PathEscape(owner), url.PathEscape(repo), rest)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, want int) error {
	return c.doURL(ctx, method, c.apiURL+path, in, out, want)
}

func (c *Client) doURL(ctx context.Context, method, target string, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.Full())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GitHub API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
