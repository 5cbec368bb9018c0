package github

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/codeready-toolchain/responder/pkg/models"
)

const prTitleRootCauseLen = 60

// DraftPR describes the pull request proposed for an incident.
type DraftPR struct {
	Owner        string
	Repo         string
	Branch       string
	Base         string
	IncidentID   string
	Diagnosis    *models.DiagnosisResult
	ReferenceURL string
}

// OpenDraftPR opens the incident's draft pull request. When an open pull
// request already exists for the branch (a retried job) it is returned instead.
func (c *Client) OpenDraftPR(ctx context.Context, pr DraftPR) (*models.PullRequestRef, error) {
	if pr.Diagnosis == nil {
		return nil, fmt.Errorf("open draft pull request: no diagnosis")
	}
	existing, err := c.FindOpenPR(ctx, pr.Owner, pr.Repo, pr.Branch)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logger.Info("Reusing open PR for fix branch", "branch", pr.Branch, "number", existing.Number)
		return existing, nil
	}
	return c.createDraftPR(ctx, pr.Owner, pr.Repo, pr.Branch, pr.Base, PRTitle(pr.Diagnosis), PRBody(pr))
}

// PRTitle returns "[Incident Response] " followed by the start of the root cause.
func PRTitle(d *models.DiagnosisResult) string {
	return "[Incident Response] " + truncateRunes(firstLine(d.RootCause), prTitleRootCauseLen)
}

// CommitMessage returns the fix commit message for an incident.
func CommitMessage(title, incidentID string, d *models.DiagnosisResult) string {
	rootCause := ""
	if d != nil {
		rootCause = truncateRunes(d.RootCause, 200)
	}
	return fmt.Sprintf("fix: automated incident response for %s\n\nIncident ID: %s\nRoot cause: %s", title, incidentID, rootCause)
}

// PRBody renders the pull request description.
func PRBody(pr DraftPR) string {
	d := pr.Diagnosis
	var sb strings.Builder

	sb.WriteString("## Automated Incident Response\n\n")
	fmt.Fprintf(&sb, "**Incident ID**: `%s`\n", pr.IncidentID)
	ref := pr.ReferenceURL
	if ref == "" {
		ref = "_N/A_"
	}
	fmt.Fprintf(&sb, "**PagerDuty**: %s\n", ref)
	fmt.Fprintf(&sb, "**Confidence**: %d%%\n\n---\n\n", int(math.Round(d.Confidence*100)))

	sb.WriteString("### Root Cause Analysis\n")
	sb.WriteString(d.RootCause)
	sb.WriteString("\n\n### Affected Files\n")
	if len(d.AffectedFiles) == 0 {
		sb.WriteString("_None identified_\n")
	}
	for _, f := range d.AffectedFiles {
		fmt.Fprintf(&sb, "- `%s`\n", f)
	}

	sb.WriteString("\n### Changes Made\n")
	if len(d.ProposedChanges) == 0 {
		sb.WriteString("_No code changes proposed_\n")
	} else {
		var total diff.Stat
		for _, c := range d.ProposedChanges {
			st := ChangeStat(c.Diff)
			total.Added += st.Added
			total.Changed += st.Changed
			total.Deleted += st.Deleted
		}
		fmt.Fprintf(&sb, "%d file(s): +%d ~%d -%d\n\n", len(d.ProposedChanges), total.Added, total.Changed, total.Deleted)
		for i, c := range d.ProposedChanges {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "#### `%s`\n", c.FilePath)
			if c.Explanation != "" {
				sb.WriteString(c.Explanation)
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "```diff\n%s\n```\n", c.Diff)
		}
	}

	fmt.Fprintf(&sb, "\n### Risk Assessment\n**Level**: %s\n", d.RiskLevel)
	rollback := d.RollbackPlan
	if rollback == "" {
		rollback = "Revert this PR."
	}
	fmt.Fprintf(&sb, "\n### Rollback Plan\n%s\n", rollback)
	sb.WriteString("\n---\n> This PR was generated automatically by the **Incident Responder Bot**.\n> A human reviewer must approve before merging.\n")
	return sb.String()
}

// ChangeStat counts added, changed and deleted lines in a proposed diff.
// Agent diffs often lack file and hunk headers, so a synthetic hunk header is
// supplied and unprefixed lines are treated as context.
func ChangeStat(text string) diff.Stat {
	var body []string
	sawHunk := false
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			sawHunk = true
		case !sawHunk && (strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") ||
			strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, "index ")):
			continue
		case line == "" || !strings.ContainsRune(" -+\\", rune(line[0])):
			line = " " + line
		}
		body = append(body, line)
	}
	if len(body) == 0 {
		return diff.Stat{}
	}
	if !sawHunk {
		body = append([]string{"@@ -0,0 +0,0 @@"}, body...)
	}

	hunks, err := diff.ParseHunks([]byte(strings.Join(body, "\n") + "\n"))
	if err != nil {
		return diff.Stat{}
	}
	fd := diff.FileDiff{Hunks: hunks}
	return fd.Stat()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
