package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/responder/pkg/logs"
	"github.com/codeready-toolchain/responder/pkg/models"
)

func testService() models.ServiceConfig {
	return models.ServiceConfig{
		Name:          "checkout",
		RepoOwner:     "acme",
		RepoName:      "checkout-api",
		DefaultBranch: "main",
	}
}

func TestBuildDiagnosisPrompt(t *testing.T) {
	alert := models.AlertDescriptor{
		ExternalID: "PD123",
		Title:      "High error rate on checkout",
		Urgency:    models.UrgencyHigh,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		HTMLURL:    "https://acme.pagerduty.com/incidents/PD123",
		Details:    "5xx rate 45%\n\nendpoint POST /checkout",
	}

	t.Run("full evidence", func(t *testing.T) {
		p := BuildDiagnosisPrompt(alert, &logs.Result{
			Logs:         "ERROR boom\n",
			StackTraces:  []string{"Error: boom\n    at f (a.js:1:1)", "Error: two"},
			RawLineCount: 200,
			Truncated:    true,
		}, testService())

		assert.Contains(t, p, "# Incident Diagnosis Request")
		assert.Contains(t, p, "- **Title**: High error rate on checkout")
		assert.Contains(t, p, "- **Severity**: HIGH")
		assert.Contains(t, p, "- **Service**: checkout")
		assert.Contains(t, p, "- **Triggered At**: 2026-03-01T12:00:00Z")
		assert.Contains(t, p, "- **PagerDuty URL**: https://acme.pagerduty.com/incidents/PD123")
		assert.Contains(t, p, "## Alert Details\n- 5xx rate 45%\n- endpoint POST /checkout\n")
		assert.Contains(t, p, "## Error Logs\n```\nERROR boom\n```\n")
		assert.Contains(t, p, "Showing 200 of available lines.")
		assert.Contains(t, p, "### Stack Trace 1\n```\nError: boom\n    at f (a.js:1:1)\n```")
		assert.Contains(t, p, "### Stack Trace 2\n```\nError: two\n```")
		assert.Contains(t, p, "- **Repo**: acme/checkout-api")
		assert.Contains(t, p, "- **Default Branch**: main")
		for _, section := range sectionNames {
			assert.Contains(t, p, "### "+section+"\n")
		}
		assert.Contains(t, p, "#### FILE: path/to/file.go")
	})

	t.Run("no evidence", func(t *testing.T) {
		a := alert
		a.Details = ""
		p := BuildDiagnosisPrompt(a, nil, testService())
		assert.Contains(t, p, "_No additional details._")
		assert.Contains(t, p, "_No stack traces found._")
		assert.NotContains(t, p, "truncated")
	})
}

func TestBuildFixPrompt(t *testing.T) {
	p := BuildFixPrompt("### ROOT_CAUSE\nDisk full.\n", testService())
	assert.Contains(t, p, "# Apply Incident Fix")
	assert.Contains(t, p, "## Previous Diagnosis\n### ROOT_CAUSE\nDisk full.\n\n")
	assert.Contains(t, p, "- **Repo**: acme/checkout-api")
	assert.Contains(t, p, "Do NOT make any changes beyond what was proposed")
}

func TestPromptRoundTripsThroughParser(t *testing.T) {
	// The output template itself must parse without tripping the degenerate rule.
	d := ParseDiagnosis(diagnosisOutputFormat)
	assert.Equal(t, "One paragraph explaining the root cause.", d.RootCause)
	assert.Equal(t, []string{"path/to/file1.go", "path/to/file2.go"}, d.AffectedFiles)
	if assert.Len(t, d.ProposedChanges, 1) {
		assert.Equal(t, "path/to/file.go", d.ProposedChanges[0].FilePath)
		assert.Equal(t, "Why this change fixes the issue.", d.ProposedChanges[0].Explanation)
	}
}
