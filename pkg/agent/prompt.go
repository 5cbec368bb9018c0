package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/responder/pkg/logs"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// BuildDiagnosisPrompt renders the read-only diagnosis request for an alert.
func BuildDiagnosisPrompt(alert models.AlertDescriptor, evidence *logs.Result, svc models.ServiceConfig) string {
	if evidence == nil {
		evidence = &logs.Result{}
	}

	var sb strings.Builder
	sb.WriteString("# Incident Diagnosis Request\n\n")

	sb.WriteString("## Incident Details\n")
	fmt.Fprintf(&sb, "- **Title**: %s\n", alert.Title)
	fmt.Fprintf(&sb, "- **Severity**: %s\n", strings.ToUpper(string(alert.Urgency)))
	fmt.Fprintf(&sb, "- **Service**: %s\n", svc.Name)
	if !alert.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Triggered At**: %s\n", alert.CreatedAt.UTC().Format(time.RFC3339))
	}
	if alert.HTMLURL != "" {
		fmt.Fprintf(&sb, "- **PagerDuty URL**: %s\n", alert.HTMLURL)
	}
	sb.WriteString("\n")

	sb.WriteString("## Alert Details\n")
	sb.WriteString(formatAlertDetails(alert.Details))
	sb.WriteString("\n\n")

	sb.WriteString("## Error Logs\n```\n")
	sb.WriteString(strings.TrimRight(evidence.Logs, "\n"))
	sb.WriteString("\n```\n")
	if evidence.Truncated {
		fmt.Fprintf(&sb, "\n> Note: Logs were truncated. Showing %d of available lines.\n", evidence.RawLineCount)
	}
	sb.WriteString("\n")

	sb.WriteString("## Stack Traces\n")
	if len(evidence.StackTraces) == 0 {
		sb.WriteString("_No stack traces found._\n")
	}
	for i, st := range evidence.StackTraces {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "### Stack Trace %d\n```\n%s\n```\n", i+1, st)
	}
	sb.WriteString("\n")

	sb.WriteString("## Repository\n")
	fmt.Fprintf(&sb, "- **Repo**: %s\n", svc.RepoFullName())
	fmt.Fprintf(&sb, "- **Default Branch**: %s\n\n", svc.DefaultBranch)

	sb.WriteString(diagnosisTask)
	sb.WriteString("\n\n")
	sb.WriteString(diagnosisOutputFormat)
	return sb.String()
}

// BuildFixPrompt renders the fix-application request from a previous
// diagnosis' raw output.
func BuildFixPrompt(diagnosisRaw string, svc models.ServiceConfig) string {
	var sb strings.Builder
	sb.WriteString("# Apply Incident Fix\n\n")
	sb.WriteString("You previously diagnosed an incident and proposed changes. Now apply those changes.\n\n")
	sb.WriteString("## Previous Diagnosis\n")
	sb.WriteString(strings.TrimSpace(diagnosisRaw))
	sb.WriteString("\n\n")
	sb.WriteString("## Repository\n")
	fmt.Fprintf(&sb, "- **Repo**: %s\n", svc.RepoFullName())
	sb.WriteString("- **Branch**: You are on a fix branch already.\n\n")
	sb.WriteString(fixTask)
	return sb.String()
}

func formatAlertDetails(details string) string {
	var lines []string
	for _, l := range strings.Split(details, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, "- "+l)
		}
	}
	if len(lines) == 0 {
		return "_No additional details._"
	}
	return strings.Join(lines, "\n")
}
