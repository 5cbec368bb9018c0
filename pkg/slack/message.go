package slack

import (
	"fmt"
	"math"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/responder/pkg/models"
)

const (
	maxBlockTextLength  = 2900
	maxHeaderTextLength = 150
)

// Action ID prefixes of the review buttons. The incident ID follows.
const (
	ApproveActionPrefix = "approve_fix_"
	RejectActionPrefix  = "reject_fix_"
)

// IncidentInfo is the incident context shared by every message.
type IncidentInfo struct {
	ID           string
	Title        string
	Urgency      models.Urgency
	ServiceName  string
	ReferenceURL string
}

var urgencyEmoji = map[models.Urgency]string{
	models.UrgencyHigh: ":red_circle:",
	models.UrgencyLow:  ":large_yellow_circle:",
}

var statusLine = map[models.IncidentStatus]string{
	models.StatusReceived:      ":mag: *Status:* Investigating... fetching logs and analyzing.",
	models.StatusFetchingLogs:  ":page_facing_up: Fetching logs and stack traces...",
	models.StatusDiagnosing:    ":brain: Analyzing root cause...",
	models.StatusGeneratingFix: ":wrench: Generating code fix...",
	models.StatusCreatingPR:    ":octocat: Creating draft pull request...",
	models.StatusNotifying:     ":white_check_mark: Analysis complete! Preparing summary...",
}

func incidentURL(dashboardURL, incidentID string) string {
	return fmt.Sprintf("%s/incidents/%s", strings.TrimSuffix(dashboardURL, "/"), incidentID)
}

func headerBlock(prefix string, info IncidentInfo) goslack.Block {
	icon := "⚠️"
	if info.Urgency == models.UrgencyHigh {
		icon = "🚨"
	}
	text := truncate(fmt.Sprintf("%s %s: %s", icon, prefix, info.Title), maxHeaderTextLength, "…")
	return goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, text, true, false))
}

func fieldsBlock(info IncidentInfo, extra ...string) goslack.Block {
	emoji := urgencyEmoji[info.Urgency]
	if emoji == "" {
		emoji = ":white_circle:"
	}
	texts := append([]string{
		fmt.Sprintf("*Severity:* %s %s", emoji, strings.ToUpper(string(info.Urgency))),
		fmt.Sprintf("*Service:* %s", info.ServiceName),
	}, extra...)
	fields := make([]*goslack.TextBlockObject, 0, len(texts))
	for _, t := range texts {
		fields = append(fields, markdown(t))
	}
	return goslack.NewSectionBlock(nil, fields, nil)
}

func sectionBlock(text string) goslack.Block {
	return goslack.NewSectionBlock(markdown(truncateForSlack(text)), nil, nil)
}

func contextBlock(text string) goslack.Block {
	return goslack.NewContextBlock("", markdown(text))
}

func markdown(text string) *goslack.TextBlockObject {
	return goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false)
}

func linkButton(text, url string) *goslack.ButtonBlockElement {
	btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, text, true, false))
	btn.URL = url
	return btn
}

// BuildInitialMessage creates the message posted when an incident starts.
func BuildInitialMessage(info IncidentInfo, dashboardURL string) []goslack.Block {
	return []goslack.Block{
		headerBlock("Incident", info),
		fieldsBlock(info),
		sectionBlock(statusLine[models.StatusReceived]),
		contextBlock(fmt.Sprintf("Incident ID: `%s` | <%s|View in Dashboard>", info.ID, incidentURL(dashboardURL, info.ID))),
	}
}

// BuildProgressMessage replaces the status line with the current phase.
func BuildProgressMessage(info IncidentInfo, status models.IncidentStatus, dashboardURL string) []goslack.Block {
	line, ok := statusLine[status]
	if !ok {
		line = ":hourglass_flowing_sand: " + status.Label()
	}
	return []goslack.Block{
		headerBlock("Incident", info),
		fieldsBlock(info),
		sectionBlock(line),
		contextBlock(fmt.Sprintf("Incident ID: `%s` | <%s|View in Dashboard>", info.ID, incidentURL(dashboardURL, info.ID))),
	}
}

// SummaryInput carries the outcome of a completed pipeline.
type SummaryInput struct {
	Diagnosis *models.DiagnosisResult
	PRURL     string
	Duration  time.Duration
}

// BuildSummaryMessage creates the final summary with review buttons when a
// pull request exists.
func BuildSummaryMessage(info IncidentInfo, in SummaryInput, dashboardURL string) []goslack.Block {
	d := in.Diagnosis
	if d == nil {
		d = &models.DiagnosisResult{RiskLevel: models.RiskMedium}
	}

	blocks := []goslack.Block{
		headerBlock("Incident Response", info),
		fieldsBlock(info,
			fmt.Sprintf("*Confidence:* %d%%", int(math.Round(d.Confidence*100))),
			fmt.Sprintf("*Risk:* %s", d.RiskLevel)),
		goslack.NewDividerBlock(),
		sectionBlock("*:mag: Root Cause*\n" + d.RootCause),
	}

	if len(d.AffectedFiles) > 0 {
		lines := make([]string, 0, len(d.AffectedFiles))
		for _, f := range d.AffectedFiles {
			lines = append(lines, fmt.Sprintf("• `%s`", f))
		}
		blocks = append(blocks, sectionBlock("*:file_folder: Affected Files*\n"+strings.Join(lines, "\n")))
	}
	if len(d.ProposedChanges) > 0 {
		lines := make([]string, 0, len(d.ProposedChanges))
		for _, c := range d.ProposedChanges {
			lines = append(lines, fmt.Sprintf("• `%s`: %s", c.FilePath, c.Explanation))
		}
		blocks = append(blocks, sectionBlock("*:wrench: Proposed Fix*\n"+strings.Join(lines, "\n")))
	}
	blocks = append(blocks, goslack.NewDividerBlock())

	var actions []goslack.BlockElement
	if in.PRURL != "" {
		actions = append(actions,
			linkButton("View Draft PR", in.PRURL).WithStyle(goslack.StylePrimary),
			goslack.NewButtonBlockElement(ApproveActionPrefix+info.ID, info.ID,
				goslack.NewTextBlockObject(goslack.PlainTextType, "Approve Fix", true, false)).WithStyle(goslack.StylePrimary),
			goslack.NewButtonBlockElement(RejectActionPrefix+info.ID, info.ID,
				goslack.NewTextBlockObject(goslack.PlainTextType, "Reject Fix", true, false)).WithStyle(goslack.StyleDanger),
		)
	}
	if info.ReferenceURL != "" {
		actions = append(actions, linkButton("View in PagerDuty", info.ReferenceURL))
	}
	actions = append(actions, linkButton("View in Dashboard", incidentURL(dashboardURL, info.ID)))
	blocks = append(blocks, goslack.NewActionBlock("", actions...))

	blocks = append(blocks, contextBlock(fmt.Sprintf(":clock1: Diagnosed in %ds | Incident ID: `%s`",
		int(math.Round(in.Duration.Seconds())), info.ID)))
	return blocks
}

// BuildFailureMessage creates the message posted when the pipeline fails.
func BuildFailureMessage(info IncidentInfo, errMsg string) []goslack.Block {
	return []goslack.Block{
		goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType,
			truncate("❌ Incident Response Failed: "+info.Title, maxHeaderTextLength, "…"), true, false)),
		sectionBlock(fmt.Sprintf("The automated responder could not complete analysis.\n*Error:* %s\n\nPlease investigate manually.", errMsg)),
		contextBlock(fmt.Sprintf("Incident ID: `%s`", info.ID)),
	}
}

func truncateForSlack(text string) string {
	return truncate(text, maxBlockTextLength, "\n\n_... (truncated, view full analysis in dashboard)_")
}

func truncate(text string, limit int, suffix string) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + suffix
}
