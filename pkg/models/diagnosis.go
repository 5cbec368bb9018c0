package models

import "strings"

// RiskLevel is the agent's assessment of a proposed fix.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel normalizes free text by case-insensitive prefix match,
// defaulting to MEDIUM.
func ParseRiskLevel(s string) RiskLevel {
	s = strings.ToUpper(strings.TrimLeft(strings.TrimSpace(s), "*_ "))
	switch {
	case strings.HasPrefix(s, string(RiskLow)):
		return RiskLow
	case strings.HasPrefix(s, string(RiskHigh)):
		return RiskHigh
	default:
		return RiskMedium
	}
}

// ProposedChange is one file-level edit proposal.
type ProposedChange struct {
	FilePath    string `json:"file_path"`
	Diff        string `json:"diff"`
	Explanation string `json:"explanation"`
}

// DiagnosisResult is the structured output of one diagnostic pass.
// RawOutput is always kept so a human can recover when parsing degraded.
type DiagnosisResult struct {
	RootCause       string           `json:"root_cause"`
	AffectedFiles   []string         `json:"affected_files"`
	ProposedChanges []ProposedChange `json:"proposed_changes"`
	RiskLevel       RiskLevel        `json:"risk_level"`
	RollbackPlan    string           `json:"rollback_plan"`
	Confidence      float64          `json:"confidence"`
	RawOutput       string           `json:"raw_output"`
}
