package agent

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/responder/pkg/models"
)

// Section names the agent is asked to emit.
const (
	SectionRootCause       = "ROOT_CAUSE"
	SectionAffectedFiles   = "AFFECTED_FILES"
	SectionProposedChanges = "PROPOSED_CHANGES"
	SectionRiskAssessment  = "RISK_ASSESSMENT"
	SectionRollbackPlan    = "ROLLBACK_PLAN"
	SectionConfidence      = "CONFIDENCE"
)

// UnparsedRootCause replaces the root cause when nothing usable was found.
const UnparsedRootCause = "Unable to parse structured diagnosis. Raw output preserved."

const (
	defaultConfidence    = 0.5
	unparsedConfidence   = 0.1
	fileMarker           = "FILE:"
	maxSectionHeadingLvl = 3
)

var sectionNames = []string{
	SectionRootCause,
	SectionAffectedFiles,
	SectionProposedChanges,
	SectionRiskAssessment,
	SectionRollbackPlan,
	SectionConfidence,
}

var leadingNumber = regexp.MustCompile(`^[-+]?(\d+(\.\d*)?|\.\d+)(\s*%)?`)

// ParseDiagnosis extracts a structured diagnosis from free-form agent output.
// It never fails: each field that cannot be found keeps its default, and an
// output with neither a root cause nor a proposed change is flagged with a
// sentinel root cause and a confidence of 0.1. The raw text is always kept.
func ParseDiagnosis(raw string) *models.DiagnosisResult {
	sections := splitSections(raw)

	result := &models.DiagnosisResult{
		RootCause:       strings.TrimSpace(sections[SectionRootCause]),
		AffectedFiles:   parseFileList(sections[SectionAffectedFiles]),
		ProposedChanges: parseProposedChanges(sections[SectionProposedChanges]),
		RiskLevel:       models.ParseRiskLevel(sections[SectionRiskAssessment]),
		RollbackPlan:    strings.TrimSpace(sections[SectionRollbackPlan]),
		Confidence:      parseConfidence(sections[SectionConfidence]),
		RawOutput:       raw,
	}

	if result.RootCause == "" && len(result.ProposedChanges) == 0 {
		slog.Warn("Agent output did not contain parseable diagnosis sections", "output_length", len(raw))
		result.RootCause = UnparsedRootCause
		result.Confidence = unparsedConfidence
	}
	return result
}

// splitSections scans raw line by line and returns the body of the first
// occurrence of each known section. A section ends at the next heading of
// level 1 to 3 outside a fenced block. "FILE:" headings never end a section.
func splitSections(raw string) map[string]string {
	bodies := make(map[string][]string)
	current := ""
	inFence := false

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)

		if name, inline, ok := sectionHeading(line, inFence); ok {
			// A known heading closes a fence the agent forgot to close.
			inFence = false
			if _, seen := bodies[name]; seen {
				current = ""
				continue
			}
			current = name
			bodies[name] = nil
			if inline != "" {
				bodies[name] = append(bodies[name], inline)
			}
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		} else if !inFence && isHeading(trimmed) {
			current = ""
			continue
		}

		if current != "" {
			bodies[current] = append(bodies[current], line)
		}
	}

	out := make(map[string]string, len(bodies))
	for name, lines := range bodies {
		out[name] = strings.Join(lines, "\n")
	}
	return out
}

// sectionHeading recognizes "### ROOT_CAUSE", "## Root Cause:", "**CONFIDENCE**: 0.8"
// and similar. Inside a fence only a '#' heading starting at column 0 with the
// exact section name counts, so diff context lines such as " ## Confidence"
// stay part of the diff.
func sectionHeading(raw string, inFence bool) (name, inline string, ok bool) {
	if inFence && !strings.HasPrefix(raw, "#") {
		return "", "", false
	}
	line := strings.TrimSpace(raw)
	level := headingLevel(line)
	var rest string
	switch {
	case level > 0 && level <= maxSectionHeadingLvl:
		rest = strings.TrimSpace(line[level:])
	case level == 0 && !inFence && strings.HasPrefix(line, "**"):
		rest = line
	default:
		return "", "", false
	}
	rest = strings.TrimLeft(rest, "*_ ")

	for _, section := range sectionNames {
		aliases := []string{section, strings.ReplaceAll(section, "_", " ")}
		if inFence {
			aliases = aliases[:1]
		}
		for _, alias := range aliases {
			if len(rest) < len(alias) || !strings.EqualFold(rest[:len(alias)], alias) {
				continue
			}
			tail := rest[len(alias):]
			if tail != "" && !strings.ContainsRune(":*_ \t", rune(tail[0])) {
				continue
			}
			if level == 0 && !strings.Contains(tail, "**") {
				// a bold label must close its emphasis to count as a heading
				continue
			}
			return section, strings.TrimSpace(strings.TrimLeft(tail, "*_: \t")), true
		}
	}
	return "", "", false
}

// isHeading reports whether line is a markdown heading that ends a section.
func isHeading(line string) bool {
	level := headingLevel(line)
	if level == 0 || level > maxSectionHeadingLvl {
		return false
	}
	if level < len(line) && line[level] != ' ' && line[level] != '\t' {
		// "#include" and similar are not headings
		return false
	}
	return !isFileMarker(line)
}

func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return 0
	}
	return n
}

func isFileMarker(line string) bool {
	_, ok := fileMarkerPath(line)
	return ok
}

// fileMarkerPath parses "#### FILE: path", "FILE: path" or "**FILE:** path".
func fileMarkerPath(line string) (string, bool) {
	t := strings.TrimLeft(strings.TrimSpace(line), "#*_ ")
	if len(t) < len(fileMarker) || !strings.EqualFold(t[:len(fileMarker)], fileMarker) {
		return "", false
	}
	return cleanPath(t[len(fileMarker):]), true
}

func parseFileList(section string) []string {
	files := make([]string, 0)
	seen := make(map[string]bool)
	for _, line := range strings.Split(section, "\n") {
		path := cleanPath(stripBullet(line))
		if path == "" || !strings.ContainsAny(path, `/\`) || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

// stripBullet removes list markers: "-", "*", "+", "1.", "2)".
func stripBullet(line string) string {
	t := strings.TrimSpace(line)
	t = strings.TrimLeft(t, "-*+ \t")
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i > 0 && i < len(t) && (t[i] == '.' || t[i] == ')') {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}

// cleanPath reduces "`src/a.go` (line 12)" or "**src/a.go**" to "src/a.go".
func cleanPath(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "`") {
		if end := strings.Index(s[1:], "`"); end >= 0 {
			return strings.TrimSpace(s[1 : end+1])
		}
	}
	s = strings.Trim(s, "*_`")
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	} else {
		return ""
	}
	return strings.TrimRight(strings.Trim(s, "*_`"), ":,;")
}

func parseProposedChanges(section string) []models.ProposedChange {
	changes := make([]models.ProposedChange, 0)

	var (
		path  string
		body  []string
		open  bool
		flush = func() {
			if open && path != "" {
				changes = append(changes, buildChange(path, body))
			}
		}
	)
	inFence := false
	for _, line := range strings.Split(section, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence {
			if p, ok := fileMarkerPath(line); ok {
				flush()
				path, body, open = p, nil, true
				continue
			}
		}
		if open {
			body = append(body, line)
		}
	}
	flush()
	return changes
}

// buildChange splits one FILE block into explanation and the first diff fence.
func buildChange(path string, body []string) models.ProposedChange {
	change := models.ProposedChange{FilePath: path}

	var prose []string
	fenceAt := -1
	for i, line := range body {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fenceAt = i
			break
		}
		prose = append(prose, line)
	}
	change.Explanation = explanation(prose)

	if fenceAt < 0 {
		return change
	}
	inDiff := false
	var diff []string
	for _, line := range body[fenceAt:] {
		trimmed := strings.TrimSpace(line)
		if !inDiff {
			if strings.HasPrefix(trimmed, "```") && strings.EqualFold(strings.TrimSpace(trimmed[3:]), "diff") {
				inDiff = true
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			break
		}
		diff = append(diff, line)
	}
	change.Diff = strings.TrimSpace(strings.Join(diff, "\n"))
	return change
}

// explanation returns the text after an "Explanation:" label, or all prose
// when the label is missing.
func explanation(prose []string) string {
	for i, line := range prose {
		t := strings.TrimLeft(strings.TrimSpace(line), "*_ ")
		const label = "explanation"
		if len(t) < len(label) || !strings.EqualFold(t[:len(label)], label) {
			continue
		}
		rest := strings.TrimLeft(t[len(label):], "*_ ")
		if !strings.HasPrefix(rest, ":") {
			continue
		}
		first := strings.TrimSpace(strings.TrimLeft(rest[1:], "*_ "))
		lines := append([]string{first}, prose[i+1:]...)
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(strings.Join(prose, "\n"))
}

// parseConfidence reads the leading number of the section. Percentages and
// values above 1 written as "85%" are scaled; everything is clamped to [0,1].
func parseConfidence(section string) float64 {
	t := strings.TrimLeft(strings.TrimSpace(section), "*_` ")
	m := leadingNumber.FindStringSubmatch(t)
	if m == nil {
		return defaultConfidence
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return defaultConfidence
	}
	if strings.HasPrefix(t, "-") {
		value = -value
	}
	if m[3] != "" {
		value /= 100
	}
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}
