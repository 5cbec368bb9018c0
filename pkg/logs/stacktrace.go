package logs

import (
	"regexp"
	"strings"
)

var (
	// Frames from the common runtimes: JVM/JS "at ...", Python "File ...",
	// Go "pkg.Func(...)" followed by an indented file:line.
	frameLine = regexp.MustCompile(`^\s+(at\s|File\s"|\S+\.go:\d+)`)

	// Unindented Go function frame, e.g. "main.main()".
	goFuncLine = regexp.MustCompile(`^[\w.*/()\[\]-]+\(.*\)$`)

	// A line that opens a trace: an exception/error name or a Go panic.
	traceHead = regexp.MustCompile(`(?i)(\w+(Exception|Error)\b|^panic:|^goroutine \d+ \[|Traceback \(most recent call last\))`)
)

// ExtractStackTraces finds stack traces embedded in free-form log text. A
// trace is a head line followed by at least one frame line.
func ExtractStackTraces(text string) []string {
	var traces []string
	var cur []string
	flush := func() {
		if len(cur) > 1 {
			traces = append(traces, strings.Join(cur, "\n"))
		}
		cur = nil
	}
	for _, line := range strings.Split(text, "\n") {
		switch {
		case frameLine.MatchString(line) && len(cur) > 0:
			cur = append(cur, line)
		case (strings.HasPrefix(line, "\t") || goFuncLine.MatchString(line)) && len(cur) > 0:
			cur = append(cur, line)
		case traceHead.MatchString(line):
			flush()
			cur = []string{line}
		default:
			flush()
		}
	}
	flush()
	return dedupeTraces(traces)
}
