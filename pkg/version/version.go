// Package version exposes the responder build version.
//
// Priority: -ldflags override > VCS info from debug.BuildInfo > "dev" fallback.
package version

import "runtime/debug"

// AppName is used in user-agent strings and commit author names.
const AppName = "incident-responder"

// commitOverride is set via -ldflags for container builds where .git is unavailable.
var commitOverride string

// GitCommit is the short commit hash, or "dev".
var GitCommit = resolveCommit()

func resolveCommit() string {
	if commitOverride != "" {
		return shorten(commitOverride)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return shorten(s.Value)
		}
	}
	return "dev"
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// Full returns "incident-responder/<commit>".
func Full() string {
	return AppName + "/" + GitCommit
}
