package masking

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/codeready-toolchain/responder/pkg/config"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

type builtinPattern struct {
	name        string
	pattern     string
	replacement string
}

// builtinPatterns are applied in this order. Specific token formats run
// before the generic key=value patterns.
var builtinPatterns = []builtinPattern{
	{"certificate", `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`, `__MASKED_CERTIFICATE__`},
	{"github_token", `(?i)gh[pousr]_[A-Za-z0-9_]{36,255}`, `__MASKED_GITHUB_TOKEN__`},
	{"slack_token", `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`, `__MASKED_SLACK_TOKEN__`},
	{"aws_access_key", `(?i)(?:aws[_-]?access[_-]?key[_-]?id)["']?\s*[:=]\s*["']?(AKIA[A-Z0-9]{16})["']?`, `"aws_access_key_id": "__MASKED_AWS_KEY__"`},
	{"aws_secret_key", `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`, `"aws_secret_access_key": "__MASKED_AWS_SECRET__"`},
	{"private_key", `(?i)(?:private[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`, `"private_key": "__MASKED_PRIVATE_KEY__"`},
	{"secret_key", `(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`, `"secret_key": "__MASKED_SECRET_KEY__"`},
	{"api_key", `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`, `"api_key": "__MASKED_API_KEY__"`},
	{"token", `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`, `"token": "__MASKED_TOKEN__"`},
	{"authorization", `(?i)(authorization["']?\s*[:=]\s*["']?(?:bearer|basic)\s+)[A-Za-z0-9_\-\.=+/]{8,}`, `${1}__MASKED_CREDENTIAL__`},
	{"password", `(?i)(?:password|passwd|pwd)["']?\s*[:=]\s*["']?([^"'\s]{6,})["']?`, `"password": "__MASKED_PASSWORD__"`},
	{"connection_string", `(?i)\b([a-z][a-z0-9+.-]*://[^:/\s]+:)[^@/\s]+@`, `${1}__MASKED_PASSWORD__@`},
	{"email", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`, `__MASKED_EMAIL__`},
	{"ssh_key", `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`, `__MASKED_SSH_KEY__`},
}

// patternGroups bundle built-in patterns under a single name.
var patternGroups = map[string][]string{
	"basic":   {"api_key", "password"},
	"secrets": {"api_key", "password", "token", "private_key", "secret_key"},
	"cloud":   {"aws_access_key", "aws_secret_key", "api_key", "token"},
	"logs": {
		"certificate", "github_token", "slack_token", "aws_access_key", "aws_secret_key",
		"private_key", "secret_key", "api_key", "token", "authorization", "password",
		"connection_string",
	},
	"all": {
		"certificate", "github_token", "slack_token", "aws_access_key", "aws_secret_key",
		"private_key", "secret_key", "api_key", "token", "authorization", "password",
		"connection_string", "email", "ssh_key",
	},
}

// resolvePatterns expands the configured groups and names into compiled
// built-ins, in built-in order, followed by the custom patterns. Unknown
// names and invalid custom regexes are logged and skipped.
func resolvePatterns(cfg *config.MaskingConfig) []*CompiledPattern {
	wanted := make(map[string]bool)
	for _, group := range cfg.PatternGroups {
		names, ok := patternGroups[group]
		if !ok {
			slog.Warn("Unknown masking pattern group, skipping", "group", group)
			continue
		}
		for _, n := range names {
			wanted[n] = true
		}
	}
	for _, n := range cfg.Patterns {
		if !slices.ContainsFunc(builtinPatterns, func(b builtinPattern) bool { return b.name == n }) {
			slog.Warn("Unknown masking pattern, skipping", "pattern", n)
			continue
		}
		wanted[n] = true
	}

	var out []*CompiledPattern
	for _, b := range builtinPatterns {
		if !wanted[b.name] {
			continue
		}
		out = append(out, &CompiledPattern{
			Name:        b.name,
			Regex:       regexp.MustCompile(b.pattern),
			Replacement: b.replacement,
		})
	}

	for i, p := range cfg.CustomPatterns {
		name := fmt.Sprintf("custom:%d", i)
		compiled, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("Failed to compile custom masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		out = append(out, &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: p.Replacement,
		})
	}
	return out
}
