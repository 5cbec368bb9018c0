// Package masking redacts credentials from log evidence before it is handed
// to the diagnostic agent or published in a pull request.
package masking

import (
	"log/slog"

	"github.com/codeready-toolchain/responder/pkg/config"
)

// Service applies the configured patterns. It is immutable after creation
// and safe for concurrent use.
type Service struct {
	patterns []*CompiledPattern
}

// NewService compiles the patterns selected by cfg. A nil or disabled
// config yields a Service that returns its input unchanged.
func NewService(cfg *config.MaskingConfig) *Service {
	s := &Service{}
	if !cfg.IsEnabled() {
		slog.Info("Log masking disabled")
		return s
	}
	s.patterns = resolvePatterns(cfg)
	slog.Info("Log masking initialized", "patterns", len(s.patterns))
	return s
}

// Mask returns content with every pattern match replaced.
func (s *Service) Mask(content string) string {
	if s == nil || content == "" {
		return content
	}
	for _, p := range s.patterns {
		content = p.Regex.ReplaceAllString(content, p.Replacement)
	}
	return content
}

// PatternNames lists the active patterns in application order.
func (s *Service) PatternNames() []string {
	names := make([]string, 0, len(s.patterns))
	for _, p := range s.patterns {
		names = append(names, p.Name)
	}
	return names
}
