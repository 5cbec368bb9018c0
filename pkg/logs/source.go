// Package logs retrieves error logs and stack traces around an alert from
// the log backend configured for a service.
package logs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// MaxStackTraces caps how many distinct stack traces a Result carries.
const MaxStackTraces = 5

// Query selects log lines for one service in a time window.
type Query struct {
	Service     string
	Start       time.Time
	End         time.Time
	Severity    string
	MaxLines    int
	Environment string

	// Filter is a backend-specific query fragment from the service config.
	Filter string
}

// Result is the evidence handed to the diagnostic agent.
type Result struct {
	Logs         string
	StackTraces  []string
	RawLineCount int
	Truncated    bool
}

// Source fetches logs from one backend.
type Source interface {
	Name() models.LogSource
	Fetch(ctx context.Context, q Query) (*Result, error)
}

// NewQuery builds the query for an alert using the configured window.
func NewQuery(cfg *config.LogsConfig, alert models.AlertDescriptor, svc models.ServiceConfig) Query {
	at := alert.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return Query{
		Service:     svc.Name,
		Start:       at.Add(-cfg.WindowBefore),
		End:         at.Add(cfg.WindowAfter),
		Severity:    cfg.Severity,
		MaxLines:    cfg.MaxLines,
		Environment: cfg.Environment,
		Filter:      svc.LogQuery,
	}
}

// Redactor scrubs secrets from fetched text.
type Redactor interface {
	Mask(content string) string
}

// Registry resolves a Source by name.
type Registry struct {
	sources  map[models.LogSource]Source
	redactor Redactor
}

// NewRegistry creates a registry over the given sources. Later sources
// with the same name replace earlier ones.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[models.LogSource]Source, len(sources))}
	for _, s := range sources {
		if s != nil {
			r.sources[s.Name()] = s
		}
	}
	return r
}

// SetRedactor makes Fetch pass logs and stack traces through r.
func (r *Registry) SetRedactor(red Redactor) {
	r.redactor = red
}

// Get returns the source for name. An empty name selects the mock source.
func (r *Registry) Get(name models.LogSource) (Source, error) {
	if name == "" {
		name = models.LogSourceMock
	}
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown log source %q (available: %s)", name, strings.Join(r.names(), ", "))
	}
	return s, nil
}

// Fetch resolves the service's source and runs the query.
func (r *Registry) Fetch(ctx context.Context, svc models.ServiceConfig, q Query) (*Result, error) {
	src, err := r.Get(svc.LogSource)
	if err != nil {
		return nil, err
	}
	res, err := src.Fetch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch logs from %s: %w", src.Name(), err)
	}
	if r.redactor != nil {
		res.Logs = r.redactor.Mask(res.Logs)
		for i, trace := range res.StackTraces {
			res.StackTraces[i] = r.redactor.Mask(trace)
		}
	}
	return res, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, string(n))
	}
	slices.Sort(names)
	return names
}

// buildResult truncates lines to maxLines and keeps the first distinct
// stack traces.
func buildResult(lines []string, traces []string, maxLines int) *Result {
	res := &Result{RawLineCount: len(lines)}
	if maxLines > 0 && len(lines) >= maxLines {
		res.Truncated = true
		lines = lines[:maxLines]
	}
	res.Logs = strings.Join(lines, "\n")
	res.StackTraces = dedupeTraces(traces)
	return res
}

func dedupeTraces(traces []string) []string {
	out := make([]string, 0, min(len(traces), MaxStackTraces))
	for _, t := range traces {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
		if len(out) == MaxStackTraces {
			break
		}
	}
	return out
}
