package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/version"
)

// DatadogSource queries the Datadog Logs Search API.
type DatadogSource struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	appKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewDatadogSource creates a Datadog source for the configured site.
func NewDatadogSource(cfg *config.DatadogConfig) *DatadogSource {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &DatadogSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api." + cfg.Site,
		apiKey:     cfg.APIKey(),
		appKey:     cfg.AppKey(),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     slog.With("component", "datadog"),
	}
}

// Name implements Source.
func (*DatadogSource) Name() models.LogSource { return models.LogSourceDatadog }

type datadogSearchRequest struct {
	Filter datadogFilter `json:"filter"`
	Sort   string        `json:"sort"`
	Page   datadogPage   `json:"page"`
}

type datadogFilter struct {
	Query string `json:"query"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type datadogPage struct {
	Limit int `json:"limit"`
}

type datadogSearchResponse struct {
	Data []struct {
		Attributes struct {
			Message    string         `json:"message"`
			Status     string         `json:"status"`
			Timestamp  string         `json:"timestamp"`
			Attributes map[string]any `json:"attributes"`
		} `json:"attributes"`
	} `json:"data"`
}

// Fetch implements Source.
func (d *DatadogSource) Fetch(ctx context.Context, q Query) (*Result, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	body, err := json.Marshal(datadogSearchRequest{
		Filter: datadogFilter{
			Query: datadogQuery(q),
			From:  q.Start.UTC().Format(time.RFC3339),
			To:    q.End.UTC().Format(time.RFC3339),
		},
		Sort: "-timestamp",
		Page: datadogPage{Limit: q.MaxLines},
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/v2/logs/events/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("DD-API-KEY", d.apiKey)
	req.Header.Set("DD-APPLICATION-KEY", d.appKey)
	req.Header.Set("User-Agent", version.Full())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search logs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		d.logger.Error("Datadog API request failed", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("datadog API returned HTTP %d", resp.StatusCode)
	}

	var out datadogSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	lines := make([]string, 0, len(out.Data))
	var traces []string
	for _, ev := range out.Data {
		a := ev.Attributes
		status := a.Status
		if status == "" {
			status = "ERROR"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s %s", a.Timestamp, strings.ToUpper(status), a.Message))
		if stack := errorStack(a.Attributes); stack != "" {
			traces = append(traces, stack)
		}
	}
	if len(traces) == 0 {
		traces = ExtractStackTraces(strings.Join(lines, "\n"))
	}
	return buildResult(lines, traces, q.MaxLines), nil
}

func datadogQuery(q Query) string {
	parts := []string{"service:" + q.Service, "status:" + strings.ToLower(q.Severity)}
	if q.Environment != "" {
		parts = append(parts, "env:"+q.Environment)
	}
	if q.Filter != "" {
		parts = append(parts, q.Filter)
	}
	return strings.Join(parts, " ")
}

// errorStack reads error.stack from either the nested or the flattened form.
func errorStack(attrs map[string]any) string {
	if s, ok := attrs["error.stack"].(string); ok {
		return s
	}
	if e, ok := attrs["error"].(map[string]any); ok {
		if s, ok := e["stack"].(string); ok {
			return s
		}
	}
	return ""
}
