// Package slack posts incident lifecycle messages to Slack and handles the
// approve/reject buttons attached to them.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// Notifier posts incident updates to Slack.
// Nil-safe: all methods are no-ops when the receiver is nil (Slack disabled).
type Notifier struct {
	client         *Client
	defaultChannel string
	dashboardURL   string
	logger         *slog.Logger
}

// NewNotifier creates a Notifier from configuration.
// Returns nil if Slack is disabled or no bot token is configured.
func NewNotifier(cfg *config.SlackConfig, dashboardURL string) *Notifier {
	if cfg == nil || !cfg.IsEnabled() {
		return nil
	}
	token := cfg.Token()
	if token == "" {
		slog.Warn("Slack enabled but no bot token resolved, notifications disabled", "token_env", cfg.TokenEnv)
		return nil
	}
	return newNotifier(NewClient(token, cfg.RateLimit), cfg.Channel, dashboardURL)
}

// NewNotifierWithClient creates a Notifier around an existing client.
func NewNotifierWithClient(client *Client, defaultChannel, dashboardURL string) *Notifier {
	return newNotifier(client, defaultChannel, dashboardURL)
}

func newNotifier(client *Client, defaultChannel, dashboardURL string) *Notifier {
	return &Notifier{
		client:         client,
		defaultChannel: defaultChannel,
		dashboardURL:   dashboardURL,
		logger:         slog.Default().With("component", "slack-notifier"),
	}
}

// Client returns the underlying API client, or nil when disabled.
func (n *Notifier) Client() *Client {
	if n == nil {
		return nil
	}
	return n.client
}

func (n *Notifier) channel(ch string) string {
	if ch != "" {
		return ch
	}
	return n.defaultChannel
}

// PostInitial posts the "investigating" message and returns its handle.
// The handle is empty when Slack is disabled.
func (n *Notifier) PostInitial(ctx context.Context, channel string, info IncidentInfo) (string, error) {
	if n == nil {
		return "", nil
	}
	ch := n.channel(channel)
	if ch == "" {
		return "", fmt.Errorf("no Slack channel configured for service %s", info.ServiceName)
	}
	ts, err := n.client.PostMessage(ctx, ch, "", "Incident received: "+info.Title, BuildInitialMessage(info, n.dashboardURL))
	if err != nil {
		return "", fmt.Errorf("failed to post initial message: %w", err)
	}
	n.logger.Info("Posted incident message", "incident_id", info.ID, "channel", ch, "ts", ts)
	return ts, nil
}

// UpdateProgress rewrites the incident message with the current phase.
func (n *Notifier) UpdateProgress(ctx context.Context, channel, handle string, info IncidentInfo, status models.IncidentStatus) error {
	if n == nil || handle == "" {
		return nil
	}
	text := fmt.Sprintf("Incident update: %s - %s", info.Title, status.Label())
	if err := n.client.UpdateMessage(ctx, n.channel(channel), handle, text, BuildProgressMessage(info, status, n.dashboardURL)); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// PostSummary replaces the incident message with the final summary. Without
// a handle the summary is posted as a new message.
func (n *Notifier) PostSummary(ctx context.Context, channel, handle string, info IncidentInfo, diagnosis *models.DiagnosisResult, pr *models.PullRequestRef, duration time.Duration) error {
	if n == nil {
		return nil
	}
	in := SummaryInput{Diagnosis: diagnosis, Duration: duration}
	if pr != nil {
		in.PRURL = pr.URL
	}
	blocks := BuildSummaryMessage(info, in, n.dashboardURL)
	text := "Incident Response Complete: " + info.Title
	ch := n.channel(channel)

	if handle == "" {
		if _, err := n.client.PostMessage(ctx, ch, "", text, blocks); err != nil {
			return fmt.Errorf("failed to post summary: %w", err)
		}
		return nil
	}
	if err := n.client.UpdateMessage(ctx, ch, handle, text, blocks); err != nil {
		return fmt.Errorf("failed to post summary: %w", err)
	}
	return nil
}

// PostFailure reports a failed pipeline, as a thread reply when the
// incident message exists.
func (n *Notifier) PostFailure(ctx context.Context, channel, handle string, info IncidentInfo, errMsg string) error {
	if n == nil {
		return nil
	}
	ch := n.channel(channel)
	if ch == "" {
		return nil
	}
	if _, err := n.client.PostMessage(ctx, ch, handle, "Incident Response Failed: "+info.Title, BuildFailureMessage(info, errMsg)); err != nil {
		return fmt.Errorf("failed to post failure message: %w", err)
	}
	return nil
}

// Reply posts a plain thread reply.
func (n *Notifier) Reply(ctx context.Context, channel, threadTS, text string) error {
	if n == nil {
		return nil
	}
	if _, err := n.client.PostMessage(ctx, n.channel(channel), threadTS, text, nil); err != nil {
		return fmt.Errorf("failed to post reply: %w", err)
	}
	return nil
}
