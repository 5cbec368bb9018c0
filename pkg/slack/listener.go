package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goslack "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
)

// Reviewer acts on the human decision about a proposed fix.
type Reviewer interface {
	ApproveFix(ctx context.Context, incidentID string) (*models.PullRequestRef, error)
	RejectFix(ctx context.Context, incidentID string) (*models.PullRequestRef, error)
}

// Listener receives button clicks over Socket Mode and dispatches them to
// a Reviewer. Nil-safe: Run returns immediately on a nil Listener.
type Listener struct {
	socket   *socketmode.Client
	notifier *Notifier
	reviewer Reviewer
	logger   *slog.Logger
}

// NewListener creates a Socket Mode listener. Returns nil when notifications
// are disabled or no app-level token is configured.
func NewListener(cfg *config.SlackConfig, notifier *Notifier, reviewer Reviewer) *Listener {
	if notifier == nil || cfg == nil {
		return nil
	}
	appToken := cfg.AppToken()
	if appToken == "" {
		slog.Warn("No Slack app token resolved, interactive buttons disabled", "app_token_env", cfg.AppTokenEnv)
		return nil
	}
	if reviewer == nil {
		panic("NewListener: reviewer must not be nil")
	}
	api := goslack.New(cfg.Token(), goslack.OptionAppLevelToken(appToken))
	return &Listener{
		socket:   socketmode.New(api),
		notifier: notifier,
		reviewer: reviewer,
		logger:   slog.Default().With("component", "slack-listener"),
	}
}

// Run connects to Slack and handles interactions until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	go l.consume(ctx)

	l.logger.Info("Slack interaction listener started")
	err := l.socket.RunContext(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("socket mode connection failed: %w", err)
	}
	return nil
}

func (l *Listener) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-l.socket.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnected:
				l.logger.Info("Connected to Slack Socket Mode")
			case socketmode.EventTypeConnectionError:
				l.logger.Warn("Slack Socket Mode connection error", "data", evt.Data)
			case socketmode.EventTypeInteractive:
				if evt.Request != nil {
					l.socket.Ack(*evt.Request)
				}
				callback, ok := evt.Data.(goslack.InteractionCallback)
				if !ok {
					l.logger.Error("Failed to cast to InteractionCallback")
					continue
				}
				l.handleInteraction(ctx, callback)
			}
		}
	}
}

type reviewAction int

const (
	actionUnknown reviewAction = iota
	actionApprove
	actionReject
)

// parseActionID splits a button action ID into its decision and incident ID.
func parseActionID(actionID string) (reviewAction, string) {
	if id, ok := strings.CutPrefix(actionID, ApproveActionPrefix); ok && id != "" {
		return actionApprove, id
	}
	if id, ok := strings.CutPrefix(actionID, RejectActionPrefix); ok && id != "" {
		return actionReject, id
	}
	return actionUnknown, ""
}

func (l *Listener) handleInteraction(ctx context.Context, cb goslack.InteractionCallback) {
	if cb.Type != goslack.InteractionTypeBlockActions {
		return
	}
	channel := cb.Channel.ID
	if channel == "" {
		channel = cb.Container.ChannelID
	}
	threadTS := cb.Container.MessageTs
	if threadTS == "" {
		threadTS = cb.Message.Timestamp
	}

	for _, action := range cb.ActionCallback.BlockActions {
		if action == nil {
			continue
		}
		kind, incidentID := parseActionID(action.ActionID)
		if kind == actionUnknown {
			continue
		}
		log := l.logger.With("incident_id", incidentID, "user", cb.User.ID)

		reply := l.review(ctx, log, kind, incidentID)
		if err := l.notifier.Reply(ctx, channel, threadTS, reply); err != nil {
			log.Warn("Failed to reply to review action", "error", err)
		}
	}
}

func (l *Listener) review(ctx context.Context, log *slog.Logger, kind reviewAction, incidentID string) string {
	switch kind {
	case actionApprove:
		pr, err := l.reviewer.ApproveFix(ctx, incidentID)
		if err != nil {
			log.Error("Failed to approve fix", "error", err)
			return fmt.Sprintf("Failed to approve fix for incident `%s`: %v", incidentID, err)
		}
		log.Info("Fix approved", "pr_number", pr.Number)
		return fmt.Sprintf(":white_check_mark: PR #%d has been marked as ready for review.", pr.Number)
	default:
		pr, err := l.reviewer.RejectFix(ctx, incidentID)
		if err != nil {
			log.Error("Failed to reject fix", "error", err)
			return fmt.Sprintf("Failed to reject fix for incident `%s`: %v", incidentID, err)
		}
		log.Info("Fix rejected", "pr_number", pr.Number)
		return fmt.Sprintf(":x: PR #%d has been closed. Manual investigation required.", pr.Number)
	}
}
