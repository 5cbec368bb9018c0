package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Songmu/retry"
	goslack "github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

const (
	callAttempts = 3
	callInterval = 2 * time.Second
	callTimeout  = 10 * time.Second
)

// Client is a thin wrapper around the slack-go SDK that retries and rate
// limits every Web API call.
type Client struct {
	api      *goslack.Client
	limiter  *rate.Limiter
	interval time.Duration
	logger   *slog.Logger
}

// NewClient creates a Slack API client. ratePerSecond <= 0 disables limiting.
func NewClient(token string, ratePerSecond float64, opts ...goslack.Option) *Client {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Client{
		api:      goslack.New(token, opts...),
		limiter:  rate.NewLimiter(limit, 1),
		interval: callInterval,
		logger:   slog.Default().With("component", "slack-client"),
	}
}

// NewClientWithAPIURL creates a client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithAPIURL(token, apiURL string) *Client {
	c := NewClient(token, 0, goslack.OptionAPIURL(apiURL))
	c.interval = 10 * time.Millisecond
	return c
}

// API exposes the underlying SDK client.
func (c *Client) API() *goslack.Client {
	return c.api
}

// PostMessage posts blocks to channel, as a thread reply when threadTS is
// set, and returns the new message timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string, blocks []goslack.Block) (string, error) {
	opts := []goslack.MsgOption{
		goslack.MsgOptionText(text, false),
		goslack.MsgOptionBlocks(blocks...),
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	var ts string
	err := c.call(ctx, "chat.postMessage", func(ctx context.Context) error {
		var err error
		_, ts, err = c.api.PostMessageContext(ctx, channel, opts...)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return ts, nil
}

// UpdateMessage replaces the content of the message at ts.
func (c *Client) UpdateMessage(ctx context.Context, channel, ts, text string, blocks []goslack.Block) error {
	err := c.call(ctx, "chat.update", func(ctx context.Context) error {
		_, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts,
			goslack.MsgOptionText(text, false),
			goslack.MsgOptionBlocks(blocks...))
		return err
	})
	if err != nil {
		return fmt.Errorf("chat.update failed: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, fn func(context.Context) error) error {
	return retry.Retry(callAttempts, c.interval, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		err := fn(callCtx)
		if err != nil {
			c.logger.Warn("Slack call failed", "method", method, "error", err)
		}
		return err
	})
}
