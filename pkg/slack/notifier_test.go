package slack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
)

func TestNewNotifier_Disabled(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		assert.Nil(t, NewNotifier(nil, ""))
	})
	t.Run("disabled", func(t *testing.T) {
		assert.Nil(t, NewNotifier(config.DefaultSlackConfig(), ""))
	})
	t.Run("enabled without token", func(t *testing.T) {
		cfg := config.DefaultSlackConfig()
		enabled := true
		cfg.Enabled = &enabled
		cfg.TokenEnv = "RESPONDER_TEST_UNSET_SLACK_TOKEN"
		assert.Nil(t, NewNotifier(cfg, ""))
	})
	t.Run("enabled with token", func(t *testing.T) {
		t.Setenv("RESPONDER_TEST_SLACK_TOKEN", "xoxb-test")
		cfg := config.DefaultSlackConfig()
		enabled := true
		cfg.Enabled = &enabled
		cfg.TokenEnv = "RESPONDER_TEST_SLACK_TOKEN"
		assert.NotNil(t, NewNotifier(cfg, ""))
	})
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	ctx := context.Background()

	handle, err := n.PostInitial(ctx, "C1", testInfo())
	require.NoError(t, err)
	assert.Empty(t, handle)
	assert.NoError(t, n.UpdateProgress(ctx, "C1", "1.2", testInfo(), models.StatusDiagnosing))
	assert.NoError(t, n.PostSummary(ctx, "C1", "1.2", testInfo(), nil, nil, time.Second))
	assert.NoError(t, n.PostFailure(ctx, "C1", "1.2", testInfo(), "boom"))
	assert.NoError(t, n.Reply(ctx, "C1", "1.2", "hi"))
	assert.Nil(t, n.Client())
}

func TestNotifier_Lifecycle(t *testing.T) {
	fake := newFakeSlack(t, 0)
	n := NewNotifierWithClient(fake.client(), "C-default", "https://responder.example.com")
	ctx := context.Background()

	handle, err := n.PostInitial(ctx, "C-svc", testInfo())
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", handle)

	require.NoError(t, n.UpdateProgress(ctx, "C-svc", handle, testInfo(), models.StatusDiagnosing))
	require.NoError(t, n.PostSummary(ctx, "C-svc", handle, testInfo(),
		&models.DiagnosisResult{RootCause: "bad config", RiskLevel: models.RiskLow, Confidence: 0.9},
		&models.PullRequestRef{URL: "https://github.com/acme/app/pull/3", Number: 3}, 12*time.Second))

	calls := fake.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "chat.postMessage", calls[0].Method)
	assert.Equal(t, "C-svc", calls[0].Channel)
	assert.Equal(t, "Incident received: High error rate on checkout", calls[0].Text)
	assert.Equal(t, "chat.update", calls[1].Method)
	assert.Equal(t, handle, calls[1].TS)
	assert.Contains(t, calls[1].Blocks, "Analyzing root cause")
	assert.Equal(t, "chat.update", calls[2].Method)
	assert.Contains(t, calls[2].Blocks, "approve_fix_inc-1")
}

func TestNotifier_DefaultChannel(t *testing.T) {
	fake := newFakeSlack(t, 0)
	n := NewNotifierWithClient(fake.client(), "C-default", "")

	_, err := n.PostInitial(context.Background(), "", testInfo())
	require.NoError(t, err)
	assert.Equal(t, "C-default", fake.Calls()[0].Channel)
}

func TestNotifier_PostInitialWithoutChannel(t *testing.T) {
	fake := newFakeSlack(t, 0)
	n := NewNotifierWithClient(fake.client(), "", "")

	_, err := n.PostInitial(context.Background(), "", testInfo())
	require.Error(t, err)
	assert.Empty(t, fake.Calls())
}

func TestNotifier_UpdateProgressWithoutHandle(t *testing.T) {
	fake := newFakeSlack(t, 0)
	n := NewNotifierWithClient(fake.client(), "C1", "")

	require.NoError(t, n.UpdateProgress(context.Background(), "C1", "", testInfo(), models.StatusDiagnosing))
	assert.Empty(t, fake.Calls())
}

func TestNotifier_PostSummaryWithoutHandle(t *testing.T) {
	fake := newFakeSlack(t, 0)
	n := NewNotifierWithClient(fake.client(), "C1", "")

	require.NoError(t, n.PostSummary(context.Background(), "C1", "", testInfo(),
		&models.DiagnosisResult{RootCause: "x", RiskLevel: models.RiskMedium}, nil, time.Second))
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "chat.postMessage", calls[0].Method)
}

func TestNotifier_PostFailure(t *testing.T) {
	t.Run("thread reply when handle exists", func(t *testing.T) {
		fake := newFakeSlack(t, 0)
		n := NewNotifierWithClient(fake.client(), "C1", "")

		require.NoError(t, n.PostFailure(context.Background(), "C1", "111.222", testInfo(), "boom"))
		calls := fake.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "chat.postMessage", calls[0].Method)
		assert.Equal(t, "111.222", calls[0].ThreadTS)
		assert.Contains(t, calls[0].Blocks, "boom")
	})

	t.Run("new message without handle", func(t *testing.T) {
		fake := newFakeSlack(t, 0)
		n := NewNotifierWithClient(fake.client(), "C1", "")

		require.NoError(t, n.PostFailure(context.Background(), "C1", "", testInfo(), "boom"))
		calls := fake.Calls()
		require.Len(t, calls, 1)
		assert.Empty(t, calls[0].ThreadTS)
	})
}
