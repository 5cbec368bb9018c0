package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/responder/pkg/config"
	"github.com/codeready-toolchain/responder/pkg/models"
	"github.com/codeready-toolchain/responder/pkg/version"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	t.Setenv("TEST_GITHUB_TOKEN", "ghp_test")
	cfg := config.DefaultGitHubConfig()
	cfg.TokenEnv = "TEST_GITHUB_TOKEN"
	cfg.APIURL = server.URL
	return NewClient(cfg)
}

func TestNewClient_GraphQLURL(t *testing.T) {
	tests := []struct {
		api  string
		want string
	}{
		{"https://api.github.com", "https://api.github.com/graphql"},
		{"https://github.acme.com/api/v3/", "https://github.acme.com/api/graphql"},
	}
	for _, tt := range tests {
		t.Run(tt.api, func(t *testing.T) {
			cfg := config.DefaultGitHubConfig()
			cfg.APIURL = tt.api
			assert.Equal(t, tt.want, NewClient(cfg).graphqlURL)
		})
	}
}

func TestClient_OpenDraftPR(t *testing.T) {
	diagnosis := &models.DiagnosisResult{
		RootCause:  "Nil billing address dereference in payment processor when customer has no address",
		Confidence: 0.8,
		RiskLevel:  models.RiskLow,
	}
	draft := DraftPR{
		Owner:      "acme",
		Repo:       "checkout",
		Branch:     "incident-responder/fix-123",
		Base:       "main",
		IncidentID: "123",
		Diagnosis:  diagnosis,
	}

	t.Run("creates draft when none open", func(t *testing.T) {
		var created map[string]any
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet && r.URL.Path == "/repos/acme/checkout/pulls":
				assert.Equal(t, "acme:incident-responder/fix-123", r.URL.Query().Get("head"))
				assert.Equal(t, "open", r.URL.Query().Get("state"))
				_, _ = w.Write([]byte(`[]`))
			case r.Method == http.MethodPost && r.URL.Path == "/repos/acme/checkout/pulls":
				auth = r.Header.Get("Authorization")
				assert.Equal(t, version.Full(), r.Header.Get("User-Agent"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"number":42,"html_url":"https://github.com/acme/checkout/pull/42","draft":true}`))
			default:
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
		}))
		defer server.Close()

		ref, err := newTestClient(t, server).OpenDraftPR(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, &models.PullRequestRef{URL: "https://github.com/acme/checkout/pull/42", Number: 42}, ref)

		assert.Equal(t, "Bearer ghp_test", auth)
		assert.Equal(t, true, created["draft"])
		assert.Equal(t, "incident-responder/fix-123", created["head"])
		assert.Equal(t, "main", created["base"])
		assert.Equal(t, "[Incident Response] Nil billing address dereference in payment processor when cu", created["title"])
		assert.Contains(t, created["body"], "**Incident ID**: `123`")
	})

	t.Run("reuses open PR for branch", func(t *testing.T) {
		posted := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				posted = true
			}
			_, _ = w.Write([]byte(`[{"number":7,"html_url":"https://github.com/acme/checkout/pull/7"}]`))
		}))
		defer server.Close()

		ref, err := newTestClient(t, server).OpenDraftPR(context.Background(), draft)
		require.NoError(t, err)
		assert.Equal(t, 7, ref.Number)
		assert.False(t, posted)
	})

	t.Run("API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server).OpenDraftPR(context.Background(), draft)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "422")
		assert.Contains(t, err.Error(), "Validation Failed")
	})
}

func TestClient_MarkReady(t *testing.T) {
	t.Run("draft goes through GraphQL", func(t *testing.T) {
		var gql struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/repos/acme/checkout/pulls/42":
				_, _ = w.Write([]byte(`{"number":42,"node_id":"PR_kwDO","draft":true}`))
			case "/graphql":
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gql))
				_, _ = w.Write([]byte(`{"data":{"markPullRequestReadyForReview":{"pullRequest":{"id":"PR_kwDO"}}}}`))
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		require.NoError(t, newTestClient(t, server).MarkReady(context.Background(), "acme", "checkout", 42))
		assert.Contains(t, gql.Query, "markPullRequestReadyForReview")
		assert.Equal(t, "PR_kwDO", gql.Variables["id"])
	})

	t.Run("already ready is a no-op", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			_, _ = w.Write([]byte(`{"number":42,"node_id":"PR_kwDO","draft":false}`))
		}))
		defer server.Close()

		require.NoError(t, newTestClient(t, server).MarkReady(context.Background(), "acme", "checkout", 42))
		assert.Equal(t, 1, calls)
	})

	t.Run("GraphQL errors surface", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/graphql" {
				_, _ = w.Write([]byte(`{"errors":[{"message":"Resource not accessible by integration"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"number":42,"node_id":"PR_kwDO","draft":true}`))
		}))
		defer server.Close()

		err := newTestClient(t, server).MarkReady(context.Background(), "acme", "checkout", 42)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Resource not accessible")
	})
}

func TestClient_ClosePR(t *testing.T) {
	var method string
	var body map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		assert.Equal(t, "/repos/acme/checkout/pulls/42", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"number":42,"state":"closed"}`))
	}))
	defer server.Close()

	require.NoError(t, newTestClient(t, server).ClosePR(context.Background(), "acme", "checkout", 42))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "closed", body["state"])
}
