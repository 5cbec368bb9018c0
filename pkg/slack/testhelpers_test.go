package slack

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/slack-go/slack/slacktest"
)

type recordedCall struct {
	Method   string
	Channel  string
	TS       string
	ThreadTS string
	Text     string
	Blocks   string
}

type fakeSlack struct {
	mu       sync.Mutex
	calls    []recordedCall
	failures int
	srv      *slacktest.Server
}

// newFakeSlack starts a Slack API test server recording chat calls. The first
// failures calls answer with an error.
func newFakeSlack(t *testing.T, failures int) *fakeSlack {
	t.Helper()
	f := &fakeSlack{failures: failures}
	f.srv = slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/chat.postMessage", http.HandlerFunc(f.handler("chat.postMessage")))
		c.Handle("/chat.update", http.HandlerFunc(f.handler("chat.update")))
	})
	f.srv.Start()
	t.Cleanup(f.srv.Stop)
	return f
}

func (f *fakeSlack) handler(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failures > 0 {
			f.failures--
			_, _ = w.Write([]byte(`{"ok":false,"error":"internal_error"}`))
			return
		}
		f.calls = append(f.calls, recordedCall{
			Method:   method,
			Channel:  r.FormValue("channel"),
			TS:       r.FormValue("ts"),
			ThreadTS: r.FormValue("thread_ts"),
			Text:     r.FormValue("text"),
			Blocks:   r.FormValue("blocks"),
		})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":      true,
			"channel": r.FormValue("channel"),
			"ts":      "1700000000.000100",
		})
	}
}

func (f *fakeSlack) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakeSlack) client() *Client {
	return NewClientWithAPIURL("xoxb-test", f.srv.GetAPIURL())
}
