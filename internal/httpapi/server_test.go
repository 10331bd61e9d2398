package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/repose-of-mind/repose/internal/auth"
	"github.com/repose-of-mind/repose/internal/chat"
	"github.com/repose-of-mind/repose/internal/config"
	"github.com/repose-of-mind/repose/internal/conversation"
	"github.com/repose-of-mind/repose/internal/observability"
	"github.com/repose-of-mind/repose/internal/reliability"
	"github.com/repose-of-mind/repose/internal/reply"
)

type stubReplier struct {
	res reply.Result
}

func (s stubReplier) Generate(_ context.Context, msg string, _ []conversation.Turn) reply.Result {
	if s.res.Text == "" && s.res.OK {
		return reply.Result{Text: "echo: " + msg, OK: true, Attempts: 1}
	}
	return s.res
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T, replier chat.Replier) *httptest.Server {
	t.Helper()
	authn, err := auth.NewJWTAuthenticator(testSecret)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator() error = %v", err)
	}
	metrics := observability.NewMetrics("test_httpapi")
	svc := chat.NewService(conversation.NewAdapter(conversation.NewInMemoryStore()), replier, chat.WithMetrics(metrics))
	cfg := config.Config{CORSOrigins: []string{"http://localhost:3000"}}
	srv := New(cfg, svc, authn, metrics, zerolog.Nop(), Info{StoreDriver: "memory", Provider: "mock"})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func token(t *testing.T, owner string) string {
	t.Helper()
	tok, err := auth.Issue(testSecret, owner, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func do(t *testing.T, method, url, tok, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, stubReplier{res: reply.Result{OK: true}})

	res, body := do(t, http.MethodGet, ts.URL+"/", "", "")
	if res.StatusCode != http.StatusOK || body["message"] != "Welcome to Repose of Mind API" {
		t.Fatalf("GET / = %d %+v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodGet, ts.URL+"/readyz", "", "")
	if res.StatusCode != http.StatusOK || body["store_driver"] != "memory" {
		t.Fatalf("GET /readyz = %d %+v", res.StatusCode, body)
	}
	res, _ = do(t, http.MethodGet, ts.URL+"/api/perf/latency", "", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/perf/latency status = %d", res.StatusCode)
	}
}

func TestChatRequiresToken(t *testing.T) {
	ts := newTestServer(t, stubReplier{res: reply.Result{OK: true}})

	res, body := do(t, http.MethodGet, ts.URL+"/api/chat", "", "")
	if res.StatusCode != http.StatusUnauthorized || body["error"] != "No authentication token, access denied" {
		t.Fatalf("missing token = %d %+v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodGet, ts.URL+"/api/chat", "not-a-jwt", "")
	if res.StatusCode != http.StatusUnauthorized || body["error"] != "Token is invalid or expired" {
		t.Fatalf("bad token = %d %+v", res.StatusCode, body)
	}
}

func TestChatRoundTrip(t *testing.T) {
	ts := newTestServer(t, stubReplier{res: reply.Result{OK: true}})
	tok := token(t, "user-1")

	res, body := do(t, http.MethodPost, ts.URL+"/api/chat/message", tok, `{"content":"  hello there  "}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("POST message status = %d body=%+v", res.StatusCode, body)
	}
	user, _ := body["userMessage"].(map[string]any)
	bot, _ := body["botMessage"].(map[string]any)
	if user["content"] != "hello there" || user["sender"] != "user" {
		t.Fatalf("userMessage = %+v", user)
	}
	if bot["content"] != "echo: hello there" || bot["sender"] != "bot" {
		t.Fatalf("botMessage = %+v", bot)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	hres, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/chat error = %v", err)
	}
	defer hres.Body.Close()
	var turns []map[string]any
	if err := json.NewDecoder(hres.Body).Decode(&turns); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	// greeting + user + bot
	if len(turns) != 3 || turns[0]["content"] != conversation.Greeting {
		t.Fatalf("history = %+v", turns)
	}

	res, body = do(t, http.MethodDelete, ts.URL+"/api/chat", tok, "")
	if res.StatusCode != http.StatusOK || body["message"] != "Chat history cleared successfully" {
		t.Fatalf("DELETE = %d %+v", res.StatusCode, body)
	}
	res, body = do(t, http.MethodDelete, ts.URL+"/api/chat", tok, "")
	if res.StatusCode != http.StatusNotFound || body["error"] != "No chat history found" {
		t.Fatalf("second DELETE = %d %+v", res.StatusCode, body)
	}
}

func TestSendMessageValidation(t *testing.T) {
	ts := newTestServer(t, stubReplier{res: reply.Result{OK: true}})
	tok := token(t, "user-2")

	cases := map[string]struct {
		body string
		want string
	}{
		"empty body":    {"", "Valid message content is required"},
		"missing field": {`{}`, "Valid message content is required"},
		"blank":         {`{"content":"   "}`, "Valid message content is required"},
		"too long":      {`{"content":"` + strings.Repeat("a", conversation.MaxTurnChars+1) + `"}`, "Message is too long. Please keep it under 1000 characters."},
		"padded":        {`{"content":"` + strings.Repeat("a", conversation.MaxTurnChars) + `   "}`, "Message is too long. Please keep it under 1000 characters."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, body := do(t, http.MethodPost, ts.URL+"/api/chat/message", tok, tc.body)
			if res.StatusCode != http.StatusBadRequest || body["error"] != tc.want {
				t.Fatalf("status = %d body = %+v", res.StatusCode, body)
			}
		})
	}
}

func TestSendMessageFallbackReturns500WithReason(t *testing.T) {
	ts := newTestServer(t, stubReplier{res: reply.Result{
		Text:  "Sorry, I'm getting a lot of messages right now.",
		OK:    false,
		Class: reliability.ClassRateLimited,
	}})
	tok := token(t, "user-3")

	res, body := do(t, http.MethodPost, ts.URL+"/api/chat/message", tok, `{"content":"hi"}`)
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", res.StatusCode)
	}
	if body["error"] != "Failed to generate response" || body["reason"] != string(reliability.ClassRateLimited) {
		t.Fatalf("body = %+v", body)
	}
	bot, _ := body["botMessage"].(map[string]any)
	if bot["sender"] != "bot" || bot["content"] == "" {
		t.Fatalf("botMessage = %+v", bot)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, stubReplier{res: reply.Result{OK: true}})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/chat/message", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", res.StatusCode)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}
