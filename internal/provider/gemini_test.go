package provider

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/repose-of-mind/repose/internal/reliability"
)

func contentText(t *testing.T, c *genai.Content) string {
	t.Helper()
	if len(c.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(c.Parts))
	}
	text, ok := c.Parts[0].(genai.Text)
	if !ok {
		t.Fatalf("part is %T, want genai.Text", c.Parts[0])
	}
	return string(text)
}

func TestGeminiHistoryPrimesAndAlternates(t *testing.T) {
	history, message := geminiHistory(Request{
		SystemPrompt: "be kind",
		History: []Message{
			{Role: RoleAssistant, Content: "Hello! How can I help?"},
			{Role: RoleUser, Content: "I'm stressed"},
			{Role: RoleAssistant, Content: "Tell me more."},
		},
		Message: "work is a lot",
	})

	wantRoles := []string{"user", "model", "user", "model"}
	if len(history) != len(wantRoles) {
		t.Fatalf("history length = %d, want %d", len(history), len(wantRoles))
	}
	for i, role := range wantRoles {
		if history[i].Role != role {
			t.Fatalf("history[%d].Role = %q, want %q", i, history[i].Role, role)
		}
	}
	if got := contentText(t, history[0]); got != "be kind" {
		t.Fatalf("priming turn = %q", got)
	}
	if got := contentText(t, history[1]); got != PrimingAck+"\n\nHello! How can I help?" {
		t.Fatalf("ack turn = %q", got)
	}
	if message != "work is a lot" {
		t.Fatalf("message = %q", message)
	}
}

func TestGeminiHistoryFoldsTrailingUserTurn(t *testing.T) {
	history, message := geminiHistory(Request{
		History: []Message{
			{Role: RoleAssistant, Content: "Hello"},
			{Role: RoleUser, Content: "first"},
			{Role: RoleUser, Content: "second"},
		},
		Message: "third",
	})
	if len(history) != 0 {
		t.Fatalf("history length = %d, want 0 (leading model turn dropped)", len(history))
	}
	if message != "first\n\nsecond\n\nthird" {
		t.Fatalf("message = %q", message)
	}
}

func TestClassifyGeminiError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want reliability.Class
	}{
		{"blocked", &genai.BlockedError{Candidate: &genai.Candidate{FinishReason: genai.FinishReasonSafety}}, reliability.ClassContentFiltered},
		{"googleapi 429", &googleapi.Error{Code: 429, Message: "quota exceeded"}, reliability.ClassRateLimited},
		{"googleapi 403", &googleapi.Error{Code: 403, Message: "forbidden"}, reliability.ClassMisconfigured},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "bad key"), reliability.ClassMisconfigured},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "slow down"), reliability.ClassRateLimited},
		{"grpc unavailable", status.Error(codes.Unavailable, "try later"), reliability.ClassTransient},
		{"plain", errors.New("mystery"), reliability.ClassUnknown},
	}
	for _, tc := range tests {
		err := classifyGeminiError(tc.err)
		if got := reliability.Classify(err); got != tc.want {
			t.Fatalf("%s: class = %q, want %q", tc.name, got, tc.want)
		}
	}
}
