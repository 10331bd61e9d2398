package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/repose-of-mind/repose/internal/reliability"
)

func TestNewProviderAutoFallsBackToMock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "mock" {
		t.Fatalf("provider = %q, want mock", p.Name())
	}

	text, err := p.Generate(context.Background(), Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(text, "I heard you: hello") {
		t.Fatalf("unexpected response text: %q", text)
	}
}

func TestNewProviderAutoOrder(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{HTTPURL: "http://example.test/generate"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "http" {
		t.Fatalf("provider = %q, want http", p.Name())
	}

	p, err = NewProvider(context.Background(), Config{
		OpenAIAPIKey: "sk-test",
		HTTPURL:      "http://example.test/generate",
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "openai" {
		t.Fatalf("provider = %q, want openai", p.Name())
	}
}

func TestNewProviderExplicitModeRequiresCredentials(t *testing.T) {
	for _, mode := range []string{"gemini", "openai", "ark", "http"} {
		if _, err := NewProvider(context.Background(), Config{Mode: mode}); err == nil {
			t.Fatalf("NewProvider(%q) expected error without credentials", mode)
		}
	}
	if _, err := NewProvider(context.Background(), Config{Mode: "carrier-pigeon"}); err == nil {
		t.Fatalf("NewProvider() expected error for unknown mode")
	}
}

func TestNewErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   reliability.Class
	}{
		{401, errors.New("unauthorized"), reliability.ClassMisconfigured},
		{429, errors.New("slow down"), reliability.ClassRateLimited},
		{503, errors.New("overloaded"), reliability.ClassTransient},
		{400, errors.New("API key not valid"), reliability.ClassMisconfigured},
		{0, context.DeadlineExceeded, reliability.ClassTransient},
		{0, errors.New("something odd"), reliability.ClassUnknown},
	}
	for _, tc := range tests {
		err := newError("test", tc.status, tc.err)
		if got := reliability.Classify(err); got != tc.want {
			t.Fatalf("Classify(newError(%d, %v)) = %q, want %q", tc.status, tc.err, got, tc.want)
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("newError() should wrap %v", tc.err)
		}
	}

	if newError("test", 500, nil) != nil {
		t.Fatalf("newError(nil) should be nil")
	}
}

func TestMockProviderRemembersLastUserTurn(t *testing.T) {
	text, err := NewMockProvider().Generate(context.Background(), Request{
		Message: "still here",
		History: []Message{
			{Role: RoleUser, Content: "rough week"},
			{Role: RoleAssistant, Content: "I'm sorry to hear that."},
		},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "I heard you: still here\nI also remember: rough week" {
		t.Fatalf("text = %q", text)
	}
}

func TestMockProviderHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockProvider().Generate(ctx, Request{Message: "hi"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
