package provider

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider gives deterministic local replies when no provider is configured.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Generate(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(req), nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.Message)
	if base == "" {
		base = "I am listening."
	}

	var last string
	for i := len(req.History) - 1; i >= 0; i-- {
		if req.History[i].Role == RoleUser {
			last = strings.TrimSpace(req.History[i].Content)
			break
		}
	}
	if last == "" {
		return fmt.Sprintf("I heard you: %s", base)
	}
	return fmt.Sprintf("I heard you: %s\nI also remember: %s", base, last)
}
