package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/repose-of-mind/repose/internal/reliability"
)

// ArkConfig configures the Volcengine Ark chat model.
type ArkConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Region  string
}

// ArkProvider generates replies through an eino chat model.
type ArkProvider struct {
	chat model.BaseChatModel
}

func NewArkProvider(ctx context.Context, cfg ArkConfig) (*ArkProvider, error) {
	chat, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Model:   strings.TrimSpace(cfg.Model),
		BaseURL: strings.TrimSpace(cfg.BaseURL),
		Region:  strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	return NewChatModelProvider(chat), nil
}

// NewChatModelProvider wraps any eino chat model.
func NewChatModelProvider(chat model.BaseChatModel) *ArkProvider {
	return &ArkProvider{chat: chat}
}

func (p *ArkProvider) Name() string { return "ark" }

func (p *ArkProvider) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]*schema.Message, 0, len(req.History)+2)
	if prompt := strings.TrimSpace(req.SystemPrompt); prompt != "" {
		msgs = append(msgs, schema.SystemMessage(prompt))
	}
	for _, m := range req.History {
		if m.Role == RoleAssistant {
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
			continue
		}
		msgs = append(msgs, schema.UserMessage(m.Content))
	}
	msgs = append(msgs, schema.UserMessage(req.Message))

	out, err := p.chat.Generate(ctx, msgs)
	if err != nil {
		return "", newError(p.Name(), 0, err)
	}
	if out == nil {
		return "", nil
	}
	if out.ResponseMeta != nil && out.ResponseMeta.FinishReason == "content_filter" {
		return "", &Error{Provider: p.Name(), Class: reliability.ClassContentFiltered, Err: ErrContentFiltered}
	}
	return out.Content, nil
}
