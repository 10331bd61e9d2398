package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/repose-of-mind/repose/internal/reliability"
)

// Role is the author of a context message as seen by a provider.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of context sent upstream.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized generation request.
type Request struct {
	RequestID    string    `json:"request_id,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	History      []Message `json:"history,omitempty"`
	Message      string    `json:"message"`
}

// Provider produces one reply per call. It does not retry.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Error carries the failure class a provider derived from its SDK error.
type Error struct {
	Provider   string
	Class      reliability.Class
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) FailureClass() reliability.Class { return e.Class }

// ErrContentFiltered marks a reply the provider withheld on policy grounds.
var ErrContentFiltered = errors.New("reply withheld by content filter")

// newError classifies err by status code first, then by its text.
func newError(name string, status int, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	class := reliability.ClassUnknown
	if status > 0 {
		class = reliability.ClassifyHTTPStatus(status)
	}
	if class == reliability.ClassUnknown {
		class = reliability.Classify(err)
	}
	return &Error{Provider: name, Class: class, StatusCode: status, Err: err}
}

// Config controls provider construction.
type Config struct {
	Mode string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ArkAPIKey  string
	ArkModel   string
	ArkBaseURL string
	ArkRegion  string

	HTTPURL string
}

// NewProvider builds the provider named by cfg.Mode. Mode "auto" picks the first one
// with credentials in the order gemini, openai, ark, http, mock.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoProvider(ctx, cfg)
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("GEMINI_API_KEY is required for gemini provider")
		}
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for openai provider")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case "ark":
		if strings.TrimSpace(cfg.ArkAPIKey) == "" || strings.TrimSpace(cfg.ArkModel) == "" {
			return nil, errors.New("ARK_API_KEY and ARK_MODEL are required for ark provider")
		}
		return NewArkProvider(ctx, ArkConfig{
			APIKey:  cfg.ArkAPIKey,
			Model:   cfg.ArkModel,
			BaseURL: cfg.ArkBaseURL,
			Region:  cfg.ArkRegion,
		})
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("PROVIDER_HTTP_URL is required for http provider")
		}
		return NewHTTPProvider(cfg.HTTPURL), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Mode)
	}
}

func newAutoProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch {
	case strings.TrimSpace(cfg.GeminiAPIKey) != "":
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	case strings.TrimSpace(cfg.ArkAPIKey) != "" && strings.TrimSpace(cfg.ArkModel) != "":
		return NewArkProvider(ctx, ArkConfig{
			APIKey:  cfg.ArkAPIKey,
			Model:   cfg.ArkModel,
			BaseURL: cfg.ArkBaseURL,
			Region:  cfg.ArkRegion,
		})
	case strings.TrimSpace(cfg.HTTPURL) != "":
		return NewHTTPProvider(cfg.HTTPURL), nil
	default:
		return NewMockProvider(), nil
	}
}
