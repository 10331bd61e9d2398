package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/repose-of-mind/repose/internal/reliability"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider calls the Gemini API. Each call starts a fresh chat primed with the
// system prompt as a user turn followed by the model acknowledgement.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(apiKey)))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, model: strings.TrimSpace(model)}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	history, message := geminiHistory(req)

	cs := p.client.GenerativeModel(p.model).StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", &Error{Provider: p.Name(), Class: reliability.ClassContentFiltered, Err: ErrContentFiltered}
	}
	if cand.Content == nil {
		return "", nil
	}
	var out strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	return out.String(), nil
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// geminiHistory builds alternating user/model history ending on a model turn and
// returns the text to send. Consecutive turns of one role are merged.
func geminiHistory(req Request) ([]*genai.Content, string) {
	type turn struct {
		role string
		text string
	}
	var turns []turn
	add := func(role, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text += "\n\n" + text
			return
		}
		turns = append(turns, turn{role: role, text: text})
	}

	if prompt := strings.TrimSpace(req.SystemPrompt); prompt != "" {
		add("user", prompt)
		add("model", PrimingAck)
	}
	for _, m := range req.History {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		add(role, m.Content)
	}

	message := strings.TrimSpace(req.Message)
	// A trailing user turn is folded into the outgoing message.
	if n := len(turns); n > 0 && turns[n-1].role == "user" {
		message = turns[n-1].text + "\n\n" + message
		turns = turns[:n-1]
	}
	// History must open with a user turn.
	if len(turns) > 0 && turns[0].role == "model" {
		turns = turns[1:]
	}

	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		out = append(out, &genai.Content{Role: t.role, Parts: []genai.Part{genai.Text(t.text)}})
	}
	return out, message
}

func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &Error{Provider: "gemini", Class: reliability.ClassContentFiltered, Err: err}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return newError("gemini", gErr.Code, err)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return newError("gemini", code, err)
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		if class, statusCode := classifyGRPCCode(st.Code()); class != "" {
			return &Error{Provider: "gemini", Class: class, StatusCode: statusCode, Err: err}
		}
	}
	return newError("gemini", 0, err)
}

func classifyGRPCCode(code codes.Code) (reliability.Class, int) {
	switch code {
	case codes.Unauthenticated:
		return reliability.ClassMisconfigured, http.StatusUnauthorized
	case codes.PermissionDenied:
		return reliability.ClassMisconfigured, http.StatusForbidden
	case codes.NotFound:
		return reliability.ClassMisconfigured, http.StatusNotFound
	case codes.InvalidArgument, codes.FailedPrecondition:
		return reliability.ClassMisconfigured, http.StatusBadRequest
	case codes.ResourceExhausted:
		return reliability.ClassRateLimited, http.StatusTooManyRequests
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return reliability.ClassTransient, http.StatusServiceUnavailable
	default:
		return "", 0
	}
}
