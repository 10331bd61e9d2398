package reply

import (
	"slices"

	"github.com/repose-of-mind/repose/internal/conversation"
	"github.com/repose-of-mind/repose/internal/policy"
	"github.com/repose-of-mind/repose/internal/provider"
)

// Window returns a copy of the most recent n turns. n <= 0 yields none.
func Window(turns []conversation.Turn, n int) []conversation.Turn {
	if n <= 0 || len(turns) == 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return slices.Clone(turns)
}

func toMessages(turns []conversation.Turn, redact bool) []provider.Message {
	out := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		role := provider.RoleUser
		if t.Sender == conversation.SenderBot {
			role = provider.RoleAssistant
		}
		content := t.Content
		if redact {
			content, _ = policy.RedactPII(content)
		}
		out = append(out, provider.Message{Role: role, Content: content})
	}
	return out
}
