package reply

import (
	"math/rand/v2"

	"github.com/repose-of-mind/repose/internal/reliability"
)

// Rand picks an index in [0, n).
type Rand interface {
	IntN(n int) int
}

// ClarifyReply answers an empty message without calling the provider.
const ClarifyReply = "I didn't quite catch that. Could you share a little more about what's on your mind?"

const (
	misconfiguredReply = "I'm not able to respond right now because the chat service isn't set up correctly. Please try again a little later."
	rateLimitedReply   = "I'm receiving a lot of messages at the moment. Please give me a minute and try again."
	contentFilterReply = "I'm not able to respond to that message. If you're going through something difficult, please consider reaching out to someone you trust or a local crisis line."
)

// unknownReplies rotate so repeated failures don't read the same.
var unknownReplies = []string{
	"I apologize, but I'm having trouble processing your message right now. Please try again in a moment.",
	"I'm sorry, something went wrong on my side. Could you send that again in a moment?",
	"I want to give you a thoughtful answer, but I couldn't put one together just now. Please try again shortly.",
	"My apologies, I lost my train of thought for a second. Would you mind sending your message again?",
}

// publicClass folds internal classes into the four user-facing ones.
func publicClass(c reliability.Class) reliability.Class {
	switch c {
	case reliability.ClassMisconfigured, reliability.ClassRateLimited, reliability.ClassContentFiltered:
		return c
	default:
		return reliability.ClassUnknown
	}
}

// FallbackFor returns the fixed reply for class, drawing from the rotating pool for unknown failures.
func FallbackFor(class reliability.Class, rng Rand) string {
	switch class {
	case reliability.ClassInvalidInput:
		return ClarifyReply
	case reliability.ClassMisconfigured:
		return misconfiguredReply
	case reliability.ClassRateLimited:
		return rateLimitedReply
	case reliability.ClassContentFiltered:
		return contentFilterReply
	}
	if rng == nil {
		rng = globalRand{}
	}
	return unknownReplies[rng.IntN(len(unknownReplies))]
}

// globalRand uses the goroutine-safe top-level source.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }
