package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/repose-of-mind/repose/internal/conversation"
	"github.com/repose-of-mind/repose/internal/observability"
	"github.com/repose-of-mind/repose/internal/reply"
)

// Replier produces a reply or a fallback for one user message.
type Replier interface {
	Generate(ctx context.Context, userMessage string, prior []conversation.Turn) reply.Result
}

// Exchange is the outcome of one submission. Reply.OK is false when BotTurn holds a fallback.
type Exchange struct {
	UserTurn conversation.Turn
	BotTurn  conversation.Turn
	Reply    reply.Result
}

// Service runs one chat submission end to end.
type Service struct {
	turns   *conversation.Adapter
	replies Replier
	metrics *observability.Metrics
	logger  zerolog.Logger
}

type Option func(*Service)

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(turns *conversation.Adapter, replies Replier, opts ...Option) *Service {
	s := &Service{turns: turns, replies: replies, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) History(ctx context.Context, ownerID string) ([]conversation.Turn, error) {
	turns, err := s.turns.History(ctx, ownerID)
	if err != nil {
		s.storeFailed("history", ownerID, err)
		return nil, err
	}
	return turns, nil
}

// Clear reports false when the owner had no conversation.
func (s *Service) Clear(ctx context.Context, ownerID string) (bool, error) {
	deleted, err := s.turns.Clear(ctx, ownerID)
	if err != nil {
		s.storeFailed("clear", ownerID, err)
		return false, err
	}
	return deleted, nil
}

// Send persists the user's turn, generates a reply and persists it as a bot turn.
// Generation failures are absorbed into a fallback; storage failures are returned.
func (s *Service) Send(ctx context.Context, ownerID, text string) (Exchange, error) {
	started := time.Now()

	content, err := conversation.ValidateContent(text)
	if err != nil {
		s.metrics.ObserveChatMessage("invalid")
		return Exchange{}, err
	}

	persistStarted := time.Now()
	conv, err := s.turns.GetOrCreate(ctx, ownerID)
	if err != nil {
		s.storeFailed("get_or_create", ownerID, err)
		return Exchange{}, err
	}
	userTurn, err := s.turns.AppendUserTurn(ctx, ownerID, content)
	if err != nil {
		s.storeFailed("append_user_turn", ownerID, err)
		return Exchange{}, err
	}
	persisted := time.Since(persistStarted)

	res := s.replies.Generate(ctx, userTurn.Content, conv.Turns)

	// The reply is stored even if the client went away mid-generation.
	persistStarted = time.Now()
	botTurn, err := s.turns.AppendBotTurn(context.WithoutCancel(ctx), ownerID, res.Text)
	if err != nil {
		s.storeFailed("append_bot_turn", ownerID, err)
		return Exchange{UserTurn: userTurn, Reply: res}, err
	}
	s.metrics.ObserveStage(observability.StagePersist, persisted+time.Since(persistStarted))
	s.metrics.ObserveStage(observability.StageTurnTotal, time.Since(started))

	if res.OK {
		s.metrics.ObserveChatMessage("ok")
	} else {
		s.metrics.ObserveChatMessage("fallback")
		s.logger.Warn().
			Str("owner_id", ownerID).
			Str("class", string(res.Class)).
			Int("attempts", res.Attempts).
			Msg("served fallback reply")
	}
	return Exchange{UserTurn: userTurn, BotTurn: botTurn, Reply: res}, nil
}

func (s *Service) storeFailed(op, ownerID string, err error) {
	if errors.Is(err, conversation.ErrValidation) {
		return
	}
	s.metrics.ObserveStoreError(op)
	s.logger.Error().Err(err).Str("op", op).Str("owner_id", ownerID).Msg("conversation store failure")
}
