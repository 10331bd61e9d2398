package reply

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/repose-of-mind/repose/internal/conversation"
	"github.com/repose-of-mind/repose/internal/observability"
	"github.com/repose-of-mind/repose/internal/policy"
	"github.com/repose-of-mind/repose/internal/provider"
	"github.com/repose-of-mind/repose/internal/reliability"
)

// Config bounds the work done for one reply.
type Config struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	AttemptTimeout time.Duration
	ContextTurns   int
	SystemPrompt   string
	RedactPII      bool
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BackoffBase:    time.Second,
		BackoffMax:     30 * time.Second,
		AttemptTimeout: 30 * time.Second,
		ContextTurns:   10,
		SystemPrompt:   provider.SystemPrompt,
		RedactPII:      true,
	}
}

// Result is always usable: Text holds the reply or a fallback, OK tells which.
type Result struct {
	Text     string
	OK       bool
	Class    reliability.Class
	Attempts int
	Err      error
}

// ErrEmptyReply marks a provider response with no usable text.
var ErrEmptyReply = errors.New("provider returned an empty reply")

// Generator wraps a provider with a context window, bounded retries and fallbacks.
// It keeps no state between calls.
type Generator struct {
	provider provider.Provider
	cfg      Config
	rng      Rand
	newTimer func() backoff.Timer
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

type Option func(*Generator)

// WithRand sets the source used to rotate unknown-failure replies.
func WithRand(r Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithTimer replaces the timer used between attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(g *Generator) { g.newTimer = newTimer }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func NewGenerator(p provider.Provider, cfg Config, opts ...Option) *Generator {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = def.ContextTurns
	}

	g := &Generator{
		provider: p,
		cfg:      cfg,
		rng:      globalRand{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a reply to userMessage given the turns that preceded it.
func (g *Generator) Generate(ctx context.Context, userMessage string, prior []conversation.Turn) Result {
	message := strings.TrimSpace(userMessage)
	if message == "" {
		g.metrics.ObserveFallback(string(reliability.ClassInvalidInput))
		return Result{Text: ClarifyReply, Class: reliability.ClassInvalidInput}
	}

	req := provider.Request{
		RequestID:    uuid.NewString(),
		SystemPrompt: g.cfg.SystemPrompt,
		History:      toMessages(Window(prior, g.cfg.ContextTurns), g.cfg.RedactPII),
		Message:      message,
	}
	if g.cfg.RedactPII {
		req.Message, _ = policy.RedactPII(req.Message)
	}

	logger := g.logger.With().
		Str("request_id", req.RequestID).
		Str("provider", g.provider.Name()).
		Logger()

	var (
		attempts int
		text     string
		lastErr  error
	)
	op := func() error {
		attempts++
		out, err := g.attempt(ctx, req)
		if err == nil {
			text = out
			g.metrics.ObserveProviderAttempt(g.provider.Name(), "ok")
			return nil
		}
		lastErr = err
		class := reliability.Classify(err)
		g.metrics.ObserveProviderAttempt(g.provider.Name(), string(class))
		if !class.Retryable() || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempts).
			Str("class", string(reliability.Classify(err))).
			Dur("backoff", wait).
			Msg("reply attempt failed, retrying")
	}

	var timer backoff.Timer
	if g.newTimer != nil {
		timer = g.newTimer()
	}
	// WithMaxRetries treats zero as unlimited, so a single attempt needs StopBackOff.
	var schedule backoff.BackOff = &backoff.StopBackOff{}
	if g.cfg.MaxAttempts > 1 {
		schedule = backoff.WithMaxRetries(
			reliability.NewSchedule(g.cfg.BackoffBase, g.cfg.BackoffMax),
			uint64(g.cfg.MaxAttempts-1),
		)
	}
	bo := backoff.WithContext(schedule, ctx)

	started := time.Now()
	err := backoff.RetryNotifyWithTimer(op, bo, notify, timer)
	g.metrics.ObserveGeneration(time.Since(started))

	if err == nil {
		return Result{Text: text, OK: true, Attempts: attempts}
	}
	if lastErr == nil {
		lastErr = err
	}

	class := publicClass(reliability.Classify(lastErr))
	logger.Error().
		Err(lastErr).
		Int("attempts", attempts).
		Str("class", string(class)).
		Msg("reply generation failed, serving fallback")
	g.metrics.ObserveFallback(string(class))

	return Result{
		Text:     FallbackFor(class, g.rng),
		Class:    class,
		Attempts: attempts,
		Err:      lastErr,
	}
}

func (g *Generator) attempt(ctx context.Context, req provider.Request) (string, error) {
	actx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()

	text, err := g.provider.Generate(actx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &provider.Error{Provider: g.provider.Name(), Class: reliability.ClassTransient, Err: ErrEmptyReply}
	}
	return text, nil
}
