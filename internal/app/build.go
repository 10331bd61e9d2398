package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/repose-of-mind/repose/internal/auth"
	"github.com/repose-of-mind/repose/internal/chat"
	"github.com/repose-of-mind/repose/internal/config"
	"github.com/repose-of-mind/repose/internal/conversation"
	"github.com/repose-of-mind/repose/internal/httpapi"
	"github.com/repose-of-mind/repose/internal/observability"
	"github.com/repose-of-mind/repose/internal/provider"
	"github.com/repose-of-mind/repose/internal/reply"
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Chat     *chat.Service
	Metrics  *observability.Metrics
	Info     httpapi.Info
	Provider provider.Provider

	// Cleanup releases the store connection and provider client.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	driver, err := conversation.DetectDriver(cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}
	store, err := conversation.NewStore(ctx, conversation.StoreConfig{
		Driver:   driver,
		URL:      cfg.DatabaseURL,
		Database: cfg.StoreDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation store init failed: %w", err)
	}

	p, err := provider.NewProvider(ctx, providerConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("provider init failed: %w", err)
	}

	authn, err := auth.New(cfg.AuthMode, cfg.AuthJWTSecret)
	if err != nil {
		closeProvider(p)
		_ = store.Close()
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	generator := reply.NewGenerator(p, replyConfig(cfg),
		reply.WithMetrics(metrics),
		reply.WithLogger(logger.With().Str("component", "reply").Logger()),
	)
	chatSvc := chat.NewService(conversation.NewAdapter(store), generator,
		chat.WithMetrics(metrics),
		chat.WithLogger(logger.With().Str("component", "chat").Logger()),
	)

	info := httpapi.Info{StoreDriver: driver, Provider: p.Name()}
	api := httpapi.New(cfg, chatSvc, authn, metrics, logger, info)

	logger.Info().
		Str("store_driver", driver).
		Str("provider", p.Name()).
		Str("auth_mode", cfg.AuthMode).
		Msg("chat service wired")

	cleanup := func() error {
		var errs []error
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close provider: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Chat:     chatSvc,
		Metrics:  metrics,
		Info:     info,
		Provider: p,
		Cleanup:  cleanup,
	}, nil
}

func providerConfig(cfg config.Config) provider.Config {
	return provider.Config{
		Mode:          cfg.Provider,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		ArkAPIKey:     cfg.ArkAPIKey,
		ArkModel:      cfg.ArkModel,
		ArkBaseURL:    cfg.ArkBaseURL,
		ArkRegion:     cfg.ArkRegion,
		HTTPURL:       cfg.ProviderURL,
	}
}

func replyConfig(cfg config.Config) reply.Config {
	rc := reply.DefaultConfig()
	if cfg.ReplyMaxAttempts > 0 {
		rc.MaxAttempts = cfg.ReplyMaxAttempts
	}
	if cfg.ReplyBackoffBase > 0 {
		rc.BackoffBase = cfg.ReplyBackoffBase
	}
	if cfg.ReplyBackoffMax > 0 {
		rc.BackoffMax = cfg.ReplyBackoffMax
	}
	if cfg.ReplyAttemptTimeout > 0 {
		rc.AttemptTimeout = cfg.ReplyAttemptTimeout
	}
	if cfg.ReplyContextTurns > 0 {
		rc.ContextTurns = cfg.ReplyContextTurns
	}
	rc.RedactPII = cfg.ReplyRedactPII
	return rc
}

func closeProvider(p provider.Provider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}
