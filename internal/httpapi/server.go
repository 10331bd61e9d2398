package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/repose-of-mind/repose/internal/auth"
	"github.com/repose-of-mind/repose/internal/chat"
	"github.com/repose-of-mind/repose/internal/config"
	"github.com/repose-of-mind/repose/internal/observability"
)

// Info describes the wired backends for health endpoints.
type Info struct {
	StoreDriver string
	Provider    string
}

type Server struct {
	cfg     config.Config
	chat    *chat.Service
	auth    auth.Authenticator
	metrics *observability.Metrics
	logger  zerolog.Logger
	info    Info
}

func New(cfg config.Config, chatSvc *chat.Service, authn auth.Authenticator, metrics *observability.Metrics, logger zerolog.Logger, info Info) *Server {
	return &Server{
		cfg:     cfg,
		chat:    chatSvc,
		auth:    authn,
		metrics: metrics,
		logger:  logger,
		info:    info,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := middleware.GetReqID(r.Context()); id != "" {
				hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("request_id", id)
				})
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Repose of Mind API"})
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Get("/api/perf/latency", s.handlePerfLatency)

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(s.requireOwner)
		r.Get("/", s.handleHistory)
		r.Post("/message", s.handleSendMessage)
		r.Delete("/", s.handleClear)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"store_driver": s.info.StoreDriver,
		"provider":     s.info.Provider,
	})
}

// requireOwner resolves the caller and stores the owner id on the request context.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := s.auth.Authenticate(r)
		switch {
		case errors.Is(err, auth.ErrMissingToken):
			respondError(w, http.StatusUnauthorized, "unauthenticated", "No authentication token, access denied")
			return
		case err != nil:
			hlog.FromRequest(r).Debug().Err(err).Msg("rejected token")
			respondError(w, http.StatusUnauthorized, "invalid_token", "Token is invalid or expired")
			return
		}
		ctx := auth.WithOwner(r.Context(), owner)
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("owner_id", owner)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
