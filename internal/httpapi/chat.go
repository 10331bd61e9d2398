package httpapi

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/repose-of-mind/repose/internal/auth"
	"github.com/repose-of-mind/repose/internal/conversation"
)

type sendMessageRequest struct {
	Content *string `json:"content"`
}

type sendMessageResponse struct {
	Error       string            `json:"error,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	UserMessage conversation.Turn `json:"userMessage"`
	BotMessage  conversation.Turn `json:"botMessage"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFrom(r.Context())
	turns, err := s.chat.History(r.Context(), owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to fetch chat history")
		return
	}
	respondJSON(w, http.StatusOK, turns)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFrom(r.Context())

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.Content == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Valid message content is required")
		return
	}

	ex, err := s.chat.Send(r.Context(), owner, *req.Content)
	switch {
	case errors.Is(err, conversation.ErrContentTooLong):
		respondError(w, http.StatusBadRequest, "message_too_long", "Message is too long. Please keep it under 1000 characters.")
		return
	case errors.Is(err, conversation.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", "Valid message content is required")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("chat message failed")
		respondError(w, http.StatusInternalServerError, "storage_error", "Server error")
		return
	}

	if !ex.Reply.OK {
		respondJSON(w, http.StatusInternalServerError, sendMessageResponse{
			Error:       "Failed to generate response",
			Reason:      string(ex.Reply.Class),
			UserMessage: ex.UserTurn,
			BotMessage:  ex.BotTurn,
		})
		return
	}
	respondJSON(w, http.StatusOK, sendMessageResponse{UserMessage: ex.UserTurn, BotMessage: ex.BotTurn})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.OwnerFrom(r.Context())
	deleted, err := s.chat.Clear(r.Context(), owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to clear chat history")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "not_found", "No chat history found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Chat history cleared successfully"})
}
