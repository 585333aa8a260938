package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/chat"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

const (
	errMessagesRequired = "messages array required"
	errChatFailed       = "Chat completion failed"
)

// handleChat handles POST /api/chat
func (h *APIHandler) handleChat(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	history, ok := decodeHistory(r)
	if !ok {
		h.handleError(w, http.StatusBadRequest, errMessagesRequired, log)
		return
	}

	log.Debug("chat request", zap.Int("message_count", len(history)))

	result, err := h.conversation.Run(r.Context(), history)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidInput) {
			h.handleError(w, http.StatusBadRequest, errMessagesRequired, log)
			return
		}
		log.Error("chat completion failed", zap.Error(err))
		h.handleError(w, http.StatusInternalServerError, errChatFailed, log)
		return
	}

	if id := h.record(r, result, log); id != "" {
		w.Header().Set("X-Conversation-ID", id)
	}

	writeJSON(w, http.StatusOK, models.TextResponse{Text: result.Text})
}

// decodeHistory parses the chat body. It reports false when messages is
// missing, null or anything but a JSON array of turns.
func decodeHistory(r *http.Request) ([]models.ConversationTurn, bool) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, false
	}

	raw := bytes.TrimSpace(req.Messages)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}

	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, false
	}

	history := make([]models.ConversationTurn, 0, len(messages))
	for _, m := range messages {
		history = append(history, models.ConversationTurn{
			Role:    models.Role(m.Role),
			Content: m.Content,
		})
	}
	return history, true
}

// record journals the exchange and returns its ID, or "" when the journal is
// disabled or the write failed. A failed write never fails the request.
func (h *APIHandler) record(r *http.Request, result *chat.Result, log *zap.Logger) string {
	if h.journal == nil {
		return ""
	}

	ex := models.Exchange{
		ID:          "ex_" + uuid.New().String(),
		TraceID:     logger.TraceIDFromContext(r.Context()),
		CreatedAt:   time.Now().Unix(),
		Messages:    result.Turns,
		Answer:      result.Text,
		SearchQuery: result.SearchQuery,
	}
	if err := h.journal.Record(ex); err != nil {
		log.Warn("failed to journal exchange", zap.Error(err))
		return ""
	}
	return ex.ID
}

// handleGetConversation handles GET /api/conversations/{id}
func (h *APIHandler) handleGetConversation(w http.ResponseWriter, r *http.Request, id string, log *zap.Logger) {
	if h.journal == nil || id == "" {
		h.handleError(w, http.StatusNotFound, "Not found", log)
		return
	}

	ex, ok := h.journal.Get(id)
	if !ok {
		h.handleError(w, http.StatusNotFound, "Conversation not found", log)
		return
	}

	log.Info("exchange retrieved",
		zap.String("exchange_id", id),
		zap.Int("message_count", len(ex.Messages)),
	)
	writeJSON(w, http.StatusOK, ex)
}

// handleDeleteConversation handles DELETE /api/conversations/{id}
func (h *APIHandler) handleDeleteConversation(w http.ResponseWriter, id string, log *zap.Logger) {
	if h.journal == nil || id == "" {
		h.handleError(w, http.StatusNotFound, "Not found", log)
		return
	}
	if _, ok := h.journal.Get(id); !ok {
		h.handleError(w, http.StatusNotFound, "Conversation not found", log)
		return
	}

	if err := h.journal.Delete(id); err != nil {
		log.Error("failed to delete exchange", zap.String("exchange_id", id), zap.Error(err))
		h.handleError(w, http.StatusInternalServerError, "Failed to delete conversation", log)
		return
	}

	log.Info("exchange deleted", zap.String("exchange_id", id))
	w.WriteHeader(http.StatusNoContent)
}
