package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/chat"
	"github.com/WorkQuest/admin-backend-sub000/internal/middleware"
)

type MessageHandler struct {
	engine *chat.Engine
}

func NewMessageHandler(engine *chat.Engine) *MessageHandler {
	return &MessageHandler{engine: engine}
}

type SendMessageRequest struct {
	Text     string   `json:"text"`
	MediaIDs []string `json:"media_ids,omitempty"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	adminID := middleware.GetAdminID(r.Context())
	msg, err := h.engine.SendMessage(r.Context(), chi.URLParam(r, "chatID"), adminID, req.Text, req.MediaIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	msgs, err := h.engine.ListVisibleMessages(r.Context(), chi.URLParam(r, "chatID"), adminID,
		queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type SetReadRequest struct {
	MessageID string `json:"message_id"`
}

func (h *MessageHandler) SetRead(w http.ResponseWriter, r *http.Request) {
	var req SetReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	adminID := middleware.GetAdminID(r.Context())
	if err := h.engine.SetMessagesAsRead(r.Context(), chi.URLParam(r, "chatID"), adminID, req.MessageID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
