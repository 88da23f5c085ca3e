package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/chat"
	"github.com/WorkQuest/admin-backend-sub000/internal/middleware"
)

type StarHandler struct {
	engine *chat.Engine
}

func NewStarHandler(engine *chat.Engine) *StarHandler {
	return &StarHandler{engine: engine}
}

func (h *StarHandler) StarChat(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	if err := h.engine.StarChat(r.Context(), adminID, chi.URLParam(r, "chatID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StarHandler) UnstarChat(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	if err := h.engine.UnstarChat(r.Context(), adminID, chi.URLParam(r, "chatID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StarHandler) StarMessage(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	if err := h.engine.StarMessage(r.Context(), adminID, chi.URLParam(r, "messageID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StarHandler) UnstarMessage(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	if err := h.engine.UnstarMessage(r.Context(), adminID, chi.URLParam(r, "messageID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StarHandler) ListStarredChats(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	starred, err := h.engine.ListStarredChats(r.Context(), adminID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, starred)
}

func (h *StarHandler) ListStarredMessages(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	starred, err := h.engine.ListStarredMessages(r.Context(), adminID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, starred)
}
