package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/chat"
	"github.com/WorkQuest/admin-backend-sub000/internal/middleware"
)

type ChatHandler struct {
	engine *chat.Engine
}

func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

type CreateGroupChatRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

func (h *ChatHandler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	adminID := middleware.GetAdminID(r.Context())
	created, err := h.engine.CreateGroupChat(r.Context(), adminID, req.Name, req.MemberIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type SendToAdminRequest struct {
	AdminID  string   `json:"admin_id"`
	Text     string   `json:"text"`
	MediaIDs []string `json:"media_ids,omitempty"`
}

// SendToAdmin delivers a message into the private chat with another admin,
// creating the chat on first contact.
func (h *ChatHandler) SendToAdmin(w http.ResponseWriter, r *http.Request) {
	var req SendToAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	adminID := middleware.GetAdminID(r.Context())
	msg, err := h.engine.SendMessageToAdmin(r.Context(), adminID, req.AdminID, req.Text, req.MediaIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	previews, err := h.engine.ListChats(r.Context(), adminID, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previews)
}

type MembersRequest struct {
	AdminIDs []string `json:"admin_ids"`
}

func (h *ChatHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	var req MembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	adminID := middleware.GetAdminID(r.Context())
	changes, err := h.engine.AddMembers(r.Context(), chi.URLParam(r, "chatID"), adminID, req.AdminIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (h *ChatHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	err := h.engine.RemoveMember(r.Context(), chi.URLParam(r, "chatID"), adminID, chi.URLParam(r, "adminID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	if err := h.engine.LeaveGroupChat(r.Context(), chi.URLParam(r, "chatID"), adminID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreateQuestChatRequest struct {
	QuestID    string   `json:"quest_id"`
	ResponseID *string  `json:"response_id,omitempty"`
	AdminIDs   []string `json:"admin_ids"`
}

// CreateQuestChat is an internal endpoint: the quest workflow opens the chat
// when a quest gets its parties.
func (h *ChatHandler) CreateQuestChat(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	created, err := h.engine.CreateQuestChat(r.Context(), req.QuestID, req.ResponseID, req.AdminIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ChatHandler) CloseQuestChat(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CloseQuestChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
