package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/chat"
	"github.com/WorkQuest/admin-backend-sub000/internal/middleware"
)

type DisputeHandler struct {
	engine *chat.Engine
}

func NewDisputeHandler(engine *chat.Engine) *DisputeHandler {
	return &DisputeHandler{engine: engine}
}

// Take assigns the dispute to the calling admin and joins them to the quest
// chat in one transaction.
func (h *DisputeHandler) Take(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	dispute, err := h.engine.TakeDispute(r.Context(), chi.URLParam(r, "disputeID"), adminID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispute)
}

type DecideDisputeRequest struct {
	Decision string `json:"decision"`
}

func (h *DisputeHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecideDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	adminID := middleware.GetAdminID(r.Context())
	dispute, err := h.engine.DecideDispute(r.Context(), chi.URLParam(r, "disputeID"), adminID, req.Decision)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispute)
}
