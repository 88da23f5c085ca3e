package handler

import (
	"net/http"

	"github.com/WorkQuest/admin-backend-sub000/internal/middleware"
	"github.com/WorkQuest/admin-backend-sub000/internal/unread"
)

type UnreadHandler struct {
	maintainer *unread.Maintainer
}

func NewUnreadHandler(maintainer *unread.Maintainer) *UnreadHandler {
	return &UnreadHandler{maintainer: maintainer}
}

// Badge returns the number of chats with unread messages for the caller.
func (h *UnreadHandler) Badge(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())
	count, err := h.maintainer.Count(r.Context(), adminID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_chats": count})
}
