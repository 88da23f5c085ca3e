package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAppError maps the error taxonomy to an HTTP status. Only the kind and
// its human message go on the wire; wrapped causes are logged, never sent to
// the client.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)
	msg := "internal server error"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && kind != apperrors.KindInternal {
		msg = appErr.Message
	}
	if kind == apperrors.KindInternal {
		logger.Errorf("internal error: %v", err)
	} else if appErr != nil && appErr.Err != nil {
		logger.Errorf("%s: %v", kind, appErr.Err)
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
