package middleware

import (
	"net/http"
	"time"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
)

// RequestLog пишет в лог метод, путь, статус и длительность каждого запроса.
// Health-пробы не логируются, иначе лог тонет в них.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		wrap := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrap, r)
		logger.Infof("http %s %s %d %v", r.Method, r.URL.Path, wrap.status, time.Since(start).Round(time.Millisecond))
	})
}
