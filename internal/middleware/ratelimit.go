package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/storage"
)

const (
	rateLimitWindow = time.Minute
	rateLimitMaxIP  = 200
)

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

var apiRateByIP = newRateLimiter(rateLimitMaxIP, rateLimitWindow)

// RateLimitAPI ограничивает запросы к /api/* по IP (в памяти процесса) и по
// admin_id (через store — общий лимит на все реплики). 429 при превышении.
func RateLimitAPI(store storage.UnreadStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if x := r.Header.Get("X-Real-Ip"); x != "" {
				ip = x
			} else if x := r.Header.Get("X-Forwarded-For"); x != "" {
				ip = x
			}
			if !apiRateByIP.allow(ip) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			adminID := GetAdminID(r.Context())
			if adminID != "" && store != nil {
				allowed, err := store.CheckRateLimit(r.Context(), "a:"+adminID)
				if err != nil {
					// Недоступный лимитер не должен ронять API.
					logger.Errorf("rate limit check admin=%s: %v", adminID, err)
				} else if !allowed {
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
