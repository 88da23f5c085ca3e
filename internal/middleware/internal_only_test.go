package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func internalProbe(t *testing.T, secret string, setup func(r *http.Request)) int {
	t.Helper()
	handler := InternalOnly(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/internal/quest-chats", nil)
	req.RemoteAddr = "203.0.113.7:41000" // публичный адрес
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestInternalOnlyServiceToken(t *testing.T) {
	const secret = "service-secret"

	token, err := ServiceToken(secret, "quest-service", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	code := internalProbe(t, secret, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	if code != http.StatusNoContent {
		t.Fatalf("valid token: status %d, want 204", code)
	}

	// Чужой секрет не проходит.
	bad, err := ServiceToken("wrong-secret", "quest-service", time.Minute)
	if err != nil {
		t.Fatalf("issue bad token: %v", err)
	}
	code = internalProbe(t, secret, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+bad)
	})
	if code != http.StatusForbidden {
		t.Fatalf("foreign token: status %d, want 403", code)
	}

	// Протухший токен не проходит.
	expired, err := ServiceToken(secret, "quest-service", -time.Minute)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}
	code = internalProbe(t, secret, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+expired)
	})
	if code != http.StatusForbidden {
		t.Fatalf("expired token: status %d, want 403", code)
	}
}

func TestInternalOnlyPrivateNetwork(t *testing.T) {
	code := internalProbe(t, "", func(r *http.Request) {
		r.RemoteAddr = "10.0.3.4:55000"
	})
	if code != http.StatusNoContent {
		t.Fatalf("private network: status %d, want 204", code)
	}

	code = internalProbe(t, "", nil)
	if code != http.StatusForbidden {
		t.Fatalf("public network without token: status %d, want 403", code)
	}

	// X-Real-Ip от reverse proxy учитывается.
	code = internalProbe(t, "", func(r *http.Request) {
		r.Header.Set("X-Real-Ip", "192.168.1.20")
	})
	if code != http.StatusNoContent {
		t.Fatalf("private X-Real-Ip: status %d, want 204", code)
	}
}
