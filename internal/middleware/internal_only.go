package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InternalOnly разрешает запрос только с приватных IP или по сервисному JWT
// (Authorization: Bearer, HS256 с секретом secret). В prod внутренние
// endpoints не экспонируются наружу; вызовы только между сервисами.
func InternalOnly(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" && validServiceToken(r, secret) {
				next.ServeHTTP(w, r)
				return
			}
			ipStr := r.Header.Get("X-Real-Ip")
			if ipStr == "" {
				ipStr = r.Header.Get("X-Forwarded-For")
				if idx := strings.Index(ipStr, ","); idx > 0 {
					ipStr = strings.TrimSpace(ipStr[:idx])
				}
			}
			if ipStr == "" {
				ipStr, _, _ = net.SplitHostPort(r.RemoteAddr)
				if ipStr == "" {
					ipStr = r.RemoteAddr
				}
			}
			if ipStr != "" && isPrivateIP(ipStr) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

func validServiceToken(r *http.Request, secret string) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	tokenStr := strings.TrimPrefix(auth, "Bearer ")
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil && token.Valid
}

// ServiceToken выпускает краткоживущий сервисный JWT для исходящих
// межсервисных вызовов.
func ServiceToken(secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
