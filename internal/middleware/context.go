package middleware

import "context"

type contextKey string

const AdminIDKey contextKey = "admin_id"

// GetAdminID возвращает admin_id из контекста (устанавливается AuthServiceValidate).
func GetAdminID(ctx context.Context) string {
	v, _ := ctx.Value(AdminIDKey).(string)
	return v
}
