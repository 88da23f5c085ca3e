package model

import "time"

type AdminRole string

const (
	AdminRoleMain    AdminRole = "main"
	AdminRoleDispute AdminRole = "dispute"
	AdminRoleSupport AdminRole = "support"
)

// Admin is the authenticated principal acting in chats. Session issuance and
// role checks live in the auth service; here the record is trusted as-is.
type Admin struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Role             AdminRole `json:"role"`
	IsActive         bool      `json:"is_active"`
	UnreadChatsCount int       `json:"unread_chats_count"`
	CreatedAt        time.Time `json:"created_at"`
}
