package model

import "time"

// StarredChat and StarredMessage are per-admin bookmarks, no lifecycle beyond
// create and destroy.

type StarredChat struct {
	AdminID   string    `json:"admin_id"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

type StarredMessage struct {
	AdminID   string    `json:"admin_id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}
