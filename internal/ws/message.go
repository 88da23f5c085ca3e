package ws

import "github.com/WorkQuest/admin-backend-sub000/internal/notify"

// OutgoingMessage — кадр, уходящий в браузер админа.
type OutgoingMessage struct {
	Type    notify.Action `json:"type"`
	Payload any           `json:"payload,omitempty"`
}

// EventPayload — полезная нагрузка события чата.
type EventPayload struct {
	ChatID    string            `json:"chat_id"`
	MessageID string            `json:"message_id,omitempty"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}
