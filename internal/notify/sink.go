package notify

import "context"

// Action — тип события, уходящего получателям чата.
type Action string

const (
	ActionNewMessage    Action = "new_message"
	ActionMessagesRead  Action = "messages_read"
	ActionChatCreated   Action = "chat_created"
	ActionMemberAdded   Action = "member_added"
	ActionMemberRemoved Action = "member_removed"
	ActionMemberLeft    Action = "member_left"
)

// Event описывает одно событие чата для доставки админам.
type Event struct {
	Action    Action            `json:"action"`
	ChatID    string            `json:"chat_id"`
	MessageID string            `json:"message_id,omitempty"`
	Body      string            `json:"body,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	// AdminIDs — получатели события.
	AdminIDs []string `json:"-"`
}

// Sink доставляет события получателям. Реализации не должны блокировать
// вызывающего: доставка асинхронная, ошибки только логируются.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// Noop — заглушка для тестов и конфигураций без уведомлений.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// Multi рассылает событие в несколько приёмников по порядку.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Publish(ctx, ev)
	}
}
