package model

import "time"

type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
	ChatTypeQuest   ChatType = "quest"
)

type Chat struct {
	ID       string   `json:"id"`
	ChatType ChatType `json:"chat_type"`
	// PairKey is set only for private chats: the two admin ids sorted and
	// joined, unique per chat type. Two concurrent creates for the same pair
	// collide on it and the loser falls back to a lookup.
	PairKey   *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMetadata is the 1:1 preview record: last message pointer and the high
// water mark for message numbering.
type ChatMetadata struct {
	ChatID            string    `json:"chat_id"`
	LastMessageID     *string   `json:"last_message_id,omitempty"`
	LastMessageNumber int64     `json:"last_message_number"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type GroupChatInfo struct {
	ChatID        string `json:"chat_id"`
	Name          string `json:"name"`
	OwnerMemberID string `json:"owner_member_id"`
}

type QuestChatStatus string

const (
	QuestChatStatusOpen   QuestChatStatus = "open"
	QuestChatStatusClosed QuestChatStatus = "closed"
)

type QuestChatInfo struct {
	ChatID     string          `json:"chat_id"`
	QuestID    string          `json:"quest_id"`
	ResponseID *string         `json:"response_id,omitempty"`
	Status     QuestChatStatus `json:"status"`
}

// ChatPreview is a chat enriched for list views.
type ChatPreview struct {
	Chat        Chat           `json:"chat"`
	Group       *GroupChatInfo `json:"group,omitempty"`
	Quest       *QuestChatInfo `json:"quest,omitempty"`
	LastMessage *Message       `json:"last_message,omitempty"`
	UnreadCount int            `json:"unread_count"`
	Starred     bool           `json:"starred"`
}
