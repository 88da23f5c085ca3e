package model

import "time"

type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeInfo MessageType = "info"
)

// SenderStatus is read status relative to recipients: a single flag meaning
// "at least one other member has read this message".
type SenderStatus string

const (
	SenderStatusUnread SenderStatus = "unread"
	SenderStatusRead   SenderStatus = "read"
)

type InfoAction string

const (
	InfoActionChatCreated       InfoAction = "chat_created"
	InfoActionMemberAdded       InfoAction = "member_added"
	InfoActionMemberRemoved     InfoAction = "member_removed"
	InfoActionMemberLeft        InfoAction = "member_left"
	InfoActionMemberRestored    InfoAction = "member_restored"
	InfoActionDisputeAdminAdded InfoAction = "dispute_admin_added"
	InfoActionDisputeAdminLeft  InfoAction = "dispute_admin_left"
)

// Message is append-only; nothing is ever mutated after insert except
// SenderStatus. Number is 1-based, strictly increasing and unique per chat.
type Message struct {
	ID             string       `json:"id"`
	ChatID         string       `json:"chat_id"`
	SenderMemberID string       `json:"sender_member_id"`
	Number         int64        `json:"number"`
	Type           MessageType  `json:"type"`
	Text           string       `json:"text,omitempty"`
	SenderStatus   SenderStatus `json:"sender_status"`
	CreatedAt      time.Time    `json:"created_at"`

	Info   *InfoMessage `json:"info,omitempty"`
	Medias []Media      `json:"medias,omitempty"`
}

// InfoMessage is the 1:1 payload of a type=info message: a membership or
// lifecycle event rendered inline in the stream. ActingMemberID is the member
// the event concerns (the one added, removed, restored), which may differ from
// the message's sender.
type InfoMessage struct {
	MessageID      string     `json:"message_id"`
	ActingMemberID string     `json:"acting_member_id"`
	Action         InfoAction `json:"action"`
}

type Media struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}
