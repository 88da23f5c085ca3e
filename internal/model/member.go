package model

import "time"

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusDeleted MemberStatus = "deleted"
)

type DeletionReason string

const (
	DeletionReasonLeft            DeletionReason = "left"
	DeletionReasonRemoved         DeletionReason = "removed"
	DeletionReasonDisputeResolved DeletionReason = "dispute_resolved"
)

// ChatMember is an admin's participation record in one chat. The row is unique
// per (chat, admin) for its entire lifetime: removal marks it deleted, re-adding
// flips it back to active on the same row, so message attribution survives
// removal and restore.
type ChatMember struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chat_id"`
	AdminID   string       `json:"admin_id"`
	Status    MemberStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (m *ChatMember) IsActive() bool { return m.Status == MemberStatusActive }

// ChatMemberState exists only while the member is active; it is destroyed on
// removal and recreated (seeded against the chat's current last message) on
// restore.
type ChatMemberState struct {
	ChatMemberID          string    `json:"chat_member_id"`
	UnreadCount           int       `json:"unread_count"`
	LastReadMessageID     *string   `json:"last_read_message_id,omitempty"`
	LastReadMessageNumber int64     `json:"last_read_message_number"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ChatMemberDeletion records a removal event. BeforeDeletionMessage* is the
// history cutoff: the last message still visible to the removed member.
type ChatMemberDeletion struct {
	ChatMemberID                string         `json:"chat_member_id"`
	Reason                      DeletionReason `json:"reason"`
	BeforeDeletionMessageID     *string        `json:"before_deletion_message_id,omitempty"`
	BeforeDeletionMessageNumber int64          `json:"before_deletion_message_number"`
	CreatedAt                   time.Time      `json:"created_at"`
}
