package model

import "time"

type DisputeStatus string

const (
	DisputeStatusCreated  DisputeStatus = "created"
	DisputeStatusInReview DisputeStatus = "in_review"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// QuestDispute belongs to the dispute workflow, which owns its state machine.
// The chat engine only reads it: a dispute admin may join a quest chat while
// the dispute is in review and leaves when it resolves.
type QuestDispute struct {
	ID              string        `json:"id"`
	QuestID         string        `json:"quest_id"`
	AssignedAdminID *string       `json:"assigned_admin_id,omitempty"`
	Status          DisputeStatus `json:"status"`
	Problem         string        `json:"problem"`
	Decision        string        `json:"decision,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}
