package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

type MemberRepository struct{}

func NewMemberRepository() *MemberRepository { return &MemberRepository{} }

// MemberChange is the result of AddOrRestoreMembers for one admin. Restored
// distinguishes a reactivated member from a brand-new one; callers word the
// system message accordingly.
type MemberChange struct {
	Member   model.ChatMember
	Restored bool
}

const memberColumns = `id, chat_id, admin_id, status, created_at, updated_at`

func scanMember(row pgx.Row) (*model.ChatMember, error) {
	m := &model.ChatMember{}
	err := row.Scan(&m.ID, &m.ChatID, &m.AdminID, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// AddOrRestoreMembers adds the given admins to the chat. A previously removed
// admin is reactivated on the same member row (the id must survive removal so
// old messages keep their attribution): status flips back to active, the
// deletion record is destroyed and a fresh state is seeded against the chat's
// current last message. Admins without a row get a new member plus fresh state.
// Results preserve the requested order. Any admin already active returns
// ErrAlreadyMember.
func (r *MemberRepository) AddOrRestoreMembers(ctx context.Context, db DB, chatID string, adminIDs []string, lastMessageID *string, lastMessageNumber int64) ([]MemberChange, error) {
	defer logger.DeferLogDuration("member.AddOrRestoreMembers", time.Now())()

	rows, err := db.Query(ctx,
		`SELECT `+memberColumns+` FROM chat_members
		 WHERE chat_id = $1 AND admin_id = ANY($2)`, chatID, adminIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.AddOrRestoreMembers query: %w", err)
	}
	existing := make(map[string]*model.ChatMember, len(adminIDs))
	for rows.Next() {
		m := &model.ChatMember{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.AdminID, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("memberRepo.AddOrRestoreMembers scan: %w", err)
		}
		existing[m.AdminID] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.AddOrRestoreMembers rows: %w", err)
	}

	for _, adminID := range adminIDs {
		if m, ok := existing[adminID]; ok && m.IsActive() {
			return nil, fmt.Errorf("admin %s: %w", adminID, ErrAlreadyMember)
		}
	}

	now := time.Now().UTC()
	changes := make([]MemberChange, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		if m, ok := existing[adminID]; ok {
			_, err := db.Exec(ctx,
				`UPDATE chat_members SET status = 'active', updated_at = $1 WHERE id = $2`,
				now, m.ID,
			)
			if err != nil {
				return nil, fmt.Errorf("memberRepo.AddOrRestoreMembers restore: %w", err)
			}
			_, err = db.Exec(ctx,
				`DELETE FROM chat_member_deletions WHERE chat_member_id = $1`, m.ID,
			)
			if err != nil {
				return nil, fmt.Errorf("memberRepo.AddOrRestoreMembers delete deletion: %w", err)
			}
			if err := r.CreateState(ctx, db, m.ID, 0, lastMessageID, lastMessageNumber); err != nil {
				return nil, err
			}
			m.Status = model.MemberStatusActive
			m.UpdatedAt = now
			changes = append(changes, MemberChange{Member: *m, Restored: true})
			continue
		}

		m := &model.ChatMember{
			ID:        uuid.New().String(),
			ChatID:    chatID,
			AdminID:   adminID,
			Status:    model.MemberStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := db.Exec(ctx,
			`INSERT INTO chat_members (id, chat_id, admin_id, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.ChatID, m.AdminID, m.Status, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("memberRepo.AddOrRestoreMembers insert: %w", err)
		}
		if err := r.CreateState(ctx, db, m.ID, 0, lastMessageID, lastMessageNumber); err != nil {
			return nil, err
		}
		changes = append(changes, MemberChange{Member: *m, Restored: false})
	}
	return changes, nil
}

// RemoveMember marks the member deleted, destroys its state and records the
// deletion with the history cutoff. Removing an already-deleted member returns
// ErrNotAMember.
func (r *MemberRepository) RemoveMember(ctx context.Context, db DB, memberID string, reason model.DeletionReason, cutoffMessageID *string, cutoffNumber int64) error {
	defer logger.DeferLogDuration("member.RemoveMember", time.Now())()
	tag, err := db.Exec(ctx,
		`UPDATE chat_members SET status = 'deleted', updated_at = $1
		 WHERE id = $2 AND status = 'active'`,
		time.Now().UTC(), memberID,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.RemoveMember: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAMember
	}
	_, err = db.Exec(ctx, `DELETE FROM chat_member_states WHERE chat_member_id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("memberRepo.RemoveMember delete state: %w", err)
	}
	_, err = db.Exec(ctx,
		`INSERT INTO chat_member_deletions (chat_member_id, reason, before_deletion_message_id, before_deletion_message_number, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		memberID, reason, cutoffMessageID, cutoffNumber, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("memberRepo.RemoveMember insert deletion: %w", err)
	}
	return nil
}

func (r *MemberRepository) GetActiveMember(ctx context.Context, db DB, chatID, adminID string) (*model.ChatMember, error) {
	defer logger.DeferLogDuration("member.GetActiveMember", time.Now())()
	m, err := scanMember(db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM chat_members
		 WHERE chat_id = $1 AND admin_id = $2 AND status = 'active'`, chatID, adminID,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("memberRepo.GetActiveMember: %w", err)
	}
	return m, err
}

// GetMember returns the member row regardless of status. Removed members still
// read their frozen history through this.
func (r *MemberRepository) GetMember(ctx context.Context, db DB, chatID, adminID string) (*model.ChatMember, error) {
	defer logger.DeferLogDuration("member.GetMember", time.Now())()
	m, err := scanMember(db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM chat_members
		 WHERE chat_id = $1 AND admin_id = $2`, chatID, adminID,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("memberRepo.GetMember: %w", err)
	}
	return m, err
}

func (r *MemberRepository) GetByID(ctx context.Context, db DB, memberID string) (*model.ChatMember, error) {
	defer logger.DeferLogDuration("member.GetByID", time.Now())()
	m, err := scanMember(db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM chat_members WHERE id = $1`, memberID,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("memberRepo.GetByID: %w", err)
	}
	return m, err
}

func (r *MemberRepository) ListActiveMembers(ctx context.Context, db DB, chatID string) ([]model.ChatMember, error) {
	defer logger.DeferLogDuration("member.ListActiveMembers", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT `+memberColumns+` FROM chat_members
		 WHERE chat_id = $1 AND status = 'active'
		 ORDER BY created_at`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListActiveMembers query: %w", err)
	}
	defer rows.Close()

	members := make([]model.ChatMember, 0, 8)
	for rows.Next() {
		var m model.ChatMember
		if err := rows.Scan(&m.ID, &m.ChatID, &m.AdminID, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("memberRepo.ListActiveMembers scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.ListActiveMembers rows: %w", err)
	}
	return members, nil
}

// ListActiveByAdmins returns the admin ids among adminIDs that are currently
// active members of the chat.
func (r *MemberRepository) ListActiveByAdmins(ctx context.Context, db DB, chatID string, adminIDs []string) ([]string, error) {
	defer logger.DeferLogDuration("member.ListActiveByAdmins", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT admin_id FROM chat_members
		 WHERE chat_id = $1 AND admin_id = ANY($2) AND status = 'active'`, chatID, adminIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListActiveByAdmins query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, len(adminIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("memberRepo.ListActiveByAdmins scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.ListActiveByAdmins rows: %w", err)
	}
	return ids, nil
}

// ListLeftAdmins returns the admin ids among adminIDs whose membership ended
// with an explicit self-leave. Leaving is a one-way ban from re-invitation.
func (r *MemberRepository) ListLeftAdmins(ctx context.Context, db DB, chatID string, adminIDs []string) ([]string, error) {
	defer logger.DeferLogDuration("member.ListLeftAdmins", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT m.admin_id FROM chat_members m
		 JOIN chat_member_deletions d ON d.chat_member_id = m.id
		 WHERE m.chat_id = $1 AND m.admin_id = ANY($2) AND d.reason = 'left'`, chatID, adminIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListLeftAdmins query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 2)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("memberRepo.ListLeftAdmins scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.ListLeftAdmins rows: %w", err)
	}
	return ids, nil
}

func (r *MemberRepository) CreateState(ctx context.Context, db DB, memberID string, unread int, lastReadMessageID *string, lastReadNumber int64) error {
	defer logger.DeferLogDuration("member.CreateState", time.Now())()
	_, err := db.Exec(ctx,
		`INSERT INTO chat_member_states (chat_member_id, unread_count, last_read_message_id, last_read_message_number, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		memberID, unread, lastReadMessageID, lastReadNumber, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("memberRepo.CreateState: %w", err)
	}
	return nil
}

func (r *MemberRepository) GetState(ctx context.Context, db DB, memberID string) (*model.ChatMemberState, error) {
	defer logger.DeferLogDuration("member.GetState", time.Now())()
	s := &model.ChatMemberState{}
	err := db.QueryRow(ctx,
		`SELECT chat_member_id, unread_count, last_read_message_id, last_read_message_number, updated_at
		 FROM chat_member_states WHERE chat_member_id = $1`, memberID,
	).Scan(&s.ChatMemberID, &s.UnreadCount, &s.LastReadMessageID, &s.LastReadMessageNumber, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.GetState: %w", err)
	}
	return s, nil
}

func (r *MemberRepository) GetDeletion(ctx context.Context, db DB, memberID string) (*model.ChatMemberDeletion, error) {
	defer logger.DeferLogDuration("member.GetDeletion", time.Now())()
	d := &model.ChatMemberDeletion{}
	err := db.QueryRow(ctx,
		`SELECT chat_member_id, reason, before_deletion_message_id, before_deletion_message_number, created_at
		 FROM chat_member_deletions WHERE chat_member_id = $1`, memberID,
	).Scan(&d.ChatMemberID, &d.Reason, &d.BeforeDeletionMessageID, &d.BeforeDeletionMessageNumber, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.GetDeletion: %w", err)
	}
	return d, nil
}

// IncrementUnreadExcept bumps unread_count by one for every active member of
// the chat except exceptMemberIDs (the sender, plus members seeded after the
// message in batch operations).
func (r *MemberRepository) IncrementUnreadExcept(ctx context.Context, db DB, chatID string, exceptMemberIDs []string) error {
	defer logger.DeferLogDuration("member.IncrementUnreadExcept", time.Now())()
	_, err := db.Exec(ctx,
		`UPDATE chat_member_states s SET unread_count = s.unread_count + 1, updated_at = $1
		 FROM chat_members m
		 WHERE s.chat_member_id = m.id AND m.chat_id = $2 AND m.status = 'active'
		   AND NOT (m.id = ANY($3))`,
		time.Now().UTC(), chatID, exceptMemberIDs,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.IncrementUnreadExcept: %w", err)
	}
	return nil
}

// ResetUnread points the member's read state at the given message. remaining
// is the number of still-unread messages past that point (zero when reading up
// to the last message).
func (r *MemberRepository) ResetUnread(ctx context.Context, db DB, memberID string, remaining int, messageID *string, messageNumber int64) error {
	defer logger.DeferLogDuration("member.ResetUnread", time.Now())()
	_, err := db.Exec(ctx,
		`UPDATE chat_member_states
		 SET unread_count = $1, last_read_message_id = $2, last_read_message_number = $3, updated_at = $4
		 WHERE chat_member_id = $5`,
		remaining, messageID, messageNumber, time.Now().UTC(), memberID,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.ResetUnread: %w", err)
	}
	return nil
}

// CountOthersWithUnread counts active members other than memberID that still
// have unread messages. Zero means a sender-side read notification cannot
// change anything and is skipped.
func (r *MemberRepository) CountOthersWithUnread(ctx context.Context, db DB, chatID, memberID string) (int, error) {
	defer logger.DeferLogDuration("member.CountOthersWithUnread", time.Now())()
	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_member_states s
		 JOIN chat_members m ON m.id = s.chat_member_id
		 WHERE m.chat_id = $1 AND m.id != $2 AND m.status = 'active' AND s.unread_count > 0`,
		chatID, memberID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("memberRepo.CountOthersWithUnread: %w", err)
	}
	return n, nil
}
