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

type MessageRepository struct{}

func NewMessageRepository() *MessageRepository { return &MessageRepository{} }

// AppendText inserts a text message under the given number. The caller holds
// the chat's metadata lock and has computed number from it; the UNIQUE
// (chat_id, number) constraint backs that up.
func (r *MessageRepository) AppendText(ctx context.Context, db DB, chatID, senderMemberID string, number int64, text string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.AppendText", time.Now())()
	m := &model.Message{
		ID:             uuid.New().String(),
		ChatID:         chatID,
		SenderMemberID: senderMemberID,
		Number:         number,
		Type:           model.MessageTypeText,
		Text:           text,
		SenderStatus:   model.SenderStatusUnread,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := db.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_member_id, number, type, text, sender_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ChatID, m.SenderMemberID, m.Number, m.Type, m.Text, m.SenderStatus, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.AppendText: %w", err)
	}
	return m, nil
}

// AppendInfo inserts a system message and its info payload together; the two
// rows never exist partially because the caller's transaction covers both.
func (r *MessageRepository) AppendInfo(ctx context.Context, db DB, chatID, senderMemberID string, number int64, actingMemberID string, action model.InfoAction) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.AppendInfo", time.Now())()
	m := &model.Message{
		ID:             uuid.New().String(),
		ChatID:         chatID,
		SenderMemberID: senderMemberID,
		Number:         number,
		Type:           model.MessageTypeInfo,
		SenderStatus:   model.SenderStatusUnread,
		CreatedAt:      time.Now().UTC(),
		Info: &model.InfoMessage{
			ActingMemberID: actingMemberID,
			Action:         action,
		},
	}
	m.Info.MessageID = m.ID
	_, err := db.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_member_id, number, type, text, sender_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULL, $6, $7)`,
		m.ID, m.ChatID, m.SenderMemberID, m.Number, m.Type, m.SenderStatus, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.AppendInfo: %w", err)
	}
	_, err = db.Exec(ctx,
		`INSERT INTO info_messages (message_id, acting_member_id, action) VALUES ($1, $2, $3)`,
		m.ID, actingMemberID, action,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.AppendInfo info: %w", err)
	}
	return m, nil
}

// AttachMedias links medias to a message. Reattaching the same set is a no-op,
// not an error.
func (r *MessageRepository) AttachMedias(ctx context.Context, db DB, messageID string, medias []model.Media) error {
	defer logger.DeferLogDuration("msg.AttachMedias", time.Now())()
	for _, media := range medias {
		_, err := db.Exec(ctx,
			`INSERT INTO message_medias (message_id, media_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			messageID, media.ID,
		)
		if err != nil {
			return fmt.Errorf("msgRepo.AttachMedias: %w", err)
		}
	}
	return nil
}

const messageColumns = `m.id, m.chat_id, m.sender_member_id, m.number, m.type, COALESCE(m.text, ''), m.sender_status, m.created_at,
	        i.acting_member_id, i.action`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	var actingMemberID, action *string
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderMemberID, &m.Number, &m.Type, &m.Text, &m.SenderStatus, &m.CreatedAt,
		&actingMemberID, &action)
	if err != nil {
		return nil, err
	}
	if actingMemberID != nil && action != nil {
		m.Info = &model.InfoMessage{
			MessageID:      m.ID,
			ActingMemberID: *actingMemberID,
			Action:         model.InfoAction(*action),
		}
	}
	return m, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, db DB, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m, err := scanMessage(db.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 LEFT JOIN info_messages i ON i.message_id = m.id
		 WHERE m.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// GetLastMessage returns the newest message of the chat, or nil for an empty
// chat.
func (r *MessageRepository) GetLastMessage(ctx context.Context, db DB, chatID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetLastMessage", time.Now())()
	m, err := scanMessage(db.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 LEFT JOIN info_messages i ON i.message_id = m.id
		 WHERE m.chat_id = $1
		 ORDER BY m.number DESC
		 LIMIT 1`, chatID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetLastMessage: %w", err)
	}
	return m, nil
}

// ListVisible returns the chat's messages as seen by the given member, newest
// first. A removed member's view is frozen at their deletion cutoff: messages
// numbered past it never appear, no matter how much the chat moves on. Active
// members see everything.
func (r *MessageRepository) ListVisible(ctx context.Context, db DB, chatID, memberID string, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ListVisible", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 LEFT JOIN info_messages i ON i.message_id = m.id
		 LEFT JOIN chat_member_deletions d ON d.chat_member_id = $2
		 WHERE m.chat_id = $1
		   AND (d.chat_member_id IS NULL OR m.number <= d.before_deletion_message_number)
		 ORDER BY m.number DESC
		 LIMIT $3 OFFSET $4`, chatID, memberID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListVisible query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		m := &model.Message{}
		var actingMemberID, action *string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderMemberID, &m.Number, &m.Type, &m.Text, &m.SenderStatus, &m.CreatedAt,
			&actingMemberID, &action); err != nil {
			return nil, fmt.Errorf("msgRepo.ListVisible scan: %w", err)
		}
		if actingMemberID != nil && action != nil {
			m.Info = &model.InfoMessage{MessageID: m.ID, ActingMemberID: *actingMemberID, Action: model.InfoAction(*action)}
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListVisible rows: %w", err)
	}
	return messages, nil
}

// MarkReadUpTo flips sender_status to read on messages authored by members
// other than the reader, numbered at or below uptoNumber. Idempotent: rows
// already read are left alone, so re-running with the same or a smaller number
// changes nothing.
func (r *MessageRepository) MarkReadUpTo(ctx context.Context, db DB, chatID, readerMemberID string, uptoNumber int64) error {
	defer logger.DeferLogDuration("msg.MarkReadUpTo", time.Now())()
	_, err := db.Exec(ctx,
		`UPDATE messages SET sender_status = 'read'
		 WHERE chat_id = $1 AND sender_member_id != $2 AND number <= $3 AND sender_status = 'unread'`,
		chatID, readerMemberID, uptoNumber,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkReadUpTo: %w", err)
	}
	return nil
}

// CountUnreadAfter counts messages from other members numbered strictly above
// afterNumber. Used to reset a reader's counter when they read up to a message
// that is not the latest.
func (r *MessageRepository) CountUnreadAfter(ctx context.Context, db DB, chatID, memberID string, afterNumber int64) (int, error) {
	defer logger.DeferLogDuration("msg.CountUnreadAfter", time.Now())()
	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE chat_id = $1 AND sender_member_id != $2 AND number > $3`,
		chatID, memberID, afterNumber,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.CountUnreadAfter: %w", err)
	}
	return n, nil
}

// ListMedias returns the medias attached to a message.
func (r *MessageRepository) ListMedias(ctx context.Context, db DB, messageID string) ([]model.Media, error) {
	defer logger.DeferLogDuration("msg.ListMedias", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT md.id, md.url, md.content_type, md.created_at
		 FROM medias md
		 JOIN message_medias mm ON mm.media_id = md.id
		 WHERE mm.message_id = $1`, messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListMedias query: %w", err)
	}
	defer rows.Close()

	medias := make([]model.Media, 0, 2)
	for rows.Next() {
		var md model.Media
		if err := rows.Scan(&md.ID, &md.URL, &md.ContentType, &md.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.ListMedias scan: %w", err)
		}
		medias = append(medias, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListMedias rows: %w", err)
	}
	return medias, nil
}
