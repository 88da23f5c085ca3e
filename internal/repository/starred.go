package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

type StarredRepository struct{}

func NewStarredRepository() *StarredRepository { return &StarredRepository{} }

func (r *StarredRepository) StarChat(ctx context.Context, db DB, adminID, chatID string) error {
	defer logger.DeferLogDuration("starred.StarChat", time.Now())()
	_, err := db.Exec(ctx,
		`INSERT INTO starred_chats (admin_id, chat_id, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		adminID, chatID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("starredRepo.StarChat: %w", err)
	}
	return nil
}

func (r *StarredRepository) UnstarChat(ctx context.Context, db DB, adminID, chatID string) error {
	defer logger.DeferLogDuration("starred.UnstarChat", time.Now())()
	_, err := db.Exec(ctx,
		`DELETE FROM starred_chats WHERE admin_id = $1 AND chat_id = $2`,
		adminID, chatID,
	)
	if err != nil {
		return fmt.Errorf("starredRepo.UnstarChat: %w", err)
	}
	return nil
}

func (r *StarredRepository) StarMessage(ctx context.Context, db DB, adminID, messageID string) error {
	defer logger.DeferLogDuration("starred.StarMessage", time.Now())()
	_, err := db.Exec(ctx,
		`INSERT INTO starred_messages (admin_id, message_id, created_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		adminID, messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("starredRepo.StarMessage: %w", err)
	}
	return nil
}

func (r *StarredRepository) UnstarMessage(ctx context.Context, db DB, adminID, messageID string) error {
	defer logger.DeferLogDuration("starred.UnstarMessage", time.Now())()
	_, err := db.Exec(ctx,
		`DELETE FROM starred_messages WHERE admin_id = $1 AND message_id = $2`,
		adminID, messageID,
	)
	if err != nil {
		return fmt.Errorf("starredRepo.UnstarMessage: %w", err)
	}
	return nil
}

func (r *StarredRepository) IsChatStarred(ctx context.Context, db DB, adminID, chatID string) (bool, error) {
	defer logger.DeferLogDuration("starred.IsChatStarred", time.Now())()
	var exists bool
	err := db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM starred_chats WHERE admin_id = $1 AND chat_id = $2)`,
		adminID, chatID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("starredRepo.IsChatStarred: %w", err)
	}
	return exists, nil
}

func (r *StarredRepository) ListStarredChats(ctx context.Context, db DB, adminID string) ([]model.StarredChat, error) {
	defer logger.DeferLogDuration("starred.ListStarredChats", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT admin_id, chat_id, created_at FROM starred_chats
		 WHERE admin_id = $1 ORDER BY created_at DESC`, adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("starredRepo.ListStarredChats query: %w", err)
	}
	defer rows.Close()

	starred := make([]model.StarredChat, 0, 8)
	for rows.Next() {
		var s model.StarredChat
		if err := rows.Scan(&s.AdminID, &s.ChatID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("starredRepo.ListStarredChats scan: %w", err)
		}
		starred = append(starred, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("starredRepo.ListStarredChats rows: %w", err)
	}
	return starred, nil
}

func (r *StarredRepository) ListStarredMessages(ctx context.Context, db DB, adminID string) ([]model.StarredMessage, error) {
	defer logger.DeferLogDuration("starred.ListStarredMessages", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT admin_id, message_id, created_at FROM starred_messages
		 WHERE admin_id = $1 ORDER BY created_at DESC`, adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("starredRepo.ListStarredMessages query: %w", err)
	}
	defer rows.Close()

	starred := make([]model.StarredMessage, 0, 8)
	for rows.Next() {
		var s model.StarredMessage
		if err := rows.Scan(&s.AdminID, &s.MessageID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("starredRepo.ListStarredMessages scan: %w", err)
		}
		starred = append(starred, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("starredRepo.ListStarredMessages rows: %w", err)
	}
	return starred, nil
}
