package chat

import (
	"context"
	"time"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

// StarChat bookmarks the chat for the admin. Idempotent; membership required.
func (e *Engine) StarChat(ctx context.Context, adminID, chatID string) error {
	defer logger.DeferLogDuration("engine.StarChat", time.Now())()
	if _, err := e.activeMember(ctx, chatID, adminID); err != nil {
		return err
	}
	if err := e.starred.StarChat(ctx, e.pool, adminID, chatID); err != nil {
		return storageErr(err)
	}
	return nil
}

// UnstarChat removes the bookmark. Idempotent, no membership check: a member
// removed from a chat can still clean up their own bookmarks.
func (e *Engine) UnstarChat(ctx context.Context, adminID, chatID string) error {
	defer logger.DeferLogDuration("engine.UnstarChat", time.Now())()
	if err := e.starred.UnstarChat(ctx, e.pool, adminID, chatID); err != nil {
		return storageErr(err)
	}
	return nil
}

// StarMessage bookmarks a single message. The admin must be an active member
// of the message's chat.
func (e *Engine) StarMessage(ctx context.Context, adminID, messageID string) error {
	defer logger.DeferLogDuration("engine.StarMessage", time.Now())()
	msg, err := e.messages.GetByID(ctx, e.pool, messageID)
	if err != nil {
		return storageErr(err)
	}
	if _, err := e.activeMember(ctx, msg.ChatID, adminID); err != nil {
		return err
	}
	if err := e.starred.StarMessage(ctx, e.pool, adminID, messageID); err != nil {
		return storageErr(err)
	}
	return nil
}

func (e *Engine) UnstarMessage(ctx context.Context, adminID, messageID string) error {
	defer logger.DeferLogDuration("engine.UnstarMessage", time.Now())()
	if err := e.starred.UnstarMessage(ctx, e.pool, adminID, messageID); err != nil {
		return storageErr(err)
	}
	return nil
}

func (e *Engine) ListStarredChats(ctx context.Context, adminID string) ([]model.StarredChat, error) {
	defer logger.DeferLogDuration("engine.ListStarredChats", time.Now())()
	starred, err := e.starred.ListStarredChats(ctx, e.pool, adminID)
	if err != nil {
		return nil, storageErr(err)
	}
	return starred, nil
}

func (e *Engine) ListStarredMessages(ctx context.Context, adminID string) ([]model.StarredMessage, error) {
	defer logger.DeferLogDuration("engine.ListStarredMessages", time.Now())()
	starred, err := e.starred.ListStarredMessages(ctx, e.pool, adminID)
	if err != nil {
		return nil, storageErr(err)
	}
	return starred, nil
}
