package chat

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
)

// SendMessage appends a text message to the chat. The sender must be an
// active member; a quest chat must still be open. The sender's own read
// pointer advances to the new message, every other active member's unread
// count grows by one.
func (e *Engine) SendMessage(ctx context.Context, chatID, senderAdminID, text string, mediaIDs []string) (*model.Message, error) {
	defer logger.DeferLogDuration("engine.SendMessage", time.Now())()

	medias, err := e.resolveMedias(ctx, mediaIDs)
	if err != nil {
		return nil, err
	}
	chat, err := e.chats.GetByID(ctx, e.pool, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	sender, err := e.activeMember(ctx, chatID, senderAdminID)
	if err != nil {
		return nil, err
	}

	checks := []check{hasContent(text, medias)}
	if chat.ChatType == model.ChatTypeQuest {
		quest, err := e.chats.GetQuestInfo(ctx, e.pool, chatID)
		if err != nil {
			return nil, storageErr(err)
		}
		checks = append(checks, questIsOpen(quest))
	}
	if err := runChecks(checks...); err != nil {
		return nil, err
	}

	var msg *model.Message
	var recipients []string
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		msg, err = e.appendTextTx(ctx, tx, chatID, sender.ID, text, medias)
		if err != nil {
			return err
		}
		recipients, err = e.otherActiveAdminIDs(ctx, tx, chatID, sender.ID)
		return err
	})
	if err != nil {
		return nil, storageErr(err)
	}

	e.publish(ctx, notify.Event{
		Action:    notify.ActionNewMessage,
		ChatID:    chatID,
		MessageID: msg.ID,
		Body:      text,
		AdminIDs:  recipients,
	})
	e.refresh(recipients...)
	return msg, nil
}

// appendTextTx is the transactional core of a text send: lock the chat's
// metadata row, take the next number, insert, advance the last-message
// pointer and fix up unread counters. Callers own the transaction.
func (e *Engine) appendTextTx(ctx context.Context, tx pgx.Tx, chatID, senderMemberID, text string, medias []model.Media) (*model.Message, error) {
	md, err := e.chats.LockMetadata(ctx, tx, chatID)
	if err != nil {
		return nil, err
	}
	number := md.LastMessageNumber + 1
	msg, err := e.messages.AppendText(ctx, tx, chatID, senderMemberID, number, text)
	if err != nil {
		return nil, err
	}
	if len(medias) > 0 {
		if err := e.messages.AttachMedias(ctx, tx, msg.ID, medias); err != nil {
			return nil, err
		}
		msg.Medias = medias
	}
	if err := e.chats.UpdateMetadata(ctx, tx, chatID, msg.ID, number); err != nil {
		return nil, err
	}
	if err := e.members.IncrementUnreadExcept(ctx, tx, chatID, []string{senderMemberID}); err != nil {
		return nil, err
	}
	if err := e.members.ResetUnread(ctx, tx, senderMemberID, 0, &msg.ID, number); err != nil {
		return nil, err
	}
	return msg, nil
}

// appendInfoTx inserts one system message and bumps unread for every active
// member not listed in exceptMemberIDs. The metadata lock must already be
// held by the caller.
func (e *Engine) appendInfoTx(ctx context.Context, tx pgx.Tx, chatID, senderMemberID string, number int64, actingMemberID string, action model.InfoAction, exceptMemberIDs []string) (*model.Message, error) {
	msg, err := e.messages.AppendInfo(ctx, tx, chatID, senderMemberID, number, actingMemberID, action)
	if err != nil {
		return nil, err
	}
	if err := e.members.IncrementUnreadExcept(ctx, tx, chatID, exceptMemberIDs); err != nil {
		return nil, err
	}
	return msg, nil
}

// resolveMedias validates media references before the transactional section.
func (e *Engine) resolveMedias(ctx context.Context, mediaIDs []string) ([]model.Media, error) {
	if len(mediaIDs) == 0 {
		return nil, nil
	}
	medias, err := e.medias.Resolve(ctx, e.pool, dedupe(mediaIDs))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalidPayload, "unknown media reference")
	}
	return medias, nil
}
