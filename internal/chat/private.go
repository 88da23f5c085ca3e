package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
)

// SendMessageToAdmin delivers a text message into the private chat between
// two admins, creating the chat on first contact. Creation is race-safe: two
// concurrent first messages collide on the chat's unique pair key, the loser
// retries and finds the winner's chat.
func (e *Engine) SendMessageToAdmin(ctx context.Context, senderAdminID, recipientAdminID, text string, mediaIDs []string) (*model.Message, error) {
	defer logger.DeferLogDuration("engine.SendMessageToAdmin", time.Now())()

	medias, err := e.resolveMedias(ctx, mediaIDs)
	if err != nil {
		return nil, err
	}
	if err := runChecks(
		distinctAdmins(senderAdminID, recipientAdminID),
		hasContent(text, medias),
	); err != nil {
		return nil, err
	}
	if _, err := e.requireAdmins(ctx, []string{senderAdminID, recipientAdminID}); err != nil {
		return nil, err
	}

	// One retry: a unique-violation on the pair key aborts the transaction,
	// and the second attempt resolves the existing chat by lookup.
	var msg *model.Message
	for attempt := 0; ; attempt++ {
		msg, err = e.sendPrivate(ctx, senderAdminID, recipientAdminID, text, medias)
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) && attempt == 0 {
			continue
		}
		return nil, storageErr(err)
	}

	e.publish(ctx, notify.Event{
		Action:    notify.ActionNewMessage,
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		Body:      text,
		AdminIDs:  []string{recipientAdminID},
	})
	e.refresh(recipientAdminID)
	return msg, nil
}

func (e *Engine) sendPrivate(ctx context.Context, senderAdminID, recipientAdminID, text string, medias []model.Media) (*model.Message, error) {
	var msg *model.Message
	err := repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		chat, err := e.chats.FindPrivateChat(ctx, tx, senderAdminID, recipientAdminID)
		if errors.Is(err, repository.ErrNotFound) {
			chat, err = e.createPrivateChatTx(ctx, tx, senderAdminID, recipientAdminID)
		}
		if err != nil {
			return err
		}
		sender, err := e.members.GetActiveMember(ctx, tx, chat.ID, senderAdminID)
		if err != nil {
			return err
		}
		msg, err = e.appendTextTx(ctx, tx, chat.ID, sender.ID, text, medias)
		return err
	})
	return msg, err
}

// createPrivateChatTx creates the pair's chat and both memberships. The
// unique pair key makes this fail for the slower of two concurrent creators.
func (e *Engine) createPrivateChatTx(ctx context.Context, tx pgx.Tx, senderAdminID, recipientAdminID string) (*model.Chat, error) {
	pairKey := repository.PrivatePairKey(senderAdminID, recipientAdminID)
	chat, err := e.chats.Create(ctx, tx, model.ChatTypePrivate, &pairKey)
	if err != nil {
		return nil, err
	}
	_, err = e.members.AddOrRestoreMembers(ctx, tx, chat.ID, []string{senderAdminID, recipientAdminID}, nil, 0)
	if err != nil {
		return nil, err
	}
	return chat, nil
}
