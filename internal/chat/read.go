package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
)

// SetMessagesAsRead moves the reader's read pointer to the given message,
// recounts what is still unread past it and flips senderStatus on everything
// read. The read event is published only while some other member still has
// unread messages: once everyone is caught up there is nobody the event could
// matter to.
func (e *Engine) SetMessagesAsRead(ctx context.Context, chatID, adminID, messageID string) error {
	defer logger.DeferLogDuration("engine.SetMessagesAsRead", time.Now())()

	member, err := e.activeMember(ctx, chatID, adminID)
	if err != nil {
		return err
	}
	msg, err := e.messages.GetByID(ctx, e.pool, messageID)
	if err != nil {
		return storageErr(err)
	}
	if msg.ChatID != chatID {
		return apperrors.New(apperrors.KindNotFound, "message does not belong to this chat")
	}

	var othersUnread int
	var audience []string
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		// Lock against concurrent senders so the remaining-unread recount
		// and the counter write are consistent.
		if _, err := e.chats.LockMetadata(ctx, tx, chatID); err != nil {
			return err
		}
		state, err := e.members.GetState(ctx, tx, member.ID)
		if err != nil {
			return err
		}
		// The read pointer only moves forward. Re-reading an older message is
		// a no-op, not a counter reset.
		if msg.Number < state.LastReadMessageNumber {
			return nil
		}
		remaining, err := e.messages.CountUnreadAfter(ctx, tx, chatID, member.ID, msg.Number)
		if err != nil {
			return err
		}
		if err := e.members.ResetUnread(ctx, tx, member.ID, remaining, &msg.ID, msg.Number); err != nil {
			return err
		}
		if err := e.messages.MarkReadUpTo(ctx, tx, chatID, member.ID, msg.Number); err != nil {
			return err
		}
		othersUnread, err = e.members.CountOthersWithUnread(ctx, tx, chatID, member.ID)
		if err != nil {
			return err
		}
		if othersUnread > 0 {
			audience, err = e.otherActiveAdminIDs(ctx, tx, chatID, member.ID)
			return err
		}
		return nil
	})
	if err != nil {
		return storageErr(err)
	}

	if othersUnread > 0 {
		e.publish(ctx, notify.Event{
			Action:    notify.ActionMessagesRead,
			ChatID:    chatID,
			MessageID: messageID,
			Data:      map[string]string{"admin_id": adminID},
			AdminIDs:  audience,
		})
	}
	e.refresh(adminID)
	return nil
}

// ListVisibleMessages returns a page of the chat's history, newest first. A
// removed member's view is frozen at their deletion cutoff; an active member
// sees everything.
func (e *Engine) ListVisibleMessages(ctx context.Context, chatID, adminID string, limit, offset int) ([]model.Message, error) {
	defer logger.DeferLogDuration("engine.ListVisibleMessages", time.Now())()

	limit, offset = normalizePage(limit, offset)
	member, err := e.members.GetMember(ctx, e.pool, chatID, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.New(apperrors.KindForbidden, "not a chat member")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	msgs, err := e.messages.ListVisible(ctx, e.pool, chatID, member.ID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	for i := range msgs {
		if msgs[i].Type != model.MessageTypeText {
			continue
		}
		medias, err := e.messages.ListMedias(ctx, e.pool, msgs[i].ID)
		if err != nil {
			return nil, storageErr(err)
		}
		msgs[i].Medias = medias
	}
	return msgs, nil
}

// ListChats returns the admin's chat list ordered by last activity, each
// entry carrying its type-specific info, last message, unread count and
// starred flag.
func (e *Engine) ListChats(ctx context.Context, adminID string, limit, offset int) ([]model.ChatPreview, error) {
	defer logger.DeferLogDuration("engine.ListChats", time.Now())()

	limit, offset = normalizePage(limit, offset)
	previews, err := e.chats.ListForAdmin(ctx, e.pool, adminID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	for i := range previews {
		p := &previews[i]
		switch p.Chat.ChatType {
		case model.ChatTypeGroup:
			p.Group, err = e.chats.GetGroupInfo(ctx, e.pool, p.Chat.ID)
		case model.ChatTypeQuest:
			p.Quest, err = e.chats.GetQuestInfo(ctx, e.pool, p.Chat.ID)
		}
		if err != nil {
			return nil, storageErr(err)
		}
		p.LastMessage, err = e.messages.GetLastMessage(ctx, e.pool, p.Chat.ID)
		if err != nil {
			return nil, storageErr(err)
		}
	}
	return previews, nil
}
