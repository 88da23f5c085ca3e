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

// QuestChat is a created quest chat with its info record.
type QuestChat struct {
	Chat  model.Chat          `json:"chat"`
	Quest model.QuestChatInfo `json:"quest"`
}

// CreateQuestChat opens the chat attached to a quest, with the parties of the
// quest as its initial members. At most one chat exists per quest.
func (e *Engine) CreateQuestChat(ctx context.Context, questID string, responseID *string, partyAdminIDs []string) (*QuestChat, error) {
	defer logger.DeferLogDuration("engine.CreateQuestChat", time.Now())()

	partyAdminIDs = dedupe(partyAdminIDs)
	if err := runChecks(
		nonEmpty(questID, "quest id"),
		nonEmptyIDs(partyAdminIDs, "party"),
	); err != nil {
		return nil, err
	}
	if _, err := e.requireAdmins(ctx, partyAdminIDs); err != nil {
		return nil, err
	}
	_, err := e.chats.FindQuestChat(ctx, e.pool, questID)
	if err == nil {
		return nil, apperrors.Newf(apperrors.KindAlreadyExists, "quest %s already has a chat", questID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageErr(err)
	}

	var out QuestChat
	var invited []string
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		chat, err := e.chats.Create(ctx, tx, model.ChatTypeQuest, nil)
		if err != nil {
			return err
		}
		quest, err := e.chats.CreateQuestInfo(ctx, tx, chat.ID, questID, responseID)
		if err != nil {
			return err
		}
		changes, err := e.members.AddOrRestoreMembers(ctx, tx, chat.ID, partyAdminIDs, nil, 0)
		if err != nil {
			return err
		}
		first := changes[0].Member
		msg, err := e.appendInfoTx(ctx, tx, chat.ID, first.ID, 1, first.ID, model.InfoActionChatCreated, []string{first.ID})
		if err != nil {
			return err
		}
		if err := e.chats.UpdateMetadata(ctx, tx, chat.ID, msg.ID, msg.Number); err != nil {
			return err
		}
		if err := e.members.ResetUnread(ctx, tx, first.ID, 0, &msg.ID, msg.Number); err != nil {
			return err
		}
		out = QuestChat{Chat: *chat, Quest: *quest}
		for _, ch := range changes[1:] {
			invited = append(invited, ch.Member.AdminID)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	e.publish(ctx, notify.Event{
		Action:   notify.ActionChatCreated,
		ChatID:   out.Chat.ID,
		AdminIDs: invited,
	})
	e.refresh(invited...)
	return &out, nil
}

// CloseQuestChat marks the quest chat closed; no further messages accepted.
func (e *Engine) CloseQuestChat(ctx context.Context, chatID string) error {
	defer logger.DeferLogDuration("engine.CloseQuestChat", time.Now())()

	chat, err := e.chats.GetByID(ctx, e.pool, chatID)
	if err != nil {
		return storageErr(err)
	}
	if err := runChecks(chatIsType(chat, model.ChatTypeQuest)); err != nil {
		return err
	}
	if err := e.chats.SetQuestStatus(ctx, e.pool, chatID, model.QuestChatStatusClosed); err != nil {
		return storageErr(err)
	}
	return nil
}

// AddDisputeAdmin joins the dispute admin to the quest chat in its own
// transaction. The dispute on the chat's quest must be in review.
func (e *Engine) AddDisputeAdmin(ctx context.Context, chatID, adminID string) error {
	defer logger.DeferLogDuration("engine.AddDisputeAdmin", time.Now())()

	quest, err := e.questChatInfo(ctx, chatID)
	if err != nil {
		return err
	}
	dispute, err := e.disputes.FindByQuest(ctx, e.pool, quest.QuestID)
	if err != nil {
		return storageErr(err)
	}
	if err := runChecks(disputeInStatus(dispute, model.DisputeStatusInReview)); err != nil {
		return err
	}
	if _, err := e.requireAdmins(ctx, []string{adminID}); err != nil {
		return err
	}

	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		return e.AddDisputeAdminTx(ctx, tx, chatID, adminID)
	})
	if err != nil {
		return storageErr(err)
	}
	e.notifyDisputeChange(ctx, chatID, adminID, notify.ActionMemberAdded)
	return nil
}

// AddDisputeAdminTx is the transaction-composable join primitive: the dispute
// workflow calls it inside its own transaction so dispute assignment and chat
// membership commit or roll back together. Preconditions stay with the
// caller.
func (e *Engine) AddDisputeAdminTx(ctx context.Context, tx pgx.Tx, chatID, adminID string) error {
	md, err := e.chats.LockMetadata(ctx, tx, chatID)
	if err != nil {
		return err
	}
	changes, err := e.members.AddOrRestoreMembers(ctx, tx, chatID, []string{adminID}, md.LastMessageID, md.LastMessageNumber)
	if err != nil {
		return err
	}
	member := changes[0].Member
	number := md.LastMessageNumber + 1
	msg, err := e.appendInfoTx(ctx, tx, chatID, member.ID, number, member.ID, model.InfoActionDisputeAdminAdded, []string{member.ID})
	if err != nil {
		return err
	}
	if err := e.chats.UpdateMetadata(ctx, tx, chatID, msg.ID, number); err != nil {
		return err
	}
	return e.members.ResetUnread(ctx, tx, member.ID, 0, &msg.ID, number)
}

// LeaveQuestChat removes the dispute admin from the quest chat as a
// standalone operation.
func (e *Engine) LeaveQuestChat(ctx context.Context, chatID, adminID string) error {
	defer logger.DeferLogDuration("engine.LeaveQuestChat", time.Now())()

	if _, err := e.questChatInfo(ctx, chatID); err != nil {
		return err
	}
	member, err := e.activeMember(ctx, chatID, adminID)
	if err != nil {
		return err
	}
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		return e.leaveQuestChatTx(ctx, tx, chatID, member.ID)
	})
	if err != nil {
		return storageErr(err)
	}
	e.notifyDisputeChange(ctx, chatID, adminID, notify.ActionMemberLeft)
	return nil
}

// LeaveQuestChatTx is the composable counterpart of AddDisputeAdminTx, called
// by the dispute workflow when a dispute resolves.
func (e *Engine) LeaveQuestChatTx(ctx context.Context, tx pgx.Tx, chatID, adminID string) error {
	member, err := e.members.GetActiveMember(ctx, tx, chatID, adminID)
	if err != nil {
		return err
	}
	return e.leaveQuestChatTx(ctx, tx, chatID, member.ID)
}

func (e *Engine) leaveQuestChatTx(ctx context.Context, tx pgx.Tx, chatID, memberID string) error {
	return e.removeMemberTx(ctx, tx, chatID, memberID, memberID, model.InfoActionDisputeAdminLeft, model.DeletionReasonDisputeResolved, nil)
}

func (e *Engine) questChatInfo(ctx context.Context, chatID string) (*model.QuestChatInfo, error) {
	chat, err := e.chats.GetByID(ctx, e.pool, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := runChecks(chatIsType(chat, model.ChatTypeQuest)); err != nil {
		return nil, err
	}
	quest, err := e.chats.GetQuestInfo(ctx, e.pool, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	return quest, nil
}

func (e *Engine) notifyDisputeChange(ctx context.Context, chatID, adminID string, action notify.Action) {
	audience, err := e.otherActiveAdminIDs(ctx, e.pool, chatID, "")
	if err != nil {
		logger.Errorf("engine: dispute change audience: %v", err)
		return
	}
	e.publish(ctx, notify.Event{
		Action:   action,
		ChatID:   chatID,
		Data:     map[string]string{"admin_id": adminID},
		AdminIDs: audience,
	})
	e.refresh(audience...)
}
