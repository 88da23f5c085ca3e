package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
)

// GroupChat is a created group chat with its info record.
type GroupChat struct {
	Chat  model.Chat          `json:"chat"`
	Group model.GroupChatInfo `json:"group"`
}

// CreateGroupChat creates a group chat owned by the creator. The creator is
// always a member, whether or not the invite list names them. One system
// message records the creation: the creator reads it immediately, every
// invited admin starts with one unread.
func (e *Engine) CreateGroupChat(ctx context.Context, creatorAdminID, name string, invitedAdminIDs []string) (*GroupChat, error) {
	defer logger.DeferLogDuration("engine.CreateGroupChat", time.Now())()

	memberIDs := dedupe(append([]string{creatorAdminID}, invitedAdminIDs...))
	if err := runChecks(
		nonEmpty(name, "chat name"),
		nonEmptyIDs(memberIDs, "member"),
	); err != nil {
		return nil, err
	}
	if _, err := e.requireAdmins(ctx, memberIDs); err != nil {
		return nil, err
	}

	var out GroupChat
	var invited []string
	err := repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		chat, err := e.chats.Create(ctx, tx, model.ChatTypeGroup, nil)
		if err != nil {
			return err
		}
		changes, err := e.members.AddOrRestoreMembers(ctx, tx, chat.ID, memberIDs, nil, 0)
		if err != nil {
			return err
		}
		creator := changes[0].Member
		group, err := e.chats.CreateGroupInfo(ctx, tx, chat.ID, name, creator.ID)
		if err != nil {
			return err
		}
		msg, err := e.appendInfoTx(ctx, tx, chat.ID, creator.ID, 1, creator.ID, model.InfoActionChatCreated, []string{creator.ID})
		if err != nil {
			return err
		}
		if err := e.chats.UpdateMetadata(ctx, tx, chat.ID, msg.ID, msg.Number); err != nil {
			return err
		}
		if err := e.members.ResetUnread(ctx, tx, creator.ID, 0, &msg.ID, msg.Number); err != nil {
			return err
		}
		out = GroupChat{Chat: *chat, Group: *group}
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
		Body:     name,
		AdminIDs: invited,
	})
	e.refresh(invited...)
	return &out, nil
}

// AddMembers invites admins into a group chat. Only the owner may invite. An
// admin who left on their own is never re-invitable; a removed one is
// restored on their original member row. One system message per admin is
// appended, restored members first, then new ones, each group keeping the
// requested order. Joining members see none of it as unread: their state is
// seeded at the final message.
func (e *Engine) AddMembers(ctx context.Context, chatID, actorAdminID string, adminIDs []string) ([]repository.MemberChange, error) {
	defer logger.DeferLogDuration("engine.AddMembers", time.Now())()

	adminIDs = dedupe(adminIDs)
	chat, err := e.chats.GetByID(ctx, e.pool, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := runChecks(
		chatIsType(chat, model.ChatTypeGroup),
		nonEmptyIDs(adminIDs, "member"),
	); err != nil {
		return nil, err
	}
	actor, err := e.activeMember(ctx, chatID, actorAdminID)
	if err != nil {
		return nil, err
	}
	group, err := e.chats.GetGroupInfo(ctx, e.pool, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := runChecks(memberIsOwner(group, actor.ID)); err != nil {
		return nil, err
	}
	if _, err := e.requireAdmins(ctx, adminIDs); err != nil {
		return nil, err
	}
	active, err := e.members.ListActiveByAdmins(ctx, e.pool, chatID, adminIDs)
	if err != nil {
		return nil, storageErr(err)
	}
	if len(active) > 0 {
		return nil, apperrors.Newf(apperrors.KindAlreadyMember, "admin %s is already a chat member", active[0])
	}
	left, err := e.members.ListLeftAdmins(ctx, e.pool, chatID, adminIDs)
	if err != nil {
		return nil, storageErr(err)
	}
	if len(left) > 0 {
		return nil, apperrors.Newf(apperrors.KindForbidden, "admin %s left this chat and cannot be re-invited", left[0])
	}

	var changes []repository.MemberChange
	var audience []string
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		md, err := e.chats.LockMetadata(ctx, tx, chatID)
		if err != nil {
			return err
		}
		audience, err = e.otherActiveAdminIDs(ctx, tx, chatID, actor.ID)
		if err != nil {
			return err
		}
		changes, err = e.members.AddOrRestoreMembers(ctx, tx, chatID, adminIDs, md.LastMessageID, md.LastMessageNumber)
		if err != nil {
			return err
		}

		// System messages do not count as unread for the actor or for the
		// members being added.
		except := []string{actor.ID}
		for _, ch := range changes {
			except = append(except, ch.Member.ID)
		}

		number := md.LastMessageNumber
		var last *model.Message
		for _, ch := range orderRestoredFirst(changes) {
			action := model.InfoActionMemberAdded
			if ch.Restored {
				action = model.InfoActionMemberRestored
			}
			number++
			last, err = e.appendInfoTx(ctx, tx, chatID, actor.ID, number, ch.Member.ID, action, except)
			if err != nil {
				return err
			}
		}
		if err := e.chats.UpdateMetadata(ctx, tx, chatID, last.ID, number); err != nil {
			return err
		}
		for _, ch := range changes {
			if err := e.members.ResetUnread(ctx, tx, ch.Member.ID, 0, &last.ID, number); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(err)
	}

	e.publish(ctx, notify.Event{
		Action:   notify.ActionMemberAdded,
		ChatID:   chatID,
		Data:     map[string]string{"admin_ids": strings.Join(adminIDs, ",")},
		AdminIDs: append(audience, adminIDs...),
	})
	e.refresh(append(audience, adminIDs...)...)
	return changes, nil
}

// RemoveMember expels an admin from a group chat. Owner only; the owner
// cannot be removed. The removal message is the target's history cutoff, so
// the removed member still sees it and nothing after it.
func (e *Engine) RemoveMember(ctx context.Context, chatID, actorAdminID, targetAdminID string) error {
	defer logger.DeferLogDuration("engine.RemoveMember", time.Now())()

	chat, err := e.chats.GetByID(ctx, e.pool, chatID)
	if err != nil {
		return storageErr(err)
	}
	if err := runChecks(chatIsType(chat, model.ChatTypeGroup)); err != nil {
		return err
	}
	actor, err := e.activeMember(ctx, chatID, actorAdminID)
	if err != nil {
		return err
	}
	group, err := e.chats.GetGroupInfo(ctx, e.pool, chatID)
	if err != nil {
		return storageErr(err)
	}
	target, err := e.members.GetMember(ctx, e.pool, chatID, targetAdminID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(err, apperrors.KindNotAMember, "admin is not a chat member")
	}
	if err != nil {
		return storageErr(err)
	}
	if err := runChecks(
		memberIsOwner(group, actor.ID),
		memberIsNotOwner(group, target.ID),
		func() error {
			if !target.IsActive() {
				return apperrors.New(apperrors.KindNotAMember, "admin is not an active chat member")
			}
			return nil
		},
	); err != nil {
		return err
	}

	var audience []string
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		return e.removeMemberTx(ctx, tx, chatID, actor.ID, target.ID, model.InfoActionMemberRemoved, model.DeletionReasonRemoved, &audience)
	})
	if err != nil {
		return storageErr(err)
	}

	e.publish(ctx, notify.Event{
		Action:   notify.ActionMemberRemoved,
		ChatID:   chatID,
		Data:     map[string]string{"admin_id": targetAdminID},
		AdminIDs: append(audience, targetAdminID),
	})
	e.refresh(append(audience, targetAdminID)...)
	return nil
}

// LeaveGroupChat is a member's own exit. The owner cannot leave; reason=left
// also bans the member from being re-invited.
func (e *Engine) LeaveGroupChat(ctx context.Context, chatID, adminID string) error {
	defer logger.DeferLogDuration("engine.LeaveGroupChat", time.Now())()

	chat, err := e.chats.GetByID(ctx, e.pool, chatID)
	if err != nil {
		return storageErr(err)
	}
	if err := runChecks(chatIsType(chat, model.ChatTypeGroup)); err != nil {
		return err
	}
	member, err := e.activeMember(ctx, chatID, adminID)
	if err != nil {
		return err
	}
	group, err := e.chats.GetGroupInfo(ctx, e.pool, chatID)
	if err != nil {
		return storageErr(err)
	}
	if err := runChecks(memberIsNotOwner(group, member.ID)); err != nil {
		return err
	}

	var audience []string
	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		return e.removeMemberTx(ctx, tx, chatID, member.ID, member.ID, model.InfoActionMemberLeft, model.DeletionReasonLeft, &audience)
	})
	if err != nil {
		return storageErr(err)
	}

	e.publish(ctx, notify.Event{
		Action:   notify.ActionMemberLeft,
		ChatID:   chatID,
		Data:     map[string]string{"admin_id": adminID},
		AdminIDs: audience,
	})
	e.refresh(append(audience, adminID)...)
	return nil
}

// removeMemberTx appends the farewell system message and flips the member to
// deleted with that message as their visibility cutoff. audience receives the
// remaining active members' admin ids for post-commit delivery.
func (e *Engine) removeMemberTx(ctx context.Context, tx pgx.Tx, chatID, actorMemberID, targetMemberID string, action model.InfoAction, reason model.DeletionReason, audience *[]string) error {
	md, err := e.chats.LockMetadata(ctx, tx, chatID)
	if err != nil {
		return err
	}
	number := md.LastMessageNumber + 1
	msg, err := e.appendInfoTx(ctx, tx, chatID, actorMemberID, number, targetMemberID, action, []string{actorMemberID, targetMemberID})
	if err != nil {
		return err
	}
	if err := e.chats.UpdateMetadata(ctx, tx, chatID, msg.ID, number); err != nil {
		return err
	}
	if err := e.members.RemoveMember(ctx, tx, targetMemberID, reason, &msg.ID, number); err != nil {
		return err
	}
	if audience != nil {
		ids, err := e.otherActiveAdminIDs(ctx, tx, chatID, targetMemberID)
		if err != nil {
			return err
		}
		*audience = ids
	}
	return nil
}

// orderRestoredFirst reorders membership changes for system-message emission:
// restored members first, then new ones, request order preserved inside each
// group.
func orderRestoredFirst(changes []repository.MemberChange) []repository.MemberChange {
	ordered := make([]repository.MemberChange, 0, len(changes))
	for _, ch := range changes {
		if ch.Restored {
			ordered = append(ordered, ch)
		}
	}
	for _, ch := range changes {
		if !ch.Restored {
			ordered = append(ordered, ch)
		}
	}
	return ordered
}
