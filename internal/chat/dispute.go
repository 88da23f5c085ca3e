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

// TakeDispute assigns a created dispute to the admin and joins them to the
// quest's chat. Assignment and membership are one transaction: a failure in
// either leaves the dispute untaken.
func (e *Engine) TakeDispute(ctx context.Context, disputeID, adminID string) (*model.QuestDispute, error) {
	defer logger.DeferLogDuration("engine.TakeDispute", time.Now())()

	dispute, err := e.disputes.GetByID(ctx, e.pool, disputeID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := runChecks(disputeInStatus(dispute, model.DisputeStatusCreated)); err != nil {
		return nil, err
	}
	admins, err := e.requireAdmins(ctx, []string{adminID})
	if err != nil {
		return nil, err
	}
	if admins[0].Role != model.AdminRoleDispute && admins[0].Role != model.AdminRoleMain {
		return nil, apperrors.New(apperrors.KindForbidden, "admin role cannot take disputes")
	}
	chat, err := e.chats.FindQuestChat(ctx, e.pool, dispute.QuestID)
	if err != nil {
		return nil, storageErr(err)
	}

	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		if err := e.disputes.Assign(ctx, tx, disputeID, adminID); err != nil {
			return err
		}
		return e.AddDisputeAdminTx(ctx, tx, chat.ID, adminID)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	dispute.AssignedAdminID = &adminID
	dispute.Status = model.DisputeStatusInReview
	e.notifyDisputeChange(ctx, chat.ID, adminID, notify.ActionMemberAdded)
	return dispute, nil
}

// DecideDispute resolves an in-review dispute and removes its admin from the
// quest chat, again as one transaction. Only the assigned admin may decide.
func (e *Engine) DecideDispute(ctx context.Context, disputeID, adminID, decision string) (*model.QuestDispute, error) {
	defer logger.DeferLogDuration("engine.DecideDispute", time.Now())()

	dispute, err := e.disputes.GetByID(ctx, e.pool, disputeID)
	if err != nil {
		return nil, storageErr(err)
	}
	if err := runChecks(
		disputeInStatus(dispute, model.DisputeStatusInReview),
		nonEmpty(decision, "decision"),
	); err != nil {
		return nil, err
	}
	if dispute.AssignedAdminID == nil || *dispute.AssignedAdminID != adminID {
		return nil, apperrors.New(apperrors.KindForbidden, "dispute is assigned to another admin")
	}
	chat, err := e.chats.FindQuestChat(ctx, e.pool, dispute.QuestID)
	if err != nil {
		return nil, storageErr(err)
	}

	err = repository.WithTx(ctx, e.pool, func(tx pgx.Tx) error {
		if err := e.disputes.Resolve(ctx, tx, disputeID, decision); err != nil {
			return err
		}
		return e.LeaveQuestChatTx(ctx, tx, chat.ID, adminID)
	})
	if err != nil {
		return nil, storageErr(err)
	}

	dispute.Status = model.DisputeStatusResolved
	dispute.Decision = decision
	e.notifyDisputeChange(ctx, chat.ID, adminID, notify.ActionMemberLeft)
	return dispute, nil
}
