package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

type DisputeRepository struct{}

func NewDisputeRepository() *DisputeRepository { return &DisputeRepository{} }

const disputeColumns = `id, quest_id, assigned_admin_id, status, problem, decision, created_at, resolved_at`

func scanDispute(row pgx.Row) (*model.QuestDispute, error) {
	var d model.QuestDispute
	err := row.Scan(&d.ID, &d.QuestID, &d.AssignedAdminID, &d.Status, &d.Problem, &d.Decision, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, db DB, disputeID string) (*model.QuestDispute, error) {
	defer logger.DeferLogDuration("dispute.GetByID", time.Now())()
	d, err := scanDispute(db.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM quest_disputes WHERE id = $1`, disputeID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("disputeRepo.GetByID: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("disputeRepo.GetByID: %w", err)
	}
	return d, nil
}

func (r *DisputeRepository) FindByQuest(ctx context.Context, db DB, questID string) (*model.QuestDispute, error) {
	defer logger.DeferLogDuration("dispute.FindByQuest", time.Now())()
	d, err := scanDispute(db.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM quest_disputes
		 WHERE quest_id = $1 ORDER BY created_at DESC LIMIT 1`, questID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("disputeRepo.FindByQuest: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("disputeRepo.FindByQuest: %w", err)
	}
	return d, nil
}

// Assign moves a freshly created dispute into review under the given admin.
func (r *DisputeRepository) Assign(ctx context.Context, db DB, disputeID, adminID string) error {
	defer logger.DeferLogDuration("dispute.Assign", time.Now())()
	tag, err := db.Exec(ctx,
		`UPDATE quest_disputes SET assigned_admin_id = $2, status = $3
		 WHERE id = $1 AND status = $4`,
		disputeID, adminID, model.DisputeStatusInReview, model.DisputeStatusCreated,
	)
	if err != nil {
		return fmt.Errorf("disputeRepo.Assign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disputeRepo.Assign: %w", ErrNotFound)
	}
	return nil
}

func (r *DisputeRepository) Resolve(ctx context.Context, db DB, disputeID, decision string) error {
	defer logger.DeferLogDuration("dispute.Resolve", time.Now())()
	tag, err := db.Exec(ctx,
		`UPDATE quest_disputes SET status = $2, decision = $3, resolved_at = $4
		 WHERE id = $1 AND status = $5`,
		disputeID, model.DisputeStatusResolved, decision, time.Now().UTC(), model.DisputeStatusInReview,
	)
	if err != nil {
		return fmt.Errorf("disputeRepo.Resolve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("disputeRepo.Resolve: %w", ErrNotFound)
	}
	return nil
}
