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

type AdminRepository struct{}

func NewAdminRepository() *AdminRepository { return &AdminRepository{} }

const adminColumns = `id, email, first_name, last_name, role, is_active, unread_chats_count, created_at`

func (r *AdminRepository) GetByID(ctx context.Context, db DB, id string) (*model.Admin, error) {
	defer logger.DeferLogDuration("admin.GetByID", time.Now())()
	a := &model.Admin{}
	err := db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.Role, &a.IsActive, &a.UnreadChatsCount, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("adminRepo.GetByID: %w", err)
	}
	return a, nil
}

func (r *AdminRepository) ListByIDs(ctx context.Context, db DB, ids []string) ([]model.Admin, error) {
	defer logger.DeferLogDuration("admin.ListByIDs", time.Now())()
	rows, err := db.Query(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("adminRepo.ListByIDs query: %w", err)
	}
	defer rows.Close()

	admins := make([]model.Admin, 0, len(ids))
	for rows.Next() {
		var a model.Admin
		if err := rows.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.Role, &a.IsActive, &a.UnreadChatsCount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("adminRepo.ListByIDs scan: %w", err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("adminRepo.ListByIDs rows: %w", err)
	}
	return admins, nil
}

// CountUnreadChats recomputes the aggregate from the authoritative per-member
// state: the number of chats where the admin is active with unread messages.
func (r *AdminRepository) CountUnreadChats(ctx context.Context, db DB, adminID string) (int, error) {
	defer logger.DeferLogDuration("admin.CountUnreadChats", time.Now())()
	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_members m
		 JOIN chat_member_states s ON s.chat_member_id = m.id
		 WHERE m.admin_id = $1 AND m.status = 'active' AND s.unread_count > 0`,
		adminID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("adminRepo.CountUnreadChats: %w", err)
	}
	return n, nil
}

func (r *AdminRepository) SetUnreadChatsCount(ctx context.Context, db DB, adminID string, n int) error {
	defer logger.DeferLogDuration("admin.SetUnreadChatsCount", time.Now())()
	_, err := db.Exec(ctx,
		`UPDATE admins SET unread_chats_count = $1 WHERE id = $2`, n, adminID,
	)
	if err != nil {
		return fmt.Errorf("adminRepo.SetUnreadChatsCount: %w", err)
	}
	return nil
}
