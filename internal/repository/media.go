package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
)

type MediaRepository struct{}

func NewMediaRepository() *MediaRepository { return &MediaRepository{} }

// Resolve validates a list of media references before any transaction starts.
// Every id must exist; a missing one fails the whole list with ErrNotFound.
func (r *MediaRepository) Resolve(ctx context.Context, db DB, ids []string) ([]model.Media, error) {
	defer logger.DeferLogDuration("media.Resolve", time.Now())()
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.Query(ctx,
		`SELECT id, url, content_type, created_at FROM medias WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("mediaRepo.Resolve query: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Media, len(ids))
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.URL, &m.ContentType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("mediaRepo.Resolve scan: %w", err)
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mediaRepo.Resolve rows: %w", err)
	}

	medias := make([]model.Media, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("media %s: %w", id, ErrNotFound)
		}
		medias = append(medias, m)
	}
	return medias, nil
}
