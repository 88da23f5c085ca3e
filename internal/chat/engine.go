package chat

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/internal/apperrors"
	"github.com/WorkQuest/admin-backend-sub000/internal/model"
	"github.com/WorkQuest/admin-backend-sub000/internal/notify"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
)

// Refresher queues admins for an aggregate unread-count recompute after a
// chat operation commits.
type Refresher interface {
	Enqueue(adminIDs ...string)
}

// Engine orchestrates every multi-entity chat operation. All mutations of one
// operation run inside a single transaction; the serialization point for a
// chat is the FOR UPDATE lock on its metadata row, taken before any message
// number is assigned or membership changes. Notification and unread-count
// refresh are dispatched strictly after commit and are best effort.
type Engine struct {
	pool      *pgxpool.Pool
	chats     *repository.ChatRepository
	members   *repository.MemberRepository
	messages  *repository.MessageRepository
	medias    *repository.MediaRepository
	starred   *repository.StarredRepository
	admins    *repository.AdminRepository
	disputes  *repository.DisputeRepository
	sink      notify.Sink
	refresher Refresher
}

func NewEngine(pool *pgxpool.Pool, sink notify.Sink, refresher Refresher) *Engine {
	if sink == nil {
		sink = notify.Noop{}
	}
	return &Engine{
		pool:      pool,
		chats:     repository.NewChatRepository(),
		members:   repository.NewMemberRepository(),
		messages:  repository.NewMessageRepository(),
		medias:    repository.NewMediaRepository(),
		starred:   repository.NewStarredRepository(),
		admins:    repository.NewAdminRepository(),
		disputes:  repository.NewDisputeRepository(),
		sink:      sink,
		refresher: refresher,
	}
}

// refresh hands the admins to the unread maintainer, if one is attached.
func (e *Engine) refresh(adminIDs ...string) {
	if e.refresher == nil || len(adminIDs) == 0 {
		return
	}
	e.refresher.Enqueue(adminIDs...)
}

// publish dispatches a post-commit event. Never called inside a transaction.
func (e *Engine) publish(ctx context.Context, ev notify.Event) {
	if len(ev.AdminIDs) == 0 {
		return
	}
	e.sink.Publish(ctx, ev)
}

// storageErr translates repository sentinels into the caller-facing taxonomy.
// Anything unrecognized is an internal error: raw storage messages never leak.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.Wrap(err, apperrors.KindNotFound, "not found")
	case errors.Is(err, repository.ErrAlreadyMember):
		return apperrors.Wrap(err, apperrors.KindAlreadyMember, "already a chat member")
	case errors.Is(err, repository.ErrNotAMember):
		return apperrors.Wrap(err, apperrors.KindNotAMember, "not a chat member")
	default:
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.Internal(err)
	}
}

// otherActiveAdminIDs returns the admin ids of the chat's active members
// except the given member.
func (e *Engine) otherActiveAdminIDs(ctx context.Context, db repository.DB, chatID, exceptMemberID string) ([]string, error) {
	members, err := e.members.ListActiveMembers(ctx, db, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.ID != exceptMemberID {
			ids = append(ids, m.AdminID)
		}
	}
	return ids, nil
}

// activeMember resolves the admin's active membership in the chat. A missing
// or deleted membership is a Forbidden, not a NotFound: the chat may well
// exist, the caller just has no standing in it.
func (e *Engine) activeMember(ctx context.Context, chatID, adminID string) (*model.ChatMember, error) {
	m, err := e.members.GetActiveMember(ctx, e.pool, chatID, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.New(apperrors.KindForbidden, "not an active chat member")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return m, nil
}

// requireAdmins checks that every id names an existing active admin.
func (e *Engine) requireAdmins(ctx context.Context, ids []string) ([]model.Admin, error) {
	admins, err := e.admins.ListByIDs(ctx, e.pool, ids)
	if err != nil {
		return nil, storageErr(err)
	}
	byID := make(map[string]model.Admin, len(admins))
	for _, a := range admins {
		byID[a.ID] = a
	}
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			return nil, apperrors.Newf(apperrors.KindNotFound, "admin %s not found", id)
		}
		if !a.IsActive {
			return nil, apperrors.Newf(apperrors.KindForbidden, "admin %s is deactivated", id)
		}
	}
	return admins, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// dedupe keeps the first occurrence of each id, preserving order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
