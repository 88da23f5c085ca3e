package unread

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
	"github.com/WorkQuest/admin-backend-sub000/internal/repository"
	"github.com/WorkQuest/admin-backend-sub000/internal/storage"
)

const queueSize = 1024

// Maintainer пересчитывает агрегат «число чатов с непрочитанными» по админам.
// Пересчёт идёт в фоне после коммита транзакции, изменившей счётчики: значение
// читается заново из chat_member_states, а не инкрементируется, поэтому
// повторные и конкурирующие задания безвредны.
type Maintainer struct {
	pool   *pgxpool.Pool
	admins *repository.AdminRepository
	store  storage.UnreadStore

	queue chan string
}

func NewMaintainer(pool *pgxpool.Pool, admins *repository.AdminRepository, store storage.UnreadStore) *Maintainer {
	return &Maintainer{
		pool:   pool,
		admins: admins,
		store:  store,
		queue:  make(chan string, queueSize),
	}
}

// Enqueue ставит админов в очередь на пересчёт. Не блокирует: при переполнении
// очереди задание отбрасывается с логом — следующее изменение счётчиков
// поставит админа заново.
func (m *Maintainer) Enqueue(adminIDs ...string) {
	for _, id := range adminIDs {
		select {
		case m.queue <- id:
		default:
			logger.Errorf("unread: queue full, dropping refresh for %s", id)
		}
	}
}

// Run обрабатывает очередь до отмены контекста. Запускается одной горутиной
// из main.
func (m *Maintainer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case adminID := <-m.queue:
			if err := m.Refresh(ctx, adminID); err != nil {
				logger.Errorf("unread: refresh %s: %v", adminID, err)
			}
		}
	}
}

// Refresh пересчитывает счётчик одного админа: БД — источник истины,
// admins.unread_chats_count и кэш — его копии.
func (m *Maintainer) Refresh(ctx context.Context, adminID string) error {
	defer logger.DeferLogDuration("unread.Refresh", time.Now())()

	count, err := m.admins.CountUnreadChats(ctx, m.pool, adminID)
	if err != nil {
		return err
	}
	if err := m.admins.SetUnreadChatsCount(ctx, m.pool, adminID, count); err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.SetUnreadChats(ctx, adminID, count); err != nil {
			logger.Errorf("unread: cache %s: %v", adminID, err)
		}
	}
	return nil
}

// Count возвращает счётчик для бейджа: сперва кэш, при промахе — БД с
// дозаписью в кэш.
func (m *Maintainer) Count(ctx context.Context, adminID string) (int, error) {
	if m.store != nil {
		if n, ok, err := m.store.GetUnreadChats(ctx, adminID); err == nil && ok {
			return n, nil
		}
	}
	count, err := m.admins.CountUnreadChats(ctx, m.pool, adminID)
	if err != nil {
		return 0, err
	}
	if m.store != nil {
		if err := m.store.SetUnreadChats(ctx, adminID, count); err != nil {
			logger.Errorf("unread: cache %s: %v", adminID, err)
		}
	}
	return count, nil
}
