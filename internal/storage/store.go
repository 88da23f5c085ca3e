package storage

import "context"

// UnreadStore — кэш счётчиков непрочитанных чатов и rate limit для API.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type UnreadStore interface {
	SetUnreadChats(ctx context.Context, adminID string, count int) error
	GetUnreadChats(ctx context.Context, adminID string) (count int, ok bool, err error)
	DeleteUnreadChats(ctx context.Context, adminID string) error
	CheckRateLimit(ctx context.Context, key string) (allowed bool, err error)
	Close() error
}
