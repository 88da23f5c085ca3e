package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Счётчик непрочитанных живёт сутки (пересчитывается при каждом изменении,
// TTL только на случай осиротевших ключей); rate limit 60 запросов / минута на ключ.
const (
	UnreadTTL       = 24 * 3600
	RateLimitWindow = 60 // секунд
	RateLimitMax    = 60 // запросов за окно
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetUnreadChats сохраняет количество чатов с непрочитанными по ключу unread_chats:{admin_id}.
func (c *Client) SetUnreadChats(ctx context.Context, adminID string, count int) error {
	return c.cli.Set(ctx, "unread_chats:"+adminID, count, UnreadTTL*time.Second).Err()
}

// GetUnreadChats возвращает кэшированный счётчик. ok=false — ключа нет, читаем из БД.
func (c *Client) GetUnreadChats(ctx context.Context, adminID string) (int, bool, error) {
	val, err := c.cli.Get(ctx, "unread_chats:"+adminID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (c *Client) DeleteUnreadChats(ctx context.Context, adminID string) error {
	return c.cli.Del(ctx, "unread_chats:"+adminID).Err()
}

// CheckRateLimit проверяет rate_limit:{key}: макс. RateLimitMax запросов за окно. При превышении — HTTP 429.
func (c *Client) CheckRateLimit(ctx context.Context, key string) (allowed bool, err error) {
	k := "rate_limit:" + key
	n, err := c.cli.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, k, RateLimitWindow*time.Second)
	}
	return n <= int64(RateLimitMax), nil
}

// FlushDB очищает текущую БД Redis (для сброса кэша при тестах/перезапуске).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
