package memory

import (
	"context"
	"sync"
	"time"
)

const (
	unreadTTL       = 24 * time.Hour
	rateLimitWindow = 60 * time.Second
	rateLimitMax    = 60
)

type item struct {
	val int
	exp time.Time
}

type Client struct {
	mu     sync.RWMutex
	unread map[string]item
	limit  map[string][]time.Time
}

func New() *Client {
	return &Client{
		unread: make(map[string]item),
		limit:  make(map[string][]time.Time),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetUnreadChats(ctx context.Context, adminID string, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unread[adminID] = item{val: count, exp: time.Now().Add(unreadTTL)}
	return nil
}

func (c *Client) GetUnreadChats(ctx context.Context, adminID string) (int, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.unread[adminID]
	if !ok || time.Now().After(v.exp) {
		return 0, false, nil
	}
	return v.val, true, nil
}

func (c *Client) DeleteUnreadChats(ctx context.Context, adminID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.unread, adminID)
	return nil
}

func (c *Client) CheckRateLimit(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-rateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rateLimitMax {
		return false, nil
	}
	kept = append(kept, now)
	c.limit[key] = kept
	return true, nil
}
