package memory

import (
	"context"
	"testing"
)

func TestUnreadChats(t *testing.T) {
	ctx := context.Background()
	c := New()

	if _, ok, _ := c.GetUnreadChats(ctx, "a1"); ok {
		t.Fatal("empty store must miss")
	}
	if err := c.SetUnreadChats(ctx, "a1", 3); err != nil {
		t.Fatalf("set: %v", err)
	}
	n, ok, err := c.GetUnreadChats(ctx, "a1")
	if err != nil || !ok || n != 3 {
		t.Fatalf("get = %d, %v, %v; want 3, true, nil", n, ok, err)
	}
	if err := c.DeleteUnreadChats(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.GetUnreadChats(ctx, "a1"); ok {
		t.Fatal("deleted key must miss")
	}
}

func TestCheckRateLimit(t *testing.T) {
	ctx := context.Background()
	c := New()

	for i := 0; i < rateLimitMax; i++ {
		allowed, err := c.CheckRateLimit(ctx, "k")
		if err != nil || !allowed {
			t.Fatalf("request %d: allowed=%v err=%v, want allowed", i, allowed, err)
		}
	}
	allowed, err := c.CheckRateLimit(ctx, "k")
	if err != nil || allowed {
		t.Fatalf("over limit: allowed=%v err=%v, want denied", allowed, err)
	}
	// Другой ключ не зажимается чужим лимитом.
	allowed, err = c.CheckRateLimit(ctx, "other")
	if err != nil || !allowed {
		t.Fatalf("other key: allowed=%v err=%v, want allowed", allowed, err)
	}
}
