package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestPushClientPublishFansOut(t *testing.T) {
	var mu sync.Mutex
	var got []notifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/notify" {
			t.Errorf("path = %s, want /api/notify", r.URL.Path)
		}
		var req notifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewPushClient(srv.URL)
	c.Publish(context.Background(), Event{
		Action:    ActionNewMessage,
		ChatID:    "chat-1",
		MessageID: "msg-1",
		Body:      "hello",
		AdminIDs:  []string{"a1", "a2"},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("requests = %d, want one per recipient", len(got))
	}
	for _, req := range got {
		if req.Body != "hello" || req.Data["chat_id"] != "chat-1" || req.Data["message_id"] != "msg-1" {
			t.Fatalf("request = %+v", req)
		}
	}
}

func TestPushClientDisabledWithoutURL(t *testing.T) {
	c := NewPushClient("")
	// Без URL клиент молчит и не падает.
	c.Publish(context.Background(), Event{Action: ActionNewMessage, AdminIDs: []string{"a1"}})
	if err := c.Subscribe(context.Background(), "a1", PushSubscription{}); err != nil {
		t.Fatalf("subscribe on disabled client: %v", err)
	}
}

func TestPushClientSubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/subscribe" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req SubscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.AdminID != "a1" || req.Subscription.Endpoint != "https://push.example/ep" {
			t.Errorf("request = %+v", req)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewPushClient(srv.URL)
	sub := PushSubscription{Endpoint: "https://push.example/ep"}
	sub.Keys.P256dh = "p"
	sub.Keys.Auth = "s"
	if err := c.Subscribe(context.Background(), "a1", sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
}

func TestPushClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewPushClient(srv.URL)
	err := c.Unsubscribe(context.Background(), "a1", "https://push.example/ep")
	if err == nil {
		t.Fatal("want error on non-204 status")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
}
