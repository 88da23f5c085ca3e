package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/WorkQuest/admin-backend-sub000/internal/logger"
)

// PushClient вызывает микросервис пуш-уведомлений. Если URL пустой — методы no-op.
type PushClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPushClient создаёт клиент. baseURL пустой — пуши отключены.
func NewPushClient(baseURL string) *PushClient {
	if baseURL == "" {
		return &PushClient{}
	}
	return &PushClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyRequest — тело запроса на отправку уведомления.
type notifyRequest struct {
	AdminID string            `json:"admin_id"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

// Publish отправляет событие каждому получателю. Ошибки доставки не
// возвращаются вызывающему: пуш — best effort.
func (c *PushClient) Publish(ctx context.Context, ev Event) {
	if c.baseURL == "" {
		return
	}
	data := map[string]string{"chat_id": ev.ChatID}
	if ev.MessageID != "" {
		data["message_id"] = ev.MessageID
	}
	for k, v := range ev.Data {
		data[k] = v
	}
	for _, adminID := range ev.AdminIDs {
		c.notify(ctx, adminID, string(ev.Action), ev.Body, data)
	}
}

func (c *PushClient) notify(ctx context.Context, adminID, title, body string, data map[string]string) {
	payload := notifyRequest{AdminID: adminID, Title: title, Body: body, Data: data}
	bodyBytes, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/notify", bytes.NewReader(bodyBytes))
	if err != nil {
		logger.Errorf("push notify request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Errorf("push notify: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		logger.Errorf("push notify: %d", resp.StatusCode)
	}
}

// SubscribeRequest — тело запроса подписки, проксируется на push-сервис.
type SubscribeRequest struct {
	AdminID      string           `json:"admin_id"`
	Subscription PushSubscription `json:"subscription"`
}

// PushSubscription — подписка из браузера.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe сохраняет подписку для admin_id на push-сервисе.
func (c *PushClient) Subscribe(ctx context.Context, adminID string, sub PushSubscription) error {
	if c.baseURL == "" {
		return nil
	}
	body, err := json.Marshal(SubscribeRequest{AdminID: adminID, Subscription: sub})
	if err != nil {
		return err
	}
	return c.post(ctx, http.MethodPost, "/api/subscribe", body)
}

// Unsubscribe удаляет подписку по endpoint.
func (c *PushClient) Unsubscribe(ctx context.Context, adminID, endpoint string) error {
	if c.baseURL == "" {
		return nil
	}
	body, _ := json.Marshal(map[string]string{"admin_id": adminID, "endpoint": endpoint})
	return c.post(ctx, http.MethodDelete, "/api/subscribe", body)
}

func (c *PushClient) post(ctx context.Context, method, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// StatusError — неожиданный HTTP-статус от push-сервиса.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return "push service status " + http.StatusText(e.Code)
}
