package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
)

// Client вызывает микросервис Web Push. Пустой URL — все методы no-op.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return &Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled сообщает, настроен ли push-сервис.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// Subscription — подписка браузера (PushSubscription.toJSON()).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type SubscribeRequest struct {
	UserID       string       `json:"user_id"`
	Subscription Subscription `json:"subscription"`
}

// NotifyRequest — тело POST /api/notify push-сервиса.
type NotifyRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

func (c *Client) Subscribe(ctx context.Context, userID string, sub Subscription) error {
	return c.call(ctx, http.MethodPost, "/api/subscribe", SubscribeRequest{UserID: userID, Subscription: sub})
}

func (c *Client) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return c.call(ctx, http.MethodDelete, "/api/subscribe", map[string]string{"user_id": userID, "endpoint": endpoint})
}

// NotifyNotification отправляет пуш о сохранённом уведомлении. Ошибки только логируются.
func (c *Client) NotifyNotification(ctx context.Context, n *model.Notification) {
	if !c.Enabled() {
		return
	}
	req := NotifyRequest{
		UserID: n.UserID,
		Title:  "FindMe",
		Body:   n.Message,
		Data:   map[string]string{"link": n.Link, "notification_id": n.ID},
	}
	if err := c.call(ctx, http.MethodPost, "/api/notify", req); err != nil {
		logger.Errorf("push notify %s: %v", n.UserID, err)
	}
}

func (c *Client) call(ctx context.Context, method, path string, payload any) error {
	if !c.Enabled() {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
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
		return fmt.Errorf("push %s %s: %d", method, path, resp.StatusCode)
	}
	return nil
}
