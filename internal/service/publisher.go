package service

import (
	"context"
	"time"

	"github.com/findme/internal/model"
)

// EventType совпадает с routing key в RabbitMQ.
type EventType string

const (
	EventClaimSubmitted      EventType = "claim.submitted"
	EventClaimResolved       EventType = "claim.resolved"
	EventItemResolved        EventType = "item.resolved"
	EventMatchCreated        EventType = "match.created"
	EventMatchAccepted       EventType = "match.accepted"
	EventChatMessage         EventType = "chat.message"
	EventNotificationCreated EventType = "notification.created"
)

// Event — доменное событие после успешной записи. Recipients — пользователи,
// которым событие доставляется онлайн (WebSocket).
type Event struct {
	Type       EventType
	Recipients []string
	Payload    any
	At         time.Time
}

// Publisher доставляет события. Доставка best effort: ошибки не влияют на результат операции.
// Payload может сериализоваться в другой горутине, поэтому после Publish он не изменяется.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// ClaimEvent — payload claim.submitted и claim.resolved.
type ClaimEvent struct {
	ItemID     string           `json:"itemId"`
	ItemStatus model.ItemStatus `json:"itemStatus"`
	OwnerID    string           `json:"ownerId"`
	Claim      model.Claim      `json:"claim"`
}

// ItemEvent — payload item.resolved.
type ItemEvent struct {
	ItemID  string           `json:"itemId"`
	OwnerID string           `json:"ownerId"`
	Status  model.ItemStatus `json:"status"`
}

// ChatMessageEvent — payload chat.message.
type ChatMessageEvent struct {
	Chat       *model.Chat    `json:"chat"`
	Message    *model.Message `json:"message"`
	ReceiverID string         `json:"receiverId"`
}

func (s *Service) publish(ctx context.Context, t EventType, payload any, recipients ...string) {
	s.publisher.Publish(ctx, Event{Type: t, Recipients: recipients, Payload: payload, At: s.now()})
}
