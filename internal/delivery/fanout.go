// Package delivery разносит доменные события по каналам доставки:
// WebSocket-подключения получателей, Web Push и RabbitMQ.
package delivery

import (
	"context"
	"time"

	"github.com/findme/internal/events"
	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
	"github.com/findme/internal/service"
	"github.com/findme/internal/ws"
)

// Online — доставка в открытые WebSocket-подключения.
type Online interface {
	SendToUser(userID string, msg ws.OutgoingMessage)
}

// Pusher — Web Push для сохранённых уведомлений.
type Pusher interface {
	NotifyNotification(ctx context.Context, n *model.Notification)
}

// Broker — шина доменных событий.
type Broker interface {
	Publish(ctx context.Context, env events.Envelope) error
}

const sideEffectTimeout = 10 * time.Second

// Fanout реализует service.Publisher. Любой канал может быть nil.
type Fanout struct {
	online Online
	push   Pusher
	broker Broker
}

func NewFanout(online Online, push Pusher, broker Broker) *Fanout {
	return &Fanout{online: online, push: push, broker: broker}
}

// Publish не блокирует запрос на внешних вызовах: push и брокер уходят в отдельную горутину
// с контекстом, отвязанным от отмены запроса.
func (f *Fanout) Publish(ctx context.Context, ev service.Event) {
	f.deliverOnline(ev)
	if f.push == nil && f.broker == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, sideEffectTimeout)
		defer cancel()
		f.deliverRemote(ctx, ev)
	}()
}

func (f *Fanout) deliverOnline(ev service.Event) {
	if f.online == nil {
		return
	}
	switch ev.Type {
	case service.EventNotificationCreated:
		for _, uid := range ev.Recipients {
			f.online.SendToUser(uid, ws.OutgoingMessage{Type: ws.EventNotification, Payload: ev.Payload})
		}
	case service.EventChatMessage:
		p, ok := ev.Payload.(service.ChatMessageEvent)
		if !ok {
			return
		}
		for _, uid := range ev.Recipients {
			f.online.SendToUser(uid, ws.OutgoingMessage{Type: ws.EventNewMessage, Payload: p.Message})
		}
		f.online.SendToUser(p.ReceiverID, ws.OutgoingMessage{
			Type:    ws.EventUnreadChanged,
			Payload: ws.UnreadChangedPayload{ChatID: p.Chat.ID, Unread: p.Chat.UnreadCounts[p.ReceiverID]},
		})
	case service.EventClaimSubmitted, service.EventClaimResolved, service.EventItemResolved,
		service.EventMatchCreated, service.EventMatchAccepted:
		for _, uid := range ev.Recipients {
			f.online.SendToUser(uid, ws.OutgoingMessage{Type: ws.EventClaimUpdated, Payload: ev.Payload})
		}
	}
}

func (f *Fanout) deliverRemote(ctx context.Context, ev service.Event) {
	if f.push != nil && ev.Type == service.EventNotificationCreated {
		if n, ok := ev.Payload.(*model.Notification); ok {
			f.push.NotifyNotification(ctx, n)
		}
	}
	if f.broker != nil {
		env := events.Envelope{
			Type:       string(ev.Type),
			OccurredAt: ev.At,
			Recipients: ev.Recipients,
			Payload:    ev.Payload,
		}
		if err := f.broker.Publish(ctx, env); err != nil {
			logger.Errorf("delivery: publish %s: %v", ev.Type, err)
		}
	}
}
