package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/findme/internal/events"
	"github.com/findme/internal/model"
	"github.com/findme/internal/service"
	"github.com/findme/internal/ws"
)

type sent struct {
	user string
	msg  ws.OutgoingMessage
}

type fakeOnline struct {
	mu   sync.Mutex
	sent []sent
}

func (f *fakeOnline) SendToUser(userID string, msg ws.OutgoingMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{userID, msg})
}

type fakePusher struct{ ch chan *model.Notification }

func (f *fakePusher) NotifyNotification(_ context.Context, n *model.Notification) { f.ch <- n }

type fakeBroker struct{ ch chan events.Envelope }

func (f *fakeBroker) Publish(_ context.Context, env events.Envelope) error {
	f.ch <- env
	return nil
}

func TestNotificationGoesToAllChannels(t *testing.T) {
	online := &fakeOnline{}
	push := &fakePusher{ch: make(chan *model.Notification, 1)}
	broker := &fakeBroker{ch: make(chan events.Envelope, 1)}
	f := NewFanout(online, push, broker)

	n := &model.Notification{ID: "n1", UserID: "bob", Message: "hi"}
	ctx, cancel := context.WithCancel(context.Background())
	f.Publish(ctx, service.Event{Type: service.EventNotificationCreated, Recipients: []string{"bob"}, Payload: n})
	cancel()

	if len(online.sent) != 1 || online.sent[0].user != "bob" || online.sent[0].msg.Type != ws.EventNotification {
		t.Fatalf("online = %+v", online.sent)
	}
	select {
	case got := <-push.ch:
		if got.ID != "n1" {
			t.Fatalf("pushed %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("push not delivered after request context was cancelled")
	}
	select {
	case env := <-broker.ch:
		if env.Type != "notification.created" {
			t.Fatalf("routing key = %q", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("event not published")
	}
}

func TestChatMessageUpdatesUnreadForReceiver(t *testing.T) {
	online := &fakeOnline{}
	f := NewFanout(online, nil, nil)
	chat := &model.Chat{ID: "c1", UnreadCounts: map[string]int{"alice": 0, "bob": 3}}
	msg := &model.Message{ID: "m1", ChatID: "c1", Text: "hi"}

	f.Publish(context.Background(), service.Event{
		Type:       service.EventChatMessage,
		Recipients: []string{"alice", "bob"},
		Payload:    service.ChatMessageEvent{Chat: chat, Message: msg, ReceiverID: "bob"},
	})

	if len(online.sent) != 3 {
		t.Fatalf("sent = %d, want 3", len(online.sent))
	}
	last := online.sent[2]
	p, ok := last.msg.Payload.(ws.UnreadChangedPayload)
	if last.user != "bob" || !ok || p.Unread != 3 {
		t.Fatalf("unread event = %+v", last)
	}
}
