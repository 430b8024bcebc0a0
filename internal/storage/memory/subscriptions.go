package memory

import (
	"context"
	"sync"

	"github.com/findme/internal/push"
	"github.com/findme/internal/storage"
)

const maxSubsPerUser = 10

var _ storage.PushSubscriptions = (*PushSubscriptions)(nil)

// PushSubscriptions — подписки Web Push в памяти (push-сервис без Redis, тесты).
type PushSubscriptions struct {
	mu   sync.Mutex
	subs map[string][]push.Subscription
}

func NewPushSubscriptions() *PushSubscriptions {
	return &PushSubscriptions{subs: make(map[string][]push.Subscription)}
}

func (s *PushSubscriptions) Add(_ context.Context, userID string, sub push.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(dropEndpoint(s.subs[userID], sub.Endpoint), sub)
	if len(list) > maxSubsPerUser {
		list = list[len(list)-maxSubsPerUser:]
	}
	s.subs[userID] = list
	return nil
}

func (s *PushSubscriptions) Remove(_ context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list := dropEndpoint(s.subs[userID], endpoint); len(list) > 0 {
		s.subs[userID] = list
	} else {
		delete(s.subs, userID)
	}
	return nil
}

func (s *PushSubscriptions) List(_ context.Context, userID string) ([]push.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]push.Subscription(nil), s.subs[userID]...), nil
}

func dropEndpoint(list []push.Subscription, endpoint string) []push.Subscription {
	out := make([]push.Subscription, 0, len(list))
	for _, sub := range list {
		if sub.Endpoint != endpoint {
			out = append(out, sub)
		}
	}
	return out
}
