package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/findme/internal/model"
	"github.com/findme/internal/storage/memory"
)

// steppingClock advances by one second on every call, so creation order is observable.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) ofType(t EventType) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// marshalingPublisher кодирует payload в отдельной горутине, как это делает writePump хаба.
type marshalingPublisher struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	encoded map[EventType][][]byte
}

func (p *marshalingPublisher) Publish(_ context.Context, ev Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.encoded == nil {
			p.encoded = make(map[EventType][][]byte)
		}
		p.encoded[ev.Type] = append(p.encoded[ev.Type], b)
	}()
}

func (p *marshalingPublisher) wait() map[EventType][][]byte {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoded
}

type fixture struct {
	svc   *Service
	store *memory.Store
	pub   *recordingPublisher
}

var (
	alice = model.Actor{UserID: "alice", Role: model.RoleUser}
	bob   = model.Actor{UserID: "bob", Role: model.RoleUser}
	carol = model.Actor{UserID: "carol", Role: model.RoleUser}
	admin = model.Actor{UserID: "root", Role: model.RoleAdmin}
)

// newFixture собирает сервис на memory-хранилище; opts применяются после базовых.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	pub := &recordingPublisher{}
	base := []Option{
		WithPublisher(pub),
		WithClock(steppingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))),
		WithIDGenerator(sequentialIDs("id")),
	}
	svc := New(Stores{
		Items:         store,
		Chats:         store,
		Notifications: store,
		Matches:       store,
		Users:         store,
	}, append(base, opts...)...)
	for _, u := range []model.User{
		{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob", Email: "bob@example.com"},
		{ID: "carol", Name: "Carol", Email: "carol@example.com"},
		{ID: "root", Name: "Root", Email: "root@example.com", Role: model.RoleAdmin},
	} {
		if _, err := svc.EnsureUser(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	return &fixture{svc: svc, store: store, pub: pub}
}

func (f *fixture) createItem(t *testing.T, owner model.Actor, title string, typ model.ItemType) *model.Item {
	t.Helper()
	it, err := f.svc.CreateItem(context.Background(), owner, ItemInput{
		Title:       title,
		Description: title + " description",
		Location:    "Central park",
		ContactInfo: "call me",
		Type:        typ,
	})
	if err != nil {
		t.Fatalf("create item %q: %v", title, err)
	}
	return it
}

func (f *fixture) item(t *testing.T, id string) *model.Item {
	t.Helper()
	it, err := f.store.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("load item %s: %v", id, err)
	}
	return it
}

func (f *fixture) chat(t *testing.T, id string) *model.Chat {
	t.Helper()
	c, err := f.store.GetChat(context.Background(), id)
	if err != nil {
		t.Fatalf("load chat %s: %v", id, err)
	}
	return c
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
}
