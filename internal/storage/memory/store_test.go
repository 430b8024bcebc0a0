package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/findme/internal/model"
	"github.com/findme/internal/storage"
)

func newChat(id, item, a, b string) *model.Chat {
	return &model.Chat{
		ID:           id,
		Item:         model.ItemRef{ID: item},
		Participants: []model.UserRef{{ID: a}, {ID: b}},
		UnreadCounts: map[string]int{a: 0, b: 0},
	}
}

func TestFindOrCreateChatIgnoresParticipantOrder(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()

	first, err := s.FindOrCreateChat(ctx, newChat("chat-1", "item-1", "alice", "bob"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.FindOrCreateChat(ctx, newChat("chat-2", "item-1", "bob", "alice"))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("chat ids differ: %q vs %q", first.ID, second.ID)
	}
	other, err := s.FindOrCreateChat(ctx, newChat("chat-3", "item-2", "bob", "alice"))
	if err != nil {
		t.Fatalf("create other item chat: %v", err)
	}
	if other.ID != "chat-3" {
		t.Fatalf("other item must get its own chat, got %q", other.ID)
	}
}

func TestMutateItemDiscardsFailedMutation(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateItem(ctx, &model.Item{ID: "item-1", Title: "wallet", Status: model.ItemStatusPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	boom := errors.New("boom")
	_, err := s.MutateItem(ctx, "item-1", func(it *model.Item) error {
		it.Status = model.ItemStatusResolved
		it.Claims = append(it.Claims, model.Claim{ID: "c1"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	it, err := s.GetItem(ctx, "item-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it.Status != model.ItemStatusPending || len(it.Claims) != 0 {
		t.Fatalf("failed mutation leaked: %+v", it)
	}
}

func TestMutateItemSerializesConcurrentAppends(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateItem(ctx, &model.Item{ID: "item-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.MutateItem(ctx, "item-1", func(it *model.Item) error {
				it.Claims = append(it.Claims, model.Claim{})
				return nil
			}); err != nil {
				t.Errorf("mutate: %v", err)
			}
		}()
	}
	wg.Wait()
	it, _ := s.GetItem(ctx, "item-1")
	if len(it.Claims) != n {
		t.Fatalf("claims = %d, want %d", len(it.Claims), n)
	}
}

func TestCreateMatchRejectsDuplicateTuple(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	m := &model.Match{ID: "m1", Item: model.ItemRef{ID: "item-1"}, Requester: model.UserRef{ID: "bob"}, Type: model.ItemTypeFound}
	if err := s.CreateMatch(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := *m
	dup.ID = "m2"
	if err := s.CreateMatch(ctx, &dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate err = %v, want conflict", err)
	}
	other := *m
	other.ID = "m3"
	other.Type = model.ItemTypeLost
	if err := s.CreateMatch(ctx, &other); err != nil {
		t.Fatalf("different type must be allowed: %v", err)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.Allow(ctx, "ip:1", 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := r.Allow(ctx, "ip:1", 3, time.Minute); ok {
		t.Fatal("fourth request within window must be rejected")
	}
	if ok, _ := r.Allow(ctx, "ip:2", 3, time.Minute); !ok {
		t.Fatal("other key must not be limited")
	}
	now = now.Add(61 * time.Second)
	if ok, _ := r.Allow(ctx, "ip:1", 3, time.Minute); !ok {
		t.Fatal("window must slide")
	}
}

func TestReadMessagesResetsOnlyWhatWasRead(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	if _, err := s.FindOrCreateChat(ctx, newChat("chat-1", "item-1", "alice", "bob")); err != nil {
		t.Fatalf("create: %v", err)
	}

	const sends = 200
	var (
		wg       sync.WaitGroup
		lastSeen int
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < sends; i++ {
			m := &model.Message{ID: "m", ChatID: "chat-1", Sender: model.UserRef{ID: "bob"}, Text: "hi", CreatedAt: time.Now()}
			if _, err := s.AppendMessage(ctx, m, "alice"); err != nil {
				t.Errorf("append: %v", err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < sends/4; i++ {
			msgs, err := s.ReadMessages(ctx, "chat-1", "alice")
			if err != nil {
				t.Errorf("read: %v", err)
				return
			}
			lastSeen = len(msgs)
		}
	}()
	wg.Wait()

	c, _ := s.GetChat(ctx, "chat-1")
	if got, want := c.UnreadCounts["alice"], sends-lastSeen; got != want {
		t.Fatalf("unread = %d, want %d (sent %d, last read saw %d)", got, want, sends, lastSeen)
	}
	if c.UnreadCounts["bob"] != 0 {
		t.Fatalf("bob unread = %d", c.UnreadCounts["bob"])
	}
}

func TestItemWithoutClaimsKeepsEmptyList(t *testing.T) {
	t.Parallel()
	s := NewStore()
	ctx := context.Background()
	if err := s.CreateItem(ctx, &model.Item{ID: "item-1", Title: "wallet", Status: model.ItemStatusPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	it, err := s.GetItem(ctx, "item-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if it.Claims == nil {
		t.Fatal("claims must be an empty list, not nil")
	}
	list, _ := s.ListItems(ctx, model.ItemFilter{})
	if len(list) != 1 || list[0].Claims == nil {
		t.Fatalf("listed claims = %#v", list)
	}
}
