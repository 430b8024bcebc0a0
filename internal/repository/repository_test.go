package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findme/internal/model"
	"github.com/findme/migrations"
)

// testPool подключается к FINDME_TEST_DATABASE_URL; без неё тесты пропускаются.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("FINDME_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FINDME_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func newItem(owner string) *model.Item {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Item{
		ID:          uuid.NewString(),
		Title:       "Black wallet",
		Description: "leather",
		Location:    "Central park",
		Type:        model.ItemTypeLost,
		Status:      model.ItemStatusPending,
		Owner:       model.UserRef{ID: owner},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestItemMutateKeepsClaimOrderAndUniqueness(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	items := NewItemRepository(pool)

	owner := uuid.NewString()
	it := newItem(owner)
	if err := items.CreateItem(ctx, it); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimants := []string{uuid.NewString(), uuid.NewString()}
	for _, u := range claimants {
		_, err := items.MutateItem(ctx, it.ID, func(it *model.Item) error {
			now := time.Now().UTC()
			it.Claims = append(it.Claims, model.Claim{
				ID: uuid.NewString(), Claimant: model.UserRef{ID: u}, ClaimType: model.ItemTypeFound,
				Status: model.ClaimStatusPending, CreatedAt: now, UpdatedAt: now,
			})
			it.Status = model.ItemStatusMatched
			return nil
		})
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
	}

	got, err := items.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.ItemStatusMatched || len(got.Claims) != 2 {
		t.Fatalf("item = %+v", got)
	}
	for i, u := range claimants {
		if got.Claims[i].Claimant.ID != u {
			t.Fatalf("claim %d by %s, want %s", i, got.Claims[i].Claimant.ID, u)
		}
	}

	_, err = items.MutateItem(ctx, it.ID, func(it *model.Item) error {
		now := time.Now().UTC()
		it.Claims = append(it.Claims, model.Claim{
			ID: uuid.NewString(), Claimant: model.UserRef{ID: claimants[0]}, ClaimType: model.ItemTypeFound,
			Status: model.ClaimStatusPending, CreatedAt: now, UpdatedAt: now,
		})
		return nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate claim err = %v, want ErrConflict", err)
	}

	sentinel := errors.New("abort")
	if _, err := items.MutateItem(ctx, it.ID, func(it *model.Item) error {
		it.Status = model.ItemStatusResolved
		return sentinel
	}); !errors.Is(err, sentinel) {
		t.Fatalf("fn err = %v", err)
	}
	if got, _ := items.GetItem(ctx, it.ID); got.Status != model.ItemStatusMatched {
		t.Fatalf("failed mutation persisted status %s", got.Status)
	}

	if _, err := items.MutateItem(ctx, uuid.NewString(), func(*model.Item) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing item err = %v", err)
	}
}

func TestChatFindOrCreateAndConcurrentAppend(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	chats := NewChatRepository(pool)

	itemID, a, b := uuid.NewString(), uuid.NewString(), uuid.NewString()
	now := time.Now().UTC()
	mk := func(x, y string) *model.Chat {
		return &model.Chat{
			ID: uuid.NewString(), Item: model.ItemRef{ID: itemID},
			Participants: []model.UserRef{{ID: x}, {ID: y}},
			CreatedAt:    now, UpdatedAt: now,
		}
	}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a, b
			if i%2 == 1 {
				x, y = b, a
			}
			c, err := chats.FindOrCreateChat(ctx, mk(x, y))
			if err != nil {
				t.Errorf("find or create: %v", err)
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("chat ids differ: %v", ids)
		}
	}

	const perSide = 10
	for _, sender := range []string{a, b} {
		receiver := b
		if sender == b {
			receiver = a
		}
		for i := 0; i < perSide; i++ {
			wg.Add(1)
			go func(sender, receiver string) {
				defer wg.Done()
				m := &model.Message{
					ID: uuid.NewString(), ChatID: ids[0], Sender: model.UserRef{ID: sender},
					Text: "hi", CreatedAt: time.Now().UTC(),
				}
				if _, err := chats.AppendMessage(ctx, m, receiver); err != nil {
					t.Errorf("append: %v", err)
				}
			}(sender, receiver)
		}
	}
	wg.Wait()

	c, err := chats.GetChat(ctx, ids[0])
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if c.UnreadCounts[a] != perSide || c.UnreadCounts[b] != perSide {
		t.Fatalf("unread = %v", c.UnreadCounts)
	}
	msgs, err := chats.ReadMessages(ctx, ids[0], a)
	if err != nil || len(msgs) != 2*perSide {
		t.Fatalf("messages = %d, err %v", len(msgs), err)
	}
	if c, _ := chats.GetChat(ctx, ids[0]); c.UnreadCounts[a] != 0 || c.UnreadCounts[b] != perSide {
		t.Fatalf("after reset unread = %v", c.UnreadCounts)
	}
}

func TestMatchUniqueAndUserUpsert(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	matches := NewMatchRepository(pool)
	users := NewUserRepository(pool)

	now := time.Now().UTC()
	m := &model.Match{
		ID: uuid.NewString(), Item: model.ItemRef{ID: uuid.NewString()}, Requester: model.UserRef{ID: uuid.NewString()},
		Type: model.ItemTypeFound, Status: model.MatchStatusPending, CreatedAt: now, UpdatedAt: now,
	}
	if err := matches.CreateMatch(ctx, m); err != nil {
		t.Fatalf("create match: %v", err)
	}
	dup := *m
	dup.ID = uuid.NewString()
	if err := matches.CreateMatch(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate match err = %v", err)
	}

	id := uuid.NewString()
	first, err := users.UpsertUser(ctx, &model.User{ID: id, Name: "Alice", Email: "a@x", Role: model.RoleUser, CreatedAt: now})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := users.UpsertUser(ctx, &model.User{ID: id, Role: model.RoleAdmin, CreatedAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if second.Name != "Alice" || second.Role != model.RoleAdmin || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("upserted = %+v", second)
	}
}
