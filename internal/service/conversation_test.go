package service

import (
	"context"
	"sync"
	"testing"

	"github.com/findme/internal/model"
)

func TestGetOrCreateChat_IdempotentInEitherOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)

	first, err := f.svc.GetOrCreateChat(ctx, it.ID, "alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := f.svc.GetOrCreateChat(ctx, it.ID, "alice", "bob")
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	swapped, err := f.svc.GetOrCreateChat(ctx, it.ID, "bob", "alice")
	if err != nil {
		t.Fatalf("swapped: %v", err)
	}
	if first.ID != again.ID || first.ID != swapped.ID {
		t.Fatalf("chat ids %q %q %q must match", first.ID, again.ID, swapped.ID)
	}
	if first.LastMessage != "" || first.UnreadCounts["alice"] != 0 || first.UnreadCounts["bob"] != 0 {
		t.Fatalf("new chat = %+v", first)
	}
	if first.Item.Title != "Wallet" {
		t.Fatalf("item summary not populated: %+v", first.Item)
	}
}

func TestGetOrCreateChat_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)

	_, err := f.svc.GetOrCreateChat(ctx, it.ID, "alice", "alice")
	assertKind(t, err, ErrBadRequest)
	_, err = f.svc.GetOrCreateChat(ctx, "missing", "alice", "bob")
	assertKind(t, err, ErrNotFound)
}

func TestSendMessage_UnreadBookkeeping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)
	chat, err := f.svc.GetOrCreateChat(ctx, it.ID, "alice", "bob")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	msg, err := f.svc.SendMessage(ctx, alice, chat.ID, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Sender.ID != "alice" || msg.Sender.Name != "Alice" || msg.Text != "hi" {
		t.Fatalf("message = %+v", msg)
	}
	stored := f.chat(t, chat.ID)
	if stored.UnreadCounts["bob"] != 1 || stored.UnreadCounts["alice"] != 0 {
		t.Fatalf("unread = %v, want bob=1 alice=0", stored.UnreadCounts)
	}
	if stored.LastMessage != "hi" {
		t.Fatalf("lastMessage = %q", stored.LastMessage)
	}

	notes, err := f.svc.ListUnread(ctx, bob)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Message != "You have a new chat message" || notes[0].Link != "/chat/"+chat.ID {
		t.Fatalf("notifications = %+v", notes)
	}

	if total, _ := f.svc.UnreadTotal(ctx, bob); total != 1 {
		t.Fatalf("unread total = %d, want 1", total)
	}

	msgs, err := f.svc.GetMessages(ctx, bob, chat.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Fatalf("messages = %+v", msgs)
	}
	if got := f.chat(t, chat.ID).UnreadCounts["bob"]; got != 0 {
		t.Fatalf("bob unread after read = %d, want 0", got)
	}
	if evs := f.pub.ofType(EventChatMessage); len(evs) != 1 || len(evs[0].Recipients) != 2 {
		t.Fatalf("chat.message events = %+v", evs)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)
	chat, _ := f.svc.GetOrCreateChat(ctx, it.ID, "alice", "bob")

	_, err := f.svc.SendMessage(ctx, alice, "missing", "hi")
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.SendMessage(ctx, carol, chat.ID, "hi")
	assertKind(t, err, ErrForbidden)
	_, err = f.svc.SendMessage(ctx, alice, chat.ID, "   ")
	assertKind(t, err, ErrBadRequest)
	_, err = f.svc.GetMessages(ctx, carol, chat.ID)
	assertKind(t, err, ErrForbidden)
	_, err = f.svc.GetMessages(ctx, alice, "missing")
	assertKind(t, err, ErrNotFound)

	stored := f.chat(t, chat.ID)
	if stored.UnreadCounts["alice"] != 0 || stored.UnreadCounts["bob"] != 0 || stored.LastMessage != "" {
		t.Fatalf("failed sends modified chat: %+v", stored)
	}
}

func TestSendMessage_ConcurrentSendersBothPersisted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)
	chat, _ := f.svc.GetOrCreateChat(ctx, it.ID, "alice", "bob")

	const perSender = 25
	var wg sync.WaitGroup
	for _, sender := range []model.Actor{alice, bob} {
		for i := 0; i < perSender; i++ {
			wg.Add(1)
			go func(a model.Actor) {
				defer wg.Done()
				if _, err := f.svc.SendMessage(ctx, a, chat.ID, "ping from "+a.UserID); err != nil {
					t.Errorf("send: %v", err)
				}
			}(sender)
		}
	}
	wg.Wait()

	msgs, err := f.store.ListMessages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2*perSender {
		t.Fatalf("messages = %d, want %d", len(msgs), 2*perSender)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatal("messages must be ordered by createdAt")
		}
	}
	stored := f.chat(t, chat.ID)
	if stored.UnreadCounts["alice"] != perSender || stored.UnreadCounts["bob"] != perSender {
		t.Fatalf("unread = %v, want %d each", stored.UnreadCounts, perSender)
	}
}

func TestListMyChats_RecentFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	wallet := f.createItem(t, alice, "Wallet", model.ItemTypeLost)
	keys := f.createItem(t, carol, "Keys", model.ItemTypeFound)

	older, _ := f.svc.GetOrCreateChat(ctx, wallet.ID, "alice", "bob")
	newer, _ := f.svc.GetOrCreateChat(ctx, keys.ID, "carol", "bob")
	if _, err := f.svc.GetOrCreateChat(ctx, keys.ID, "carol", "alice"); err != nil {
		t.Fatalf("unrelated chat: %v", err)
	}

	chats, err := f.svc.ListMyChats(ctx, bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 2 || chats[0].ID != newer.ID || chats[1].ID != older.ID {
		t.Fatalf("order = %v", chatIDs(chats))
	}

	if _, err := f.svc.SendMessage(ctx, alice, older.ID, "any news?"); err != nil {
		t.Fatalf("send: %v", err)
	}
	chats, _ = f.svc.ListMyChats(ctx, bob)
	if chats[0].ID != older.ID {
		t.Fatalf("chat with latest message must come first, got %v", chatIDs(chats))
	}
	for _, p := range chats[0].Participants {
		if p.Name == "" {
			t.Fatalf("participant %s not populated", p.ID)
		}
	}
}

func TestUnreadTotalSumsAcrossChats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	wallet := f.createItem(t, alice, "Wallet", model.ItemTypeLost)
	keys := f.createItem(t, carol, "Keys", model.ItemTypeFound)
	c1, _ := f.svc.GetOrCreateChat(ctx, wallet.ID, "alice", "bob")
	c2, _ := f.svc.GetOrCreateChat(ctx, keys.ID, "carol", "bob")

	f.svc.SendMessage(ctx, alice, c1.ID, "one")
	f.svc.SendMessage(ctx, alice, c1.ID, "two")
	f.svc.SendMessage(ctx, carol, c2.ID, "three")
	f.svc.SendMessage(ctx, bob, c2.ID, "reply")

	if total, _ := f.svc.UnreadTotal(ctx, bob); total != 3 {
		t.Fatalf("bob unread = %d, want 3", total)
	}
	if total, _ := f.svc.UnreadTotal(ctx, carol); total != 1 {
		t.Fatalf("carol unread = %d, want 1", total)
	}
	if total, _ := f.svc.UnreadTotal(ctx, admin); total != 0 {
		t.Fatalf("admin unread = %d, want 0", total)
	}
}

func chatIDs(chats []*model.Chat) []string {
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	return ids
}
