package service

import (
	"context"
	"testing"
)

func TestCreateNotification(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.CreateNotification(ctx, "bob", "Item found", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Link != "/dashboard" || n.IsRead {
		t.Fatalf("notification = %+v", n)
	}
	if _, err := f.svc.CreateNotification(ctx, "bob", "Item found", "/items/1"); err != nil {
		t.Fatalf("duplicate text must not be deduplicated: %v", err)
	}
	_, err = f.svc.CreateNotification(ctx, "", "hello", "")
	assertKind(t, err, ErrBadRequest)
	_, err = f.svc.CreateNotification(ctx, "bob", " ", "")
	assertKind(t, err, ErrBadRequest)

	list, err := f.svc.ListUnread(ctx, bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Link != "/items/1" {
		t.Fatalf("list must be newest first: %+v", list)
	}
	if evs := f.pub.ofType(EventNotificationCreated); len(evs) != 2 || evs[0].Recipients[0] != "bob" {
		t.Fatalf("notification.created events = %+v", evs)
	}
}

func TestMarkRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	n, _ := f.svc.CreateNotification(ctx, "bob", "hello", "")
	other, _ := f.svc.CreateNotification(ctx, "bob", "again", "")

	assertKind(t, f.svc.MarkRead(ctx, alice, n.ID), ErrForbidden)
	assertKind(t, f.svc.MarkRead(ctx, bob, "missing"), ErrNotFound)

	if err := f.svc.MarkRead(ctx, bob, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := f.svc.MarkRead(ctx, bob, n.ID); err != nil {
		t.Fatalf("second mark read must be a no-op: %v", err)
	}
	if err := f.svc.MarkRead(ctx, admin, other.ID); err != nil {
		t.Fatalf("admin mark read: %v", err)
	}

	list, _ := f.svc.ListUnread(ctx, bob)
	if len(list) != 0 {
		t.Fatalf("unread = %+v, want none", list)
	}
	if count, _ := f.svc.UnreadCount(ctx, bob); count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}
