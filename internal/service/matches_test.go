package service

import (
	"context"
	"strings"
	"testing"

	"github.com/findme/internal/model"
)

func TestCreateMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Dog collar", model.ItemTypeLost)

	m, err := f.svc.CreateMatch(ctx, bob, it.ID, model.ItemTypeFound)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Status != model.MatchStatusPending || m.Requester.ID != "bob" || m.Item.ID != it.ID {
		t.Fatalf("match = %+v", m)
	}

	notes, _ := f.svc.ListUnread(ctx, alice)
	if len(notes) != 1 || notes[0].Message != "Someone responded to your item" || notes[0].Link != "/dashboard" {
		t.Fatalf("owner notifications = %+v", notes)
	}

	_, err = f.svc.CreateMatch(ctx, bob, it.ID, model.ItemTypeFound)
	assertKind(t, err, ErrConflict)
	if _, err := f.svc.CreateMatch(ctx, bob, it.ID, model.ItemTypeLost); err != nil {
		t.Fatalf("other type must be allowed: %v", err)
	}
	_, err = f.svc.CreateMatch(ctx, bob, "missing", model.ItemTypeFound)
	assertKind(t, err, ErrNotFound)
	_, err = f.svc.CreateMatch(ctx, bob, it.ID, "maybe")
	assertKind(t, err, ErrBadRequest)

	stored := f.item(t, it.ID)
	if stored.Status != model.ItemStatusPending || len(stored.Claims) != 0 {
		t.Fatalf("match ledger must not touch item: %+v", stored)
	}
}

func TestListMyItemMatches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createItem(t, alice, "Dog collar", model.ItemTypeLost)
	theirs := f.createItem(t, carol, "Glove", model.ItemTypeFound)

	f.svc.CreateMatch(ctx, bob, mine.ID, model.ItemTypeFound)
	f.svc.CreateMatch(ctx, bob, theirs.ID, model.ItemTypeLost)

	matches, err := f.svc.ListMyItemMatches(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.Requester.Name != "Bob" || m.Requester.Email != "bob@example.com" {
		t.Fatalf("requester not populated: %+v", m.Requester)
	}
	if m.Item.Title != "Dog collar" || m.Item.Type != model.ItemTypeLost {
		t.Fatalf("item not populated: %+v", m.Item)
	}

	empty, err := f.svc.ListMyItemMatches(ctx, bob)
	if err != nil || len(empty) != 0 {
		t.Fatalf("bob owns no items: %v %v", empty, err)
	}
}

func TestAcceptMatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Dog collar", model.ItemTypeLost)
	m, _ := f.svc.CreateMatch(ctx, bob, it.ID, model.ItemTypeFound)

	_, err := f.svc.AcceptMatch(ctx, bob, m.ID)
	assertKind(t, err, ErrForbidden)
	_, err = f.svc.AcceptMatch(ctx, alice, "missing")
	assertKind(t, err, ErrNotFound)

	got, err := f.svc.AcceptMatch(ctx, alice, m.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != model.MatchStatusAccepted {
		t.Fatalf("status = %q", got.Status)
	}
	if _, err := f.svc.AcceptMatch(ctx, admin, m.ID); err != nil {
		t.Fatalf("admin accept of accepted match: %v", err)
	}
	if st := f.item(t, it.ID).Status; st != model.ItemStatusPending {
		t.Fatalf("accept changed item status to %q", st)
	}
	if evs := f.pub.ofType(EventMatchAccepted); len(evs) != 1 {
		t.Fatalf("match.accepted events = %d, want 1", len(evs))
	}
}

// Payload уходит в горутину кодирования; сервис не должен трогать его после публикации.
// Ловится под -race.
func TestAcceptMatchPublishesFinishedPayload(t *testing.T) {
	t.Parallel()
	pub := &marshalingPublisher{}
	f := newFixture(t, WithPublisher(pub))
	ctx := context.Background()
	it := f.createItem(t, alice, "Dog collar", model.ItemTypeLost)

	m, err := f.svc.CreateMatch(ctx, bob, it.ID, model.ItemTypeFound)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.AcceptMatch(ctx, alice, m.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	encoded := pub.wait()[EventMatchAccepted]
	if len(encoded) != 1 {
		t.Fatalf("accepted events = %d, want 1", len(encoded))
	}
	if !strings.Contains(string(encoded[0]), `"name":"Bob"`) {
		t.Fatalf("payload must carry populated requester: %s", encoded[0])
	}
	if !strings.Contains(string(encoded[0]), `"status":"accepted"`) {
		t.Fatalf("payload status: %s", encoded[0])
	}
}
