package service

import (
	"context"
	"testing"

	"github.com/findme/internal/model"
)

type stubImages struct{}

func (stubImages) ImageURL(_ context.Context, name string) string { return "https://cdn.test/" + name }

func TestCreateItemValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for name, in := range map[string]ItemInput{
		"missing title":    {Description: "d", Location: "l", Type: model.ItemTypeLost},
		"missing location": {Title: "t", Description: "d", Type: model.ItemTypeLost},
		"missing type":     {Title: "t", Description: "d", Location: "l"},
		"bad type":         {Title: "t", Description: "d", Location: "l", Type: "misplaced"},
	} {
		if _, err := f.svc.CreateItem(ctx, alice, in); err == nil {
			t.Fatalf("%s: expected error", name)
		} else {
			assertKind(t, err, ErrBadRequest)
		}
	}

	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)
	if it.Status != model.ItemStatusPending || it.Owner.Name != "Alice" || len(it.Claims) != 0 {
		t.Fatalf("created item = %+v", it)
	}
}

func TestItemOwnerOperations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	it := f.createItem(t, alice, "Wallet", model.ItemTypeLost)

	_, err := f.svc.GetItemForEdit(ctx, bob, it.ID)
	assertKind(t, err, ErrForbidden)
	_, err = f.svc.GetItemForEdit(ctx, alice, "missing")
	assertKind(t, err, ErrNotFound)

	upd := ItemInput{Title: "Brown wallet", Description: "leather", Location: "Station", Type: model.ItemTypeLost, Image: "w.jpg"}
	_, err = f.svc.UpdateItem(ctx, bob, it.ID, upd)
	assertKind(t, err, ErrForbidden)
	got, err := f.svc.UpdateItem(ctx, alice, it.ID, upd)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Brown wallet" || got.Image != "w.jpg" {
		t.Fatalf("updated = %+v", got)
	}
	upd.Image = ""
	got, _ = f.svc.UpdateItem(ctx, alice, it.ID, upd)
	if got.Image != "w.jpg" {
		t.Fatalf("empty image must keep the previous one, got %q", got.Image)
	}

	assertKind(t, f.svc.DeleteItem(ctx, bob, it.ID), ErrForbidden)
	if err := f.svc.DeleteItem(ctx, alice, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.svc.GetItemForEdit(ctx, alice, it.ID)
	assertKind(t, err, ErrNotFound)
}

func TestListItemsNewestFirstWithImages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.svc.images = stubImages{}
	ctx := context.Background()

	f.createItem(t, alice, "old", model.ItemTypeLost)
	newer, err := f.svc.CreateItem(ctx, bob, ItemInput{Title: "new", Description: "d", Location: "l", Type: model.ItemTypeFound, Image: "n.png"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	items, err := f.svc.ListItems(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != newer.ID {
		t.Fatalf("items not newest first")
	}
	if items[0].ImageURL != "https://cdn.test/n.png" || items[1].ImageURL != "" {
		t.Fatalf("image urls = %q %q", items[0].ImageURL, items[1].ImageURL)
	}

	mine, _ := f.svc.ListMyItems(ctx, alice)
	if len(mine) != 1 || mine[0].Title != "old" {
		t.Fatalf("my items = %+v", mine)
	}
}
