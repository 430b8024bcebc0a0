package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/findme/internal/model"
)

// ItemInput — поля предмета при создании и редактировании. Пустой Image при
// редактировании оставляет прежнее изображение.
type ItemInput struct {
	Title       string
	Description string
	Location    string
	ContactInfo string
	Type        model.ItemType
	Image       string
}

func (in *ItemInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	if in.Title == "" || in.Description == "" || in.Location == "" || in.Type == "" {
		return newError(ErrBadRequest, "All fields are required")
	}
	if !in.Type.Valid() {
		return newError(ErrBadRequest, "Invalid item type")
	}
	return nil
}

// mutateErr пропускает доменные ошибки из fn как есть, остальные переводит через storeErr.
func mutateErr(op string, err error, notFound string) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return storeErr(op, err, notFound)
}

const msgItemNotFound = "Item not found"

func (s *Service) CreateItem(ctx context.Context, actor model.Actor, in ItemInput) (_ *model.Item, err error) {
	ctx, end := s.startSpan(ctx, "CreateItem", attribute.String("user.id", actor.UserID))
	defer end(&err)

	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now()
	it := &model.Item{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		ContactInfo: in.ContactInfo,
		Image:       in.Image,
		Type:        in.Type,
		Status:      model.ItemStatusPending,
		Owner:       model.UserRef{ID: actor.UserID},
		Claims:      []model.Claim{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.items.CreateItem(ctx, it); err != nil {
		return nil, storeErr("service.CreateItem", err, msgItemNotFound)
	}
	s.populateItems(ctx, it)
	return it, nil
}

// ListItems — публичная лента, новые первыми, с владельцами и заявителями.
func (s *Service) ListItems(ctx context.Context) (_ []*model.Item, err error) {
	ctx, end := s.startSpan(ctx, "ListItems")
	defer end(&err)

	items, err := s.items.ListItems(ctx, model.ItemFilter{})
	if err != nil {
		return nil, storeErr("service.ListItems", err, msgItemNotFound)
	}
	s.populateItems(ctx, items...)
	return items, nil
}

func (s *Service) ListMyItems(ctx context.Context, actor model.Actor) (_ []*model.Item, err error) {
	ctx, end := s.startSpan(ctx, "ListMyItems", attribute.String("user.id", actor.UserID))
	defer end(&err)

	items, err := s.items.ListItems(ctx, model.ItemFilter{OwnerID: actor.UserID})
	if err != nil {
		return nil, storeErr("service.ListMyItems", err, msgItemNotFound)
	}
	s.populateItems(ctx, items...)
	return items, nil
}

// GetItemForEdit отдаёт предмет только владельцу.
func (s *Service) GetItemForEdit(ctx context.Context, actor model.Actor, id string) (_ *model.Item, err error) {
	ctx, end := s.startSpan(ctx, "GetItemForEdit", attribute.String("item.id", id))
	defer end(&err)

	it, err := s.items.GetItem(ctx, id)
	if err != nil {
		return nil, storeErr("service.GetItemForEdit", err, msgItemNotFound)
	}
	if it.Owner.ID != actor.UserID {
		return nil, newError(ErrForbidden, "Not authorized")
	}
	s.populateItems(ctx, it)
	return it, nil
}

func (s *Service) UpdateItem(ctx context.Context, actor model.Actor, id string, in ItemInput) (_ *model.Item, err error) {
	ctx, end := s.startSpan(ctx, "UpdateItem", attribute.String("item.id", id))
	defer end(&err)

	if err := in.normalize(); err != nil {
		return nil, err
	}
	it, err := s.items.MutateItem(ctx, id, func(it *model.Item) error {
		if it.Owner.ID != actor.UserID {
			return newError(ErrForbidden, "Not authorized")
		}
		it.Title = in.Title
		it.Description = in.Description
		it.Location = in.Location
		it.ContactInfo = in.ContactInfo
		it.Type = in.Type
		if in.Image != "" {
			it.Image = in.Image
		}
		it.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, mutateErr("service.UpdateItem", err, msgItemNotFound)
	}
	s.populateItems(ctx, it)
	return it, nil
}

// DeleteItem удаляет предмет вместе с заявками. Разрешено владельцу и администратору.
func (s *Service) DeleteItem(ctx context.Context, actor model.Actor, id string) (err error) {
	ctx, end := s.startSpan(ctx, "DeleteItem", attribute.String("item.id", id))
	defer end(&err)

	it, err := s.items.GetItem(ctx, id)
	if err != nil {
		return storeErr("service.DeleteItem", err, msgItemNotFound)
	}
	if it.Owner.ID != actor.UserID && !actor.IsAdmin() {
		return newError(ErrForbidden, "Not authorized")
	}
	if err := s.items.DeleteItem(ctx, id); err != nil {
		return storeErr("service.DeleteItem", err, msgItemNotFound)
	}
	return nil
}
