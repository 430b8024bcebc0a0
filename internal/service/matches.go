package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
	"github.com/findme/internal/storage"
)

const (
	msgMatchNotFound = "Match not found"
	msgItemResponded = "Someone responded to your item"
)

// CreateMatch регистрирует отклик на предмет. Владелец для уведомления берётся из загруженного предмета.
func (s *Service) CreateMatch(ctx context.Context, actor model.Actor, itemID string, t model.ItemType) (_ *model.Match, err error) {
	ctx, end := s.startSpan(ctx, "CreateMatch",
		attribute.String("item.id", itemID), attribute.String("user.id", actor.UserID))
	defer end(&err)

	if !t.Valid() {
		return nil, newError(ErrBadRequest, "type must be lost or found")
	}
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, storeErr("service.CreateMatch", err, msgItemNotFound)
	}
	now := s.now()
	m := &model.Match{
		ID:        s.newID(),
		Item:      model.ItemRef{ID: it.ID},
		Requester: model.UserRef{ID: actor.UserID},
		Type:      t,
		Status:    model.MatchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.matches.CreateMatch(ctx, m); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, newError(ErrConflict, "You already claimed this item")
		}
		return nil, storeErr("service.CreateMatch", err, msgMatchNotFound)
	}

	if _, err := s.CreateNotification(ctx, it.Owner.ID, msgItemResponded, defaultNotificationLink); err != nil {
		logger.Errorf("service: notify owner %s about match %s: %v", it.Owner.ID, m.ID, err)
	}
	s.publish(ctx, EventMatchCreated, m, it.Owner.ID)
	return m, nil
}

// ListMyItemMatches — отклики на предметы actor с заявителем и кратким описанием предмета.
func (s *Service) ListMyItemMatches(ctx context.Context, actor model.Actor) (_ []*model.Match, err error) {
	ctx, end := s.startSpan(ctx, "ListMyItemMatches", attribute.String("user.id", actor.UserID))
	defer end(&err)

	items, err := s.items.ListItems(ctx, model.ItemFilter{OwnerID: actor.UserID})
	if err != nil {
		return nil, storeErr("service.ListMyItemMatches", err, msgItemNotFound)
	}
	if len(items) == 0 {
		return []*model.Match{}, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	matches, err := s.matches.ListMatchesByItems(ctx, ids)
	if err != nil {
		return nil, storeErr("service.ListMyItemMatches", err, msgMatchNotFound)
	}
	s.populateMatches(ctx, matches)
	return matches, nil
}

// AcceptMatch переводит отклик в accepted. Предмет и его заявки не меняются.
// Принять может владелец предмета или администратор.
func (s *Service) AcceptMatch(ctx context.Context, actor model.Actor, matchID string) (_ *model.Match, err error) {
	ctx, end := s.startSpan(ctx, "AcceptMatch", attribute.String("match.id", matchID))
	defer end(&err)

	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storeErr("service.AcceptMatch", err, msgMatchNotFound)
	}
	if !actor.IsAdmin() {
		it, err := s.items.GetItem(ctx, m.Item.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, storeErr("service.AcceptMatch", err, msgItemNotFound)
		}
		if it == nil || it.Owner.ID != actor.UserID {
			return nil, newError(ErrForbidden, "Not authorized")
		}
	}
	if m.Status == model.MatchStatusAccepted {
		s.populateMatches(ctx, []*model.Match{m})
		return m, nil
	}
	m, err = s.matches.SetMatchStatus(ctx, matchID, model.MatchStatusAccepted, s.now())
	if err != nil {
		return nil, storeErr("service.AcceptMatch", err, msgMatchNotFound)
	}
	s.populateMatches(ctx, []*model.Match{m})
	s.publish(ctx, EventMatchAccepted, m, m.Requester.ID)
	return m, nil
}
