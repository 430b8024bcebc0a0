package service

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/findme/internal/model"
)

// Stats — счётчики для админской панели.
type Stats struct {
	Users int `json:"users"`
	Items int `json:"items"`
	Lost  int `json:"lost"`
	Found int `json:"found"`
}

func requireAdmin(actor model.Actor) error {
	if !actor.IsAdmin() {
		return newError(ErrForbidden, "Admin access required")
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, actor model.Actor) (_ *Stats, err error) {
	ctx, end := s.startSpan(ctx, "AdminStats")
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var st Stats
	if st.Users, err = s.users.CountUsers(ctx); err != nil {
		return nil, storeErr("service.Stats", err, "")
	}
	if st.Items, err = s.items.CountItems(ctx, ""); err != nil {
		return nil, storeErr("service.Stats", err, "")
	}
	if st.Lost, err = s.items.CountItems(ctx, model.ItemTypeLost); err != nil {
		return nil, storeErr("service.Stats", err, "")
	}
	if st.Found, err = s.items.CountItems(ctx, model.ItemTypeFound); err != nil {
		return nil, storeErr("service.Stats", err, "")
	}
	return &st, nil
}

func (s *Service) AdminListUsers(ctx context.Context, actor model.Actor) (_ []*model.User, err error) {
	ctx, end := s.startSpan(ctx, "AdminListUsers")
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, storeErr("service.AdminListUsers", err, "")
	}
	return users, nil
}

// AdminListItems — все предметы, новые первыми, с владельцами.
func (s *Service) AdminListItems(ctx context.Context, actor model.Actor) (_ []*model.Item, err error) {
	ctx, end := s.startSpan(ctx, "AdminListItems")
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	items, err := s.items.ListItems(ctx, model.ItemFilter{})
	if err != nil {
		return nil, storeErr("service.AdminListItems", err, msgItemNotFound)
	}
	s.populateItems(ctx, items...)
	return items, nil
}

func (s *Service) AdminDeleteItem(ctx context.Context, actor model.Actor, id string) (err error) {
	ctx, end := s.startSpan(ctx, "AdminDeleteItem", attribute.String("item.id", id))
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.DeleteItem(ctx, actor, id)
}

// AdminListClaims разворачивает заявки всех предметов в плоский список, новые первыми.
func (s *Service) AdminListClaims(ctx context.Context, actor model.Actor) (_ []*model.ClaimView, err error) {
	ctx, end := s.startSpan(ctx, "AdminListClaims")
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	items, err := s.items.ListItems(ctx, model.ItemFilter{})
	if err != nil {
		return nil, storeErr("service.AdminListClaims", err, msgItemNotFound)
	}
	var ids []string
	views := []*model.ClaimView{}
	for _, it := range items {
		for _, c := range it.Claims {
			views = append(views, &model.ClaimView{
				ID:        c.ID,
				Item:      it.Ref(),
				Owner:     it.Owner,
				Claimer:   c.Claimant,
				ClaimType: c.ClaimType,
				Message:   c.Message,
				Status:    c.Status,
				CreatedAt: c.CreatedAt,
			})
			ids = append(ids, it.Owner.ID, c.Claimant.ID)
		}
	}
	users := s.userSummaries(ctx, ids)
	for _, v := range views {
		fillUser(&v.Owner, users)
		fillUser(&v.Claimer, users)
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	return views, nil
}

// AdminListChats — все чаты с участниками и предметом, недавно обновлённые первыми.
func (s *Service) AdminListChats(ctx context.Context, actor model.Actor) (_ []*model.Chat, err error) {
	ctx, end := s.startSpan(ctx, "AdminListChats")
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	chats, err := s.chats.ListChats(ctx)
	if err != nil {
		return nil, storeErr("service.AdminListChats", err, msgChatNotFound)
	}
	s.populateChats(ctx, chats...)
	return chats, nil
}

// AdminChatMessages — полная история чата; счётчики непрочитанных не трогаются.
func (s *Service) AdminChatMessages(ctx context.Context, actor model.Actor, chatID string) (_ []*model.Message, err error) {
	ctx, end := s.startSpan(ctx, "AdminChatMessages", attribute.String("chat.id", chatID))
	defer end(&err)

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, storeErr("service.AdminChatMessages", err, msgChatNotFound)
	}
	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, storeErr("service.AdminChatMessages", err, msgChatNotFound)
	}
	s.populateMessages(ctx, msgs)
	return msgs, nil
}
