package service

import (
	"context"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
)

// Заполнение ссылок сводками для ответов. Ошибка выборки пользователей не
// роняет операцию: ссылки остаются голыми id.

func (s *Service) userSummaries(ctx context.Context, ids []string) map[string]*model.User {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.users.GetUsers(ctx, uniq(ids))
	if err != nil {
		logger.Errorf("service: populate users: %v", err)
		return nil
	}
	return users
}

func fillUser(ref *model.UserRef, users map[string]*model.User) {
	if u, ok := users[ref.ID]; ok {
		*ref = u.Summary()
	}
}

func (s *Service) populateItems(ctx context.Context, items ...*model.Item) {
	var ids []string
	for _, it := range items {
		ids = append(ids, it.Owner.ID)
		for _, c := range it.Claims {
			ids = append(ids, c.Claimant.ID)
		}
	}
	users := s.userSummaries(ctx, ids)
	for _, it := range items {
		fillUser(&it.Owner, users)
		for i := range it.Claims {
			fillUser(&it.Claims[i].Claimant, users)
		}
		if s.images != nil && it.Image != "" {
			it.ImageURL = s.images.ImageURL(ctx, it.Image)
		}
	}
}

func (s *Service) itemSummaries(ctx context.Context, ids []string) map[string]*model.Item {
	if len(ids) == 0 {
		return nil
	}
	items, err := s.items.GetItems(ctx, uniq(ids))
	if err != nil {
		logger.Errorf("service: populate items: %v", err)
		return nil
	}
	return items
}

func fillItem(ref *model.ItemRef, items map[string]*model.Item) {
	if it, ok := items[ref.ID]; ok {
		*ref = it.Ref()
	}
}

func (s *Service) populateChats(ctx context.Context, chats ...*model.Chat) {
	var userIDs, itemIDs []string
	for _, c := range chats {
		itemIDs = append(itemIDs, c.Item.ID)
		for _, p := range c.Participants {
			userIDs = append(userIDs, p.ID)
		}
	}
	users := s.userSummaries(ctx, userIDs)
	items := s.itemSummaries(ctx, itemIDs)
	for _, c := range chats {
		fillItem(&c.Item, items)
		for i := range c.Participants {
			fillUser(&c.Participants[i], users)
		}
	}
}

func (s *Service) populateMessages(ctx context.Context, msgs []*model.Message) {
	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.Sender.ID)
	}
	users := s.userSummaries(ctx, ids)
	for _, m := range msgs {
		fillUser(&m.Sender, users)
	}
}

func (s *Service) populateMatches(ctx context.Context, matches []*model.Match) {
	var userIDs, itemIDs []string
	for _, m := range matches {
		userIDs = append(userIDs, m.Requester.ID)
		itemIDs = append(itemIDs, m.Item.ID)
	}
	users := s.userSummaries(ctx, userIDs)
	items := s.itemSummaries(ctx, itemIDs)
	for _, m := range matches {
		fillUser(&m.Requester, users)
		fillItem(&m.Item, items)
	}
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
