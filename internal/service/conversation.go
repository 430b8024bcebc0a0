package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
)

const (
	msgChatNotFound   = "Chat not found"
	msgNewChatMessage = "You have a new chat message"
)

// GetOrCreateChat возвращает единственный чат по предмету и паре участников
// (порядок участников не важен), создавая его с нулевыми счётчиками.
func (s *Service) GetOrCreateChat(ctx context.Context, itemID, userA, userB string) (_ *model.Chat, err error) {
	ctx, end := s.startSpan(ctx, "GetOrCreateChat", attribute.String("item.id", itemID))
	defer end(&err)

	if userA == "" || userB == "" || userA == userB {
		return nil, newError(ErrBadRequest, "chat needs two different participants")
	}
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, storeErr("service.GetOrCreateChat", err, msgItemNotFound)
	}
	now := s.now()
	chat, err := s.chats.FindOrCreateChat(ctx, &model.Chat{
		ID:           s.newID(),
		Item:         model.ItemRef{ID: itemID},
		Participants: []model.UserRef{{ID: userA}, {ID: userB}},
		UnreadCounts: map[string]int{userA: 0, userB: 0},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, storeErr("service.GetOrCreateChat", err, msgChatNotFound)
	}
	s.populateChats(ctx, chat)
	return chat, nil
}

// ListMyChats — чаты пользователя, недавно обновлённые первыми.
func (s *Service) ListMyChats(ctx context.Context, actor model.Actor) (_ []*model.Chat, err error) {
	ctx, end := s.startSpan(ctx, "ListMyChats", attribute.String("user.id", actor.UserID))
	defer end(&err)

	chats, err := s.chats.ListChatsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("service.ListMyChats", err, msgChatNotFound)
	}
	s.populateChats(ctx, chats...)
	return chats, nil
}

// GetMessages отдаёт историю участнику и обнуляет его счётчик непрочитанных.
func (s *Service) GetMessages(ctx context.Context, actor model.Actor, chatID string) (_ []*model.Message, err error) {
	ctx, end := s.startSpan(ctx, "GetMessages", attribute.String("chat.id", chatID))
	defer end(&err)

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, storeErr("service.GetMessages", err, msgChatNotFound)
	}
	if !chat.HasParticipant(actor.UserID) {
		return nil, newError(ErrForbidden, "Not a chat participant")
	}
	msgs, err := s.chats.ReadMessages(ctx, chatID, actor.UserID)
	if err != nil {
		return nil, storeErr("service.GetMessages", err, msgChatNotFound)
	}
	s.populateMessages(ctx, msgs)
	return msgs, nil
}

// SendMessage добавляет сообщение, увеличивает счётчик получателя и уведомляет его.
func (s *Service) SendMessage(ctx context.Context, actor model.Actor, chatID, text string) (_ *model.Message, err error) {
	ctx, end := s.startSpan(ctx, "SendMessage", attribute.String("chat.id", chatID))
	defer end(&err)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, newError(ErrBadRequest, "Message text is required")
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, storeErr("service.SendMessage", err, msgChatNotFound)
	}
	if !chat.HasParticipant(actor.UserID) {
		return nil, newError(ErrForbidden, "Not a chat participant")
	}
	receiver := chat.Counterpart(actor.UserID)
	if receiver == "" {
		return nil, newError(ErrBadRequest, "Chat has no receiver")
	}
	msg := &model.Message{
		ID:        s.newID(),
		ChatID:    chatID,
		Sender:    model.UserRef{ID: actor.UserID},
		Text:      text,
		CreatedAt: s.now(),
	}
	chat, err = s.chats.AppendMessage(ctx, msg, receiver)
	if err != nil {
		return nil, storeErr("service.SendMessage", err, msgChatNotFound)
	}

	if _, err := s.CreateNotification(ctx, receiver, msgNewChatMessage, "/chat/"+chatID); err != nil {
		logger.Errorf("service: notify %s about chat %s: %v", receiver, chatID, err)
	}
	s.populateMessages(ctx, []*model.Message{msg})
	s.publish(ctx, EventChatMessage, ChatMessageEvent{Chat: chat, Message: msg, ReceiverID: receiver},
		actor.UserID, receiver)
	return msg, nil
}

// UnreadTotal — сумма непрочитанных сообщений пользователя по всем его чатам.
func (s *Service) UnreadTotal(ctx context.Context, actor model.Actor) (_ int, err error) {
	ctx, end := s.startSpan(ctx, "UnreadTotal", attribute.String("user.id", actor.UserID))
	defer end(&err)

	chats, err := s.chats.ListChatsByUser(ctx, actor.UserID)
	if err != nil {
		return 0, storeErr("service.UnreadTotal", err, msgChatNotFound)
	}
	total := 0
	for _, c := range chats {
		total += c.UnreadCounts[actor.UserID]
	}
	return total, nil
}

// Counterpart возвращает второго участника чата; ErrForbidden, если userID не участник.
func (s *Service) Counterpart(ctx context.Context, chatID, userID string) (string, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return "", storeErr("service.Counterpart", err, msgChatNotFound)
	}
	other := chat.Counterpart(userID)
	if other == "" {
		return "", newError(ErrForbidden, "Not a chat participant")
	}
	return other, nil
}
