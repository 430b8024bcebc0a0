package ws

type EventType string

// Сервер -> клиент.
const (
	EventNotification  EventType = "notification"
	EventNewMessage    EventType = "new_message"
	EventUnreadChanged EventType = "unread_changed"
	EventClaimUpdated  EventType = "claim_updated"
	EventTyping        EventType = "typing"
	EventError         EventType = "error"
)

// Клиент -> сервер.
const (
	EventPing EventType = "ping"
	EventPong EventType = "pong"
)

// IncomingMessage — событие от клиента. Поддерживаются typing и ping.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chatId,omitempty"`
}

// OutgoingMessage — событие клиенту.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// UnreadChangedPayload — новый счётчик непрочитанных в чате.
type UnreadChangedPayload struct {
	ChatID string `json:"chatId"`
	Unread int    `json:"unread"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}
