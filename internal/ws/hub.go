package ws

import (
	"context"
	"sync"
	"time"

	"github.com/findme/internal/logger"
)

// ChatMembers отвечает, кому из участников чата переслать typing.
// Возвращает второго участника или ошибку, если userID не участник.
type ChatMembers interface {
	Counterpart(ctx context.Context, chatID, userID string) (string, error)
}

// ChatMembersFunc позволяет передать функцию как ChatMembers.
type ChatMembersFunc func(ctx context.Context, chatID, userID string) (string, error)

func (f ChatMembersFunc) Counterpart(ctx context.Context, chatID, userID string) (string, error) {
	return f(ctx, chatID, userID)
}

// Hub держит WebSocket-подключения по пользователям и доставляет им события.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	members    ChatMembers
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(members ChatMembers, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		members:    members,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	// Сетевой I/O вне мьютекса.
	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws: лимит подключений (%d), отказ user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
	logger.Debugf("ws: подключён user=%s", c.userID)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
	c.Close()
}

// Online сообщает, есть ли у пользователя активные подключения.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// HandleMessage обрабатывает событие от клиента.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventPing:
		h.sendToClient(c, OutgoingMessage{Type: EventPong})
	case EventTyping:
		h.handleTyping(ctx, c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.ChatID == "" || h.members == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	other, err := h.members.Counterpart(ctx, msg.ChatID, c.userID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "not a chat participant"})
		return
	}
	h.SendToUser(other, OutgoingMessage{Type: EventTyping, Payload: TypingPayload{ChatID: msg.ChatID, UserID: c.userID}})
}

// SendToUser отправляет событие во все подключения пользователя. Офлайн — no-op.
func (h *Hub) SendToUser(userID string, msg OutgoingMessage) {
	h.mu.RLock()
	clients, ok := h.clients[userID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Буфер переполнен: медленный клиент отключается.
		logger.Errorf("ws: буфер отправки заполнен, отключаем user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
