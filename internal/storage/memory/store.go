package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/findme/internal/model"
	"github.com/findme/internal/storage"
)

// Store — хранилище домена в памяти процесса. Карты защищены общим mu,
// каждая запись предмета и чата — своим мьютексом на время изменения.
type Store struct {
	mu  sync.RWMutex
	seq uint64

	items map[string]*itemRecord

	chats    map[string]*chatRecord
	chatKeys map[string]string

	notifications map[string]*notificationRecord

	matches   map[string]*matchRecord
	matchKeys map[string]string

	users map[string]*userRecord
}

type itemRecord struct {
	mu      sync.Mutex
	seq     uint64
	item    *model.Item
	deleted bool
}

type chatRecord struct {
	mu       sync.Mutex
	seq      uint64
	chat     *model.Chat
	messages []*model.Message
}

type notificationRecord struct {
	seq uint64
	n   model.Notification
}

type matchRecord struct {
	seq uint64
	m   model.Match
}

type userRecord struct {
	seq uint64
	u   model.User
}

func NewStore() *Store {
	return &Store{
		items:         make(map[string]*itemRecord),
		chats:         make(map[string]*chatRecord),
		chatKeys:      make(map[string]string),
		notifications: make(map[string]*notificationRecord),
		matches:       make(map[string]*matchRecord),
		matchKeys:     make(map[string]string),
		users:         make(map[string]*userRecord),
	}
}

// nextSeq вызывается под s.mu; порядок вставки разрешает равные временные метки.
func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// newerFirst: сначала более поздние at, при равенстве — вставленные позже.
func newerFirst(a, b time.Time, seqA, seqB uint64) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return seqA > seqB
}

// --- items

func (s *Store) CreateItem(_ context.Context, it *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; ok {
		return storage.ErrConflict
	}
	s.items[it.ID] = &itemRecord{seq: s.nextSeq(), item: it.Clone()}
	return nil
}

func (s *Store) lookupItem(id string) (*itemRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	return rec, ok
}

func (s *Store) GetItem(_ context.Context, id string) (*model.Item, error) {
	rec, ok := s.lookupItem(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, storage.ErrNotFound
	}
	return rec.item.Clone(), nil
}

func (s *Store) GetItems(ctx context.Context, ids []string) (map[string]*model.Item, error) {
	out := make(map[string]*model.Item, len(ids))
	for _, id := range ids {
		it, err := s.GetItem(ctx, id)
		if err != nil {
			continue
		}
		out[id] = it
	}
	return out, nil
}

func (s *Store) ListItems(_ context.Context, f model.ItemFilter) ([]*model.Item, error) {
	s.mu.RLock()
	recs := make([]*itemRecord, 0, len(s.items))
	for _, rec := range s.items {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	type entry struct {
		seq  uint64
		item *model.Item
	}
	var entries []entry
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.deleted && matchesFilter(rec.item, f) {
			entries = append(entries, entry{seq: rec.seq, item: rec.item.Clone()})
		}
		rec.mu.Unlock()
	}
	sort.Slice(entries, func(i, j int) bool {
		return newerFirst(entries[i].item.CreatedAt, entries[j].item.CreatedAt, entries[i].seq, entries[j].seq)
	})
	out := make([]*model.Item, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.item)
	}
	return out, nil
}

func matchesFilter(it *model.Item, f model.ItemFilter) bool {
	if f.OwnerID != "" && it.Owner.ID != f.OwnerID {
		return false
	}
	if f.Type != "" && it.Type != f.Type {
		return false
	}
	return true
}

// MutateItem держит мьютекс записи на всё время fn; fn работает с копией,
// которая заменяет запись только при успехе.
func (s *Store) MutateItem(_ context.Context, id string, fn func(*model.Item) error) (*model.Item, error) {
	rec, ok := s.lookupItem(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return nil, storage.ErrNotFound
	}
	next := rec.item.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Owner = model.UserRef{ID: next.Owner.ID}
	for i := range next.Claims {
		next.Claims[i].Claimant = model.UserRef{ID: next.Claims[i].Claimant.ID}
	}
	rec.item = next
	return next.Clone(), nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	rec, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if !ok {
		return storage.ErrNotFound
	}
	rec.mu.Lock()
	rec.deleted = true
	rec.mu.Unlock()
	return nil
}

func (s *Store) CountItems(ctx context.Context, t model.ItemType) (int, error) {
	items, err := s.ListItems(ctx, model.ItemFilter{Type: t})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// --- chats

func chatKey(itemID, a, b string) string {
	low, high := model.ParticipantKey(a, b)
	return itemID + "|" + low + "|" + high
}

func (s *Store) FindOrCreateChat(_ context.Context, c *model.Chat) (*model.Chat, error) {
	if len(c.Participants) != 2 {
		return nil, storage.ErrConflict
	}
	key := chatKey(c.Item.ID, c.Participants[0].ID, c.Participants[1].ID)

	s.mu.Lock()
	if id, ok := s.chatKeys[key]; ok {
		rec := s.chats[id]
		s.mu.Unlock()
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.chat.Clone(), nil
	}
	rec := &chatRecord{seq: s.nextSeq(), chat: c.Clone()}
	s.chats[c.ID] = rec
	s.chatKeys[key] = c.ID
	s.mu.Unlock()
	return c.Clone(), nil
}

func (s *Store) lookupChat(id string) (*chatRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.chats[id]
	return rec, ok
}

func (s *Store) GetChat(_ context.Context, id string) (*model.Chat, error) {
	rec, ok := s.lookupChat(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.chat.Clone(), nil
}

func (s *Store) listChats(userID string) []*model.Chat {
	s.mu.RLock()
	recs := make([]*chatRecord, 0, len(s.chats))
	for _, rec := range s.chats {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	type entry struct {
		seq  uint64
		chat *model.Chat
	}
	var entries []entry
	for _, rec := range recs {
		rec.mu.Lock()
		if userID == "" || rec.chat.HasParticipant(userID) {
			entries = append(entries, entry{seq: rec.seq, chat: rec.chat.Clone()})
		}
		rec.mu.Unlock()
	}
	sort.Slice(entries, func(i, j int) bool {
		return newerFirst(entries[i].chat.UpdatedAt, entries[j].chat.UpdatedAt, entries[i].seq, entries[j].seq)
	})
	out := make([]*model.Chat, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.chat)
	}
	return out
}

func (s *Store) ListChatsByUser(_ context.Context, userID string) ([]*model.Chat, error) {
	return s.listChats(userID), nil
}

func (s *Store) ListChats(_ context.Context) ([]*model.Chat, error) {
	return s.listChats(""), nil
}

// AppendMessage под мьютексом чата добавляет сообщение и обновляет счётчик и lastMessage.
func (s *Store) AppendMessage(_ context.Context, m *model.Message, receiverID string) (*model.Chat, error) {
	rec, ok := s.lookupChat(m.ChatID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	msg := *m
	msg.Sender = model.UserRef{ID: m.Sender.ID}
	rec.messages = append(rec.messages, &msg)
	if rec.chat.UnreadCounts == nil {
		rec.chat.UnreadCounts = make(map[string]int)
	}
	rec.chat.UnreadCounts[receiverID]++
	rec.chat.LastMessage = m.Text
	rec.chat.UpdatedAt = m.CreatedAt
	return rec.chat.Clone(), nil
}

func (s *Store) ListMessages(_ context.Context, chatID string) ([]*model.Message, error) {
	rec, ok := s.lookupChat(chatID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.history(), nil
}

// ReadMessages отдаёт историю и обнуляет счётчик userID под одной блокировкой чата.
func (s *Store) ReadMessages(_ context.Context, chatID, userID string) ([]*model.Message, error) {
	rec, ok := s.lookupChat(chatID)
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := rec.history()
	if rec.chat.HasParticipant(userID) {
		rec.chat.UnreadCounts[userID] = 0
	}
	return out, nil
}

// history копирует сообщения по createdAt; вызывается под rec.mu.
func (rec *chatRecord) history() []*model.Message {
	out := make([]*model.Message, 0, len(rec.messages))
	for _, m := range rec.messages {
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- notifications

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return storage.ErrConflict
	}
	s.notifications[n.ID] = &notificationRecord{seq: s.nextSeq(), n: *n}
	return nil
}

func (s *Store) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	n := rec.n
	return &n, nil
}

func (s *Store) unread(userID string) []*notificationRecord {
	var out []*notificationRecord
	for _, rec := range s.notifications {
		if rec.n.UserID == userID && !rec.n.IsRead {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store) ListUnread(_ context.Context, userID string) ([]*model.Notification, error) {
	s.mu.RLock()
	recs := s.unread(userID)
	sort.Slice(recs, func(i, j int) bool {
		return newerFirst(recs[i].n.CreatedAt, recs[j].n.CreatedAt, recs[i].seq, recs[j].seq)
	})
	out := make([]*model.Notification, 0, len(recs))
	for _, rec := range recs {
		n := rec.n
		out = append(out, &n)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	rec.n.IsRead = true
	return nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.unread(userID)), nil
}

// --- matches

func matchKey(m *model.Match) string {
	return m.Item.ID + "|" + m.Requester.ID + "|" + string(m.Type)
}

func (s *Store) CreateMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := matchKey(m)
	if _, ok := s.matchKeys[key]; ok {
		return storage.ErrConflict
	}
	rec := &matchRecord{seq: s.nextSeq(), m: *m}
	rec.m.Item = model.ItemRef{ID: m.Item.ID}
	rec.m.Requester = model.UserRef{ID: m.Requester.ID}
	s.matches[m.ID] = rec
	s.matchKeys[key] = m.ID
	return nil
}

func (s *Store) GetMatch(_ context.Context, id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.matches[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m := rec.m
	return &m, nil
}

func (s *Store) ListMatchesByItems(_ context.Context, itemIDs []string) ([]*model.Match, error) {
	want := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	var recs []*matchRecord
	for _, rec := range s.matches {
		if _, ok := want[rec.m.Item.ID]; ok {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return newerFirst(recs[i].m.CreatedAt, recs[j].m.CreatedAt, recs[i].seq, recs[j].seq)
	})
	out := make([]*model.Match, 0, len(recs))
	for _, rec := range recs {
		m := rec.m
		out = append(out, &m)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) SetMatchStatus(_ context.Context, id string, status model.MatchStatus, at time.Time) (*model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.matches[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec.m.Status = status
	rec.m.UpdatedAt = at
	m := rec.m
	return &m, nil
}

// --- users

// UpsertUser обновляет имя, email и роль; createdAt остаётся от первой записи.
func (s *Store) UpsertUser(_ context.Context, u *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[u.ID]
	if !ok {
		rec = &userRecord{seq: s.nextSeq(), u: *u}
		s.users[u.ID] = rec
	} else {
		if u.Name != "" {
			rec.u.Name = u.Name
		}
		if u.Email != "" {
			rec.u.Email = u.Email
		}
		rec.u.Role = u.Role
	}
	out := rec.u
	return &out, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := rec.u
	return &u, nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if rec, ok := s.users[id]; ok {
			u := rec.u
			out[id] = &u
		}
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.RLock()
	recs := make([]*userRecord, 0, len(s.users))
	for _, rec := range s.users {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return newerFirst(recs[i].u.CreatedAt, recs[j].u.CreatedAt, recs[i].seq, recs[j].seq)
	})
	out := make([]*model.User, 0, len(recs))
	for _, rec := range recs {
		u := rec.u
		out = append(out, &u)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}
