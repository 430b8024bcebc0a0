package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
)

const chatCols = `id, item_id, user_low, user_high, last_message, created_at, updated_at`

// ChatRepository хранит чаты и сообщения. Счётчики непрочитанных — в chat_members.
type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanChat(s rowScanner, c *model.Chat) error {
	var low, high string
	if err := s.Scan(&c.ID, &c.Item.ID, &low, &high, &c.LastMessage, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return err
	}
	c.Participants = []model.UserRef{{ID: low}, {ID: high}}
	return nil
}

// loadUnread заполняет UnreadCounts из chat_members.
func loadUnread(ctx context.Context, q querier, chats ...*model.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	byID := make(map[string]*model.Chat, len(chats))
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		c.UnreadCounts = make(map[string]int, 2)
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	rows, err := q.Query(ctx,
		`SELECT chat_id, user_id, unread_count FROM chat_members WHERE chat_id = ANY($1)`, ids,
	)
	if err != nil {
		return fmt.Errorf("loadUnread query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var chatID, userID string
		var n int
		if err := rows.Scan(&chatID, &userID, &n); err != nil {
			return fmt.Errorf("loadUnread scan: %w", err)
		}
		if c, ok := byID[chatID]; ok {
			c.UnreadCounts[userID] = n
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loadUnread rows: %w", err)
	}
	return nil
}

// FindOrCreateChat опирается на UNIQUE (item_id, user_low, user_high): параллельная вставка
// того же ключа ждёт коммита первой и уходит в DO NOTHING, после чего читает готовый чат.
func (r *ChatRepository) FindOrCreateChat(ctx context.Context, c *model.Chat) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindOrCreate", time.Now())()
	if len(c.Participants) != 2 {
		return nil, ErrConflict
	}
	low, high := model.ParticipantKey(c.Participants[0].ID, c.Participants[1].ID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO chats (`+chatCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (item_id, user_low, user_high) DO NOTHING`,
		c.ID, c.Item.ID, low, high, c.LastMessage, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate insert: %w", err)
	}
	if tag.RowsAffected() == 1 {
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id, unread_count) VALUES ($1, $2, 0), ($1, $3, 0)
			 ON CONFLICT DO NOTHING`,
			c.ID, low, high,
		)
		if err != nil {
			return nil, fmt.Errorf("chatRepo.FindOrCreate members: %w", err)
		}
	}

	out := &model.Chat{}
	row := tx.QueryRow(ctx,
		`SELECT `+chatCols+` FROM chats WHERE item_id = $1 AND user_low = $2 AND user_high = $3`,
		c.Item.ID, low, high,
	)
	if err := scanChat(row, out); err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate select: %w", err)
	}
	if err := loadUnread(ctx, tx, out); err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate commit: %w", err)
	}
	return out, nil
}

func (r *ChatRepository) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	row := r.pool.QueryRow(ctx, `SELECT `+chatCols+` FROM chats WHERE id = $1`, id)
	if err := scanChat(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	if err := loadUnread(ctx, r.pool, c); err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) ListChatsByUser(ctx context.Context, userID string) ([]*model.Chat, error) {
	defer logger.DeferLogDuration("chat.ListByUser", time.Now())()
	chats, err := r.list(ctx,
		`SELECT `+chatCols+` FROM chats WHERE user_low = $1 OR user_high = $1
		 ORDER BY updated_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListByUser: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) ListChats(ctx context.Context) ([]*model.Chat, error) {
	defer logger.DeferLogDuration("chat.List", time.Now())()
	chats, err := r.list(ctx, `SELECT `+chatCols+` FROM chats ORDER BY updated_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.List: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) list(ctx context.Context, q string, args ...any) ([]*model.Chat, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chats := make([]*model.Chat, 0, 16)
	for rows.Next() {
		c := &model.Chat{}
		if err := scanChat(rows, c); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := loadUnread(ctx, r.pool, chats...); err != nil {
		return nil, err
	}
	return chats, nil
}

// AppendMessage: UPDATE chats блокирует строку чата, так что параллельные отправки
// выстраиваются в очередь; счётчик получателя растёт атомарно.
func (r *ChatRepository) AppendMessage(ctx context.Context, m *model.Message, receiverID string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.AppendMessage", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.AppendMessage begin: %w", err)
	}
	defer tx.Rollback(ctx)

	c := &model.Chat{}
	row := tx.QueryRow(ctx,
		`UPDATE chats SET last_message = $2, updated_at = $3 WHERE id = $1 RETURNING `+chatCols,
		m.ChatID, m.Text, m.CreatedAt,
	)
	if err := scanChat(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chatRepo.AppendMessage chat: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ChatID, m.Sender.ID, m.Text, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.AppendMessage insert: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE chat_members SET unread_count = unread_count + 1 WHERE chat_id = $1 AND user_id = $2`,
		m.ChatID, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.AppendMessage unread: %w", err)
	}
	if err := loadUnread(ctx, tx, c); err != nil {
		return nil, fmt.Errorf("chatRepo.AppendMessage: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("chatRepo.AppendMessage commit: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) exists(ctx context.Context, chatID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chats WHERE id = $1)`, chatID).Scan(&ok)
	return ok, err
}

func (r *ChatRepository) ListMessages(ctx context.Context, chatID string) ([]*model.Message, error) {
	defer logger.DeferLogDuration("chat.ListMessages", time.Now())()
	ok, err := r.exists(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListMessages: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	msgs, err := listMessages(ctx, r.pool, chatID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListMessages: %w", err)
	}
	return msgs, nil
}

// ReadMessages отдаёт историю и обнуляет счётчик userID в одной транзакции.
// FOR UPDATE на строке чата не даёт AppendMessage вклиниться между чтением и сбросом.
func (r *ChatRepository) ReadMessages(ctx context.Context, chatID, userID string) ([]*model.Message, error) {
	defer logger.DeferLogDuration("chat.ReadMessages", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ReadMessages begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(ctx, `SELECT id FROM chats WHERE id = $1 FOR UPDATE`, chatID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chatRepo.ReadMessages lock: %w", err)
	}
	msgs, err := listMessages(ctx, tx, chatID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ReadMessages: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE chat_members SET unread_count = 0 WHERE chat_id = $1 AND user_id = $2`,
		chatID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ReadMessages reset: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("chatRepo.ReadMessages commit: %w", err)
	}
	return msgs, nil
}

func listMessages(ctx context.Context, q querier, chatID string) ([]*model.Message, error) {
	rows, err := q.Query(ctx,
		`SELECT id, chat_id, sender_id, text, created_at FROM messages
		 WHERE chat_id = $1 ORDER BY created_at, id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	msgs := make([]*model.Message, 0, 32)
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender.ID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return msgs, nil
}
