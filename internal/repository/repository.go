// Package repository — PostgreSQL-хранилища (pgx/v5) для доменного сервиса.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findme/internal/service"
	"github.com/findme/internal/storage"
)

var (
	ErrNotFound = storage.ErrNotFound
	ErrConflict = storage.ErrConflict
)

var (
	_ service.ItemStore         = (*ItemRepository)(nil)
	_ service.ChatStore         = (*ChatRepository)(nil)
	_ service.NotificationStore = (*NotificationRepository)(nil)
	_ service.MatchStore        = (*MatchRepository)(nil)
	_ service.UserStore         = (*UserRepository)(nil)
)

// querier — общее у пула и транзакции.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// uniqueViolation — 23505 unique_violation.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// NewStores собирает все хранилища сервиса поверх одного пула.
func NewStores(pool *pgxpool.Pool) service.Stores {
	return service.Stores{
		Items:         NewItemRepository(pool),
		Chats:         NewChatRepository(pool),
		Notifications: NewNotificationRepository(pool),
		Matches:       NewMatchRepository(pool),
		Users:         NewUserRepository(pool),
	}
}
