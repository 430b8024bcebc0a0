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

const userCols = `id, name, email, role, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// scanUser сканирует строку в model.User (порядок соответствует userCols).
func scanUser(s rowScanner, u *model.User) error {
	return s.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
}

// UpsertUser: пустые name/email не затирают сохранённые, created_at остаётся от первой записи.
func (r *UserRepository) UpsertUser(ctx context.Context, u *model.User) (*model.User, error) {
	defer logger.DeferLogDuration("user.Upsert", time.Now())()
	out := &model.User{}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (`+userCols+`) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		     name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		     email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		     role = EXCLUDED.role
		 RETURNING `+userCols,
		u.ID, u.Name, u.Email, u.Role, u.CreatedAt,
	)
	if err := scanUser(row, out); err != nil {
		return nil, fmt.Errorf("userRepo.Upsert: %w", err)
	}
	return out, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetUsers(ctx context.Context, ids []string) (map[string]*model.User, error) {
	defer logger.DeferLogDuration("user.GetUsers", time.Now())()
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.list(ctx, `SELECT `+userCols+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetUsers: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]*model.User, error) {
	defer logger.DeferLogDuration("user.List", time.Now())()
	users, err := r.list(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}
	return users, nil
}

func (r *UserRepository) list(ctx context.Context, q string, args ...any) ([]*model.User, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]*model.User, 0, 16)
	for rows.Next() {
		u := &model.User{}
		if err := scanUser(rows, u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	defer logger.DeferLogDuration("user.Count", time.Now())()
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("userRepo.Count: %w", err)
	}
	return n, nil
}
