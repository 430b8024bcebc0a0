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

const matchCols = `id, item_id, user_id, type, status, created_at, updated_at`

type MatchRepository struct {
	pool *pgxpool.Pool
}

func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

func scanMatch(s rowScanner, m *model.Match) error {
	return s.Scan(&m.ID, &m.Item.ID, &m.Requester.ID, &m.Type, &m.Status, &m.CreatedAt, &m.UpdatedAt)
}

// CreateMatch: повтор (item, user, type) ловит UNIQUE и возвращает ErrConflict.
func (r *MatchRepository) CreateMatch(ctx context.Context, m *model.Match) error {
	defer logger.DeferLogDuration("match.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO matches (`+matchCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Item.ID, m.Requester.ID, m.Type, m.Status, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("matchRepo.Create: %w", err)
	}
	return nil
}

func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	defer logger.DeferLogDuration("match.GetByID", time.Now())()
	m := &model.Match{}
	row := r.pool.QueryRow(ctx, `SELECT `+matchCols+` FROM matches WHERE id = $1`, id)
	if err := scanMatch(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("matchRepo.GetByID: %w", err)
	}
	return m, nil
}

func (r *MatchRepository) ListMatchesByItems(ctx context.Context, itemIDs []string) ([]*model.Match, error) {
	defer logger.DeferLogDuration("match.ListByItems", time.Now())()
	if len(itemIDs) == 0 {
		return []*model.Match{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+matchCols+` FROM matches WHERE item_id = ANY($1) ORDER BY created_at DESC, id DESC`, itemIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("matchRepo.ListByItems query: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Match, 0, 16)
	for rows.Next() {
		m := &model.Match{}
		if err := scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("matchRepo.ListByItems scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matchRepo.ListByItems rows: %w", err)
	}
	return out, nil
}

func (r *MatchRepository) SetMatchStatus(ctx context.Context, id string, status model.MatchStatus, at time.Time) (*model.Match, error) {
	defer logger.DeferLogDuration("match.SetStatus", time.Now())()
	m := &model.Match{}
	row := r.pool.QueryRow(ctx,
		`UPDATE matches SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+matchCols,
		id, status, at,
	)
	if err := scanMatch(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("matchRepo.SetStatus: %w", err)
	}
	return m, nil
}
