package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
)

const itemCols = `id, title, description, location, contact_info, image, type, status, owner_id, created_at, updated_at`

type ItemRepository struct {
	pool *pgxpool.Pool
}

func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

func scanItem(s rowScanner, it *model.Item) error {
	return s.Scan(&it.ID, &it.Title, &it.Description, &it.Location, &it.ContactInfo, &it.Image,
		&it.Type, &it.Status, &it.Owner.ID, &it.CreatedAt, &it.UpdatedAt)
}

// loadClaims подгружает заявки предметов в порядке подачи.
func loadClaims(ctx context.Context, q querier, items ...*model.Item) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*model.Item, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		it.Claims = []model.Claim{}
		byID[it.ID] = it
		ids = append(ids, it.ID)
	}
	rows, err := q.Query(ctx,
		`SELECT id, item_id, user_id, claim_type, message, status, created_at, updated_at
		 FROM claims WHERE item_id = ANY($1)
		 ORDER BY item_id, position`, ids,
	)
	if err != nil {
		return fmt.Errorf("loadClaims query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Claim
		var itemID string
		if err := rows.Scan(&c.ID, &itemID, &c.Claimant.ID, &c.ClaimType, &c.Message, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return fmt.Errorf("loadClaims scan: %w", err)
		}
		if it, ok := byID[itemID]; ok {
			it.Claims = append(it.Claims, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loadClaims rows: %w", err)
	}
	return nil
}

// saveClaims пишет заявки пачкой; position — индекс в срезе.
func saveClaims(ctx context.Context, tx pgx.Tx, it *model.Item) error {
	if len(it.Claims) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, c := range it.Claims {
		batch.Queue(
			`INSERT INTO claims (id, item_id, user_id, claim_type, message, status, position, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET claim_type = EXCLUDED.claim_type, message = EXCLUDED.message,
			     status = EXCLUDED.status, position = EXCLUDED.position, updated_at = EXCLUDED.updated_at`,
			c.ID, it.ID, c.Claimant.ID, c.ClaimType, c.Message, c.Status, i, c.CreatedAt, c.UpdatedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range it.Claims {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if uniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
	}
	return br.Close()
}

func (r *ItemRepository) CreateItem(ctx context.Context, it *model.Item) error {
	defer logger.DeferLogDuration("item.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("itemRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO items (`+itemCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		it.ID, it.Title, it.Description, it.Location, it.ContactInfo, it.Image,
		it.Type, it.Status, it.Owner.ID, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("itemRepo.Create: %w", err)
	}
	if err := saveClaims(ctx, tx, it); err != nil {
		return fmt.Errorf("itemRepo.Create claims: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("itemRepo.Create commit: %w", err)
	}
	return nil
}

func (r *ItemRepository) GetItem(ctx context.Context, id string) (*model.Item, error) {
	defer logger.DeferLogDuration("item.GetByID", time.Now())()
	it := &model.Item{}
	row := r.pool.QueryRow(ctx, `SELECT `+itemCols+` FROM items WHERE id = $1`, id)
	if err := scanItem(row, it); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("itemRepo.GetByID: %w", err)
	}
	if err := loadClaims(ctx, r.pool, it); err != nil {
		return nil, fmt.Errorf("itemRepo.GetByID: %w", err)
	}
	return it, nil
}

func (r *ItemRepository) GetItems(ctx context.Context, ids []string) (map[string]*model.Item, error) {
	defer logger.DeferLogDuration("item.GetItems", time.Now())()
	out := make(map[string]*model.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := r.query(ctx, `SELECT `+itemCols+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("itemRepo.GetItems: %w", err)
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (r *ItemRepository) ListItems(ctx context.Context, f model.ItemFilter) ([]*model.Item, error) {
	defer logger.DeferLogDuration("item.List", time.Now())()
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, "owner_id = $"+strconv.Itoa(len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + itemCols + ` FROM items`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	items, err := r.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("itemRepo.List: %w", err)
	}
	return items, nil
}

func (r *ItemRepository) query(ctx context.Context, q string, args ...any) ([]*model.Item, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*model.Item, 0, 16)
	for rows.Next() {
		it := &model.Item{}
		if err := scanItem(rows, it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := loadClaims(ctx, r.pool, items...); err != nil {
		return nil, err
	}
	return items, nil
}

// MutateItem блокирует строку предмета (SELECT ... FOR UPDATE) на время fn.
// Ошибка fn откатывает транзакцию и возвращается как есть.
func (r *ItemRepository) MutateItem(ctx context.Context, id string, fn func(*model.Item) error) (*model.Item, error) {
	defer logger.DeferLogDuration("item.Mutate", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("itemRepo.Mutate begin: %w", err)
	}
	defer tx.Rollback(ctx)

	it := &model.Item{}
	row := tx.QueryRow(ctx, `SELECT `+itemCols+` FROM items WHERE id = $1 FOR UPDATE`, id)
	if err := scanItem(row, it); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("itemRepo.Mutate lock: %w", err)
	}
	if err := loadClaims(ctx, tx, it); err != nil {
		return nil, fmt.Errorf("itemRepo.Mutate: %w", err)
	}
	if err := fn(it); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE items SET title = $2, description = $3, location = $4, contact_info = $5, image = $6,
		     type = $7, status = $8, updated_at = $9
		 WHERE id = $1`,
		it.ID, it.Title, it.Description, it.Location, it.ContactInfo, it.Image, it.Type, it.Status, it.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("itemRepo.Mutate update: %w", err)
	}
	if err := saveClaims(ctx, tx, it); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("itemRepo.Mutate claims: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("itemRepo.Mutate commit: %w", err)
	}

	it.Owner = model.UserRef{ID: it.Owner.ID}
	for i := range it.Claims {
		it.Claims[i].Claimant = model.UserRef{ID: it.Claims[i].Claimant.ID}
	}
	return it, nil
}

func (r *ItemRepository) DeleteItem(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("item.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("itemRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ItemRepository) CountItems(ctx context.Context, t model.ItemType) (int, error) {
	defer logger.DeferLogDuration("item.Count", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM items WHERE $1 = '' OR type = $1`, string(t),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("itemRepo.Count: %w", err)
	}
	return n, nil
}
