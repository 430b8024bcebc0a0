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

const notificationCols = `id, user_id, message, link, is_read, created_at`

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func scanNotification(s rowScanner, n *model.Notification) error {
	return s.Scan(&n.ID, &n.UserID, &n.Message, &n.Link, &n.IsRead, &n.CreatedAt)
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	defer logger.DeferLogDuration("notification.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationCols+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Message, n.Link, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		if uniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("notificationRepo.Create: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	defer logger.DeferLogDuration("notification.GetByID", time.Now())()
	n := &model.Notification{}
	row := r.pool.QueryRow(ctx, `SELECT `+notificationCols+` FROM notifications WHERE id = $1`, id)
	if err := scanNotification(row, n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notificationRepo.GetByID: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) ListUnread(ctx context.Context, userID string) ([]*model.Notification, error) {
	defer logger.DeferLogDuration("notification.ListUnread", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationCols+` FROM notifications
		 WHERE user_id = $1 AND NOT is_read
		 ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("notificationRepo.ListUnread query: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Notification, 0, 16)
	for rows.Next() {
		n := &model.Notification{}
		if err := scanNotification(rows, n); err != nil {
			return nil, fmt.Errorf("notificationRepo.ListUnread scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notificationRepo.ListUnread rows: %w", err)
	}
	return out, nil
}

// MarkRead идемпотентна: повторная отметка не ошибка.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("notification.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notificationRepo.MarkRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	defer logger.DeferLogDuration("notification.CountUnread", time.Now())()
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("notificationRepo.CountUnread: %w", err)
	}
	return n, nil
}
