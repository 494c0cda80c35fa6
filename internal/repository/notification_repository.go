package repository

import (
	"context"
	"time"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type NotificationRepository struct {
	DB *db.Postgres
}

type CreateNotificationInput struct {
	ShopID      string
	CustomerID  string
	Title       string
	Body        string
	Method      domain.NotificationMethod
	Status      domain.NotificationStatus
	ScheduledAt *time.Time
}

const notificationColumns = `id, shop_id, customer_id, title, body, method, status, scheduled_at, created_at`

func (r NotificationRepository) Create(ctx context.Context, in CreateNotificationInput) (*domain.Notification, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO notifications (id, shop_id, customer_id, title, body, method, status, scheduled_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now())
		RETURNING `+notificationColumns,
		uuid.NewString(), in.ShopID, in.CustomerID, in.Title, in.Body, string(in.Method), string(in.Status), in.ScheduledAt)
	return scanNotification(row)
}

func (r NotificationRepository) ListByCustomer(ctx context.Context, shopID, customerID string, limit int) ([]domain.Notification, error) {
	return r.list(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE shop_id=$1 AND customer_id=$2
		ORDER BY created_at DESC
		LIMIT $3
	`, shopID, customerID, limit)
}

// Due returns scheduled notifications whose time has come.
func (r NotificationRepository) Due(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	return r.list(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status=$1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`, string(domain.NotificationScheduled), now, limit)
}

// SetStatus only updates notifications that are still scheduled. It reports
// whether a row changed.
func (r NotificationRepository) SetStatus(ctx context.Context, id string, status domain.NotificationStatus) (bool, error) {
	tag, err := r.DB.Pool.Exec(ctx, `
		UPDATE notifications SET status=$2 WHERE id=$1 AND status=$3
	`, id, string(status), string(domain.NotificationScheduled))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r NotificationRepository) list(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	rows, err := r.DB.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n         domain.Notification
		method    string
		status    string
		scheduled pgtype.Timestamptz
	)
	if err := row.Scan(&n.ID, &n.ShopID, &n.CustomerID, &n.Title, &n.Body, &method, &status, &scheduled, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Method = domain.NotificationMethod(method)
	n.Status = domain.NotificationStatus(status)
	if scheduled.Valid {
		t := scheduled.Time
		n.ScheduledAt = &t
	}
	return &n, nil
}
