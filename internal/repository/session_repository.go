package repository

import (
	"context"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
)

type SessionRepository struct {
	DB *db.Postgres
}

func (r SessionRepository) Create(ctx context.Context, userID, device, os string) (*domain.Session, error) {
	var s domain.Session
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, device, os, created_at, last_seen_at)
		VALUES ($1,$2,$3,$4, now(), now())
		RETURNING id, user_id, device, os, created_at, last_seen_at
	`, uuid.NewString(), userID, device, os).Scan(&s.ID, &s.UserID, &s.Device, &s.OS, &s.CreatedAt, &s.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r SessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, user_id, device, os, created_at, last_seen_at
		FROM sessions
		WHERE user_id=$1
		ORDER BY last_seen_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []domain.Session{}
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Device, &s.OS, &s.CreatedAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Touch bumps last_seen_at; unknown ids are ignored.
func (r SessionRepository) Touch(ctx context.Context, id string) error {
	_, err := r.DB.Pool.Exec(ctx, `UPDATE sessions SET last_seen_at=now() WHERE id=$1`, id)
	return err
}
