package repository

import (
	"context"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"
)

type FCMRepository struct {
	DB *db.Postgres
}

func (r FCMRepository) Register(ctx context.Context, in domain.DeviceToken) error {
	_, err := r.DB.Pool.Exec(ctx, `
		INSERT INTO fcm_tokens (user_id, token, platform, created_at)
		VALUES ($1,$2,$3, now())
		ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, platform=EXCLUDED.platform, created_at=now()
	`, in.UserID, in.Token, in.Platform)
	return err
}

// Unregister removes a token only if it belongs to userID.
func (r FCMRepository) Unregister(ctx context.Context, userID, token string) (bool, error) {
	tag, err := r.DB.Pool.Exec(ctx, `DELETE FROM fcm_tokens WHERE token=$1 AND user_id=$2`, token, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TokensForUser returns the newest tokens first.
func (r FCMRepository) TokensForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT token FROM fcm_tokens WHERE user_id=$1 ORDER BY created_at DESC LIMIT 10
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
