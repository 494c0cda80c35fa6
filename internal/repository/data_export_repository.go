package repository

import (
	"context"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
)

type DataExportRepository struct {
	DB *db.Postgres
}

func (r DataExportRepository) Create(ctx context.Context, userID string) (*domain.DataExportRequest, error) {
	var d domain.DataExportRequest
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO data_export_requests (id, user_id, status, created_at)
		VALUES ($1,$2,'pending', now())
		RETURNING id, user_id, status, created_at
	`, uuid.NewString(), userID).Scan(&d.ID, &d.UserID, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
