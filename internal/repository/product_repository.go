package repository

import (
	"context"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductRepository struct {
	DB *db.Postgres
}

type SaveProductParams struct {
	Name   *string
	Price  *decimal.Decimal
	Active *bool
}

func (r ProductRepository) List(ctx context.Context, shopID string) ([]domain.Product, error) {
	rows, err := r.DB.Pool.Query(ctx, `
		SELECT id, shop_id, name, price, active, created_at, updated_at
		FROM products
		WHERE deleted_at IS NULL AND shop_id=$1
		ORDER BY name ASC
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r ProductRepository) Create(ctx context.Context, shopID, name string, price decimal.Decimal) (*domain.Product, error) {
	var p domain.Product
	err := r.DB.Pool.QueryRow(ctx, `
		INSERT INTO products (id, shop_id, name, price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4, TRUE, now(), now())
		RETURNING id, shop_id, name, price, active, created_at, updated_at
	`, uuid.NewString(), shopID, name, price).
		Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r ProductRepository) Update(ctx context.Context, shopID, id string, in SaveProductParams) (*domain.Product, error) {
	var p domain.Product
	err := r.DB.Pool.QueryRow(ctx, `
		UPDATE products
		SET name=COALESCE($3, name),
			price=COALESCE($4, price),
			active=COALESCE($5, active),
			updated_at=now()
		WHERE id=$1 AND shop_id=$2 AND deleted_at IS NULL
		RETURNING id, shop_id, name, price, active, created_at, updated_at
	`, id, shopID, in.Name, in.Price, in.Active).
		Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return notFound(&p, err)
}

func (r ProductRepository) Delete(ctx context.Context, shopID, id string) error {
	tag, err := r.DB.Pool.Exec(ctx, `UPDATE products SET deleted_at=now() WHERE id=$1 AND shop_id=$2 AND deleted_at IS NULL`, id, shopID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
