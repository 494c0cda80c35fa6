package repository

import (
	"context"
	"crypto/rand"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"

	"github.com/google/uuid"
)

type ShopRepository struct {
	DB *db.Postgres
}

type CreateShopParams struct {
	OwnerID  string
	Name     string
	Category string
	Location string
	UPIID    string
}

const shopColumns = `id, owner_id, name, category, location, shop_code, upi_id, created_at`

// Create retries a few times if the generated shop code collides.
func (r ShopRepository) Create(ctx context.Context, p CreateShopParams) (*domain.Shop, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		row := r.DB.Pool.QueryRow(ctx, `
			INSERT INTO shops (id, owner_id, name, category, location, shop_code, upi_id, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7, now())
			RETURNING `+shopColumns,
			uuid.NewString(), p.OwnerID, p.Name, p.Category, p.Location, shopCode(), p.UPIID)
		s, err := scanShop(row)
		if err == nil {
			return s, nil
		}
		if !IsDuplicate(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r ShopRepository) Get(ctx context.Context, id string) (*domain.Shop, error) {
	row := r.DB.Pool.QueryRow(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	return notFound(scanShop(row))
}

func (r ShopRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Shop, error) {
	return r.list(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE owner_id=$1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, ownerID)
}

// ListForCustomer returns shops where the user has a customer account, linked
// either by user id or by phone.
func (r ShopRepository) ListForCustomer(ctx context.Context, userID, phone string) ([]domain.Shop, error) {
	return r.list(ctx, `
		SELECT DISTINCT s.id, s.owner_id, s.name, s.category, s.location, s.shop_code, s.upi_id, s.created_at
		FROM shops s
		JOIN customers c ON c.shop_id = s.id AND c.deleted_at IS NULL
		WHERE s.deleted_at IS NULL AND (c.user_id=$1 OR c.phone=$2)
		ORDER BY s.created_at DESC
	`, userID, phone)
}

func (r ShopRepository) list(ctx context.Context, query string, args ...any) ([]domain.Shop, error) {
	rows, err := r.DB.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []domain.Shop{}
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func scanShop(row rowScanner) (*domain.Shop, error) {
	var s domain.Shop
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Category, &s.Location, &s.ShopCode, &s.UPIID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

const shopCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func shopCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = shopCodeAlphabet[int(b[i])%len(shopCodeAlphabet)]
	}
	return string(b)
}
