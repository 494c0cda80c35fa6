package repository

import (
	"context"

	"shopmunim-backend/internal/db"

	"github.com/shopspring/decimal"
)

type DashboardRepository struct {
	DB *db.Postgres
}

type DashboardCounts struct {
	Customers        int64
	Products         int64
	Transactions     int64
	TotalOutstanding decimal.Decimal
}

func (r DashboardRepository) Counts(ctx context.Context, shopID string) (DashboardCounts, error) {
	var s DashboardCounts
	err := r.DB.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE shop_id=$1 AND deleted_at IS NULL),
			(SELECT COUNT(*) FROM products WHERE shop_id=$1 AND deleted_at IS NULL),
			(SELECT COUNT(*) FROM transactions WHERE shop_id=$1 AND deleted_at IS NULL),
			(SELECT COALESCE(SUM(-balance), 0) FROM customers WHERE shop_id=$1 AND deleted_at IS NULL AND balance < 0)
	`, shopID).Scan(&s.Customers, &s.Products, &s.Transactions, &s.TotalOutstanding)
	return s, err
}
