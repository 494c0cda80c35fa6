package repository

import (
	"context"
	"errors"
	"time"

	"shopmunim-backend/internal/db"
	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type TransactionRepository struct {
	DB *db.Postgres
}

type CreateTransactionInput struct {
	ShopID     string
	CustomerID string
	Type       string
	Amount     decimal.Decimal
	Date       time.Time
	Note       string
	Items      []domain.TransactionItem
}

// UpdateTransactionInput changes only the non-nil fields. A non-nil Items
// replaces the whole item list.
type UpdateTransactionInput struct {
	Type   *string
	Amount *decimal.Decimal
	Date   *time.Time
	Note   *string
	Items  *[]domain.TransactionItem
}

// Create inserts the transaction with its items and recomputes the
// customer's balance in the same database transaction.
func (r TransactionRepository) Create(ctx context.Context, in CreateTransactionInput) (*domain.Transaction, error) {
	out := domain.Transaction{
		ID:         uuid.NewString(),
		ShopID:     in.ShopID,
		CustomerID: in.CustomerID,
		Type:       in.Type,
		Amount:     in.Amount,
		Date:       in.Date,
		Note:       in.Note,
		Items:      in.Items,
	}
	err := r.DB.InTx(ctx, func(tx pgx.Tx) error {
		if err := lockCustomer(ctx, tx, in.ShopID, in.CustomerID, &out.CustomerName); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO transactions (id, shop_id, customer_id, type, amount, date, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7, now())
			RETURNING created_at
		`, out.ID, in.ShopID, in.CustomerID, in.Type, in.Amount, in.Date, in.Note).Scan(&out.CreatedAt)
		if err != nil {
			return err
		}
		if err := insertItems(ctx, tx, out.ID, in.Items); err != nil {
			return err
		}
		return recomputeBalance(ctx, tx, in.CustomerID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r TransactionRepository) Update(ctx context.Context, shopID, id string, in UpdateTransactionInput) (*domain.Transaction, error) {
	var customerID string
	err := r.DB.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE transactions
			SET type=COALESCE($3, type),
				amount=COALESCE($4, amount),
				date=COALESCE($5, date),
				note=COALESCE($6, note)
			WHERE id=$1 AND shop_id=$2 AND deleted_at IS NULL
			RETURNING customer_id
		`, id, shopID, in.Type, in.Amount, in.Date, in.Note).Scan(&customerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if in.Items != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM transaction_items WHERE transaction_id=$1`, id); err != nil {
				return err
			}
			if err := insertItems(ctx, tx, id, *in.Items); err != nil {
				return err
			}
		}
		return recomputeBalance(ctx, tx, customerID)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, shopID, id)
}

// Delete soft-deletes the transaction and recomputes the customer's balance.
func (r TransactionRepository) Delete(ctx context.Context, shopID, id string) error {
	return r.DB.InTx(ctx, func(tx pgx.Tx) error {
		var customerID string
		err := tx.QueryRow(ctx, `
			UPDATE transactions SET deleted_at=now()
			WHERE id=$1 AND shop_id=$2 AND deleted_at IS NULL
			RETURNING customer_id
		`, id, shopID).Scan(&customerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return recomputeBalance(ctx, tx, customerID)
	})
}

func (r TransactionRepository) Get(ctx context.Context, shopID, id string) (*domain.Transaction, error) {
	txs, err := r.query(ctx, `
		SELECT t.id, t.shop_id, t.customer_id, c.name, t.type, t.amount, t.date, t.note, t.created_at
		FROM transactions t
		JOIN customers c ON c.id = t.customer_id
		WHERE t.id=$1 AND t.shop_id=$2 AND t.deleted_at IS NULL
	`, id, shopID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrNotFound
	}
	return &txs[0], nil
}

// ListByShop returns the newest transactions first; limit <= 0 means no limit.
func (r TransactionRepository) ListByShop(ctx context.Context, shopID string, limit int) ([]domain.Transaction, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	return r.query(ctx, `
		SELECT t.id, t.shop_id, t.customer_id, c.name, t.type, t.amount, t.date, t.note, t.created_at
		FROM transactions t
		JOIN customers c ON c.id = t.customer_id
		WHERE t.shop_id=$1 AND t.deleted_at IS NULL
		ORDER BY t.date DESC, t.created_at DESC
		LIMIT $2
	`, shopID, lim)
}

func (r TransactionRepository) ListByCustomer(ctx context.Context, shopID, customerID string) ([]domain.Transaction, error) {
	return r.query(ctx, `
		SELECT t.id, t.shop_id, t.customer_id, c.name, t.type, t.amount, t.date, t.note, t.created_at
		FROM transactions t
		JOIN customers c ON c.id = t.customer_id
		WHERE t.shop_id=$1 AND t.customer_id=$2 AND t.deleted_at IS NULL
		ORDER BY t.date DESC, t.created_at DESC
	`, shopID, customerID)
}

func (r TransactionRepository) ListByCustomers(ctx context.Context, customerIDs []string) ([]domain.Transaction, error) {
	if len(customerIDs) == 0 {
		return []domain.Transaction{}, nil
	}
	return r.query(ctx, `
		SELECT t.id, t.shop_id, t.customer_id, c.name, t.type, t.amount, t.date, t.note, t.created_at
		FROM transactions t
		JOIN customers c ON c.id = t.customer_id
		WHERE t.customer_id = ANY($1) AND t.deleted_at IS NULL
		ORDER BY t.date DESC, t.created_at DESC
	`, customerIDs)
}

func (r TransactionRepository) query(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.DB.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	var ids []string
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.ShopID, &t.CustomerID, &t.CustomerName, &t.Type, &t.Amount, &t.Date, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		ids = append(ids, t.ID)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return txs, nil
	}

	itemRows, err := r.DB.Pool.Query(ctx, `
		SELECT transaction_id, name, price, quantity, subtotal
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	itemsByTx := make(map[string][]domain.TransactionItem)
	for itemRows.Next() {
		var it domain.TransactionItem
		var txID string
		if err := itemRows.Scan(&txID, &it.Name, &it.Price, &it.Quantity, &it.Subtotal); err != nil {
			return nil, err
		}
		itemsByTx[txID] = append(itemsByTx[txID], it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range txs {
		txs[i].Items = itemsByTx[txs[i].ID]
	}
	return txs, nil
}

func lockCustomer(ctx context.Context, tx pgx.Tx, shopID, customerID string, name *string) error {
	err := tx.QueryRow(ctx, `
		SELECT name FROM customers
		WHERE id=$1 AND shop_id=$2 AND deleted_at IS NULL
		FOR UPDATE
	`, customerID, shopID).Scan(name)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func insertItems(ctx context.Context, tx pgx.Tx, txID string, items []domain.TransactionItem) error {
	for _, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO transaction_items (transaction_id, name, price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5)
		`, txID, it.Name, it.Price, it.Quantity, it.Subtotal)
		if err != nil {
			return err
		}
	}
	return nil
}

// recomputeBalance classifies rows with the same alias rules as the ledger
// filter so stored balances and filtered totals agree.
func recomputeBalance(ctx context.Context, tx pgx.Tx, customerID string) error {
	rows, err := tx.Query(ctx, `
		SELECT type, amount FROM transactions WHERE customer_id=$1 AND deleted_at IS NULL
	`, customerID)
	if err != nil {
		return err
	}
	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.Type, &t.Amount); err != nil {
			rows.Close()
			return err
		}
		txs = append(txs, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE customers SET balance=$2, updated_at=now() WHERE id=$1`, customerID, ledger.Balance(txs))
	return err
}
