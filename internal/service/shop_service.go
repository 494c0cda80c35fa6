package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"
	"shopmunim-backend/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	ErrForbidden       = errors.New("you do not have access to this shop")
	ErrShopNotFound    = errors.New("shop not found")
	ErrInvalidAmount   = errors.New("amount must be zero or more")
	ErrInvalidType     = errors.New("type must be credit or debit")
	ErrInvalidItem     = errors.New("each item needs a name, a price of zero or more and a positive quantity")
	ErrAmountRequired  = errors.New("amount is required when no items are given")
	ErrCustomerMissing = errors.New("customer not found")
)

// ShopService owns shop-scoped reads and the rules around transactions.
type ShopService struct {
	Shops        repository.ShopRepository
	Customers    repository.CustomerRepository
	Transactions repository.TransactionRepository
	Dashboard    repository.DashboardRepository
}

type Dashboard struct {
	Shop               domain.Shop
	TotalCustomers     int64
	TotalProducts      int64
	TotalTransactions  int64
	TotalOutstanding   decimal.Decimal
	Summary            ledger.Summary
	RecentTransactions []domain.Transaction
}

type TransactionInput struct {
	CustomerID string
	Type       string
	// Amount nil means "sum of item subtotals".
	Amount *decimal.Decimal
	Date   *time.Time
	Note   string
	Items  []domain.TransactionItem
}

// LedgerQuery selects a window of a customer's transactions.
type LedgerQuery struct {
	Criteria ledger.Criteria
	Page     int
	PerPage  int
}

type LedgerResult struct {
	Transactions []domain.Transaction
	Summary      ledger.Summary
	Page         ledger.Page
}

// Authorize loads the shop and checks that userID owns it. Admins may read
// any shop.
func (s ShopService) Authorize(ctx context.Context, userID string, role domain.UserRole, shopID string) (*domain.Shop, error) {
	shop, err := s.Shops.Get(ctx, shopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	if shop.OwnerID != userID && role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return shop, nil
}

// ListShops returns owned shops for owners and admins, and shops holding a
// customer account for customers.
func (s ShopService) ListShops(ctx context.Context, user domain.User) ([]domain.Shop, error) {
	if user.ActiveRole == domain.RoleCustomer {
		return s.Shops.ListForCustomer(ctx, user.ID, user.Phone)
	}
	return s.Shops.ListByOwner(ctx, user.ID)
}

func (s ShopService) BuildDashboard(ctx context.Context, shop domain.Shop) (*Dashboard, error) {
	counts, err := s.Dashboard.Counts(ctx, shop.ID)
	if err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	txs, err := s.Transactions.ListByShop(ctx, shop.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("dashboard transactions: %w", err)
	}
	sorted := ledger.SortByDateDesc(txs)
	recent := sorted
	if len(recent) > 10 {
		recent = recent[:10]
	}
	return &Dashboard{
		Shop:               shop,
		TotalCustomers:     counts.Customers,
		TotalProducts:      counts.Products,
		TotalTransactions:  counts.Transactions,
		TotalOutstanding:   counts.TotalOutstanding,
		Summary:            ledger.Summarize(sorted),
		RecentTransactions: recent,
	}, nil
}

func (s ShopService) Customer(ctx context.Context, shopID, customerID string) (*domain.Customer, error) {
	c, err := s.Customers.Get(ctx, shopID, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCustomerMissing
	}
	return c, err
}

// CustomerLedger filters, summarizes and pages one customer's transactions.
func (s ShopService) CustomerLedger(ctx context.Context, shopID, customerID string, q LedgerQuery) (*LedgerResult, error) {
	txs, err := s.Transactions.ListByCustomer(ctx, shopID, customerID)
	if err != nil {
		return nil, err
	}
	return BuildLedger(txs, q)
}

// BuildLedger applies q to txs in the same order the ledger screen does:
// sort once, filter, summarize the filtered set, then page it.
func BuildLedger(txs []domain.Transaction, q LedgerQuery) (*LedgerResult, error) {
	perPage := q.PerPage
	if perPage == 0 {
		perPage = ledger.DefaultPerPage
	}
	filtered := ledger.Filter(ledger.SortByDateDesc(txs), q.Criteria)
	page, err := ledger.Paginate(filtered, q.Page, perPage)
	if err != nil {
		return nil, err
	}
	return &LedgerResult{
		Transactions: page.Items,
		Summary:      ledger.Summarize(filtered),
		Page:         page,
	}, nil
}

// MyLedger returns a customer's entries across all shops, newest first.
func (s ShopService) MyLedger(ctx context.Context, user domain.User) ([]domain.Customer, []domain.Transaction, error) {
	customers, err := s.Customers.ListForUser(ctx, user.ID, user.Phone)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}
	txs, err := s.Transactions.ListByCustomers(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return customers, ledger.SortByDateDesc(txs), nil
}

func (s ShopService) CreateTransaction(ctx context.Context, shopID string, in TransactionInput) (*domain.Transaction, error) {
	items, amount, err := PrepareTransaction(in.Type, in.Amount, in.Items)
	if err != nil {
		return nil, err
	}
	date := time.Now()
	if in.Date != nil {
		date = *in.Date
	}
	tx, err := s.Transactions.Create(ctx, repository.CreateTransactionInput{
		ShopID:     shopID,
		CustomerID: in.CustomerID,
		Type:       in.Type,
		Amount:     amount,
		Date:       date,
		Note:       strings.TrimSpace(in.Note),
		Items:      items,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCustomerMissing
	}
	return tx, err
}

// UpdateTransaction applies a partial update. When items are replaced and
// no amount is given, the amount follows the new items.
func (s ShopService) UpdateTransaction(ctx context.Context, shopID, id string, in repository.UpdateTransactionInput) (*domain.Transaction, error) {
	if in.Type != nil && !validType(*in.Type) {
		return nil, ErrInvalidType
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if in.Items != nil {
		items, total, err := prepareItems(*in.Items)
		if err != nil {
			return nil, err
		}
		in.Items = &items
		if in.Amount == nil {
			in.Amount = &total
		}
	}
	return s.Transactions.Update(ctx, shopID, id, in)
}

func (s ShopService) DeleteTransaction(ctx context.Context, shopID, id string) error {
	return s.Transactions.Delete(ctx, shopID, id)
}

// PrepareTransaction validates a new transaction and fills item subtotals.
// A missing amount is computed from the items.
func PrepareTransaction(txType string, amount *decimal.Decimal, items []domain.TransactionItem) ([]domain.TransactionItem, decimal.Decimal, error) {
	if !validType(txType) {
		return nil, decimal.Zero, ErrInvalidType
	}
	prepared, total, err := prepareItems(items)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if amount == nil {
		if len(prepared) == 0 {
			return nil, decimal.Zero, ErrAmountRequired
		}
		return prepared, total, nil
	}
	if amount.IsNegative() {
		return nil, decimal.Zero, ErrInvalidAmount
	}
	return prepared, *amount, nil
}

func prepareItems(items []domain.TransactionItem) ([]domain.TransactionItem, decimal.Decimal, error) {
	out := make([]domain.TransactionItem, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			return nil, decimal.Zero, ErrInvalidItem
		}
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(it.Subtotal)
		out = append(out, it)
	}
	return out, total, nil
}

func validType(t string) bool {
	return ledger.IsCredit(t) || ledger.IsPayment(t)
}
