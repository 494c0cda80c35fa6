// Package ledger derives filtered views, summary statistics and pages from a
// list of customer or shop transactions. Nothing in this package mutates the
// slices it is given.
package ledger

import (
	"errors"
	"sort"
	"time"

	"shopmunim-backend/internal/domain"
)

// TypeFilter selects transactions by direction.
type TypeFilter string

const (
	TypeAll     TypeFilter = "all"
	TypeCredit  TypeFilter = "credit"
	TypePayment TypeFilter = "payment"
)

// ErrInvalidTypeFilter is returned by ParseTypeFilter for unknown values.
var ErrInvalidTypeFilter = errors.New("invalid transaction type filter")

// ParseTypeFilter maps a query value to a TypeFilter. Empty means all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	switch TypeFilter(s) {
	case "", TypeAll:
		return TypeAll, nil
	case TypeCredit:
		return TypeCredit, nil
	case TypePayment:
		return TypePayment, nil
	}
	return "", ErrInvalidTypeFilter
}

// The matching sets keep the historical aliasing as-is: the uppercase legacy
// values are inverted relative to the lowercase canonical ones.
var (
	creditTypes  = map[string]struct{}{"credit": {}, "DEBIT": {}}
	paymentTypes = map[string]struct{}{"debit": {}, "payment": {}, "CREDIT": {}}
)

// IsCredit reports whether a raw transaction type counts as goods given on account.
func IsCredit(txType string) bool {
	_, ok := creditTypes[txType]
	return ok
}

// IsPayment reports whether a raw transaction type counts as money received.
func IsPayment(txType string) bool {
	_, ok := paymentTypes[txType]
	return ok
}

// Matches reports whether txType passes the filter.
func (f TypeFilter) Matches(txType string) bool {
	switch f {
	case TypeCredit:
		return IsCredit(txType)
	case TypePayment:
		return IsPayment(txType)
	default:
		return true
	}
}

// SortByDateDesc returns a copy of txs ordered newest first. Equal dates keep
// their input order.
func SortByDateDesc(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// StartOfDay returns 00:00:00.000 of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
