package ledger

import (
	"time"

	"shopmunim-backend/internal/domain"
)

// Criteria is the conjunction applied by Filter. Nil bounds are open.
type Criteria struct {
	From *time.Time
	To   *time.Time
	Type TypeFilter
}

// Normalized returns a copy with From moved to the start of its day and To to
// the end of its day.
func (c Criteria) Normalized() Criteria {
	out := Criteria{Type: c.Type}
	if c.From != nil {
		from := StartOfDay(*c.From)
		out.From = &from
	}
	if c.To != nil {
		to := EndOfDay(*c.To)
		out.To = &to
	}
	if out.Type == "" {
		out.Type = TypeAll
	}
	return out
}

// Match reports whether tx satisfies every predicate of an already normalized
// criteria value.
func (c Criteria) Match(tx domain.Transaction) bool {
	if c.From != nil && tx.Date.Before(*c.From) {
		return false
	}
	if c.To != nil && tx.Date.After(*c.To) {
		return false
	}
	return c.Type.Matches(tx.Type)
}

// Filter returns the transactions passing c, in input order. An inverted date
// range yields an empty result rather than an error.
func Filter(txs []domain.Transaction, c Criteria) []domain.Transaction {
	n := c.Normalized()
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if n.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}
