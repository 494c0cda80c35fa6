package ledger

import (
	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/format"

	"github.com/shopspring/decimal"
)

// Summary holds statistics over a filtered set of transactions. NetBalance is
// scoped to that set and is unrelated to the stored customer balance.
type Summary struct {
	Total         int
	CreditCount   int
	CreditAmount  decimal.Decimal
	PaymentCount  int
	PaymentAmount decimal.Decimal
	ItemQuantity  int
	NetBalance    decimal.Decimal
}

// Summarize aggregates txs. Transactions whose type is neither a credit nor a
// payment only count toward Total and ItemQuantity.
func Summarize(txs []domain.Transaction) Summary {
	s := Summary{
		CreditAmount:  decimal.Zero,
		PaymentAmount: decimal.Zero,
	}
	for _, tx := range txs {
		s.Total++
		switch {
		case IsCredit(tx.Type):
			s.CreditCount++
			s.CreditAmount = s.CreditAmount.Add(tx.Amount)
		case IsPayment(tx.Type):
			s.PaymentCount++
			s.PaymentAmount = s.PaymentAmount.Add(tx.Amount)
		}
		for _, it := range tx.Items {
			s.ItemQuantity += it.Quantity
		}
	}
	s.NetBalance = s.PaymentAmount.Sub(s.CreditAmount)
	return s
}

// Balance computes payments minus credits over txs. It is what the server
// stores as a customer's running balance.
func Balance(txs []domain.Transaction) decimal.Decimal {
	return Summarize(txs).NetBalance
}

// SignedAmount renders tx.Amount with a direction prefix: "+" for payments,
// "-" for credits. The stored amount is never negative, so its numeric sign
// is ignored.
func SignedAmount(tx domain.Transaction) string {
	s := format.Currency(tx.Amount.Abs())
	switch {
	case IsPayment(tx.Type):
		return "+" + s
	case IsCredit(tx.Type):
		return "-" + s
	}
	return s
}

// Direction returns a display label for a raw type.
func Direction(txType string) string {
	switch {
	case IsPayment(txType):
		return "Payment"
	case IsCredit(txType):
		return "Credit"
	}
	return txType
}
