package notify

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultTemplate = "Hi {name}, your pending balance at {shop} is {amount}. Please clear it at the earliest. {upi}"

// TemplateVars are the placeholders available in reminder templates.
type TemplateVars struct {
	Name   string
	Amount string
	Shop   string
	UPI    string
}

// Render substitutes {name}, {amount}, {shop} and {upi} in tmpl. An empty
// template uses DefaultTemplate.
func Render(tmpl string, v TemplateVars) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTemplate
	}
	r := strings.NewReplacer(
		"{name}", v.Name,
		"{amount}", v.Amount,
		"{shop}", v.Shop,
		"{upi}", v.UPI,
	)
	return strings.TrimSpace(r.Replace(tmpl))
}

// UPILink builds a upi://pay intent. It returns "" when upiID is empty.
func UPILink(upiID, payee string, amount decimal.Decimal) string {
	if upiID == "" {
		return ""
	}
	q := url.Values{}
	q.Set("pa", upiID)
	if payee != "" {
		q.Set("pn", payee)
	}
	if amount.IsPositive() {
		q.Set("am", amount.StringFixed(2))
	}
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}
