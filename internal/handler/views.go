package handler

import (
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"

	"github.com/shopspring/decimal"
)

// money renders amounts as JSON numbers, which is what the app expects.
func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func toUser(u domain.User) map[string]any {
	adminRoles := u.AdminRoles
	if adminRoles == nil {
		adminRoles = []string{}
	}
	return map[string]any{
		"id":            u.ID,
		"name":          u.Name,
		"phone":         u.Phone,
		"active_role":   string(u.ActiveRole),
		"admin_roles":   adminRoles,
		"profile_photo": u.ProfilePhoto,
		"verified":      u.Verified,
		"pin_set":       u.PINSet,
		"created_at":    u.CreatedAt,
	}
}

func toShop(s domain.Shop) map[string]any {
	return map[string]any{
		"id":         s.ID,
		"owner_id":   s.OwnerID,
		"name":       s.Name,
		"category":   s.Category,
		"location":   s.Location,
		"shop_code":  s.ShopCode,
		"upi_id":     s.UPIID,
		"created_at": s.CreatedAt,
	}
}

func toShops(items []domain.Shop) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, s := range items {
		out = append(out, toShop(s))
	}
	return out
}

func toCustomer(c domain.Customer) map[string]any {
	return map[string]any{
		"id":       c.ID,
		"shop_id":  c.ShopID,
		"user_id":  c.UserID,
		"name":     c.Name,
		"phone":    c.Phone,
		"nickname": c.Nickname,
		"balance":  money(c.Balance),
		"reminder": map[string]any{
			"enabled":      c.Reminder.Enabled,
			"delay":        string(c.Reminder.Delay),
			"frequency":    string(c.Reminder.Frequency),
			"method":       string(c.Reminder.Method),
			"template":     c.Reminder.Template,
			"last_sent_at": timeOrNil(c.Reminder.LastSentAt),
		},
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}

func toCustomers(items []domain.Customer) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, c := range items {
		out = append(out, toCustomer(c))
	}
	return out
}

func toProduct(p domain.Product) map[string]any {
	return map[string]any{
		"id":         p.ID,
		"shop_id":    p.ShopID,
		"name":       p.Name,
		"price":      money(p.Price),
		"active":     p.Active,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
	}
}

func toTransaction(t domain.Transaction) map[string]any {
	items := make([]map[string]any, 0, len(t.Items))
	for _, it := range t.Items {
		items = append(items, map[string]any{
			"name":     it.Name,
			"price":    money(it.Price),
			"quantity": it.Quantity,
			"subtotal": money(it.Subtotal),
		})
	}
	return map[string]any{
		"id":            t.ID,
		"shop_id":       t.ShopID,
		"customer_id":   t.CustomerID,
		"customer_name": t.CustomerName,
		"type":          t.Type,
		"amount":        money(t.Amount),
		"signed_amount": ledger.SignedAmount(t),
		"date":          t.Date,
		"note":          t.Note,
		"items":         items,
		"created_at":    t.CreatedAt,
	}
}

func toTransactions(items []domain.Transaction) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, t := range items {
		out = append(out, toTransaction(t))
	}
	return out
}

func toNotification(n domain.Notification) map[string]any {
	return map[string]any{
		"id":           n.ID,
		"shop_id":      n.ShopID,
		"customer_id":  n.CustomerID,
		"title":        n.Title,
		"body":         n.Body,
		"method":       string(n.Method),
		"status":       string(n.Status),
		"scheduled_at": timeOrNil(n.ScheduledAt),
		"created_at":   n.CreatedAt,
	}
}

func toSummary(s ledger.Summary) map[string]any {
	return map[string]any{
		"total":          s.Total,
		"credit_count":   s.CreditCount,
		"credit_amount":  money(s.CreditAmount),
		"payment_count":  s.PaymentCount,
		"payment_amount": money(s.PaymentAmount),
		"item_quantity":  s.ItemQuantity,
		"net_balance":    money(s.NetBalance),
	}
}

func toPage(p ledger.Page) map[string]any {
	return map[string]any{
		"current_page": p.CurrentPage,
		"per_page":     p.PerPage,
		"total_pages":  p.TotalPages,
		"total_items":  p.TotalItems,
	}
}
