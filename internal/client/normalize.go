package client

import (
	"encoding/json"
	"fmt"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"

	"github.com/shopspring/decimal"
)

type userDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	ActiveRole   string    `json:"active_role"`
	AdminRoles   []string  `json:"admin_roles"`
	ProfilePhoto string    `json:"profile_photo"`
	Verified     bool      `json:"verified"`
	PINSet       bool      `json:"pin_set"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d userDTO) domain() domain.User {
	return domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Phone:        d.Phone,
		ActiveRole:   domain.UserRole(d.ActiveRole),
		AdminRoles:   d.AdminRoles,
		ProfilePhoto: d.ProfilePhoto,
		Verified:     d.Verified,
		PINSet:       d.PINSet,
		CreatedAt:    d.CreatedAt,
	}
}

// normalizeUser accepts {"user":{...}} or a bare user object.
func normalizeUser(raw json.RawMessage) (domain.User, error) {
	var wrapped struct {
		User *userDTO `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", errMalformed)
	}
	if wrapped.User != nil {
		if wrapped.User.ID == "" {
			return domain.User{}, fmt.Errorf("user without id: %w", errMalformed)
		}
		return wrapped.User.domain(), nil
	}
	var bare userDTO
	if err := json.Unmarshal(raw, &bare); err != nil || bare.ID == "" {
		return domain.User{}, fmt.Errorf("decode user: %w", errMalformed)
	}
	return bare.domain(), nil
}

type shopDTO struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Location  string    `json:"location"`
	ShopCode  string    `json:"shop_code"`
	UPIID     string    `json:"upi_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (d shopDTO) domain() domain.Shop {
	return domain.Shop{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Name:      d.Name,
		Category:  d.Category,
		Location:  d.Location,
		ShopCode:  d.ShopCode,
		UPIID:     d.UPIID,
		CreatedAt: d.CreatedAt,
	}
}

type reminderDTO struct {
	Enabled    bool       `json:"enabled"`
	Delay      string     `json:"delay"`
	Frequency  string     `json:"frequency"`
	Method     string     `json:"method"`
	Template   string     `json:"template"`
	LastSentAt *time.Time `json:"last_sent_at"`
}

type customerDTO struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shop_id"`
	UserID    *string         `json:"user_id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Nickname  string          `json:"nickname"`
	Balance   decimal.Decimal `json:"balance"`
	Reminder  reminderDTO     `json:"reminder"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (d customerDTO) domain() domain.Customer {
	return domain.Customer{
		ID:       d.ID,
		ShopID:   d.ShopID,
		UserID:   d.UserID,
		Name:     d.Name,
		Phone:    d.Phone,
		Nickname: d.Nickname,
		Balance:  d.Balance,
		Reminder: domain.ReminderSettings{
			Enabled:    d.Reminder.Enabled,
			Delay:      domain.ReminderDelay(d.Reminder.Delay),
			Frequency:  domain.ReminderFrequency(d.Reminder.Frequency),
			Method:     domain.NotificationMethod(d.Reminder.Method),
			Template:   d.Reminder.Template,
			LastSentAt: d.Reminder.LastSentAt,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type productDTO struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shop_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (d productDTO) domain() domain.Product {
	return domain.Product{
		ID:        d.ID,
		ShopID:    d.ShopID,
		Name:      d.Name,
		Price:     d.Price,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type itemDTO struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type transactionDTO struct {
	ID           string          `json:"id"`
	ShopID       string          `json:"shop_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Note         string          `json:"note"`
	Items        []itemDTO       `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (d transactionDTO) domain() domain.Transaction {
	items := make([]domain.TransactionItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.TransactionItem{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Subtotal: it.Subtotal,
		})
	}
	return domain.Transaction{
		ID:           d.ID,
		ShopID:       d.ShopID,
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		Type:         d.Type,
		Amount:       d.Amount,
		Date:         d.Date,
		Note:         d.Note,
		Items:        items,
		CreatedAt:    d.CreatedAt,
	}
}

type notificationDTO struct {
	ID          string     `json:"id"`
	ShopID      string     `json:"shop_id"`
	CustomerID  string     `json:"customer_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Method      string     `json:"method"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (d notificationDTO) domain() domain.Notification {
	return domain.Notification{
		ID:          d.ID,
		ShopID:      d.ShopID,
		CustomerID:  d.CustomerID,
		Title:       d.Title,
		Body:        d.Body,
		Method:      domain.NotificationMethod(d.Method),
		Status:      domain.NotificationStatus(d.Status),
		ScheduledAt: d.ScheduledAt,
		CreatedAt:   d.CreatedAt,
	}
}

type summaryDTO struct {
	Total         int             `json:"total"`
	CreditCount   int             `json:"credit_count"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	PaymentCount  int             `json:"payment_count"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	ItemQuantity  int             `json:"item_quantity"`
	NetBalance    decimal.Decimal `json:"net_balance"`
}

func (d summaryDTO) domain() ledger.Summary {
	return ledger.Summary{
		Total:         d.Total,
		CreditCount:   d.CreditCount,
		CreditAmount:  d.CreditAmount,
		PaymentCount:  d.PaymentCount,
		PaymentAmount: d.PaymentAmount,
		ItemQuantity:  d.ItemQuantity,
		NetBalance:    d.NetBalance,
	}
}

// decodeList decodes a JSON array and converts each element. A null payload
// is an empty list.
func decodeList[D interface{ domain() T }, T any](raw json.RawMessage) ([]T, error) {
	var dtos []D
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, fmt.Errorf("decode list: %w", errMalformed)
	}
	out := make([]T, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.domain())
	}
	return out, nil
}

func decodeOne[D interface{ domain() T }, T any](raw json.RawMessage) (T, error) {
	var d D
	if err := json.Unmarshal(raw, &d); err != nil {
		var zero T
		return zero, fmt.Errorf("decode object: %w", errMalformed)
	}
	return d.domain(), nil
}
