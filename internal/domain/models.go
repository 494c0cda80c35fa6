package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Enumerations
const (
	RoleCustomer  UserRole = "customer"
	RoleShopOwner UserRole = "shop_owner"
	RoleAdmin     UserRole = "admin"

	// Canonical transaction types. Legacy aliases ("payment", "CREDIT", "DEBIT")
	// are still accepted on read; see ledger.IsCredit and ledger.IsPayment.
	TransactionCredit = "credit"
	TransactionDebit  = "debit"

	MethodPush     NotificationMethod = "Push Notification"
	MethodSMS      NotificationMethod = "SMS Message"
	MethodWhatsApp NotificationMethod = "WhatsApp"
	MethodCall     NotificationMethod = "Phone Call"

	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationScheduled NotificationStatus = "scheduled"

	ReminderOnce    ReminderFrequency = "once"
	ReminderDaily   ReminderFrequency = "daily"
	ReminderWeekly  ReminderFrequency = "weekly"
	ReminderMonthly ReminderFrequency = "monthly"
)

type UserRole string
type NotificationMethod string
type NotificationStatus string
type ReminderFrequency string

// ReminderDelay is how long after a customer's last transaction the first
// automatic reminder goes out.
type ReminderDelay string

const (
	Delay1Day   ReminderDelay = "1_day"
	Delay3Days  ReminderDelay = "3_days"
	Delay7Days  ReminderDelay = "7_days"
	Delay15Days ReminderDelay = "15_days"
	Delay30Days ReminderDelay = "30_days"
)

// Duration maps a delay bucket to a duration. Unknown buckets fall back to 3 days.
func (d ReminderDelay) Duration() time.Duration {
	day := 24 * time.Hour
	switch d {
	case Delay1Day:
		return day
	case Delay7Days:
		return 7 * day
	case Delay15Days:
		return 15 * day
	case Delay30Days:
		return 30 * day
	default:
		return 3 * day
	}
}

func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleShopOwner, RoleAdmin:
		return true
	}
	return false
}

func (m NotificationMethod) Valid() bool {
	switch m {
	case MethodPush, MethodSMS, MethodWhatsApp, MethodCall:
		return true
	}
	return false
}

type User struct {
	ID           string
	Name         string
	Phone        string
	ActiveRole   UserRole
	AdminRoles   []string
	ProfilePhoto string
	Verified     bool
	PINSet       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanAssume reports whether the user may switch into role.
func (u User) CanAssume(role UserRole) bool {
	switch role {
	case RoleCustomer, RoleShopOwner:
		return true
	case RoleAdmin:
		return len(u.AdminRoles) > 0
	}
	return false
}

type Session struct {
	ID         string
	UserID     string
	Device     string
	OS         string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

type DeviceToken struct {
	UserID   string
	Token    string
	Platform string
}

type Shop struct {
	ID        string
	OwnerID   string
	Name      string
	Category  string
	Location  string
	ShopCode  string
	UPIID     string
	CreatedAt time.Time
}

type ReminderSettings struct {
	Enabled    bool
	Delay      ReminderDelay
	Frequency  ReminderFrequency
	Method     NotificationMethod
	Template   string
	LastSentAt *time.Time
}

type Customer struct {
	ID       string
	ShopID   string
	UserID   *string
	Name     string
	Phone    string
	Nickname string
	// Balance is the all-time net (payments - credits); negative means the
	// customer owes the shop.
	Balance   decimal.Decimal
	Reminder  ReminderSettings
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID        string
	ShopID    string
	Name      string
	Price     decimal.Decimal
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Transaction struct {
	ID           string
	ShopID       string
	CustomerID   string
	CustomerName string
	// Type is the raw stored value, legacy aliases included.
	Type      string
	Amount    decimal.Decimal
	Date      time.Time
	Note      string
	Items     []TransactionItem
	CreatedAt time.Time
}

type TransactionItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
	Subtotal decimal.Decimal
}

type Notification struct {
	ID          string
	ShopID      string
	CustomerID  string
	Title       string
	Body        string
	Method      NotificationMethod
	Status      NotificationStatus
	ScheduledAt *time.Time
	CreatedAt   time.Time
}

type DataExportRequest struct {
	ID        string
	UserID    string
	Status    string
	CreatedAt time.Time
}
