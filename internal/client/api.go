package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Auth

type SendOTPRequest struct {
	Phone         string `json:"phone"`
	Name          string `json:"name,omitempty"`
	IsLogin       bool   `json:"is_login"`
	TermsAccepted bool   `json:"terms_accepted"`
}

type OTPSent struct {
	Message string `json:"message"`
	// OTP is only echoed by development servers.
	OTP string `json:"otp"`
}

type VerifyOTPRequest struct {
	Phone         string `json:"phone"`
	OTP           string `json:"otp"`
	Name          string `json:"name,omitempty"`
	TermsAccepted bool   `json:"terms_accepted"`
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type SessionInfo struct {
	domain.Session
	Current bool
}

type ExportRequest struct {
	ID      string `json:"request_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *Client) SendOTP(ctx context.Context, req SendOTPRequest) (OTPSent, error) {
	raw, err := c.post(ctx, "/auth/send-otp", req)
	if err != nil {
		return OTPSent{}, err
	}
	var out OTPSent
	if err := json.Unmarshal(raw, &out); err != nil {
		return OTPSent{}, fmt.Errorf("decode otp response: %w", errMalformed)
	}
	return out, nil
}

func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (AuthResult, error) {
	raw, err := c.post(ctx, "/auth/verify-otp", req)
	if err != nil {
		return AuthResult{}, err
	}
	return normalizeAuth(raw)
}

func (c *Client) LoginWithFirebase(ctx context.Context, idToken string) (AuthResult, error) {
	raw, err := c.post(ctx, "/auth/firebase", map[string]string{"id_token": idToken})
	if err != nil {
		return AuthResult{}, err
	}
	return normalizeAuth(raw)
}

func normalizeAuth(raw json.RawMessage) (AuthResult, error) {
	var body struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Token == "" {
		return AuthResult{}, fmt.Errorf("decode auth response: %w", errMalformed)
	}
	user, err := normalizeUser(raw)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: body.Token, ExpiresAt: body.ExpiresAt, User: user}, nil
}

func (c *Client) GetMe(ctx context.Context) (domain.User, error) {
	raw, err := c.get(ctx, "/auth/me", nil)
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(raw)
}

func (c *Client) SwitchRole(ctx context.Context, role domain.UserRole) (domain.User, error) {
	raw, err := c.post(ctx, "/auth/switch-role", map[string]string{"role": string(role)})
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(raw)
}

func (c *Client) UpdateProfile(ctx context.Context, patch ProfileUpdate) (domain.User, error) {
	raw, err := c.put(ctx, "/auth/profile", patch)
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(raw)
}

// UploadProfilePhoto sends a base64 data URI or plain base64 image.
func (c *Client) UploadProfilePhoto(ctx context.Context, photo string) (domain.User, error) {
	raw, err := c.post(ctx, "/auth/profile-photo", map[string]string{"photo": photo})
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(raw)
}

func (c *Client) RemoveProfilePhoto(ctx context.Context) (domain.User, error) {
	raw, err := c.do(ctx, "DELETE", "/auth/profile-photo", nil, nil)
	if err != nil {
		return domain.User{}, err
	}
	return normalizeUser(raw)
}

func (c *Client) SetPIN(ctx context.Context, pin string) error {
	_, err := c.post(ctx, "/auth/pin", map[string]string{"pin": pin})
	return err
}

func (c *Client) VerifyPIN(ctx context.Context, pin string) error {
	_, err := c.post(ctx, "/auth/pin/verify", map[string]string{"pin": pin})
	return err
}

func (c *Client) ResetPIN(ctx context.Context) error {
	_, err := c.post(ctx, "/auth/reset-pin", nil)
	return err
}

func (c *Client) GetSessions(ctx context.Context) ([]SessionInfo, error) {
	raw, err := c.get(ctx, "/auth/sessions", nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		Sessions []struct {
			ID         string    `json:"id"`
			Device     string    `json:"device"`
			OS         string    `json:"os"`
			Current    bool      `json:"current"`
			CreatedAt  time.Time `json:"created_at"`
			LastSeenAt time.Time `json:"last_seen_at"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", errMalformed)
	}
	out := make([]SessionInfo, 0, len(body.Sessions))
	for _, s := range body.Sessions {
		out = append(out, SessionInfo{
			Session: domain.Session{
				ID:         s.ID,
				Device:     s.Device,
				OS:         s.OS,
				CreatedAt:  s.CreatedAt,
				LastSeenAt: s.LastSeenAt,
			},
			Current: s.Current,
		})
	}
	return out, nil
}

func (c *Client) RequestDataExport(ctx context.Context) (ExportRequest, error) {
	raw, err := c.post(ctx, "/auth/data-export", nil)
	if err != nil {
		return ExportRequest{}, err
	}
	var out ExportRequest
	if err := json.Unmarshal(raw, &out); err != nil {
		return ExportRequest{}, fmt.Errorf("decode export request: %w", errMalformed)
	}
	return out, nil
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.delete(ctx, "/auth/account")
}

func (c *Client) RegisterDevice(ctx context.Context, token, platform string) error {
	_, err := c.post(ctx, "/devices", map[string]string{"token": token, "platform": platform})
	return err
}

func (c *Client) UnregisterDevice(ctx context.Context, token string) error {
	return c.delete(ctx, "/devices/"+url.PathEscape(token))
}

// Shops

type NewShop struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Location string `json:"location,omitempty"`
	UPIID    string `json:"upi_id,omitempty"`
}

type Dashboard struct {
	Shop               domain.Shop
	TotalCustomers     int
	TotalProducts      int
	TotalTransactions  int
	TotalOutstanding   decimal.Decimal
	Summary            ledger.Summary
	RecentTransactions []domain.Transaction
}

func (c *Client) ListShops(ctx context.Context) ([]domain.Shop, error) {
	raw, err := c.get(ctx, "/shops", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[shopDTO, domain.Shop](raw)
}

func (c *Client) CreateShop(ctx context.Context, in NewShop) (domain.Shop, error) {
	raw, err := c.post(ctx, "/shops", in)
	if err != nil {
		return domain.Shop{}, err
	}
	return decodeOne[shopDTO, domain.Shop](raw)
}

func (c *Client) ShopDashboard(ctx context.Context, shopID string) (Dashboard, error) {
	raw, err := c.get(ctx, shopPath(shopID, "dashboard"), nil)
	if err != nil {
		return Dashboard{}, err
	}
	var body struct {
		Shop               shopDTO          `json:"shop"`
		TotalCustomers     int              `json:"total_customers"`
		TotalProducts      int              `json:"total_products"`
		TotalTransactions  int              `json:"total_transactions"`
		TotalOutstanding   decimal.Decimal  `json:"total_outstanding"`
		Summary            summaryDTO       `json:"summary"`
		RecentTransactions []transactionDTO `json:"recent_transactions"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Dashboard{}, fmt.Errorf("decode dashboard: %w", errMalformed)
	}
	recent := make([]domain.Transaction, 0, len(body.RecentTransactions))
	for _, t := range body.RecentTransactions {
		recent = append(recent, t.domain())
	}
	return Dashboard{
		Shop:               body.Shop.domain(),
		TotalCustomers:     body.TotalCustomers,
		TotalProducts:      body.TotalProducts,
		TotalTransactions:  body.TotalTransactions,
		TotalOutstanding:   body.TotalOutstanding,
		Summary:            body.Summary.domain(),
		RecentTransactions: recent,
	}, nil
}

// Customers

type NewCustomer struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Nickname string `json:"nickname,omitempty"`
}

type ReminderUpdate struct {
	Enabled   bool   `json:"enabled"`
	Delay     string `json:"delay,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Method    string `json:"method,omitempty"`
	Template  string `json:"template,omitempty"`
}

type CustomerUpdate struct {
	Name     *string         `json:"name,omitempty"`
	Phone    *string         `json:"phone,omitempty"`
	Nickname *string         `json:"nickname,omitempty"`
	Reminder *ReminderUpdate `json:"reminder,omitempty"`
}

// LedgerParams selects a filtered page of a customer's ledger.
type LedgerParams struct {
	From    *time.Time
	To      *time.Time
	Type    ledger.TypeFilter
	Page    int
	PerPage int
}

func (p LedgerParams) values() url.Values {
	v := url.Values{}
	if p.From != nil {
		v.Set("from", p.From.Format(dateLayout))
	}
	if p.To != nil {
		v.Set("to", p.To.Format(dateLayout))
	}
	if p.Type != "" {
		v.Set("type", string(p.Type))
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	return v
}

type LedgerPage struct {
	Transactions []domain.Transaction
	Summary      ledger.Summary
	CurrentPage  int
	PerPage      int
	TotalPages   int
	TotalItems   int
}

type NotifyRequest struct {
	Title       string                    `json:"title"`
	Body        string                    `json:"body"`
	Method      domain.NotificationMethod `json:"method"`
	ScheduledAt *time.Time                `json:"scheduled_at,omitempty"`
}

type NotifyResult struct {
	Notification domain.Notification
	// Link is the wa.me or tel: deep link for manual methods.
	Link  string
	Error string
}

func (c *Client) ListCustomers(ctx context.Context, shopID string) ([]domain.Customer, error) {
	raw, err := c.get(ctx, shopPath(shopID, "customers"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[customerDTO, domain.Customer](raw)
}

func (c *Client) CreateCustomer(ctx context.Context, shopID string, in NewCustomer) (domain.Customer, error) {
	raw, err := c.post(ctx, shopPath(shopID, "customers"), in)
	if err != nil {
		return domain.Customer{}, err
	}
	return decodeOne[customerDTO, domain.Customer](raw)
}

func (c *Client) UpdateCustomer(ctx context.Context, shopID, customerID string, in CustomerUpdate) (domain.Customer, error) {
	raw, err := c.put(ctx, shopPath(shopID, "customers", customerID), in)
	if err != nil {
		return domain.Customer{}, err
	}
	return decodeOne[customerDTO, domain.Customer](raw)
}

// CustomerTransactions returns the customer's full ledger, newest first.
func (c *Client) CustomerTransactions(ctx context.Context, shopID, customerID string) ([]domain.Transaction, error) {
	raw, err := c.get(ctx, shopPath(shopID, "customers", customerID, "transactions"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[transactionDTO, domain.Transaction](raw)
}

// CustomerLedger returns one filtered page plus the summary of the whole
// filtered set.
func (c *Client) CustomerLedger(ctx context.Context, shopID, customerID string, p LedgerParams) (LedgerPage, error) {
	raw, err := c.get(ctx, shopPath(shopID, "customers", customerID, "transactions"), p.values())
	if err != nil {
		return LedgerPage{}, err
	}
	var body struct {
		Transactions []transactionDTO `json:"transactions"`
		Summary      summaryDTO       `json:"summary"`
		Page         struct {
			CurrentPage int `json:"current_page"`
			PerPage     int `json:"per_page"`
			TotalPages  int `json:"total_pages"`
			TotalItems  int `json:"total_items"`
		} `json:"page"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return LedgerPage{}, fmt.Errorf("decode ledger page: %w", errMalformed)
	}
	txs := make([]domain.Transaction, 0, len(body.Transactions))
	for _, t := range body.Transactions {
		txs = append(txs, t.domain())
	}
	return LedgerPage{
		Transactions: txs,
		Summary:      body.Summary.domain(),
		CurrentPage:  body.Page.CurrentPage,
		PerPage:      body.Page.PerPage,
		TotalPages:   body.Page.TotalPages,
		TotalItems:   body.Page.TotalItems,
	}, nil
}

func (c *Client) NotifyPayment(ctx context.Context, shopID, customerID string, in NotifyRequest) (NotifyResult, error) {
	raw, err := c.post(ctx, shopPath(shopID, "customers", customerID, "notify"), in)
	if err != nil {
		return NotifyResult{}, err
	}
	var body struct {
		notificationDTO
		Link  string `json:"link"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return NotifyResult{}, fmt.Errorf("decode notify response: %w", errMalformed)
	}
	return NotifyResult{Notification: body.notificationDTO.domain(), Link: body.Link, Error: body.Error}, nil
}

func (c *Client) CustomerNotifications(ctx context.Context, shopID, customerID string) ([]domain.Notification, error) {
	raw, err := c.get(ctx, shopPath(shopID, "customers", customerID, "notifications"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[notificationDTO, domain.Notification](raw)
}

// Products

type NewProduct struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type ProductUpdate struct {
	Name   *string          `json:"name,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

func (c *Client) ListProducts(ctx context.Context, shopID string) ([]domain.Product, error) {
	raw, err := c.get(ctx, shopPath(shopID, "products"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[productDTO, domain.Product](raw)
}

func (c *Client) CreateProduct(ctx context.Context, shopID string, in NewProduct) (domain.Product, error) {
	raw, err := c.post(ctx, shopPath(shopID, "products"), in)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeOne[productDTO, domain.Product](raw)
}

func (c *Client) UpdateProduct(ctx context.Context, shopID, productID string, in ProductUpdate) (domain.Product, error) {
	raw, err := c.put(ctx, shopPath(shopID, "products", productID), in)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeOne[productDTO, domain.Product](raw)
}

func (c *Client) DeleteProduct(ctx context.Context, shopID, productID string) error {
	return c.delete(ctx, shopPath(shopID, "products", productID))
}

// Transactions

type NewItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type NewTransaction struct {
	CustomerID string `json:"customer_id"`
	Type       string `json:"type"`
	// Amount may be left nil when Items are given.
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Date   *time.Time       `json:"date,omitempty"`
	Note   string           `json:"note,omitempty"`
	Items  []NewItem        `json:"items,omitempty"`
}

type TransactionUpdate struct {
	Type   *string          `json:"type,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Date   *time.Time       `json:"date,omitempty"`
	Note   *string          `json:"note,omitempty"`
	Items  *[]NewItem       `json:"items,omitempty"`
}

func (c *Client) ListTransactions(ctx context.Context, shopID string) ([]domain.Transaction, error) {
	raw, err := c.get(ctx, shopPath(shopID, "transactions"), nil)
	if err != nil {
		return nil, err
	}
	return decodeList[transactionDTO, domain.Transaction](raw)
}

func (c *Client) CreateTransaction(ctx context.Context, shopID string, in NewTransaction) (domain.Transaction, error) {
	raw, err := c.post(ctx, shopPath(shopID, "transactions"), in)
	if err != nil {
		return domain.Transaction{}, err
	}
	return decodeOne[transactionDTO, domain.Transaction](raw)
}

func (c *Client) UpdateTransaction(ctx context.Context, shopID, transactionID string, in TransactionUpdate) (domain.Transaction, error) {
	raw, err := c.put(ctx, shopPath(shopID, "transactions", transactionID), in)
	if err != nil {
		return domain.Transaction{}, err
	}
	return decodeOne[transactionDTO, domain.Transaction](raw)
}

func (c *Client) DeleteTransaction(ctx context.Context, shopID, transactionID string) error {
	return c.delete(ctx, shopPath(shopID, "transactions", transactionID))
}

// ShopLedger loads the customers first and only then the transactions, so
// every transaction can be labelled with its customer's current name. The
// result is sorted newest first.
func (c *Client) ShopLedger(ctx context.Context, shopID string) ([]domain.Transaction, error) {
	customers, err := c.ListCustomers(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	names := make(map[string]string, len(customers))
	for _, cu := range customers {
		names[cu.ID] = cu.Name
	}
	txs, err := c.ListTransactions(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for i := range txs {
		if name, ok := names[txs[i].CustomerID]; ok {
			txs[i].CustomerName = name
		} else if txs[i].CustomerName == "" {
			txs[i].CustomerName = "Unknown"
		}
	}
	return ledger.SortByDateDesc(txs), nil
}
