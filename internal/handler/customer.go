package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/export"
	"shopmunim-backend/internal/format"
	"shopmunim-backend/internal/ledger"
	"shopmunim-backend/internal/repository"
	"shopmunim-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	Shops     *service.ShopService
	Reminders *service.ReminderService
}

func (h CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shops/{shopID}/customers", h.list)
	r.Post("/shops/{shopID}/customers", h.create)
	r.Put("/shops/{shopID}/customers/{customerID}", h.update)
	r.Get("/shops/{shopID}/customers/{customerID}/transactions", h.transactions)
	r.Get("/shops/{shopID}/customers/{customerID}/transactions/export", h.export)
	r.Post("/shops/{shopID}/customers/{customerID}/notify", h.notify)
	r.Get("/shops/{shopID}/customers/{customerID}/notifications", h.notifications)
}

func (h CustomerHandler) list(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	items, err := h.Shops.Customers.List(r.Context(), shop.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomers(items))
}

func (h CustomerHandler) create(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Nickname string `json:"nickname"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	phone := format.NormalizePhone(req.Phone)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "customer name is required")
		return
	}
	if !format.ValidPhone(phone) {
		writeServiceError(w, service.ErrInvalidPhone)
		return
	}
	c, err := h.Shops.Customers.Create(r.Context(), repository.CreateCustomerParams{
		ShopID:   shop.ID,
		Name:     req.Name,
		Phone:    phone,
		Nickname: strings.TrimSpace(req.Nickname),
	})
	if err != nil {
		if repository.IsDuplicate(err) {
			writeError(w, http.StatusConflict, "a customer with this phone number already exists")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomer(*c))
}

type reminderPayload struct {
	Enabled   bool   `json:"enabled"`
	Delay     string `json:"delay"`
	Frequency string `json:"frequency"`
	Method    string `json:"method"`
	Template  string `json:"template"`
}

func (h CustomerHandler) update(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		Name     *string          `json:"name"`
		Phone    *string          `json:"phone"`
		Nickname *string          `json:"nickname"`
		Reminder *reminderPayload `json:"reminder"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	in := repository.UpdateCustomerParams{Nickname: req.Nickname}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "customer name is required")
			return
		}
		in.Name = &name
	}
	if req.Phone != nil {
		phone := format.NormalizePhone(*req.Phone)
		if !format.ValidPhone(phone) {
			writeServiceError(w, service.ErrInvalidPhone)
			return
		}
		in.Phone = &phone
	}
	if rp := req.Reminder; rp != nil {
		method := domain.NotificationMethod(rp.Method)
		if rp.Method != "" && !method.Valid() {
			writeServiceError(w, service.ErrInvalidMethod)
			return
		}
		in.Reminder = &domain.ReminderSettings{
			Enabled:   rp.Enabled,
			Delay:     domain.ReminderDelay(rp.Delay),
			Frequency: domain.ReminderFrequency(rp.Frequency),
			Method:    method,
			Template:  rp.Template,
		}
	}
	c, err := h.Shops.Customers.Update(r.Context(), shop.ID, chi.URLParam(r, "customerID"), in)
	if err != nil {
		if repository.IsDuplicate(err) {
			writeError(w, http.StatusConflict, "a customer with this phone number already exists")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomer(*c))
}

// transactions returns the plain newest-first list unless a ledger query is
// present, in which case it returns one filtered page plus its summary.
func (h CustomerHandler) transactions(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	q, paged, err := parseLedgerQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	customerID := chi.URLParam(r, "customerID")
	if _, err := h.Shops.Customer(r.Context(), shop.ID, customerID); err != nil {
		writeServiceError(w, err)
		return
	}
	if !paged {
		txs, err := h.Shops.Transactions.ListByCustomer(r.Context(), shop.ID, customerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTransactions(ledger.SortByDateDesc(txs)))
		return
	}
	res, err := h.Shops.CustomerLedger(r.Context(), shop.ID, customerID, q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": toTransactions(res.Transactions),
		"summary":      toSummary(res.Summary),
		"page":         toPage(res.Page),
	})
}

func (h CustomerHandler) export(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	q, _, err := parseLedgerQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	customer, err := h.Shops.Customer(r.Context(), shop.ID, chi.URLParam(r, "customerID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	txs, err := h.Shops.Transactions.ListByCustomer(r.Context(), shop.ID, customer.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	filtered := ledger.Filter(ledger.SortByDateDesc(txs), q.Criteria)
	summary := ledger.Summarize(filtered)
	meta := export.Meta{
		ShopName:     shop.Name,
		CustomerName: customer.Name,
		Phone:        customer.Phone,
		From:         q.Criteria.From,
		To:           q.Criteria.To,
		GeneratedAt:  time.Now(),
	}

	var (
		data        []byte
		contentType string
		ext         string
	)
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "csv":
		data, err = export.CSV(filtered)
		contentType, ext = "text/csv", "csv"
	case "xlsx":
		data, err = export.XLSX(meta, filtered, summary)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	case "pdf":
		var buf bytes.Buffer
		err = export.PDF(&buf, meta, filtered, summary)
		data = buf.Bytes()
		contentType, ext = "application/pdf", "pdf"
	default:
		writeError(w, http.StatusBadRequest, "format must be csv, xlsx or pdf")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(meta, ext)))
	_, _ = w.Write(data)
}

func (h CustomerHandler) notify(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		Title       string    `json:"title"`
		Body        string    `json:"body"`
		Method      string    `json:"method"`
		ScheduledAt *flexDate `json:"scheduled_at"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	customer, err := h.Shops.Customer(r.Context(), shop.ID, chi.URLParam(r, "customerID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.Reminders.Notify(r.Context(), *customer, service.NotifyInput{
		Title:       req.Title,
		Body:        req.Body,
		Method:      domain.NotificationMethod(req.Method),
		ScheduledAt: req.ScheduledAt.ptr(),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := toNotification(res.Notification)
	if res.Link != "" {
		resp["link"] = res.Link
	}
	if res.Error != "" {
		resp["error"] = res.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h CustomerHandler) notifications(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	items, err := h.Reminders.List(r.Context(), shop.ID, chi.URLParam(r, "customerID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, n := range items {
		out = append(out, toNotification(n))
	}
	writeJSON(w, http.StatusOK, out)
}
