package handler

import (
	"net/http"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/repository"
	"shopmunim-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	Shops *service.ShopService
}

func (h TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shops/{shopID}/transactions", h.list)
	r.Post("/shops/{shopID}/transactions", h.create)
	r.Put("/shops/{shopID}/transactions/{transactionID}", h.update)
	r.Delete("/shops/{shopID}/transactions/{transactionID}", h.delete)
}

type itemPayload struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (p itemPayload) toDomain() domain.TransactionItem {
	return domain.TransactionItem{Name: p.Name, Price: p.Price, Quantity: p.Quantity}
}

func toDomainItems(in []itemPayload) []domain.TransactionItem {
	out := make([]domain.TransactionItem, 0, len(in))
	for _, it := range in {
		out = append(out, it.toDomain())
	}
	return out
}

func (h TransactionHandler) list(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	txs, err := h.Shops.Transactions.ListByShop(r.Context(), shop.ID, 500)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactions(txs))
}

func (h TransactionHandler) create(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		CustomerID string           `json:"customer_id"`
		Type       string           `json:"type"`
		Amount     *decimal.Decimal `json:"amount"`
		Date       *flexDate        `json:"date"`
		Note       string           `json:"note"`
		Items      []itemPayload    `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	tx, err := h.Shops.CreateTransaction(r.Context(), shop.ID, service.TransactionInput{
		CustomerID: req.CustomerID,
		Type:       req.Type,
		Amount:     req.Amount,
		Date:       req.Date.ptr(),
		Note:       req.Note,
		Items:      toDomainItems(req.Items),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransaction(*tx))
}

func (h TransactionHandler) update(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		Type   *string          `json:"type"`
		Amount *decimal.Decimal `json:"amount"`
		Date   *flexDate        `json:"date"`
		Note   *string          `json:"note"`
		Items  *[]itemPayload   `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	in := repository.UpdateTransactionInput{
		Type:   req.Type,
		Amount: req.Amount,
		Date:   req.Date.ptr(),
		Note:   req.Note,
	}
	if req.Items != nil {
		items := toDomainItems(*req.Items)
		in.Items = &items
	}
	tx, err := h.Shops.UpdateTransaction(r.Context(), shop.ID, chi.URLParam(r, "transactionID"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(*tx))
}

func (h TransactionHandler) delete(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	if err := h.Shops.DeleteTransaction(r.Context(), shop.ID, chi.URLParam(r, "transactionID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
