package handler

import (
	"net/http"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"
	"shopmunim-backend/internal/server/authctx"
	"shopmunim-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

// MeHandler serves a customer's view of their own accounts.
type MeHandler struct {
	Shops *service.ShopService
}

func (h MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me/ledger", h.ledger)
}

func (h MeHandler) ledger(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	customers, txs, err := h.Shops.MyLedger(r.Context(), domain.User{ID: cu.ID, Phone: cu.Phone})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":     toCustomers(customers),
		"transactions": toTransactions(txs),
		"summary":      toSummary(ledger.Summarize(txs)),
	})
}
