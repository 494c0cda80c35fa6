package handler

import (
	"net/http"
	"strings"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/repository"
	"shopmunim-backend/internal/server/authctx"
	"shopmunim-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type ShopHandler struct {
	Service *service.ShopService
}

// RegisterRoutes holds routes open to every signed-in role.
func (h ShopHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shops", h.list)
}

func (h ShopHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Post("/shops", h.create)
	r.Get("/shops/{shopID}/dashboard", h.dashboard)
}

func (h ShopHandler) list(w http.ResponseWriter, r *http.Request) {
	cu := authctx.FromContext(r.Context())
	shops, err := h.Service.ListShops(r.Context(), domain.User{ID: cu.ID, Phone: cu.Phone, ActiveRole: cu.Role})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShops(shops))
}

func (h ShopHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Category string `json:"category"`
		Location string `json:"location"`
		UPIID    string `json:"upi_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "shop name is required")
		return
	}
	cu := authctx.FromContext(r.Context())
	shop, err := h.Service.Shops.Create(r.Context(), repository.CreateShopParams{
		OwnerID:  cu.ID,
		Name:     req.Name,
		Category: strings.TrimSpace(req.Category),
		Location: strings.TrimSpace(req.Location),
		UPIID:    strings.TrimSpace(req.UPIID),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShop(*shop))
}

func (h ShopHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Service)
	if !ok {
		return
	}
	d, err := h.Service.BuildDashboard(r.Context(), *shop)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shop":                toShop(d.Shop),
		"total_customers":     d.TotalCustomers,
		"total_products":      d.TotalProducts,
		"total_transactions":  d.TotalTransactions,
		"total_outstanding":   money(d.TotalOutstanding),
		"summary":             toSummary(d.Summary),
		"recent_transactions": toTransactions(d.RecentTransactions),
	})
}

// authorizeShop resolves {shopID} for the current user, writing the error
// response itself when access is denied.
func authorizeShop(w http.ResponseWriter, r *http.Request, svc *service.ShopService) (*domain.Shop, bool) {
	cu := authctx.FromContext(r.Context())
	shop, err := svc.Authorize(r.Context(), cu.ID, cu.Role, chi.URLParam(r, "shopID"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return shop, true
}
