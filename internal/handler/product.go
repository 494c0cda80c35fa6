package handler

import (
	"net/http"
	"strings"

	"shopmunim-backend/internal/repository"
	"shopmunim-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	Shops *service.ShopService
	Repo  repository.ProductRepository
}

func (h ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shops/{shopID}/products", h.list)
	r.Post("/shops/{shopID}/products", h.create)
	r.Put("/shops/{shopID}/products/{productID}", h.update)
	r.Delete("/shops/{shopID}/products/{productID}", h.delete)
}

func (h ProductHandler) list(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	items, err := h.Repo.List(r.Context(), shop.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, p := range items {
		resp = append(resp, toProduct(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ProductHandler) create(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "product name is required")
		return
	}
	if req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price must be zero or more")
		return
	}
	p, err := h.Repo.Create(r.Context(), shop.ID, req.Name, req.Price)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProduct(*p))
}

func (h ProductHandler) update(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	var req struct {
		Name   *string          `json:"name"`
		Price  *decimal.Decimal `json:"price"`
		Active *bool            `json:"active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "product name is required")
			return
		}
		req.Name = &trimmed
	}
	if req.Price != nil && req.Price.IsNegative() {
		writeError(w, http.StatusBadRequest, "price must be zero or more")
		return
	}
	p, err := h.Repo.Update(r.Context(), shop.ID, chi.URLParam(r, "productID"), repository.SaveProductParams{
		Name:   req.Name,
		Price:  req.Price,
		Active: req.Active,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProduct(*p))
}

func (h ProductHandler) delete(w http.ResponseWriter, r *http.Request) {
	shop, ok := authorizeShop(w, r, h.Shops)
	if !ok {
		return
	}
	if err := h.Repo.Delete(r.Context(), shop.ID, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
