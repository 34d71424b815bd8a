package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mvallejo-dev/backend-convenios/internal/common"
)

// Handler wires the order reader to HTTP.
type Handler struct {
	Svc *Service
}

// List returns a page of orders, optionally filtered by ?clientId=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	orders, err := h.Svc.List(r.Context(), r.URL.Query().Get("clientId"), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load orders", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": orders,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(orders)},
	})
}

// Get returns one order with its items.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	o, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}
