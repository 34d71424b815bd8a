package agreement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mvallejo-dev/backend-convenios/internal/common"
)

// Handler wires the agreement service to HTTP.
type Handler struct {
	Svc *Service
}

// Scope returns the commercial scope of an agreement: VAT treatment plus the
// active promotions and sales conditions, with their decoded rule kinds.
func (h *Handler) Scope(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "agreement service not configured", nil)
		return
	}
	scope, err := h.Svc.Scope(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "agreement not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load agreement scope", nil)
		return
	}

	promotions := make([]map[string]any, 0, len(scope.Promotions))
	for _, p := range scope.Promotions {
		promotions = append(promotions, map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
			"kind":        p.RuleKind(),
		})
	}
	conditions := make([]map[string]any, 0, len(scope.SalesConditions))
	for _, c := range scope.SalesConditions {
		conditions = append(conditions, map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"description": c.Description,
			"kind":        c.RuleKind(),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"agreementId":      scope.AgreementID,
		"pricesIncludeVat": scope.PricesIncludeVAT,
		"vatPercentage":    scope.VATPercentage,
		"promotions":       promotions,
		"salesConditions":  conditions,
	}})
}

// Refresh drops the cached scope so rule changes take effect immediately.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "agreement service not configured", nil)
		return
	}
	if err := h.Svc.Invalidate(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to refresh agreement scope", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"refreshed": true}})
}
