package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/mvallejo-dev/backend-convenios/internal/common"
	"github.com/mvallejo-dev/backend-convenios/internal/events"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

// ProductSource supplies product price views for cart mutations.
type ProductSource interface {
	Get(ctx context.Context, productID string) (pricing.Product, error)
}

// ScopeSource supplies commercial scopes keyed by agreement id.
type ScopeSource interface {
	Scope(ctx context.Context, agreementID string) (pricing.Scope, error)
}

// Handler wires cart sessions to HTTP.
type Handler struct {
	Manager  *Manager
	Products ProductSource
	Scopes   ScopeSource
	Events   *events.Bus
	Validate *validator.Validate
}

// Create starts a new cart session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return
	}
	sess := h.Manager.Create(r.Context())
	common.JSON(w, http.StatusCreated, map[string]any{"data": sess.Snapshot()})
}

// Get returns the session state including the derived breakdown.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": sess.Snapshot()})
}

// Delete tears the session down.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return
	}
	h.Manager.Drop(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds units of a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Products == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "product source not configured", nil)
		return
	}
	var payload struct {
		ProductID string `json:"productId" validate:"required"`
		Quantity  int    `json:"quantity" validate:"required,gt=0"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	product, err := h.Products.Get(r.Context(), payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	state, err := sess.AddItem(r.Context(), product, payload.Quantity)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// SetQuantity sets the absolute quantity for a line. Zero or less removes it.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Quantity int `json:"quantity"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	state := sess.SetQuantity(r.Context(), chi.URLParam(r, "productID"), payload.Quantity)
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// RemoveItem decrements a line by one unit.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	state := sess.RemoveItem(r.Context(), chi.URLParam(r, "productID"))
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

// SetScope binds the session to an agreement, fetching fresh rule data. A
// different agreement id resets the cart.
func (h *Handler) SetScope(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Scopes == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "scope source not configured", nil)
		return
	}
	var payload struct {
		AgreementID string `json:"agreementId" validate:"required"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	scope, err := h.Scopes.Scope(r.Context(), payload.AgreementID)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "agreement not found", nil)
		return
	}
	state := sess.SetScope(r.Context(), scope)
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicScopeChanged, sess.ID, map[string]any{
			"sessionId":   sess.ID,
			"agreementId": scope.AgreementID,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if h.Manager == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return nil, false
	}
	sess, ok := h.Manager.Get(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart session not found", nil)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", verrs.Error())
				return false
			}
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid payload", nil)
			return false
		}
	}
	return true
}
