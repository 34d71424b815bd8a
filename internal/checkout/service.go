package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/mvallejo-dev/backend-convenios/internal/cart"
	"github.com/mvallejo-dev/backend-convenios/internal/common"
	"github.com/mvallejo-dev/backend-convenios/internal/events"
	"github.com/mvallejo-dev/backend-convenios/internal/lock"
	"github.com/mvallejo-dev/backend-convenios/internal/obs"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

// Input is the submit request body. The cart itself is addressed by URL.
type Input struct {
	ClientID   string  `json:"clientId" validate:"required"`
	ClientName string  `json:"clientName" validate:"required"`
	Notes      *string `json:"notes"`
}

// Output is the submit response.
type Output struct {
	OrderID string         `json:"orderId"`
	Status  string         `json:"status"`
	Summary string         `json:"summary"`
	Totals  pricing.Result `json:"totals"`
}

// ErrMinOrderNotMet blocks submission when the agreement's minimum order
// amount is enforced and the cart subtotal falls short.
var ErrMinOrderNotMet = &common.AppError{
	Code:       "MIN_ORDER_NOT_MET",
	Message:    "order subtotal is below the agreement minimum",
	HTTPStatus: http.StatusUnprocessableEntity,
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service turns a priced cart into a persisted order. The stored totals are
// always taken from a fresh pricing pass over the live session, never from
// anything the client sent.
type Service struct {
	Pool            txBeginner
	Carts           *cart.Manager
	Events          *events.Bus
	Locker          *lock.Locker
	EnforceMinOrder bool
	Logger          *zerolog.Logger
}

// NewService constructs a checkout service over a pgx pool.
func NewService(pool *pgxpool.Pool, carts *cart.Manager, bus *events.Bus, locker *lock.Locker, enforceMinOrder bool, logger *zerolog.Logger) *Service {
	return &Service{Pool: pool, Carts: carts, Events: bus, Locker: locker, EnforceMinOrder: enforceMinOrder, Logger: logger}
}

const insertOrderSQL = `
INSERT INTO orders (
	session_id, agreement_id, client_id, client_name, notes, status,
	total_items, subtotal, discount_promotions, discount_conditions,
	subtotal_after_discounts, vat_amount, total_price, summary
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`

const insertOrderItemSQL = `
INSERT INTO order_items (order_id, product_id, name, quantity, unit_price, line_total, is_bonus)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Submit prices the session one final time and records the order.
func (s *Service) Submit(ctx context.Context, sessionID string, in Input) (Output, error) {
	if s == nil || s.Pool == nil || s.Carts == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if strings.TrimSpace(in.ClientID) == "" || strings.TrimSpace(in.ClientName) == "" {
		return Output{}, &common.AppError{Code: "BAD_REQUEST", Message: "clientId and clientName are required", HTTPStatus: http.StatusBadRequest}
	}
	session, ok := s.Carts.Get(ctx, sessionID)
	if !ok {
		return Output{}, cart.ErrNotFound
	}
	state := session.Snapshot()
	if len(state.Lines) == 0 {
		return Output{}, &common.AppError{Code: "BAD_REQUEST", Message: "cart is empty", HTTPStatus: http.StatusBadRequest}
	}
	result := state.Result

	if err := checkTotals(result); err != nil {
		obs.IncOrderSubmitted("inconsistent")
		s.emitFailure(ctx, sessionID, in, err)
		return Output{}, err
	}
	if s.EnforceMinOrder && result.MinimumOrder != nil && !result.MinimumOrder.Valid {
		obs.IncOrderSubmitted("min_order_blocked")
		s.emitFailure(ctx, sessionID, in, ErrMinOrderNotMet)
		return Output{}, ErrMinOrderNotMet
	}

	summary := buildSummary(result)
	var orderID string
	persist := func(ctx context.Context) error {
		var perr error
		orderID, perr = s.persist(ctx, sessionID, state, in, summary)
		return perr
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, lock.SubmitKey(sessionID), 30*time.Second, persist)
	} else {
		err = persist(ctx)
	}
	if err != nil {
		obs.IncOrderSubmitted("error")
		s.emitFailure(ctx, sessionID, in, err)
		return Output{}, fmt.Errorf("persist order: %w", err)
	}
	obs.IncOrderSubmitted("ok")

	if s.Events != nil {
		payload := map[string]any{
			"orderId":     orderID,
			"sessionId":   sessionID,
			"agreementId": state.Scope.AgreementID,
			"clientId":    in.ClientID,
			"totalPrice":  result.TotalPrice,
			"summary":     summary,
		}
		if _, err := s.Events.Emit(ctx, events.TopicOrderCreated, orderID, payload); err != nil && s.Logger != nil {
			s.Logger.Warn().Err(err).Str("order_id", orderID).Msg("order event fan-out incomplete")
		}
	}

	session.Clear(ctx)
	return Output{OrderID: orderID, Status: "SUBMITTED", Summary: summary, Totals: result}, nil
}

func (s *Service) persist(ctx context.Context, sessionID string, state cart.State, in Input, summary string) (string, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	result := state.Result
	var orderID string
	row := tx.QueryRow(ctx, insertOrderSQL,
		sessionID,
		state.Scope.AgreementID,
		in.ClientID,
		in.ClientName,
		in.Notes,
		"SUBMITTED",
		result.TotalItems,
		result.Subtotal.String(),
		result.DiscountFromPromotions.String(),
		result.DiscountFromConditions.String(),
		result.SubtotalAfterDiscounts.String(),
		result.VATAmount.String(),
		result.TotalPrice.String(),
		summary,
	)
	if err := row.Scan(&orderID); err != nil {
		return "", err
	}

	for _, item := range orderItemRows(state) {
		if _, err := tx.Exec(ctx, insertOrderItemSQL,
			orderID, item.ProductID, item.Name, item.Quantity,
			item.UnitPrice.String(), item.LineTotal.String(), item.IsBonus,
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return orderID, nil
}

func (s *Service) emitFailure(ctx context.Context, sessionID string, in Input, cause error) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, events.TopicOrderSubmitFailed, sessionID, map[string]any{
		"sessionId": sessionID,
		"clientId":  in.ClientID,
		"reason":    cause.Error(),
	})
}

// checkTotals rejects a breakdown whose parts no longer add up. This guards
// against a corrupted restored session reaching the order table.
func checkTotals(r pricing.Result) error {
	if r.TotalPrice.IsNegative() || r.SubtotalAfterDiscounts.IsNegative() {
		return errors.New("pricing breakdown contains negative totals")
	}
	if !r.SubtotalAfterDiscounts.Add(r.VATAmount).Equal(r.TotalPrice) {
		return errors.New("pricing breakdown does not add up")
	}
	return nil
}
