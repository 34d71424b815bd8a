package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mvallejo-dev/backend-convenios/internal/obs"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

// ErrNotFound indicates the requested session could not be located.
var ErrNotFound = errors.New("cart session not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// State is a point-in-time copy of a session: the lines and scope it owns
// plus the derived breakdown. The breakdown is always recomputed from the
// other two fields, never patched in place.
type State struct {
	SessionID string         `json:"sessionId"`
	Lines     []pricing.Line `json:"lines"`
	Scope     pricing.Scope  `json:"scope"`
	Result    pricing.Result `json:"result"`
}

// Session owns the cart of one checkout session. It is constructed when the
// session starts and torn down when it ends; nothing here is process-global.
// Every mutation recomputes the derived breakdown before the lock is
// released, so lines and breakdown can never be observed out of sync.
type Session struct {
	ID     string
	Store  *Store
	Logger *zerolog.Logger

	mu     sync.Mutex
	lines  []pricing.Line
	scope  pricing.Scope
	result pricing.Result
}

// NewSession constructs an empty session with a zeroed breakdown.
func NewSession(id string, store *Store, logger *zerolog.Logger) *Session {
	return &Session{ID: id, Store: store, Logger: logger, result: pricing.ZeroResult()}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// AddItem adds qty units of the product, merging into an existing line for
// the same product id. A cart never holds two lines for one product.
func (s *Session) AddItem(ctx context.Context, product pricing.Product, qty int) (State, error) {
	if qty <= 0 {
		return State{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if product.ID == "" {
		return State{}, fmt.Errorf("product id required: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := false
	for i := range s.lines {
		if s.lines[i].Product.ID == product.ID {
			s.lines[i].Quantity += qty
			s.lines[i].Product = product
			merged = true
			break
		}
	}
	if !merged {
		s.lines = append(s.lines, pricing.Line{Product: product, Quantity: qty})
	}
	s.refreshLocked(ctx)
	return s.snapshotLocked(), nil
}

// RemoveItem decrements the line for the product by one, removing the line
// when it reaches zero. Removing a product that is not in the cart is a
// no-op, not an error.
func (s *Session) RemoveItem(ctx context.Context, productID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].Product.ID != productID {
			continue
		}
		s.lines[i].Quantity--
		if s.lines[i].Quantity <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		}
		break
	}
	s.refreshLocked(ctx)
	return s.snapshotLocked()
}

// SetQuantity sets the absolute quantity for the product's line. A quantity
// at or below zero removes the line; lines are never kept at zero.
func (s *Session) SetQuantity(ctx context.Context, productID string, qty int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].Product.ID != productID {
			continue
		}
		if qty <= 0 {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
		} else {
			s.lines[i].Quantity = qty
		}
		break
	}
	s.refreshLocked(ctx)
	return s.snapshotLocked()
}

// Clear drops every line and zeroes the breakdown, keeping the scope.
func (s *Session) Clear(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.refreshLocked(ctx)
	return s.snapshotLocked()
}

// SetScope installs a new commercial scope. A different agreement id is a
// hard reset: lines are cleared and the breakdown zeroed. The same agreement
// id (VAT or rule refresh) keeps the lines and only recomputes.
func (s *Session) SetScope(ctx context.Context, scope pricing.Scope) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope.AgreementID != s.scope.AgreementID {
		s.lines = nil
	}
	s.scope = scope
	s.refreshLocked(ctx)
	return s.snapshotLocked()
}

// Restore installs a durable record loaded from storage. Rule lists are not
// part of the durable record and stay empty until a scope refresh pushes
// fresh rule data in; the breakdown is recomputed so no stale discount is
// ever trusted.
func (s *Session) Restore(ctx context.Context, durable DurableState) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	for _, line := range durable.Lines {
		if line.Quantity > 0 && line.Product.ID != "" {
			s.lines = append(s.lines, line)
		}
	}
	s.scope = pricing.Scope{
		AgreementID:      durable.AgreementID,
		PricesIncludeVAT: durable.PricesIncludeVAT,
		VATPercentage:    durable.VATPercentage,
	}
	s.refreshLocked(ctx)
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	lines := make([]pricing.Line, len(s.lines))
	copy(lines, s.lines)
	return State{SessionID: s.ID, Lines: lines, Scope: s.scope, Result: s.result}
}

// refreshLocked recomputes the breakdown and persists the durable record.
// Persistence failures degrade to a log line; the in-memory state is the
// source of truth for the running session.
func (s *Session) refreshLocked(ctx context.Context) {
	s.result = pricing.Quote(s.lines, s.scope)
	obs.IncCartQuote()
	if s.Store == nil {
		return
	}
	durable := DurableState{
		Lines:            s.lines,
		AgreementID:      s.scope.AgreementID,
		PricesIncludeVAT: s.scope.PricesIncludeVAT,
		VATPercentage:    s.scope.VATPercentage,
	}
	if err := s.Store.Save(ctx, s.ID, durable); err != nil && s.Logger != nil {
		s.Logger.Warn().Err(err).Str("session_id", s.ID).Msg("persist cart state")
	}
}
