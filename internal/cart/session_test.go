package cart_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mvallejo-dev/backend-convenios/internal/cart"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

func product(id, name, price string) pricing.Product {
	p, _ := decimal.NewFromString(price)
	return pricing.Product{ID: id, Name: name, Category: "general", Price: p}
}

func scope(t *testing.T, agreementID string, vat string) pricing.Scope {
	return pricing.Scope{AgreementID: agreementID, VATPercentage: dec(t, vat)}
}

func TestAddItemMergesLinesForSameProduct(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	if _, err := sess.AddItem(ctx, product("a", "Mate", "100"), 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	state, err := sess.AddItem(ctx, product("a", "Mate", "100"), 3)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(state.Lines) != 1 {
		t.Fatalf("lines = %d, want 1 (same product merges)", len(state.Lines))
	}
	if state.Lines[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", state.Lines[0].Quantity)
	}
	if state.Result.TotalItems != 5 {
		t.Fatalf("breakdown not recomputed with mutation: totalItems = %d", state.Result.TotalItems)
	}
}

func TestAddItemRejectsNonPositiveQty(t *testing.T) {
	sess := cart.NewSession("s1", nil, nil)
	if _, err := sess.AddItem(context.Background(), product("a", "Mate", "100"), 0); err == nil {
		t.Fatalf("expected error for qty 0")
	}
}

func TestRemoveItemDecrementsAndDropsAtZero(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	_, _ = sess.AddItem(ctx, product("a", "Mate", "100"), 2)

	state := sess.RemoveItem(ctx, "a")
	if len(state.Lines) != 1 || state.Lines[0].Quantity != 1 {
		t.Fatalf("after first remove: %+v", state.Lines)
	}
	state = sess.RemoveItem(ctx, "a")
	if len(state.Lines) != 0 {
		t.Fatalf("line kept at zero quantity: %+v", state.Lines)
	}
	// Unknown products are normalised to a no-op.
	state = sess.RemoveItem(ctx, "ghost")
	if len(state.Lines) != 0 {
		t.Fatalf("remove of unknown product changed lines")
	}
}

func TestSetQuantityAbsoluteAndRemoval(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	_, _ = sess.AddItem(ctx, product("a", "Mate", "100"), 2)

	state := sess.SetQuantity(ctx, "a", 7)
	if state.Lines[0].Quantity != 7 {
		t.Fatalf("quantity = %d, want 7", state.Lines[0].Quantity)
	}
	state = sess.SetQuantity(ctx, "a", -1)
	if len(state.Lines) != 0 {
		t.Fatalf("non-positive quantity must remove the line")
	}
}

func TestScopeChangeHardReset(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	sess.SetScope(ctx, scope(t, "agr-1", "21"))
	_, _ = sess.AddItem(ctx, product("a", "Mate", "100"), 2)

	state := sess.SetScope(ctx, scope(t, "agr-2", "21"))
	if len(state.Lines) != 0 {
		t.Fatalf("agreement change must clear lines, got %+v", state.Lines)
	}
	if !state.Result.Subtotal.IsZero() || !state.Result.TotalPrice.IsZero() {
		t.Fatalf("agreement change must zero the breakdown: %+v", state.Result)
	}
	if state.Scope.AgreementID != "agr-2" {
		t.Fatalf("scope not replaced")
	}
}

func TestScopeRefreshSameAgreementKeepsLines(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	sess.SetScope(ctx, scope(t, "agr-1", "21"))
	_, _ = sess.AddItem(ctx, product("a", "Mate", "100"), 2)

	state := sess.SetScope(ctx, scope(t, "agr-1", "10.5"))
	if len(state.Lines) != 1 {
		t.Fatalf("same agreement id must keep lines")
	}
	if !state.Result.VATAmount.Equal(dec(t, "21")) {
		t.Fatalf("vat = %s, want 21 (10.5%% of 200)", state.Result.VATAmount)
	}
	if !state.Result.Subtotal.Equal(dec(t, "200")) {
		t.Fatalf("subtotal = %s, want 200", state.Result.Subtotal)
	}
}

func TestScopeRefreshActivatesPromotions(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	sess.SetScope(ctx, scope(t, "agr-1", "21"))
	_, _ = sess.AddItem(ctx, product("a", "Mate", "1000"), 10)

	refreshed := scope(t, "agr-1", "21")
	refreshed.Promotions = []pricing.Promotion{
		{ID: "p1", Rule: pricing.MinAmountDiscount{MinAmount: dec(t, "5000"), Percentage: dec(t, "10")}},
	}
	state := sess.SetScope(ctx, refreshed)
	if !state.Result.DiscountFromPromotions.Equal(dec(t, "1000")) {
		t.Fatalf("discount = %s, want 1000 after rule refresh", state.Result.DiscountFromPromotions)
	}
}

func TestRestoreRecomputesWithoutStaleRules(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	durable := cart.DurableState{
		Lines:            []pricing.Line{{Product: product("a", "Mate", "1000"), Quantity: 10}},
		AgreementID:      "agr-1",
		PricesIncludeVAT: false,
		VATPercentage:    dec(t, "21"),
	}
	state := sess.Restore(ctx, durable)
	if len(state.Scope.Promotions) != 0 || len(state.Scope.SalesConditions) != 0 {
		t.Fatalf("restore must not trust persisted rule data")
	}
	if !state.Result.DiscountFromPromotions.IsZero() {
		t.Fatalf("restored breakdown carries a discount with no rules loaded")
	}
	if !state.Result.Subtotal.Equal(dec(t, "10000")) {
		t.Fatalf("subtotal = %s, want 10000 recomputed from lines", state.Result.Subtotal)
	}
	if state.Scope.AgreementID != "agr-1" {
		t.Fatalf("agreement identity lost on restore")
	}
}

func TestRestoreDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	sess := cart.NewSession("s1", nil, nil)
	state := sess.Restore(ctx, cart.DurableState{
		Lines: []pricing.Line{
			{Product: product("a", "Mate", "100"), Quantity: 2},
			{Product: product("", "Nameless", "50"), Quantity: 1},
			{Product: product("b", "Yerba", "50"), Quantity: 0},
		},
	})
	if len(state.Lines) != 1 || state.Lines[0].Product.ID != "a" {
		t.Fatalf("invalid lines survived restore: %+v", state.Lines)
	}
}
