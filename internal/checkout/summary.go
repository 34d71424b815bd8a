package checkout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mvallejo-dev/backend-convenios/internal/cart"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// itemRow is one order_items insert.
type itemRow struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	IsBonus   bool
}

// orderItemRows materialises the order_items rows for a priced cart. Unit
// prices are the ones the breakdown charged (volume tier applied, VAT divided
// out), so the stored line totals add up to the stored subtotal. Bonus units
// are appended zero-priced in product-id order.
func orderItemRows(state cart.State) []itemRow {
	result := state.Result
	rows := make([]itemRow, 0, len(state.Lines)+len(result.BonusInfo))
	for _, line := range state.Lines {
		unit := pricing.ResolveUnitPrice(line.Product, state.Scope, result.VolumePricingActive)
		rows = append(rows, itemRow{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimalFromInt(line.Quantity)),
		})
	}
	ids := make([]string, 0, len(result.BonusInfo))
	for id := range result.BonusInfo {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		bonus := result.BonusInfo[id]
		rows = append(rows, itemRow{
			ProductID: id,
			Name:      bonus.ProductName,
			Quantity:  bonus.BonusQuantity,
			UnitPrice: decimal.Zero,
			LineTotal: decimal.Zero,
			IsBonus:   true,
		})
	}
	return rows
}

// buildSummary renders a human-readable purchase summary from the pricing
// breakdown. It is stored with the order and forwarded to notifications.
func buildSummary(r pricing.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d items, subtotal %s", r.TotalItems, r.Subtotal.StringFixed(2))
	if r.DiscountFromPromotions.IsPositive() {
		fmt.Fprintf(&b, ", promotion discount %s", r.DiscountFromPromotions.StringFixed(2))
	}
	if r.DiscountFromConditions.IsPositive() {
		fmt.Fprintf(&b, ", condition discount %s", r.DiscountFromConditions.StringFixed(2))
	}
	fmt.Fprintf(&b, ", VAT %s, total %s", r.VATAmount.StringFixed(2), r.TotalPrice.StringFixed(2))
	if r.VolumePricingActive {
		b.WriteString(". Volume pricing active")
	}

	if len(r.BonusInfo) > 0 {
		ids := make([]string, 0, len(r.BonusInfo))
		for id := range r.BonusInfo {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			bonus := r.BonusInfo[id]
			parts = append(parts, fmt.Sprintf("%d x %s", bonus.BonusQuantity, bonus.ProductName))
		}
		fmt.Fprintf(&b, ". Bonus: %s", strings.Join(parts, ", "))
	}

	var terms []string
	for _, cond := range r.AppliedConditions {
		if cond.Terms != "" {
			terms = append(terms, cond.Terms)
		}
	}
	if len(terms) > 0 {
		fmt.Fprintf(&b, ". Terms: %s", strings.Join(terms, "; "))
	}
	return b.String()
}
