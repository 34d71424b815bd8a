package pricing

import "github.com/shopspring/decimal"

// VolumeThreshold is the cart-wide unit count at which volume pricing
// activates. It applies to the sum of all line quantities, not per line.
const VolumeThreshold = 150

var hundred = decimal.NewFromInt(100)

// Product is the price view of a catalog product as seen by the cart.
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Price       decimal.Decimal  `json:"price"`
	VolumePrice *decimal.Decimal `json:"volumePrice,omitempty"`
}

// Line is a cart line item. Quantity is always positive; lines at zero are
// removed by the store, never kept.
type Line struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Scope is the commercial context bound to one agreement: VAT treatment plus
// the promotion and sales-condition sets that apply to it.
type Scope struct {
	AgreementID      string           `json:"agreementId"`
	PricesIncludeVAT bool             `json:"pricesIncludeVat"`
	VATPercentage    decimal.Decimal  `json:"vatPercentage"`
	Promotions       []Promotion      `json:"promotions"`
	SalesConditions  []SalesCondition `json:"salesConditions"`
}

// Result is the derived financial breakdown for a cart. It is a pure
// function of (lines, scope) and is always recomputed, never patched.
type Result struct {
	TotalItems             int                  `json:"totalItems"`
	Subtotal               decimal.Decimal      `json:"subtotal"`
	DiscountFromPromotions decimal.Decimal      `json:"discountFromPromotions"`
	DiscountFromConditions decimal.Decimal      `json:"discountFromConditions"`
	SubtotalAfterDiscounts decimal.Decimal      `json:"subtotalAfterDiscounts"`
	VATAmount              decimal.Decimal      `json:"vatAmount"`
	TotalPrice             decimal.Decimal      `json:"totalPrice"`
	VolumePricingActive    bool                 `json:"isVolumePricingActive"`
	AppliedPromotions      []Promotion          `json:"appliedPromotions"`
	AppliedConditions      []AppliedCondition   `json:"appliedConditions"`
	BonusInfo              map[string]BonusItem `json:"bonusInfo"`
	MinimumOrder           *MinimumOrderCheck   `json:"minimumOrderCheck,omitempty"`
}

// Quote derives the full breakdown for the cart under the given scope.
//
// The order of operations is fixed: resolve unit prices (volume tier when the
// cart-wide threshold is met), normalise to tax-exclusive space, sum the
// subtotal, subtract the best promotion discount, subtract the best
// sales-condition discount, then compute VAT on what remains. Reordering any
// step changes the customer-visible total.
func Quote(lines []Line, scope Scope) Result {
	totalItems := 0
	for _, line := range lines {
		if line.Quantity > 0 {
			totalItems += line.Quantity
		}
	}
	volumeActive := totalItems >= VolumeThreshold

	vatRate := decimal.Zero
	if scope.VATPercentage.IsPositive() {
		vatRate = scope.VATPercentage.Div(hundred)
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		unit := ResolveUnitPrice(line.Product, scope, volumeActive)
		subtotal = subtotal.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	promos := EvaluatePromotions(lines, subtotal, scope.Promotions)
	promoDiscount := subtotal.Mul(promos.DiscountPercentage).Div(hundred)
	afterPromo := subtotal.Sub(promoDiscount)

	conditions := EvaluateSalesConditions(subtotal, afterPromo, scope.SalesConditions)
	afterDiscounts := afterPromo.Sub(conditions.DiscountAmount)
	if afterDiscounts.IsNegative() {
		afterDiscounts = decimal.Zero
	}

	vat := afterDiscounts.Mul(vatRate)

	return Result{
		TotalItems:             totalItems,
		Subtotal:               subtotal,
		DiscountFromPromotions: promoDiscount,
		DiscountFromConditions: conditions.DiscountAmount,
		SubtotalAfterDiscounts: afterDiscounts,
		VATAmount:              vat,
		TotalPrice:             afterDiscounts.Add(vat),
		VolumePricingActive:    volumeActive,
		AppliedPromotions:      promos.Applied,
		AppliedConditions:      conditions.Applied,
		BonusInfo:              promos.Bonus,
		MinimumOrder:           conditions.MinimumOrder,
	}
}

// ResolveUnitPrice returns the tax-exclusive per-unit price charged for a
// product: the volume tier when active and cheaper than the base price, with
// VAT divided out when the scope's list prices include it. This is the price
// Quote sums into the subtotal, so persisted line items must use it too.
func ResolveUnitPrice(p Product, scope Scope, volumeActive bool) decimal.Decimal {
	unit := p.Price
	if volumeActive && p.VolumePrice != nil && p.VolumePrice.LessThan(unit) {
		unit = *p.VolumePrice
	}
	if scope.PricesIncludeVAT && scope.VATPercentage.IsPositive() {
		unit = unit.Div(decimal.NewFromInt(1).Add(scope.VATPercentage.Div(hundred)))
	}
	return unit
}

// ZeroResult returns the breakdown of an empty cart.
func ZeroResult() Result {
	return Quote(nil, Scope{})
}
