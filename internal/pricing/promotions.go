package pricing

import "github.com/shopspring/decimal"

// BonusItem records free units granted for one product by a buy-X-get-Y
// promotion. Bonus units are additive to the paid quantity but never billed.
type BonusItem struct {
	ProductName   string `json:"productName"`
	BonusQuantity int    `json:"bonusQuantity"`
}

// PromotionOutcome is the result of evaluating the promotion set against a
// cart. DiscountPercentage is the single best percentage among qualifying
// min-amount promotions; percentages never stack.
type PromotionOutcome struct {
	Applied            []Promotion
	Bonus              map[string]BonusItem
	DiscountPercentage decimal.Decimal
}

// EvaluatePromotions assesses every promotion independently against the raw
// lines and subtotal. Promotions never see the output of one another; the
// bonus map is keyed by product id, so the last promotion touching a product
// wins its entry.
func EvaluatePromotions(lines []Line, subtotal decimal.Decimal, promotions []Promotion) PromotionOutcome {
	out := PromotionOutcome{
		Bonus:              make(map[string]BonusItem),
		DiscountPercentage: decimal.Zero,
	}
	for _, promo := range promotions {
		switch rule := promo.Rule.(type) {
		case BuyXGetYFree:
			applied := false
			for _, line := range lines {
				if line.Quantity <= 0 || !rule.InScope(line.Product) {
					continue
				}
				times := line.Quantity / rule.Buy
				if times < 1 {
					continue
				}
				out.Bonus[line.Product.ID] = BonusItem{
					ProductName:   line.Product.Name,
					BonusQuantity: times * rule.Get,
				}
				applied = true
			}
			// A pass that bonuses nothing is not applied.
			if applied {
				out.Applied = append(out.Applied, promo)
			}
		case FreeShipping:
			units := 0
			for _, line := range lines {
				if line.Quantity > 0 {
					units += line.Quantity
				}
			}
			if units >= rule.MinUnits {
				out.Applied = append(out.Applied, promo)
			}
		case MinAmountDiscount:
			if subtotal.GreaterThanOrEqual(rule.MinAmount) {
				out.Applied = append(out.Applied, promo)
				if rule.Percentage.GreaterThan(out.DiscountPercentage) {
					out.DiscountPercentage = rule.Percentage
				}
			}
		}
	}
	return out
}
