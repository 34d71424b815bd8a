package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AppliedCondition is a sales condition surfaced to the buyer, with a short
// human-readable terms line for the checkout summary.
type AppliedCondition struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Terms string `json:"terms"`
}

// MinimumOrderCheck is the advisory result of a minimum-order condition. It
// never changes price; whether it blocks submission is caller policy.
type MinimumOrderCheck struct {
	Valid   bool            `json:"valid"`
	Minimum decimal.Decimal `json:"minimum"`
	Current decimal.Decimal `json:"current"`
}

// ConditionOutcome is the result of evaluating the sales-condition set.
type ConditionOutcome struct {
	Applied        []AppliedCondition
	DiscountAmount decimal.Decimal
	MinimumOrder   *MinimumOrderCheck
}

// EvaluateSalesConditions walks the condition set once. Every recognised
// condition lands on the applied list for display, but only Discount moves
// money and only the single largest discount wins.
//
// Qualification (the minimum-order check) runs against the pre-promotion
// subtotal; the discount amount is computed against discountBase, which the
// pipeline sets to the promotion-discounted subtotal.
func EvaluateSalesConditions(subtotal, discountBase decimal.Decimal, conditions []SalesCondition) ConditionOutcome {
	out := ConditionOutcome{DiscountAmount: decimal.Zero}
	for _, cond := range conditions {
		switch rule := cond.Rule.(type) {
		case NetDays:
			out.Applied = append(out.Applied, applied(cond, fmt.Sprintf("payment due in %d days", rule.Days)))
		case Discount:
			out.Applied = append(out.Applied, applied(cond, fmt.Sprintf("%s%% discount", rule.Percentage)))
			amount := discountBase.Mul(rule.Percentage).Div(hundred)
			if amount.GreaterThan(out.DiscountAmount) {
				out.DiscountAmount = amount
			}
		case Installments:
			out.Applied = append(out.Applied, applied(cond, fmt.Sprintf("%d installments", rule.Count)))
		case SplitPayment:
			out.Applied = append(out.Applied, applied(cond, fmt.Sprintf("%s%% upfront, balance in %d days", rule.InitialPercentage, rule.RemainingDays)))
		case CashOnDelivery:
			out.Applied = append(out.Applied, applied(cond, "cash on delivery"))
		case MinOrderAmount:
			out.Applied = append(out.Applied, applied(cond, fmt.Sprintf("minimum order %s", rule.Minimum)))
			// Several minimum-order conditions collapse to the strictest one.
			if out.MinimumOrder == nil || rule.Minimum.GreaterThan(out.MinimumOrder.Minimum) {
				out.MinimumOrder = &MinimumOrderCheck{
					Valid:   subtotal.GreaterThanOrEqual(rule.Minimum),
					Minimum: rule.Minimum,
					Current: subtotal,
				}
			}
		}
	}
	return out
}

func applied(cond SalesCondition, terms string) AppliedCondition {
	return AppliedCondition{ID: cond.ID, Name: cond.Name, Kind: cond.RuleKind(), Terms: terms}
}
