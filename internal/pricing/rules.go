package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PromotionRule is the typed payload of a promotion. A nil rule means the
// payload was not understood and the promotion must never affect money.
type PromotionRule interface{ promotionRule() }

// BuyXGetYFree grants free units per line once the paid quantity reaches a
// multiple of Buy. An empty ProductIDs/CategoryNames pair means every line
// is in scope.
type BuyXGetYFree struct {
	Buy           int
	Get           int
	ProductIDs    []string
	CategoryNames []string
}

// FreeShipping waives delivery cost once the cart reaches MinUnits total
// units. Cost modelling happens delivery-side; here it is only a flag.
type FreeShipping struct {
	MinUnits  int
	Locations []string
}

// MinAmountDiscount applies a percentage discount once the subtotal reaches
// MinAmount.
type MinAmountDiscount struct {
	MinAmount  decimal.Decimal
	Percentage decimal.Decimal
}

func (BuyXGetYFree) promotionRule()      {}
func (FreeShipping) promotionRule()      {}
func (MinAmountDiscount) promotionRule() {}

// InScope reports whether the product falls under the promotion restriction.
func (r BuyXGetYFree) InScope(p Product) bool {
	if len(r.ProductIDs) == 0 && len(r.CategoryNames) == 0 {
		return true
	}
	for _, id := range r.ProductIDs {
		if id == p.ID {
			return true
		}
	}
	for _, name := range r.CategoryNames {
		if name == p.Category {
			return true
		}
	}
	return false
}

// Promotion is a commercial promotion attached to an agreement.
type Promotion struct {
	ID          string
	Name        string
	Description string
	Rule        PromotionRule
}

// RuleKind returns the wire discriminator for the rule, or "custom" when the
// payload was not recognised. Unrecognised promotions may still be shown to
// operators but are skipped by the evaluators.
func (p Promotion) RuleKind() string {
	switch p.Rule.(type) {
	case BuyXGetYFree:
		return "buy_x_get_y_free"
	case FreeShipping:
		return "free_shipping"
	case MinAmountDiscount:
		return "min_amount_discount"
	default:
		return "custom"
	}
}

// ConditionRule is the typed payload of a sales condition. Only Discount
// moves money; everything else annotates payment terms.
type ConditionRule interface{ conditionRule() }

// NetDays defers payment for the given number of days.
type NetDays struct {
	Days int
}

// Discount applies a flat percentage discount to the order.
type Discount struct {
	Percentage decimal.Decimal
}

// Installments splits payment into equal parts.
type Installments struct {
	Count int
}

// SplitPayment requires an upfront percentage with the balance due later.
type SplitPayment struct {
	InitialPercentage decimal.Decimal
	RemainingDays     int
}

// CashOnDelivery marks the order as payable on delivery.
type CashOnDelivery struct{}

// MinOrderAmount is an advisory floor on the order subtotal. It never
// changes price; callers decide whether it blocks submission.
type MinOrderAmount struct {
	Minimum decimal.Decimal
}

func (NetDays) conditionRule()        {}
func (Discount) conditionRule()       {}
func (Installments) conditionRule()   {}
func (SplitPayment) conditionRule()   {}
func (CashOnDelivery) conditionRule() {}
func (MinOrderAmount) conditionRule() {}

// SalesCondition is a commercial payment term attached to an agreement.
type SalesCondition struct {
	ID          string
	Name        string
	Description string
	Rule        ConditionRule
}

// RuleKind returns the wire discriminator for the rule, or "custom" when the
// payload was not recognised.
func (c SalesCondition) RuleKind() string {
	switch c.Rule.(type) {
	case NetDays:
		return "net_days"
	case Discount:
		return "discount"
	case Installments:
		return "installments"
	case SplitPayment:
		return "split_payment"
	case CashOnDelivery:
		return "cash_on_delivery"
	case MinOrderAmount:
		return "min_order_amount"
	default:
		return "custom"
	}
}

type ruleEnvelope struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Rules       json.RawMessage `json:"rules"`
}

// UnmarshalJSON decodes the stored promotion shape. Malformed rule payloads
// leave Rule nil instead of failing the whole decode.
func (p *Promotion) UnmarshalJSON(data []byte) error {
	var env ruleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p.ID = env.ID
	p.Name = env.Name
	p.Description = env.Description
	p.Rule = DecodePromotionRule(env.Rules)
	return nil
}

// MarshalJSON renders the promotion back into the stored envelope shape.
func (p Promotion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Rules       any    `json:"rules"`
	}{p.ID, p.Name, p.Description, encodePromotionRule(p.Rule)})
}

// UnmarshalJSON decodes the stored sales-condition shape. Malformed rule
// payloads leave Rule nil instead of failing the whole decode.
func (c *SalesCondition) UnmarshalJSON(data []byte) error {
	var env ruleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.ID = env.ID
	c.Name = env.Name
	c.Description = env.Description
	c.Rule = DecodeConditionRule(env.Rules)
	return nil
}

// MarshalJSON renders the condition back into the stored envelope shape.
func (c SalesCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Rules       any    `json:"rules"`
	}{c.ID, c.Name, c.Description, encodeConditionRule(c.Rule)})
}

func DecodePromotionRule(raw json.RawMessage) PromotionRule {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil
	}
	switch head.Type {
	case "buy_x_get_y_free":
		var body struct {
			Buy           int      `json:"buy"`
			Get           int      `json:"get"`
			ProductIDs    []string `json:"productIds"`
			CategoryNames []string `json:"categoryNames"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil
		}
		if body.Buy <= 0 || body.Get <= 0 {
			return nil
		}
		return BuyXGetYFree{Buy: body.Buy, Get: body.Get, ProductIDs: body.ProductIDs, CategoryNames: body.CategoryNames}
	case "free_shipping":
		var body struct {
			MinUnits  int      `json:"minUnits"`
			Locations []string `json:"locations"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil
		}
		if body.MinUnits <= 0 {
			return nil
		}
		return FreeShipping{MinUnits: body.MinUnits, Locations: body.Locations}
	case "min_amount_discount":
		var body struct {
			MinAmount  decimal.Decimal `json:"minAmount"`
			Percentage decimal.Decimal `json:"percentage"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil
		}
		if !body.MinAmount.IsPositive() || !body.Percentage.IsPositive() || body.Percentage.GreaterThan(hundred) {
			return nil
		}
		return MinAmountDiscount{MinAmount: body.MinAmount, Percentage: body.Percentage}
	}
	return nil
}

func encodePromotionRule(rule PromotionRule) any {
	switch r := rule.(type) {
	case BuyXGetYFree:
		return map[string]any{"type": "buy_x_get_y_free", "buy": r.Buy, "get": r.Get, "productIds": r.ProductIDs, "categoryNames": r.CategoryNames}
	case FreeShipping:
		return map[string]any{"type": "free_shipping", "minUnits": r.MinUnits, "locations": r.Locations}
	case MinAmountDiscount:
		return map[string]any{"type": "min_amount_discount", "minAmount": r.MinAmount, "percentage": r.Percentage}
	default:
		return map[string]any{"type": "custom"}
	}
}

func DecodeConditionRule(raw json.RawMessage) ConditionRule {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil
	}
	switch head.Type {
	case "net_days":
		var body struct {
			Days int `json:"days"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || body.Days <= 0 {
			return nil
		}
		return NetDays{Days: body.Days}
	case "discount":
		var body struct {
			Percentage decimal.Decimal `json:"percentage"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil
		}
		if !body.Percentage.IsPositive() || body.Percentage.GreaterThan(hundred) {
			return nil
		}
		return Discount{Percentage: body.Percentage}
	case "installments":
		var body struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || body.Count <= 1 {
			return nil
		}
		return Installments{Count: body.Count}
	case "split_payment":
		var body struct {
			InitialPercentage decimal.Decimal `json:"initialPercentage"`
			RemainingDays     int             `json:"remainingDays"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil
		}
		if !body.InitialPercentage.IsPositive() || body.InitialPercentage.GreaterThan(hundred) || body.RemainingDays <= 0 {
			return nil
		}
		return SplitPayment{InitialPercentage: body.InitialPercentage, RemainingDays: body.RemainingDays}
	case "cash_on_delivery":
		return CashOnDelivery{}
	case "min_order_amount":
		var body struct {
			Minimum decimal.Decimal `json:"minimum"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || !body.Minimum.IsPositive() {
			return nil
		}
		return MinOrderAmount{Minimum: body.Minimum}
	}
	return nil
}

func encodeConditionRule(rule ConditionRule) any {
	switch r := rule.(type) {
	case NetDays:
		return map[string]any{"type": "net_days", "days": r.Days}
	case Discount:
		return map[string]any{"type": "discount", "percentage": r.Percentage}
	case Installments:
		return map[string]any{"type": "installments", "count": r.Count}
	case SplitPayment:
		return map[string]any{"type": "split_payment", "initialPercentage": r.InitialPercentage, "remainingDays": r.RemainingDays}
	case CashOnDelivery:
		return map[string]any{"type": "cash_on_delivery"}
	case MinOrderAmount:
		return map[string]any{"type": "min_order_amount", "minimum": r.Minimum}
	default:
		return map[string]any{"type": "custom"}
	}
}
