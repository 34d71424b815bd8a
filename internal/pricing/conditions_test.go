package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

func TestConditionDiscountMaxWins(t *testing.T) {
	base := decimal.NewFromInt(1000)
	out := pricing.EvaluateSalesConditions(base, base, []pricing.SalesCondition{
		{ID: "c1", Name: "5 off", Rule: pricing.Discount{Percentage: decimal.NewFromInt(5)}},
		{ID: "c2", Name: "12 off", Rule: pricing.Discount{Percentage: decimal.NewFromInt(12)}},
		{ID: "c3", Name: "8 off", Rule: pricing.Discount{Percentage: decimal.NewFromInt(8)}},
	})
	require.True(t, out.DiscountAmount.Equal(decimal.NewFromInt(120)), "discount = %s, want 120 (single best)", out.DiscountAmount)
	require.Len(t, out.Applied, 3, "every condition stays on the applied list for display")
}

func TestConditionDiscountUsesPromotionDiscountedBase(t *testing.T) {
	subtotal := decimal.NewFromInt(10000)
	afterPromo := decimal.NewFromInt(9000)
	out := pricing.EvaluateSalesConditions(subtotal, afterPromo, []pricing.SalesCondition{
		{ID: "c1", Rule: pricing.Discount{Percentage: decimal.NewFromInt(10)}},
	})
	require.True(t, out.DiscountAmount.Equal(decimal.NewFromInt(900)),
		"discount = %s, want 900 (10%% of the promotion-discounted base)", out.DiscountAmount)
}

func TestTermsOnlyConditionsNeverMoveMoney(t *testing.T) {
	base := decimal.NewFromInt(500)
	out := pricing.EvaluateSalesConditions(base, base, []pricing.SalesCondition{
		{ID: "c1", Name: "net 30", Rule: pricing.NetDays{Days: 30}},
		{ID: "c2", Name: "3 cuotas", Rule: pricing.Installments{Count: 3}},
		{ID: "c3", Name: "50/30", Rule: pricing.SplitPayment{InitialPercentage: decimal.NewFromInt(50), RemainingDays: 30}},
		{ID: "c4", Name: "contra entrega", Rule: pricing.CashOnDelivery{}},
	})
	require.True(t, out.DiscountAmount.IsZero())
	require.Len(t, out.Applied, 4)
	require.Nil(t, out.MinimumOrder)
}

func TestMinimumOrderCheckAdvisory(t *testing.T) {
	subtotal := decimal.NewFromInt(300)
	out := pricing.EvaluateSalesConditions(subtotal, subtotal, []pricing.SalesCondition{
		{ID: "c1", Rule: pricing.MinOrderAmount{Minimum: decimal.NewFromInt(500)}},
	})
	require.True(t, out.DiscountAmount.IsZero(), "minimum order must never affect price")
	require.NotNil(t, out.MinimumOrder)
	require.False(t, out.MinimumOrder.Valid)
	require.True(t, out.MinimumOrder.Minimum.Equal(decimal.NewFromInt(500)))
	require.True(t, out.MinimumOrder.Current.Equal(subtotal))
}

func TestMinimumOrderStrictestWins(t *testing.T) {
	subtotal := decimal.NewFromInt(800)
	out := pricing.EvaluateSalesConditions(subtotal, subtotal, []pricing.SalesCondition{
		{ID: "c1", Rule: pricing.MinOrderAmount{Minimum: decimal.NewFromInt(500)}},
		{ID: "c2", Rule: pricing.MinOrderAmount{Minimum: decimal.NewFromInt(1000)}},
	})
	require.NotNil(t, out.MinimumOrder)
	require.True(t, out.MinimumOrder.Minimum.Equal(decimal.NewFromInt(1000)))
	require.False(t, out.MinimumOrder.Valid)
}

func TestUnknownConditionRuleSkipped(t *testing.T) {
	base := decimal.NewFromInt(1000)
	out := pricing.EvaluateSalesConditions(base, base, []pricing.SalesCondition{
		{ID: "c1", Name: "custom rule"},
	})
	require.Empty(t, out.Applied)
	require.True(t, out.DiscountAmount.IsZero())
}
