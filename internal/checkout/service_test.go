package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mvallejo-dev/backend-convenios/internal/cart"
	"github.com/mvallejo-dev/backend-convenios/internal/lock"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

type noTxBeginner struct{}

func (noTxBeginner) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("no database in this test")
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func sessionWith(t *testing.T, manager *cart.Manager, scope pricing.Scope, qty int) *cart.Session {
	t.Helper()
	sess := manager.Create(context.Background())
	sess.SetScope(context.Background(), scope)
	if qty > 0 {
		_, err := sess.AddItem(context.Background(), pricing.Product{
			ID:       "prod-1",
			Name:     "Sugar 1kg",
			Category: "groceries",
			Price:    dec(t, "100"),
		}, qty)
		require.NoError(t, err)
	}
	return sess
}

func TestSubmitRequiresClient(t *testing.T) {
	svc := &Service{Pool: noTxBeginner{}, Carts: cart.NewManager(nil, nil)}

	_, err := svc.Submit(context.Background(), "sess", Input{ClientID: "", ClientName: "ACME"})
	require.Error(t, err)
}

func TestSubmitUnknownSession(t *testing.T) {
	svc := &Service{Pool: noTxBeginner{}, Carts: cart.NewManager(nil, nil)}

	_, err := svc.Submit(context.Background(), "missing", Input{ClientID: "c1", ClientName: "ACME"})
	require.ErrorIs(t, err, cart.ErrNotFound)
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	manager := cart.NewManager(nil, nil)
	sess := sessionWith(t, manager, pricing.Scope{AgreementID: "agr-1"}, 0)
	svc := &Service{Pool: noTxBeginner{}, Carts: manager}

	_, err := svc.Submit(context.Background(), sess.ID, Input{ClientID: "c1", ClientName: "ACME"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestSubmitBlocksBelowMinimumWhenEnforced(t *testing.T) {
	manager := cart.NewManager(nil, nil)
	scope := pricing.Scope{
		AgreementID: "agr-1",
		SalesConditions: []pricing.SalesCondition{
			{ID: "cond-1", Name: "floor", Rule: pricing.MinOrderAmount{Minimum: dec(t, "500")}},
		},
	}
	sess := sessionWith(t, manager, scope, 2)
	svc := &Service{Pool: noTxBeginner{}, Carts: manager, EnforceMinOrder: true}

	_, err := svc.Submit(context.Background(), sess.ID, Input{ClientID: "c1", ClientName: "ACME"})
	require.ErrorIs(t, err, ErrMinOrderNotMet)
}

func TestSubmitAdvisoryMinimumReachesPersistence(t *testing.T) {
	manager := cart.NewManager(nil, nil)
	scope := pricing.Scope{
		AgreementID: "agr-1",
		SalesConditions: []pricing.SalesCondition{
			{ID: "cond-1", Name: "floor", Rule: pricing.MinOrderAmount{Minimum: dec(t, "500")}},
		},
	}
	sess := sessionWith(t, manager, scope, 2)
	svc := &Service{Pool: noTxBeginner{}, Carts: manager, EnforceMinOrder: false}

	_, err := svc.Submit(context.Background(), sess.ID, Input{ClientID: "c1", ClientName: "ACME"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no database in this test")
}

func TestSubmitUnderLockReachesPersistence(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	manager := cart.NewManager(nil, nil)
	sess := sessionWith(t, manager, pricing.Scope{AgreementID: "agr-1"}, 2)
	svc := &Service{Pool: noTxBeginner{}, Carts: manager, Locker: &lock.Locker{R: rdb}}

	_, err = svc.Submit(context.Background(), sess.ID, Input{ClientID: "c1", ClientName: "ACME"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no database in this test")
	require.False(t, mr.Exists("lock:submit:"+sess.ID))
}

func TestOrderItemRowsChargeResolvedPrices(t *testing.T) {
	volume := dec(t, "96.80")
	state := cart.State{
		Lines: []pricing.Line{
			{Product: pricing.Product{ID: "prod-1", Name: "Sugar 1kg", Price: dec(t, "121.00"), VolumePrice: &volume}, Quantity: 150},
		},
		Scope: pricing.Scope{AgreementID: "agr-1", PricesIncludeVAT: true, VATPercentage: dec(t, "21")},
	}
	state.Result = pricing.Quote(state.Lines, state.Scope)
	require.True(t, state.Result.VolumePricingActive)

	rows := orderItemRows(state)
	require.Len(t, rows, 1)
	require.True(t, rows[0].UnitPrice.Equal(dec(t, "80")), "unit price = %s, want the charged 96.80/1.21", rows[0].UnitPrice)
	require.True(t, rows[0].LineTotal.Equal(state.Result.Subtotal), "line total = %s, subtotal = %s", rows[0].LineTotal, state.Result.Subtotal)
}

func TestOrderItemRowsBonusZeroPriced(t *testing.T) {
	state := cart.State{
		Lines: []pricing.Line{
			{Product: pricing.Product{ID: "A", Name: "Widget", Price: dec(t, "1000")}, Quantity: 10},
		},
		Scope: pricing.Scope{
			AgreementID: "agr-1",
			Promotions: []pricing.Promotion{
				{ID: "p1", Name: "10+2", Rule: pricing.BuyXGetYFree{Buy: 10, Get: 2}},
			},
		},
	}
	state.Result = pricing.Quote(state.Lines, state.Scope)

	rows := orderItemRows(state)
	require.Len(t, rows, 2)
	require.False(t, rows[0].IsBonus)
	require.True(t, rows[1].IsBonus)
	require.Equal(t, 2, rows[1].Quantity)
	require.True(t, rows[1].UnitPrice.IsZero())
	require.True(t, rows[1].LineTotal.IsZero())
}

func TestCheckTotals(t *testing.T) {
	good := pricing.Result{
		SubtotalAfterDiscounts: dec(t, "100"),
		VATAmount:              dec(t, "21"),
		TotalPrice:             dec(t, "121"),
	}
	require.NoError(t, checkTotals(good))

	tampered := good
	tampered.TotalPrice = dec(t, "120")
	require.Error(t, checkTotals(tampered))

	negative := good
	negative.SubtotalAfterDiscounts = dec(t, "-1")
	require.Error(t, checkTotals(negative))
}

func TestBuildSummary(t *testing.T) {
	r := pricing.Result{
		TotalItems:             3,
		Subtotal:               dec(t, "300"),
		DiscountFromPromotions: dec(t, "30"),
		DiscountFromConditions: dec(t, "27"),
		SubtotalAfterDiscounts: dec(t, "243"),
		VATAmount:              dec(t, "51.03"),
		TotalPrice:             dec(t, "294.03"),
		BonusInfo: map[string]pricing.BonusItem{
			"prod-1": {ProductName: "Sugar 1kg", BonusQuantity: 2},
		},
		AppliedConditions: []pricing.AppliedCondition{
			{ID: "cond-1", Name: "net 30", Kind: "net_days", Terms: "payment due in 30 days"},
		},
	}
	summary := buildSummary(r)
	require.Contains(t, summary, "3 items")
	require.Contains(t, summary, "promotion discount 30.00")
	require.Contains(t, summary, "condition discount 27.00")
	require.Contains(t, summary, "total 294.03")
	require.Contains(t, summary, "2 x Sugar 1kg")
	require.Contains(t, summary, "payment due in 30 days")
}
