package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		}
	}
	return nil
}

type stubQuerier struct {
	row stubRow
}

func (q stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return q.row
}

func (q stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestGetParsesDecimalsFromText(t *testing.T) {
	svc := &Service{DB: stubQuerier{row: stubRow{
		values: []any{"prod-1", "Sugar 1kg", "groceries", "12.50", "11.00"},
	}}}

	p, err := svc.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	require.Equal(t, "prod-1", p.ID)
	require.Equal(t, "groceries", p.Category)
	require.True(t, p.Price.Equal(mustDec(t, "12.50")))
	require.NotNil(t, p.VolumePrice)
	require.True(t, p.VolumePrice.Equal(mustDec(t, "11.00")))
}

func TestGetWithoutVolumePrice(t *testing.T) {
	svc := &Service{DB: stubQuerier{row: stubRow{
		values: []any{"prod-2", "Flour 1kg", "groceries", "8.00", nil},
	}}}

	p, err := svc.Get(context.Background(), "prod-2")
	require.NoError(t, err)
	require.Nil(t, p.VolumePrice)
}

func TestGetNotFound(t *testing.T) {
	svc := &Service{DB: stubQuerier{row: stubRow{err: pgx.ErrNoRows}}}

	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetRejectsMalformedPrice(t *testing.T) {
	svc := &Service{DB: stubQuerier{row: stubRow{
		values: []any{"prod-3", "Rice 1kg", "groceries", "not-a-number", nil},
	}}}

	_, err := svc.Get(context.Background(), "prod-3")
	require.Error(t, err)
}
