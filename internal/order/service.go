package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested order could not be located.
var ErrNotFound = errors.New("order not found")

// Item is a stored order line. Bonus lines carry a zero unit price.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	IsBonus   bool            `json:"isBonus"`
}

// Order is the stored record of a submitted cart.
type Order struct {
	ID                     string          `json:"id"`
	SessionID              string          `json:"sessionId"`
	AgreementID            string          `json:"agreementId"`
	ClientID               string          `json:"clientId"`
	ClientName             string          `json:"clientName"`
	Notes                  *string         `json:"notes,omitempty"`
	Status                 string          `json:"status"`
	TotalItems             int             `json:"totalItems"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	DiscountPromotions     decimal.Decimal `json:"discountFromPromotions"`
	DiscountConditions     decimal.Decimal `json:"discountFromConditions"`
	SubtotalAfterDiscounts decimal.Decimal `json:"subtotalAfterDiscounts"`
	VATAmount              decimal.Decimal `json:"vatAmount"`
	TotalPrice             decimal.Decimal `json:"totalPrice"`
	Summary                string          `json:"summary"`
	CreatedAt              time.Time       `json:"createdAt"`
	Items                  []Item          `json:"items,omitempty"`
}

// Querier abstracts the row access used by the service so tests can stub it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Service reads submitted orders back out of Postgres.
type Service struct {
	DB Querier
}

// NewService constructs an order reader over a pgx pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{DB: pool}
}

const orderColumns = `
	id, session_id, agreement_id, client_id, client_name, notes, status,
	total_items, subtotal::text, discount_promotions::text, discount_conditions::text,
	subtotal_after_discounts::text, vat_amount::text, total_price::text, summary, created_at`

const getOrderSQL = `SELECT` + orderColumns + `
FROM orders
WHERE id = $1`

const listOrdersSQL = `SELECT` + orderColumns + `
FROM orders
WHERE ($1 = '' OR client_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

const listOrderItemsSQL = `
SELECT product_id, name, quantity, unit_price::text, line_total::text, is_bonus
FROM order_items
WHERE order_id = $1
ORDER BY is_bonus, name`

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.DB == nil {
		return Order{}, errors.New("order service not configured")
	}
	row := s.DB.QueryRow(ctx, getOrderSQL, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	o.Items, err = s.listItems(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// List returns a page of orders, optionally filtered by client.
func (s *Service) List(ctx context.Context, clientID string, limit, offset int) ([]Order, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("order service not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.Query(ctx, listOrdersSQL, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Service) listItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.DB.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var (
			it        Item
			unitText  string
			totalText string
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &unitText, &totalText, &it.IsBonus); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(unitText); err != nil {
			return nil, fmt.Errorf("parse unit price: %w", err)
		}
		if it.LineTotal, err = decimal.NewFromString(totalText); err != nil {
			return nil, fmt.Errorf("parse line total: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o     Order
		texts [6]string
	)
	if err := row.Scan(
		&o.ID, &o.SessionID, &o.AgreementID, &o.ClientID, &o.ClientName, &o.Notes, &o.Status,
		&o.TotalItems, &texts[0], &texts[1], &texts[2], &texts[3], &texts[4], &texts[5],
		&o.Summary, &o.CreatedAt,
	); err != nil {
		return Order{}, err
	}
	fields := []*decimal.Decimal{
		&o.Subtotal, &o.DiscountPromotions, &o.DiscountConditions,
		&o.SubtotalAfterDiscounts, &o.VATAmount, &o.TotalPrice,
	}
	for i, dst := range fields {
		d, err := decimal.NewFromString(texts[i])
		if err != nil {
			return Order{}, fmt.Errorf("parse order money field: %w", err)
		}
		*dst = d
	}
	return o, nil
}
