package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mvallejo-dev/backend-convenios/internal/cache"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

// ErrNotFound indicates the requested product could not be located.
var ErrNotFound = errors.New("product not found")

// Querier abstracts the row access used by the service so tests can stub it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Service loads product price views. Prices travel as text and are parsed
// into decimals so no float ever touches a money value.
type Service struct {
	DB    Querier
	Cache *cache.Cache
}

// NewService constructs a catalog service over a pgx pool.
func NewService(pool *pgxpool.Pool, c *cache.Cache) *Service {
	return &Service{DB: pool, Cache: c}
}

const getProductSQL = `
SELECT id, name, category, price::text, volume_price::text
FROM products
WHERE id = $1`

const listProductsSQL = `
SELECT id, name, category, price::text, volume_price::text
FROM products
ORDER BY name
LIMIT $1 OFFSET $2`

// Get returns the price view for one product.
func (s *Service) Get(ctx context.Context, productID string) (pricing.Product, error) {
	if s == nil || s.DB == nil {
		return pricing.Product{}, errors.New("catalog service not configured")
	}
	var cached pricing.Product
	if ok, _ := s.Cache.GetJSON(ctx, cache.KeyProduct(productID), &cached); ok {
		return cached, nil
	}
	row := s.DB.QueryRow(ctx, getProductSQL, productID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Product{}, ErrNotFound
		}
		return pricing.Product{}, fmt.Errorf("load product: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, cache.KeyProduct(productID), product)
	return product, nil
}

// List returns a page of product price views.
func (s *Service) List(ctx context.Context, limit, offset int) ([]pricing.Product, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("catalog service not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.Query(ctx, listProductsSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var products []pricing.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (pricing.Product, error) {
	var (
		p           pricing.Product
		priceText   string
		volumeText  *string
		volumePrice decimal.Decimal
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &priceText, &volumeText); err != nil {
		return pricing.Product{}, err
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return pricing.Product{}, fmt.Errorf("parse price: %w", err)
	}
	p.Price = price
	if volumeText != nil {
		volumePrice, err = decimal.NewFromString(*volumeText)
		if err != nil {
			return pricing.Product{}, fmt.Errorf("parse volume price: %w", err)
		}
		p.VolumePrice = &volumePrice
	}
	return p, nil
}
