package agreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mvallejo-dev/backend-convenios/internal/cache"
	"github.com/mvallejo-dev/backend-convenios/internal/obs"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

// ErrNotFound indicates the requested agreement could not be located.
var ErrNotFound = errors.New("agreement not found")

// Querier abstracts the row access used by the service so tests can stub it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Service loads the commercial scope of an agreement: VAT treatment plus the
// active promotions and sales conditions. Rule payloads that fail to decode
// are kept with a nil rule so operators can still see them listed.
type Service struct {
	DB    Querier
	Cache *cache.Cache
}

// NewService constructs an agreement service over a pgx pool.
func NewService(pool *pgxpool.Pool, c *cache.Cache) *Service {
	return &Service{DB: pool, Cache: c}
}

const getAgreementSQL = `
SELECT id, prices_include_vat, vat_percentage::text
FROM agreements
WHERE id = $1`

const listPromotionsSQL = `
SELECT id, name, description, rules
FROM promotions
WHERE agreement_id = $1 AND active
ORDER BY created_at`

const listConditionsSQL = `
SELECT id, name, description, rules
FROM sales_conditions
WHERE agreement_id = $1 AND active
ORDER BY created_at`

// Scope returns the full commercial scope for an agreement, serving from
// cache when possible.
func (s *Service) Scope(ctx context.Context, agreementID string) (pricing.Scope, error) {
	if s == nil || s.DB == nil {
		return pricing.Scope{}, errors.New("agreement service not configured")
	}
	var cached pricing.Scope
	if ok, _ := s.Cache.GetJSON(ctx, cache.KeyScope(agreementID), &cached); ok {
		obs.IncScopeRefresh("cache")
		return cached, nil
	}

	scope, err := s.load(ctx, agreementID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.IncScopeRefresh("not_found")
		} else {
			obs.IncScopeRefresh("error")
		}
		return pricing.Scope{}, err
	}
	obs.IncScopeRefresh("ok")
	_ = s.Cache.SetJSON(ctx, cache.KeyScope(agreementID), scope)
	return scope, nil
}

// Invalidate drops the cached scope so the next read hits the database.
func (s *Service) Invalidate(ctx context.Context, agreementID string) error {
	return s.Cache.Invalidate(ctx, cache.KeyScope(agreementID))
}

func (s *Service) load(ctx context.Context, agreementID string) (pricing.Scope, error) {
	var (
		scope   pricing.Scope
		vatText string
	)
	row := s.DB.QueryRow(ctx, getAgreementSQL, agreementID)
	if err := row.Scan(&scope.AgreementID, &scope.PricesIncludeVAT, &vatText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Scope{}, ErrNotFound
		}
		return pricing.Scope{}, fmt.Errorf("load agreement: %w", err)
	}
	vat, err := decimal.NewFromString(vatText)
	if err != nil {
		return pricing.Scope{}, fmt.Errorf("parse vat percentage: %w", err)
	}
	scope.VATPercentage = vat

	scope.Promotions, err = s.loadPromotions(ctx, agreementID)
	if err != nil {
		return pricing.Scope{}, err
	}
	scope.SalesConditions, err = s.loadConditions(ctx, agreementID)
	if err != nil {
		return pricing.Scope{}, err
	}
	return scope, nil
}

func (s *Service) loadPromotions(ctx context.Context, agreementID string) ([]pricing.Promotion, error) {
	rows, err := s.DB.Query(ctx, listPromotionsSQL, agreementID)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()
	var promotions []pricing.Promotion
	for rows.Next() {
		var (
			p     pricing.Promotion
			rules []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &rules); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		p.Rule = pricing.DecodePromotionRule(json.RawMessage(rules))
		promotions = append(promotions, p)
	}
	return promotions, rows.Err()
}

func (s *Service) loadConditions(ctx context.Context, agreementID string) ([]pricing.SalesCondition, error) {
	rows, err := s.DB.Query(ctx, listConditionsSQL, agreementID)
	if err != nil {
		return nil, fmt.Errorf("list sales conditions: %w", err)
	}
	defer rows.Close()
	var conditions []pricing.SalesCondition
	for rows.Next() {
		var (
			c     pricing.SalesCondition
			rules []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &rules); err != nil {
			return nil, fmt.Errorf("scan sales condition: %w", err)
		}
		c.Rule = pricing.DecodeConditionRule(json.RawMessage(rules))
		conditions = append(conditions, c)
	}
	return conditions, rows.Err()
}
