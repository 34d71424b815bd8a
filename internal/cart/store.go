package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

// DurableState is the record that survives a session restart. It carries
// lines and scope identity only; rule lists and derived discount fields are
// deliberately absent so that stale promotions can never be honoured after
// a reload. See Session.Restore for the recompute step.
type DurableState struct {
	Lines            []pricing.Line  `json:"lines"`
	AgreementID      string          `json:"agreementId"`
	PricesIncludeVAT bool            `json:"pricesIncludeVat"`
	VATPercentage    decimal.Decimal `json:"vatPercentage"`
}

// Store persists durable cart records in Redis.
type Store struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (st *Store) key(id string) string {
	prefix := st.Prefix
	if prefix == "" {
		prefix = "cart"
	}
	return prefix + ":session:" + id
}

func (st *Store) ttl() time.Duration {
	if st.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return st.TTL
}

// Save writes the durable record under the session key.
func (st *Store) Save(ctx context.Context, id string, state DurableState) error {
	if st == nil || st.R == nil {
		return nil
	}
	if id == "" {
		return errors.New("cart store: session id required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return st.R.Set(ctx, st.key(id), data, st.ttl()).Err()
}

// Load reads the durable record for the session. A missing key or a corrupt
// payload is not an error: the caller gets ok=false and falls back to an
// empty cart. Only transport failures surface as errors.
func (st *Store) Load(ctx context.Context, id string) (DurableState, bool, error) {
	if st == nil || st.R == nil || id == "" {
		return DurableState{}, false, nil
	}
	data, err := st.R.Get(ctx, st.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return DurableState{}, false, nil
		}
		return DurableState{}, false, err
	}
	var state DurableState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt payloads are dropped so the next save starts clean.
		_ = st.R.Del(ctx, st.key(id)).Err()
		return DurableState{}, false, nil
	}
	return state, true, nil
}

// Delete removes the durable record.
func (st *Store) Delete(ctx context.Context, id string) error {
	if st == nil || st.R == nil || id == "" {
		return nil
	}
	return st.R.Del(ctx, st.key(id)).Err()
}
