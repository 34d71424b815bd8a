package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/mvallejo-dev/backend-convenios/internal/cart"
	"github.com/mvallejo-dev/backend-convenios/internal/pricing"
)

func newTestStore(t *testing.T) (*cart.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &cart.Store{R: rdb, Prefix: "test", TTL: time.Hour}, mr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	in := cart.DurableState{
		Lines:            []pricing.Line{{Product: product("a", "Mate", "100"), Quantity: 3}},
		AgreementID:      "agr-1",
		PricesIncludeVAT: true,
		VATPercentage:    dec(t, "21"),
	}
	if err := store.Save(ctx, "s1", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, ok, err := store.Load(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if out.AgreementID != "agr-1" || !out.PricesIncludeVAT {
		t.Fatalf("scope identity lost: %+v", out)
	}
	if len(out.Lines) != 1 || out.Lines[0].Quantity != 3 {
		t.Fatalf("lines lost: %+v", out.Lines)
	}
	if !out.VATPercentage.Equal(dec(t, "21")) {
		t.Fatalf("vat percentage = %s", out.VATPercentage)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, ok, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing key must not error: %v", err)
	}
	if ok {
		t.Fatalf("missing key reported as found")
	}
}

func TestStoreCorruptPayloadFallsBack(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Set("test:session:s1", "{not json")
	_, ok, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("corrupt payload must not error: %v", err)
	}
	if ok {
		t.Fatalf("corrupt payload reported as found")
	}
	if mr.Exists("test:session:s1") {
		t.Fatalf("corrupt payload not dropped")
	}
}

func TestManagerRestoresFromStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := cart.NewManager(store, nil)
	sess := first.Create(ctx)
	sess.SetScope(ctx, scope(t, "agr-1", "21"))
	if _, err := sess.AddItem(ctx, product("a", "Mate", "100"), 2); err != nil {
		t.Fatalf("add: %v", err)
	}

	// A fresh manager simulates a process restart.
	second := cart.NewManager(store, nil)
	restored, ok := second.Get(ctx, sess.ID)
	if !ok {
		t.Fatalf("session not restored from durable store")
	}
	state := restored.Snapshot()
	if len(state.Lines) != 1 || state.Lines[0].Quantity != 2 {
		t.Fatalf("lines not restored: %+v", state.Lines)
	}
	if !state.Result.Subtotal.Equal(dec(t, "200")) {
		t.Fatalf("breakdown not recomputed on restore: %s", state.Result.Subtotal)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	store, _ := newTestStore(t)
	m := cart.NewManager(store, nil)
	if _, ok := m.Get(context.Background(), "missing"); ok {
		t.Fatalf("unknown session id reported as found")
	}
}

func TestManagerDropRemovesDurableRecord(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	m := cart.NewManager(store, nil)
	sess := m.Create(ctx)
	sess.SetScope(ctx, scope(t, "agr-1", "21"))
	if !mr.Exists("test:session:" + sess.ID) {
		t.Fatalf("durable record not written")
	}
	m.Drop(ctx, sess.ID)
	if mr.Exists("test:session:" + sess.ID) {
		t.Fatalf("durable record kept after drop")
	}
	if _, ok := m.Get(ctx, sess.ID); ok {
		t.Fatalf("dropped session still resolvable")
	}
}
