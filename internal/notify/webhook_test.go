package notify

import (
	"context"
	"crypto/hmac"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mvallejo-dev/backend-convenios/internal/events"
)

func submittedTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewOrderSubmittedTask(events.Event{
		ID:          "ev-1",
		Topic:       events.TopicOrderCreated,
		AggregateID: "order-1",
		Payload:     json.RawMessage(`{"orderId":"order-1","total":"121.00"}`),
		OccurredAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	return task
}

func TestHandleOrderSubmittedSignsPayload(t *testing.T) {
	var (
		gotSig  string
		gotTS   string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotTS = r.Header.Get("X-Timestamp")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := &Webhook{URL: srv.URL, Secret: "topsecret", Client: srv.Client()}
	if err := wh.HandleOrderSubmitted(context.Background(), submittedTask(t)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	ts, err := strconv.ParseInt(gotTS, 10, 64)
	if err != nil {
		t.Fatalf("timestamp header: %v", err)
	}
	want := ComputeSignature("topsecret", ts, "ev-1", gotBody)
	mac1, _ := hex.DecodeString(want)
	mac2, _ := hex.DecodeString(gotSig)
	if !hmac.Equal(mac1, mac2) {
		t.Fatalf("signature mismatch: got %s want %s", gotSig, want)
	}

	var payload DeliveryPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Topic != events.TopicOrderCreated || payload.AggregateID != "order-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestHandleOrderSubmittedRetriesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := &Webhook{URL: srv.URL, Secret: "topsecret", Client: srv.Client()}
	if err := wh.HandleOrderSubmitted(context.Background(), submittedTask(t)); err == nil {
		t.Fatal("expected error so asynq retries")
	}
}

func TestHandleOrderSubmittedNilClientStaysNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := &Webhook{URL: srv.URL, Secret: "topsecret"}
	if err := wh.HandleOrderSubmitted(context.Background(), submittedTask(t)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if wh.Client != nil {
		t.Fatal("delivery must not mutate the shared webhook client")
	}
}

func TestHandleOrderSubmittedSkipsWhenDisabled(t *testing.T) {
	wh := &Webhook{}
	if err := wh.HandleOrderSubmitted(context.Background(), submittedTask(t)); err != nil {
		t.Fatalf("disabled webhook should ack: %v", err)
	}
}

func TestHandleOrderSubmittedMalformedPayloadSkipsRetry(t *testing.T) {
	wh := &Webhook{URL: "http://localhost/hook"}
	task := asynq.NewTask(TypeOrderSubmitted, []byte("{not json"))
	err := wh.HandleOrderSubmitted(context.Background(), task)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
