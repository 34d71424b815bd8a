package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mvallejo-dev/backend-convenios/internal/obs"
)

// Webhook posts notification payloads to a configured endpoint, signing each
// request so the receiver can verify origin. A blank URL disables delivery.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
	Logger *zerolog.Logger
}

// HandleOrderSubmitted is the asynq handler for order notification tasks.
// Transport failures and non-2xx responses return an error so asynq retries
// with its backoff schedule.
func (wh *Webhook) HandleOrderSubmitted(ctx context.Context, task *asynq.Task) error {
	var payload DeliveryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		obs.IncNotifyDelivery("malformed")
		return fmt.Errorf("decode delivery payload: %v: %w", err, asynq.SkipRetry)
	}
	if wh.URL == "" {
		obs.IncNotifyDelivery("disabled")
		return nil
	}
	status, err := wh.deliver(ctx, payload)
	if err != nil {
		obs.IncNotifyDelivery("failed")
		if wh.Logger != nil {
			wh.Logger.Warn().Err(err).Str("event_id", payload.EventID).Str("topic", payload.Topic).Msg("webhook delivery failed")
		}
		return err
	}
	if status < 200 || status >= 300 {
		obs.IncNotifyDelivery("failed")
		return fmt.Errorf("webhook responded %d", status)
	}
	obs.IncNotifyDelivery("delivered")
	return nil
}

func (wh *Webhook) deliver(ctx context.Context, payload DeliveryPayload) (int, error) {
	// Handlers run concurrently, so never write wh.Client here.
	client := wh.Client
	if client == nil {
		client = HTTPClient(5000)
	}
	ctx, span := otel.Tracer("notify.Webhook").Start(ctx, "Webhook.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.event_id", payload.EventID),
		attribute.String("webhook.topic", payload.Topic),
	)
	if err := validateURL(wh.URL); err != nil {
		span.RecordError(err)
		return 0, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "convenios-webhooks/1.0")
	req.Header.Set("X-Event-ID", payload.EventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(wh.Secret, ts, payload.EventID, body))
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeoutMs int) *http.Client {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}
	return &http.Client{
		Timeout:   time.Duration(timeoutMs) * time.Millisecond,
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}

// Mux returns the asynq mux with all notification handlers registered.
func (wh *Webhook) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOrderSubmitted, wh.HandleOrderSubmitted)
	return mux
}
