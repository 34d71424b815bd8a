package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mvallejo-dev/backend-convenios/internal/events"
)

// TypeOrderSubmitted is the asynq task type for order notification deliveries.
const TypeOrderSubmitted = "notify:order_submitted"

// QueueDefault is the asynq queue notifications run on.
const QueueDefault = "notify"

// DeliveryPayload is the serialized body of a notification task.
type DeliveryPayload struct {
	EventID     string          `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// NewOrderSubmittedTask builds the asynq task for an emitted event.
func NewOrderSubmittedTask(ev events.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliveryPayload{
		EventID:     ev.ID,
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal delivery payload: %w", err)
	}
	return asynq.NewTask(TypeOrderSubmitted, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(6),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer pushes notification tasks onto the queue. It satisfies
// events.Notifier so the bus can fan out without knowing about asynq.
type Enqueuer struct {
	Client *asynq.Client
}

// Notify enqueues a delivery task for the event. Only order topics reach the
// webhook; scope changes stay in the event log.
func (e *Enqueuer) Notify(ctx context.Context, ev events.Event) error {
	if e == nil || e.Client == nil {
		return nil
	}
	if ev.Topic != events.TopicOrderCreated && ev.Topic != events.TopicOrderSubmitFailed {
		return nil
	}
	task, err := NewOrderSubmittedTask(ev)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeOrderSubmitted, err)
	}
	return nil
}
