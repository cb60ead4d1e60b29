package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventAccountRegistered = "AccountRegistered"
	EventOrderPlaced       = "OrderPlaced"
)

const (
	TopicAccountRegistered = "account.registered"
	TopicOrderPlaced       = "order.placed"
)

// TopicFor maps an event type to the topic it is published on.
func TopicFor(eventType string) (string, bool) {
	switch eventType {
	case EventAccountRegistered:
		return TopicAccountRegistered, true
	case EventOrderPlaced:
		return TopicOrderPlaced, true
	}
	return "", false
}

// Partition key = account id, so every event of one account keeps its order.
func PartitionKey(accountID int64) []byte { return []byte(strconv.FormatInt(accountID, 10)) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Key           []byte          `json:"-"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, traceID string, key []byte, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Key:           key,
		Payload:       b,
	}, nil
}

func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

type AccountRegisteredPayload struct {
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID   int64           `json:"order_id"`
	AccountID int64           `json:"account_id"`
	Items     []OrderLine     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher hands an envelope to the event bus. Implementations must be safe
// for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Nop drops every event; used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
