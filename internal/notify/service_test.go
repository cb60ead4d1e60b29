package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ariefcatur/storefront-orders/internal/events"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	seen map[string]bool
	err  error
}

func (d *memDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

type recordingSender struct {
	sent []Notification
	err  error
}

func (r *recordingSender) Send(_ context.Context, n Notification) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func message(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "storefront-api", "", events.PartitionKey(7), "", payload)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Key: env.Key, Value: b}
}

func newService() (*Service, *memDedup, *recordingSender) {
	d := &memDedup{seen: map[string]bool{}}
	s := &recordingSender{}
	return &Service{Dedup: d, Sender: s, Log: logging.Nop()}, d, s
}

func TestHandle_Welcome(t *testing.T) {
	svc, _, sender := newService()
	m := message(t, events.EventAccountRegistered, events.AccountRegisteredPayload{AccountID: 7, Name: "Aya", Email: "aya@x.com"})

	require.NoError(t, svc.Handle(context.Background(), m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, KindWelcome, sender.sent[0].Kind)
	assert.Equal(t, "aya@x.com", sender.sent[0].To)
}

func TestHandle_OrderConfirmation(t *testing.T) {
	svc, _, sender := newService()
	m := message(t, events.EventOrderPlaced, events.OrderPlacedPayload{OrderID: 3, AccountID: 7, Total: decimal.RequireFromString("19.98")})

	require.NoError(t, svc.Handle(context.Background(), m))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, KindOrderConfirmation, sender.sent[0].Kind)
	assert.Equal(t, "Order #3 confirmed, total 19.98", sender.sent[0].Subject)
}

func TestHandle_DuplicateSkipped(t *testing.T) {
	svc, _, sender := newService()
	m := message(t, events.EventOrderPlaced, events.OrderPlacedPayload{OrderID: 3, AccountID: 7})

	require.NoError(t, svc.Handle(context.Background(), m))
	require.NoError(t, svc.Handle(context.Background(), m))
	assert.Len(t, sender.sent, 1)
}

func TestHandle_SendFailureAllowsRetry(t *testing.T) {
	svc, dedup, sender := newService()
	sender.err = errors.New("smtp down")
	m := message(t, events.EventOrderPlaced, events.OrderPlacedPayload{OrderID: 3, AccountID: 7})

	require.Error(t, svc.Handle(context.Background(), m))
	assert.Empty(t, dedup.seen)

	sender.err = nil
	require.NoError(t, svc.Handle(context.Background(), m))
	assert.Len(t, sender.sent, 1)
}

func TestHandle_DedupErrorIsRetried(t *testing.T) {
	svc, dedup, sender := newService()
	dedup.err = errors.New("redis down")
	m := message(t, events.EventAccountRegistered, events.AccountRegisteredPayload{AccountID: 7})

	require.Error(t, svc.Handle(context.Background(), m))
	assert.Empty(t, sender.sent)
}

func TestHandle_IgnoresUnknownAndGarbage(t *testing.T) {
	svc, _, sender := newService()

	require.NoError(t, svc.Handle(context.Background(), message(t, "SomethingElse", map[string]int{"x": 1})))
	require.NoError(t, svc.Handle(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.Empty(t, sender.sent)
}
