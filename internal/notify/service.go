// Package notify turns account and order events into customer notifications.
package notify

import (
	"context"
	"fmt"

	"github.com/ariefcatur/storefront-orders/internal/events"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	KindWelcome           = "welcome"
	KindOrderConfirmation = "order_confirmation"
)

type Notification struct {
	Kind      string
	AccountID int64
	OrderID   int64
	To        string
	Subject   string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Deduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Service struct {
	Dedup  Deduper
	Sender Sender
	Log    logging.Logger
}

// Handle is installed as the consumer handler for both event topics.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// a poison message would block the partition forever
		s.Log.Error(ctx, "dropping undecodable message", "err", err, "offset", m.Offset)
		return nil
	}

	n, ok, err := build(env)
	if err != nil {
		s.Log.Error(ctx, "dropping bad payload", "err", err, "event_id", env.EventID)
		return nil
	}
	if !ok {
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.Log.Debug(ctx, "duplicate event skipped", "event_id", env.EventID)
		return nil
	}

	if err := s.Sender.Send(ctx, n); err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			s.Log.Warn(ctx, "dedup release failed", "err", ferr, "event_id", env.EventID)
		}
		return fmt.Errorf("send %s for %s: %w", n.Kind, env.EventID, err)
	}
	return nil
}

func build(env events.Envelope) (Notification, bool, error) {
	switch env.EventType {
	case events.EventAccountRegistered:
		p, err := events.UnwrapPayload[events.AccountRegisteredPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			Kind:      KindWelcome,
			AccountID: p.AccountID,
			To:        p.Email,
			Subject:   "Welcome, " + p.Name,
		}, true, nil
	case events.EventOrderPlaced:
		p, err := events.UnwrapPayload[events.OrderPlacedPayload](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			Kind:      KindOrderConfirmation,
			AccountID: p.AccountID,
			OrderID:   p.OrderID,
			Subject:   fmt.Sprintf("Order #%d confirmed, total %s", p.OrderID, p.Total.StringFixed(2)),
		}, true, nil
	}
	return Notification{}, false, nil
}

// LogSender writes notifications to the log instead of a mail gateway.
type LogSender struct {
	Log logging.Logger
}

func (l LogSender) Send(ctx context.Context, n Notification) error {
	l.Log.Info(ctx, "notification",
		"kind", n.Kind,
		"account_id", n.AccountID,
		"order_id", n.OrderID,
		"to", n.To,
		"subject", n.Subject,
	)
	return nil
}
