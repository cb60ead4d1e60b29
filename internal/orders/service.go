package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/accounts"
	"github.com/ariefcatur/storefront-orders/internal/apperr"
	"github.com/ariefcatur/storefront-orders/internal/events"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
)

type AccountLister interface {
	List(ctx context.Context) ([]accounts.View, error)
}

type Service struct {
	Repo     Repository
	Accounts AccountLister
	Events   events.Publisher
	Log      logging.Logger
	Producer string
	Now      func() time.Time
}

func NewService(repo Repository, accts AccountLister, log logging.Logger) *Service {
	return &Service{Repo: repo, Accounts: accts, Log: log, Events: events.Nop{}, Now: time.Now}
}

// PlaceOrder stamps createdAt here, never from the client, and inserts the
// order. An unknown account is reported by the store's foreign key.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceInput) (int64, error) {
	if err := validate(in); err != nil {
		return 0, err
	}

	o := Order{
		AccountID: in.AccountID,
		Items:     in.Items,
		Total:     in.Total,
		// timestamptz keeps microseconds
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	id, err := s.Repo.Create(ctx, o)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return 0, apperr.NotFound("account not found", err)
		}
		return 0, apperr.Store(apperr.GenericStoreMessage, err)
	}
	o.ID = id

	s.publish(ctx, o)
	return id, nil
}

// ListForAccount returns the account's orders newest first. No orders is an
// empty slice, not an error.
func (s *Service) ListForAccount(ctx context.Context, accountID int64) ([]Order, error) {
	if accountID <= 0 {
		return nil, apperr.Validation("account id must be a positive integer", nil)
	}
	out, err := s.Repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.Store(apperr.GenericStoreMessage, err)
	}
	return out, nil
}

// ListAll reads accounts and orders in two separate round trips; the two
// halves may reflect slightly different moments.
func (s *Service) ListAll(ctx context.Context) (Snapshot, error) {
	accts, err := s.Accounts.List(ctx)
	if err != nil {
		return Snapshot{}, apperr.Store(apperr.GenericStoreMessage, err)
	}
	ords, err := s.Repo.ListAll(ctx)
	if err != nil {
		return Snapshot{}, apperr.Store(apperr.GenericStoreMessage, err)
	}
	return Snapshot{Accounts: accts, Orders: ords}, nil
}

func validate(in PlaceInput) error {
	if in.AccountID <= 0 {
		return apperr.Validation("accountId must be a positive integer", nil)
	}
	if len(in.Items) == 0 {
		return apperr.Validation("order must contain at least one item", nil)
	}
	for i, it := range in.Items {
		switch {
		case it.invalid != "":
			return apperr.Validation(fmt.Sprintf("item %d: %s", i, it.invalid), nil)
		case strings.TrimSpace(it.ProductID) == "":
			return apperr.Validation(fmt.Sprintf("item %d: productId is required", i), nil)
		case it.Quantity <= 0:
			return apperr.Validation(fmt.Sprintf("item %d: quantity must be positive", i), nil)
		case it.Price.IsNegative():
			return apperr.Validation(fmt.Sprintf("item %d: price must not be negative", i), nil)
		}
	}
	if in.Total.IsNegative() {
		return apperr.Validation("total must not be negative", nil)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) publish(ctx context.Context, o Order) {
	if s.Events == nil {
		return
	}
	lines := make([]events.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, events.OrderLine{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	env, err := events.NewEnvelope(events.EventOrderPlaced, s.Producer, logging.RequestID(ctx),
		events.PartitionKey(o.AccountID), strconv.FormatInt(o.ID, 10),
		events.OrderPlacedPayload{OrderID: o.ID, AccountID: o.AccountID, Items: lines, Total: o.Total, CreatedAt: o.CreatedAt})
	if err == nil {
		err = s.Events.Publish(ctx, env)
	}
	if err != nil {
		s.Log.Warn(ctx, "publish event failed", "event_type", events.EventOrderPlaced, "order_id", o.ID, "error", err)
	}
}
