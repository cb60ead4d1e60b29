package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
)

type Repository interface {
	Create(ctx context.Context, o Order) (int64, error)
	ListByAccount(ctx context.Context, accountID int64) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
}

type Repo struct{ DB postgres.DBTX }

func NewRepo(db postgres.DBTX) *Repo { return &Repo{DB: db} }

// Create inserts the order in one statement; a missing account surfaces as a
// foreign key violation from the store.
func (r *Repo) Create(ctx context.Context, o Order) (int64, error) {
	doc, err := json.Marshal(o.Items)
	if err != nil {
		return 0, fmt.Errorf("encode items: %w", err)
	}

	var id int64
	err = r.DB.QueryRowContext(ctx, `
		INSERT INTO orders (account_id, items, total, created_at)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING id`,
		o.AccountID, string(doc), o.Total, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *Repo) ListByAccount(ctx context.Context, accountID int64) ([]Order, error) {
	return r.query(ctx, `
		SELECT id, account_id, items, total, created_at
		FROM orders
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
}

func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.query(ctx, `
		SELECT id, account_id, items, total, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC`)
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var (
			o   Order
			doc []byte
		)
		if err := rows.Scan(&o.ID, &o.AccountID, &doc, &o.Total, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(doc, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items of order %d: %w", o.ID, err)
		}
		if o.Items == nil {
			o.Items = []LineItem{}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
