package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ariefcatur/storefront-orders/internal/postgres"
)

var ErrNotFound = errors.New("account not found")

type Repository interface {
	Create(ctx context.Context, a Account) (int64, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	List(ctx context.Context) ([]View, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type PostgresRepository struct {
	db postgres.DBTX
}

func NewPostgresRepository(db postgres.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create relies on the accounts_email_key constraint for uniqueness; callers
// classify the returned error with postgres.IsUniqueViolation.
func (r *PostgresRepository) Create(ctx context.Context, a Account) (int64, error) {
	query :=
		`INSERT INTO accounts (name, email, password_hash, address)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, a.Name, a.Email, a.PasswordHash, a.Address).Scan(&id); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	query :=
		`SELECT id, name, email, password_hash, address FROM accounts
		 WHERE email = $1`

	var a Account
	err := r.db.QueryRowContext(ctx, query, email).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	query := `UPDATE accounts SET password_hash = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List projects every account without its credential column.
func (r *PostgresRepository) List(ctx context.Context) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email, address FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []View{}
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.Name, &v.Email, &v.Address); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
