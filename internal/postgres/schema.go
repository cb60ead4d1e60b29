package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

var ErrSchemaIncomplete = errors.New("schema incomplete: accounts/orders relations missing")

const verifySchemaQuery = `SELECT to_regclass('public.accounts') IS NOT NULL AND to_regclass('public.orders') IS NOT NULL`

// EnsureSchema applies the embedded migrations and then checks both relations
// exist. Migrations only ever create missing objects, so this is safe to run
// on every start. Any error means the service must not serve traffic.
func EnsureSchema(ctx context.Context, db *sql.DB, log logging.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	var ok bool
	if err := db.QueryRowContext(ctx, verifySchemaQuery).Scan(&ok); err != nil {
		return fmt.Errorf("verify schema: %w", err)
	}
	if !ok {
		return ErrSchemaIncomplete
	}
	log.Info(ctx, "schema ready")
	return nil
}

type gooseLogger struct {
	ctx context.Context
	log logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Info(g.ctx, fmt.Sprintf(format, v...), "component", "goose")
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error(g.ctx, fmt.Sprintf(format, v...), "component", "goose")
}
