package adapter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresAdapter is the concrete destroy adapter for the postgresql
// scheme: DeleteWorkspace terminates any remaining backends on the target
// database (on every call; the destroy phase has already made its
// transactor force-close call by then) and drops the database outright.
type postgresAdapter struct {
	pool   *pgxpool.Pool
	dbName string
}

func newPostgresAdapter(ctx context.Context, dbURL string) (DestroyAdapter, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("adapter: parsing postgres url: %w", err)
	}
	dbName := cfg.ConnConfig.Database

	// Connect to the maintenance database, not the target one: you cannot
	// DROP DATABASE on the connection you're using.
	cfg.ConnConfig.Database = "postgres"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("adapter: connecting to postgres: %w", err)
	}
	return &postgresAdapter{pool: pool, dbName: dbName}, nil
}

func (a *postgresAdapter) DeleteWorkspace(ctx context.Context, target DestroyTarget) error {
	if _, err := a.pool.Exec(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`,
		a.dbName,
	); err != nil {
		return fmt.Errorf("adapter: terminating backends for %q: %w", a.dbName, err)
	}

	_, err := a.pool.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %s`, pgx.Identifier{a.dbName}.Sanitize()))
	if err != nil {
		return fmt.Errorf("adapter: dropping database %q: %w", a.dbName, err)
	}
	return nil
}

func (a *postgresAdapter) Close(ctx context.Context) error {
	a.pool.Close()
	return nil
}
