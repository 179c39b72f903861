// Package ledger is the local dispatch ledger: a purely diagnostic,
// best-effort local record of jobs this worker instance has dispatched. It
// is never consulted to decide whether to dispatch a job and is never
// treated as authoritative over a workspace's mode or progress — the
// control-plane remains the sole source of truth. On restart it is read
// only to log what was mid-flight when the process last exited, and a background sweep purges rows past a retention window.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/google/uuid"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Config configures the ledger's Postgres connection. It is intentionally
// separate from any workspace DB URL the phase handlers operate on: the
// ledger's database is this worker's own bookkeeping store.
type Config struct {
	DSN             string
	RetentionWindow time.Duration
	SweepInterval   time.Duration
}

func (c *Config) setDefaults() {
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = 7 * 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
}

// Ledger owns the local dispatch record.
type Ledger struct {
	db  *sql.DB
	cfg Config
}

// Open connects to the ledger database and applies embedded migrations.
// Returns nil, nil when cfg.DSN is empty: the ledger is optional ambient
// infrastructure, never load-bearing for the control loop.
func Open(ctx context.Context, cfg Config) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	cfg.setDefaults()

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: pinging database: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: setting goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: running migrations: %w", err)
	}

	return &Ledger{db: db, cfg: cfg}, nil
}

// Close releases the underlying connection pool. Safe to call on a nil
// Ledger.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// RecordDispatch writes a row marking workspace as dispatched for phase.
// Errors are the caller's to swallow; the ledger never gates dispatch.
func (l *Ledger) RecordDispatch(ctx context.Context, workspace string, id uuid.UUID, phase string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO dispatched_jobs (workspace, workspace_uuid, phase, dispatched_at, outcome)
		VALUES ($1, $2, $3, now(), 'in_flight')
		ON CONFLICT (workspace) DO UPDATE SET
			workspace_uuid = EXCLUDED.workspace_uuid,
			phase = EXCLUDED.phase,
			dispatched_at = EXCLUDED.dispatched_at,
			outcome = 'in_flight',
			finished_at = NULL
	`, workspace, id, phase)
	return err
}

// RecordOutcome marks the most recent dispatch for workspace as finished,
// successfully or not.
func (l *Ledger) RecordOutcome(ctx context.Context, workspace string, ok bool) error {
	outcome := "failed"
	if ok {
		outcome = "succeeded"
	}
	_, err := l.db.ExecContext(ctx, `
		UPDATE dispatched_jobs SET outcome = $2, finished_at = now()
		WHERE workspace = $1
	`, workspace, outcome)
	return err
}

// InFlightAtStartup returns the workspaces this worker instance last
// recorded as dispatched without a recorded outcome — i.e. the process
// likely crashed mid-phase. This is surfaced only for operator visibility
// (a startup log line); it never resumes or skips dispatch on their behalf.
func (l *Ledger) InFlightAtStartup(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT workspace FROM dispatched_jobs WHERE outcome = 'in_flight'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ws string
		if err := rows.Scan(&ws); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// SweepLoop runs until ctx is cancelled, periodically purging rows older
// than the retention window. It is a pure housekeeping loop: failures are
// logged by the caller via onErr and never terminate the loop.
func (l *Ledger) SweepLoop(ctx context.Context, onErr func(error)) {
	t := time.NewTicker(l.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := l.sweepOnce(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

func (l *Ledger) sweepOnce(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM dispatched_jobs
		WHERE finished_at IS NOT NULL AND finished_at < $1
	`, time.Now().Add(-l.cfg.RetentionWindow))
	return err
}
