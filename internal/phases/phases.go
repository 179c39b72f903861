// Package phases implements the per-lifecycle-phase handlers: one per phase
// named in the lifecycle table, each following the common skeleton of
// opening a log sink, invoking the transactor maintenance call when
// destructive, driving the external operation while streaming progress
// through a reporter, and emitting the terminal event on success or routing
// to errorHandler on failure.
package phases

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/account"
	"github.com/opsfleet/workspace-worker/internal/adapter"
	"github.com/opsfleet/workspace-worker/internal/domain"
	"github.com/opsfleet/workspace-worker/internal/ledger"
	"github.com/opsfleet/workspace-worker/internal/logging"
	"github.com/opsfleet/workspace-worker/internal/progress"
)

// TransactorCaller is the maintenance-call collaborator interface phase
// handlers depend on; *transactor.Client satisfies it. Expressed as an
// interface here so tests can substitute a fake without a real HTTP
// endpoint.
type TransactorCaller interface {
	ForceClose(ctx context.Context, log zerolog.Logger)
}

// FulltextCaller is the search-reindex collaborator interface phase
// handlers depend on; *fulltext.Client satisfies it.
type FulltextCaller interface {
	Reindex(ctx context.Context, log zerolog.Logger, clearIndexes bool)
}

// createResumeProgressThreshold: a workspace observed in mode "creating"
// with progress at or above this value is assumed to have already run past
// the (non-reentrant) init script, so Create skips straight to completion
// instead of re-running it.
const createResumeProgressThreshold = 30

// migrateCleanDoneProgress is the progress value MigrateClean's terminal
// event carries. Kept at 0 rather than 100: the migration-clean step is a
// secondary cleanup pass gated by MigrationCleanup, not a user-visible
// percent-complete milestone.
const migrateCleanDoneProgress = 0

// ErrorHandler is invoked on any phase failure in place of emitting the
// terminal event. It must never panic: it is itself inside the
// catch-all boundary described in the concurrency model.
type ErrorHandler func(ws domain.WorkspaceInfo, err error)

// StoragePipeline is the external backup/restore collaborator bound to one
// workspace's DB URL and transaction set. Its concrete implementation
// (byte-pumping, blob transfer) is out of scope for this worker; only the
// interface the phase handlers depend on lives here.
type StoragePipeline interface {
	// Backup runs a backup; fullCheck requests a full integrity pass
	// (used for archive, skipped for the time-critical migration path).
	Backup(ctx context.Context, fullCheck bool, onProgress func(pct int)) error
	// Restore runs a restore restricted to the blob domain.
	Restore(ctx context.Context, onProgress func(pct int)) error
	Close(ctx context.Context) error
}

// StoragePipelineFactory builds a StoragePipeline bound to a workspace's DB
// URL and transaction set, matching "build a fresh storage adapter from
// environment" in the backup/migrate phase description.
type StoragePipelineFactory func(ctx context.Context, dbURL string, txes []string) (StoragePipeline, error)

// WorkspaceOps bundles the external, out-of-scope collaborators the create
// and upgrade handlers drive.
type WorkspaceOps struct {
	// CreateWorkspace runs model init, indices, and seed data.
	CreateWorkspace func(ctx context.Context, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int)) error
	// UpgradeWorkspace is itself re-entrant.
	UpgradeWorkspace func(ctx context.Context, version domain.Version, txes []string, migrations []string, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int), force bool) error
}

// Options carries the runtime options injected into the worker
// constructor that phase handlers consult directly.
type Options struct {
	Txes       []string
	Migrations []string
	Force      bool
	Console    bool
	LogsDir    string
	Ignore     map[string]struct{} // workspace names to skip on upgrade
	DBURL      string
	// MigrationCleanup mirrors env MIGRATION_CLEANUP: gates MigrateClean's
	// destructive step.
	MigrationCleanup bool
}

// Deps bundles every collaborator a phase handler needs. One Deps is
// shared by all phase handlers; handlers never mutate it.
type Deps struct {
	Account     account.Client
	Transactor  TransactorCaller
	Fulltext    FulltextCaller
	Adapters    adapter.Registry
	Ledger      *ledger.Ledger
	Pipelines   StoragePipelineFactory
	Ops         WorkspaceOps
	Identity    domain.Identity
	Options     Options
	ErrorHandler ErrorHandler
	// Metrics, if set, receives a count of every retried control-plane
	// update call a Reporter makes. May be left nil.
	Metrics progress.RetryRecorder
}

// openLog returns a per-workspace logger scoped to the given phase name,
// streaming to the process logger when Console is set, or to a file sink at
// <logs>/<workspace>.log otherwise.
func (d Deps) openLog(workspace, phase string) (zerolog.Logger, func()) {
	base := zerologFromComponent(workspace)
	if d.Options.Console || d.Options.LogsDir == "" {
		return logging.WithPhase(base, phase), func() {}
	}
	f, err := openFileSink(d.Options.LogsDir, workspace)
	if err != nil {
		base.Warn().Err(err).Msg("could not open per-workspace log file, falling back to console")
		return logging.WithPhase(base, phase), func() {}
	}
	fileLogger := logging.WithPhase(base.Output(f), phase)
	return fileLogger, func() { f.Close() }
}

// reporterFor builds a progress.Reporter for one phase execution.
func (d Deps) reporterFor(workspace string, version *domain.Version, log zerolog.Logger) *progress.Reporter {
	return progress.New(d.Account, workspace, version, log, d.Metrics)
}

// recordDispatch and recordOutcome are the ledger hooks: best-effort,
// never gating, never fatal on error.
func (d Deps) recordDispatch(ctx context.Context, ws domain.WorkspaceInfo, phase string) {
	if d.Ledger == nil {
		return
	}
	if err := d.Ledger.RecordDispatch(ctx, ws.Workspace, ws.UUID, phase); err != nil {
		logFromComponent("ledger").Debug().Err(err).Msg("recording dispatch failed, continuing")
	}
}

func (d Deps) recordOutcome(ctx context.Context, workspace string, ok bool) {
	if d.Ledger == nil {
		return
	}
	if err := d.Ledger.RecordOutcome(ctx, workspace, ok); err != nil {
		logFromComponent("ledger").Debug().Err(err).Msg("recording outcome failed, continuing")
	}
}
