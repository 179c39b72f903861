package phases

import (
	"context"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// destroyPhase is the shared skeleton behind ArchiveClean, Delete, and
// MigrateClean: force-close serving sessions, resolve the destroy adapter
// for the configured DB URL, delete the workspace's storage, then call the
// reindex endpoint.
type destroyPhase struct {
	deps         Deps
	startedEvent domain.Event
	doneEvent    domain.Event
	doneProgress int
	clearIndexes bool
	ledgerPhase  string
	// gate, when non-nil, must return true for the force-close and the
	// destructive delete to actually run; used only by MigrateClean's
	// MIGRATION_CLEANUP check.
	gate func(Deps) bool
}

// ArchiveClean drops the workspace's database and reindexes (does not fully
// clear indexes — the workspace's search surface survives archival).
type ArchiveClean struct{ Deps Deps }

func (h ArchiveClean) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	return destroyPhase{
		deps: h.Deps,
		startedEvent: domain.EventArchivingCleanStarted, doneEvent: domain.EventArchivingCleanDone,
		doneProgress: 100, clearIndexes: false, ledgerPhase: "archive-clean",
	}.run(ctx, ws)
}

// Delete fully drops the workspace's database and clears its indexes.
type Delete struct{ Deps Deps }

func (h Delete) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	return destroyPhase{
		deps: h.Deps,
		startedEvent: domain.EventDeleteStarted, doneEvent: domain.EventDeleteDone,
		doneProgress: 100, clearIndexes: true, ledgerPhase: "delete",
	}.run(ctx, ws)
}

// MigrateClean only performs the DB delete when MIGRATION_CLEANUP=true;
// either way it emits the start/done pair. Its done event carries progress
// 0, not 100 — see migrateCleanDoneProgress.
type MigrateClean struct{ Deps Deps }

func (h MigrateClean) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	return destroyPhase{
		deps: h.Deps,
		startedEvent: domain.EventMigrateCleanStarted, doneEvent: domain.EventMigrateCleanDone,
		doneProgress: migrateCleanDoneProgress, clearIndexes: false, ledgerPhase: "migrate-clean",
		gate: func(d Deps) bool { return d.Options.MigrationCleanup },
	}.run(ctx, ws)
}

func (p destroyPhase) run(ctx context.Context, ws domain.WorkspaceInfo) bool {
	log, closeLog := p.deps.openLog(ws.Workspace, p.ledgerPhase)
	defer closeLog()

	p.deps.recordDispatch(ctx, ws, p.ledgerPhase)
	reporter := p.deps.reporterFor(ws.Workspace, ws.Version, log)
	reporter.Marker(ctx, p.startedEvent, 0)

	if p.gate == nil || p.gate(p.deps) {
		p.deps.Transactor.ForceClose(ctx, log)

		destroyAdapter, err := p.deps.Adapters.Resolve(ctx, p.deps.Options.DBURL)
		if err != nil {
			log.Error().Err(err).Msg("destroy: resolving adapter failed")
			p.deps.ErrorHandler(ws, err)
			p.deps.recordOutcome(ctx, ws.Workspace, false)
			return false
		}
		defer destroyAdapter.Close(ctx)

		if err := destroyAdapter.DeleteWorkspace(ctx, adapterTarget(ws)); err != nil {
			log.Error().Err(err).Msg("destroy: delete failed")
			p.deps.ErrorHandler(ws, err)
			p.deps.recordOutcome(ctx, ws.Workspace, false)
			return false
		}
	}

	p.deps.Fulltext.Reindex(ctx, log, p.clearIndexes)

	reporter.Marker(ctx, p.doneEvent, p.doneProgress)
	p.deps.recordOutcome(ctx, ws.Workspace, true)
	return true
}
