package phases

import (
	"context"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// backupPhase is the shared skeleton behind ArchiveBackup and
// MigrateBackup: build a storage pipeline bound to the workspace's DB URL
// and transaction set, run a backup with or without a full integrity
// check, and emit the matching terminal event.
type backupPhase struct {
	deps         Deps
	fullCheck    bool
	startedEvent domain.Event
	doneEvent    domain.Event
	ledgerPhase  string
}

// ArchiveBackup requests a full integrity check; the archive path is not
// time-critical.
type ArchiveBackup struct{ Deps Deps }

func (h ArchiveBackup) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	return backupPhase{
		deps: h.Deps, fullCheck: true,
		startedEvent: domain.EventArchivingBackupStarted, doneEvent: domain.EventArchivingBackupDone,
		ledgerPhase: "archive-backup",
	}.run(ctx, ws)
}

// MigrateBackup skips the full integrity check: migration is time-critical
// and a full check is scheduled separately, ahead of migration.
type MigrateBackup struct{ Deps Deps }

func (h MigrateBackup) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	return backupPhase{
		deps: h.Deps, fullCheck: false,
		startedEvent: domain.EventMigrateBackupStarted, doneEvent: domain.EventMigrateBackupDone,
		ledgerPhase: "migrate-backup",
	}.run(ctx, ws)
}

func (p backupPhase) run(ctx context.Context, ws domain.WorkspaceInfo) bool {
	log, closeLog := p.deps.openLog(ws.Workspace, p.ledgerPhase)
	defer closeLog()

	p.deps.recordDispatch(ctx, ws, p.ledgerPhase)
	reporter := p.deps.reporterFor(ws.Workspace, ws.Version, log)
	reporter.Marker(ctx, p.startedEvent, 0)

	pipeline, err := p.deps.Pipelines(ctx, p.deps.Options.DBURL, p.deps.Options.Txes)
	if err != nil {
		log.Error().Err(err).Msg("backup: opening storage pipeline failed")
		p.deps.ErrorHandler(ws, err)
		p.deps.recordOutcome(ctx, ws.Workspace, false)
		return false
	}
	defer pipeline.Close(ctx)

	reporter.StartKeepalive(ctx)
	err = pipeline.Backup(ctx, p.fullCheck, func(pct int) { reporter.Report(ctx, pct) })
	reporter.StopKeepalive()

	if err != nil {
		log.Error().Err(err).Msg("backup failed")
		p.deps.ErrorHandler(ws, err)
		p.deps.recordOutcome(ctx, ws.Workspace, false)
		return false
	}

	reporter.Marker(ctx, p.doneEvent, 100)
	p.deps.recordOutcome(ctx, ws.Workspace, true)
	return true
}
