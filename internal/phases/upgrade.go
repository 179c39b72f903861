package phases

import (
	"context"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// Upgrade implements the Upgrade phase handler. It is skipped entirely
// (no-op, no event) for disabled workspaces, workspaces mid archive,
// migration, or restore, and workspaces named in the ignore list.
type Upgrade struct {
	Deps Deps
}

func (h Upgrade) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	if h.skip(ws) {
		return true
	}

	log, closeLog := h.Deps.openLog(ws.Workspace, "upgrade")
	defer closeLog()

	h.Deps.recordDispatch(ctx, ws, "upgrade")
	reporter := h.Deps.reporterFor(ws.Workspace, ws.Version, log)
	reporter.Marker(ctx, domain.EventUpgradeStarted, 0)
	reporter.StartKeepalive(ctx)

	err := h.Deps.Ops.UpgradeWorkspace(ctx, h.Deps.Identity.Version, h.Deps.Options.Txes, h.Deps.Options.Migrations, ws, log,
		func(event domain.Event, pct int) { reporter.Report(ctx, pct) }, h.Deps.Options.Force)
	reporter.StopKeepalive()

	if err != nil {
		log.Error().Err(err).Msg("upgrade failed")
		h.Deps.ErrorHandler(ws, err)
		h.Deps.recordOutcome(ctx, ws.Workspace, false)
		return false
	}

	reporter.Marker(ctx, domain.EventUpgradeDone, 100)
	h.Deps.recordOutcome(ctx, ws.Workspace, true)
	return true
}

func (h Upgrade) skip(ws domain.WorkspaceInfo) bool {
	if ws.Disabled {
		return true
	}
	switch ws.Mode {
	case domain.ModeArchivingPendingBackup, domain.ModeArchivingBackup,
		domain.ModeArchivingPendingClean, domain.ModeArchivingClean,
		domain.ModeMigrationPendingBackup, domain.ModeMigrationBackup,
		domain.ModeMigrationPendingClean, domain.ModeMigrationClean,
		domain.ModeRestoring, domain.ModePendingRestore:
		return true
	}
	if _, ignored := h.Deps.Options.Ignore[ws.Workspace]; ignored {
		return true
	}
	return false
}
