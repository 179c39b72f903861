package phases

import (
	"context"

	"github.com/opsfleet/workspace-worker/internal/adapter"
	"github.com/opsfleet/workspace-worker/internal/domain"
)

func adapterTarget(ws domain.WorkspaceInfo) adapter.DestroyTarget {
	return adapter.DestroyTarget{Name: ws.Workspace, UUID: ws.UUID}
}

// Restore builds a storage pipeline as for backup and restricts the
// restore to the blob domain; on success it triggers a non-destructive
// full-text reindex.
type Restore struct{ Deps Deps }

func (h Restore) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	log, closeLog := h.Deps.openLog(ws.Workspace, "restore")
	defer closeLog()

	h.Deps.recordDispatch(ctx, ws, "restore")
	reporter := h.Deps.reporterFor(ws.Workspace, ws.Version, log)
	reporter.Marker(ctx, domain.EventRestoreStarted, 0)

	pipeline, err := h.Deps.Pipelines(ctx, h.Deps.Options.DBURL, h.Deps.Options.Txes)
	if err != nil {
		log.Error().Err(err).Msg("restore: opening storage pipeline failed")
		h.Deps.ErrorHandler(ws, err)
		h.Deps.recordOutcome(ctx, ws.Workspace, false)
		return false
	}
	defer pipeline.Close(ctx)

	reporter.StartKeepalive(ctx)
	err = pipeline.Restore(ctx, func(pct int) { reporter.Report(ctx, pct) })
	reporter.StopKeepalive()

	if err != nil {
		log.Error().Err(err).Msg("restore failed")
		h.Deps.ErrorHandler(ws, err)
		h.Deps.recordOutcome(ctx, ws.Workspace, false)
		return false
	}

	h.Deps.Fulltext.Reindex(ctx, log, false)

	reporter.Marker(ctx, domain.EventRestoreDone, 100)
	h.Deps.recordOutcome(ctx, ws.Workspace, true)
	return true
}
