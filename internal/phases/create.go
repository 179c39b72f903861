package phases

import (
	"context"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// Create implements the Create phase handler: model init, indices, and
// seed data, with an idempotent-resume path for workspaces observed mid
// flight after a prior attempt failed past the (non-reentrant) init step.
type Create struct {
	Deps Deps
}

func (h Create) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	log, closeLog := h.Deps.openLog(ws.Workspace, "create")
	defer closeLog()

	h.Deps.recordDispatch(ctx, ws, "create")
	reporter := h.Deps.reporterFor(ws.Workspace, ws.Version, log)

	progressSoFar := ws.ProgressOrZero()
	resume := ws.Mode == domain.ModeCreating && progressSoFar >= createResumeProgressThreshold

	if resume {
		// The prior attempt failed after the init script ran; the script
		// is not reliably re-entrant, so advance the state machine at the
		// observed progress instead of retrying it. No create-started is
		// emitted: this is not a fresh run of the phase.
		log.Info().Int("progress", progressSoFar).Msg("create: resuming past init, skipping re-run")
		reporter.Marker(ctx, domain.EventCreateDone, progressSoFar)
		h.Deps.recordOutcome(ctx, ws.Workspace, true)
		return true
	}

	reporter.Marker(ctx, domain.EventCreateStarted, 0)
	reporter.StartKeepalive(ctx)
	err := h.Deps.Ops.CreateWorkspace(ctx, ws, log, func(event domain.Event, pct int) {
		reporter.Report(ctx, pct)
	})
	reporter.StopKeepalive()

	if err != nil {
		log.Error().Err(err).Msg("create failed")
		h.Deps.ErrorHandler(ws, err)
		h.Deps.recordOutcome(ctx, ws.Workspace, false)
		return false
	}

	reporter.Marker(ctx, domain.EventCreateDone, 100)
	h.Deps.recordOutcome(ctx, ws.Workspace, true)
	return true
}
