// Package lifecycle implements the lifecycle dispatcher: pure routing from
// an observed workspace mode to the handler responsible for that phase.
// All side effects live in the handlers, not here.
package lifecycle

import (
	"context"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// Handler drives one phase of a workspace's lifecycle to completion or
// failure. Implementations own their own progress reporting and error
// routing (invoking errorHandler internally); Handle's bool return is
// purely an outcome signal for the caller's metrics, not an error value
// the caller is expected to act on.
type Handler interface {
	Handle(ctx context.Context, ws domain.WorkspaceInfo) (ok bool)
}

// Table maps each known mode to its handler. Destructive-phase handlers
// are responsible for invoking the transactor maintenance call themselves
// before touching storage.
type Table struct {
	Create         Handler
	Upgrade        Handler
	ArchiveBackup  Handler
	ArchiveClean   Handler
	MigrateBackup  Handler
	MigrateClean   Handler
	Restore        Handler
	Delete         Handler
	OnUnknownMode  func(ws domain.WorkspaceInfo)
}

// Dispatch selects and invokes the handler for ws.Mode (defaulting an empty
// mode to active). An unrecognised mode is logged via OnUnknownMode and
// skipped without invoking any handler; the bool return reflects the
// handler's outcome (true for an unrecognised mode, since there was
// nothing to fail).
func (t Table) Dispatch(ctx context.Context, ws domain.WorkspaceInfo) bool {
	mode := ws.Mode.Normalize()
	ws.Mode = mode

	handler := t.handlerFor(mode)
	if handler == nil {
		if t.OnUnknownMode != nil {
			t.OnUnknownMode(ws)
		}
		return true
	}
	return handler.Handle(ctx, ws)
}

func (t Table) handlerFor(mode domain.Mode) Handler {
	switch mode {
	case domain.ModePendingCreation, domain.ModeCreating:
		return t.Create
	case domain.ModeUpgrading, domain.ModeActive:
		return t.Upgrade
	case domain.ModeArchivingPendingBackup, domain.ModeArchivingBackup:
		return t.ArchiveBackup
	case domain.ModeArchivingPendingClean, domain.ModeArchivingClean:
		return t.ArchiveClean
	case domain.ModeMigrationPendingBackup, domain.ModeMigrationBackup:
		return t.MigrateBackup
	case domain.ModeMigrationPendingClean, domain.ModeMigrationClean:
		return t.MigrateClean
	case domain.ModePendingRestore, domain.ModeRestoring:
		return t.Restore
	case domain.ModePendingDeletion, domain.ModeDeleting:
		return t.Delete
	default:
		return nil
	}
}

// IsDestructive reports whether mode routes to a phase that must first
// force-close serving sessions via the transactor. MigrateClean is
// conditionally destructive on MIGRATION_CLEANUP, which the handler itself
// checks before calling the transactor.
func IsDestructive(mode domain.Mode) bool {
	switch mode {
	case domain.ModeArchivingPendingClean, domain.ModeArchivingClean,
		domain.ModeMigrationPendingClean, domain.ModeMigrationClean,
		domain.ModePendingDeletion, domain.ModeDeleting:
		return true
	default:
		return false
	}
}
