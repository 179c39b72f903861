package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

type recordingHandler struct {
	name  string
	calls *[]string
}

func (h recordingHandler) Handle(ctx context.Context, ws domain.WorkspaceInfo) bool {
	*h.calls = append(*h.calls, h.name)
	return true
}

func buildTable(calls *[]string) Table {
	mk := func(name string) Handler { return recordingHandler{name: name, calls: calls} }
	return Table{
		Create:        mk("create"),
		Upgrade:       mk("upgrade"),
		ArchiveBackup: mk("archive-backup"),
		ArchiveClean:  mk("archive-clean"),
		MigrateBackup: mk("migrate-backup"),
		MigrateClean:  mk("migrate-clean"),
		Restore:       mk("restore"),
		Delete:        mk("delete"),
	}
}

func TestDispatch_RoutesEveryKnownMode(t *testing.T) {
	cases := map[domain.Mode]string{
		domain.ModePendingCreation:        "create",
		domain.ModeCreating:               "create",
		domain.ModeUpgrading:               "upgrade",
		domain.ModeActive:                  "upgrade",
		domain.ModeArchivingPendingBackup:  "archive-backup",
		domain.ModeArchivingBackup:         "archive-backup",
		domain.ModeArchivingPendingClean:   "archive-clean",
		domain.ModeArchivingClean:          "archive-clean",
		domain.ModeMigrationPendingBackup:  "migrate-backup",
		domain.ModeMigrationBackup:         "migrate-backup",
		domain.ModeMigrationPendingClean:   "migrate-clean",
		domain.ModeMigrationClean:          "migrate-clean",
		domain.ModePendingRestore:          "restore",
		domain.ModeRestoring:               "restore",
		domain.ModePendingDeletion:         "delete",
		domain.ModeDeleting:                "delete",
	}

	for mode, want := range cases {
		var calls []string
		table := buildTable(&calls)
		table.Dispatch(context.Background(), domain.WorkspaceInfo{Workspace: "w", Mode: mode})
		require.Equal(t, []string{want}, calls, "mode %q", mode)
	}
}

func TestDispatch_EmptyModeDefaultsToActive(t *testing.T) {
	var calls []string
	table := buildTable(&calls)
	table.Dispatch(context.Background(), domain.WorkspaceInfo{Workspace: "w", Mode: ""})
	assert.Equal(t, []string{"upgrade"}, calls)
}

func TestDispatch_UnknownModeLogsAndSkips(t *testing.T) {
	var calls []string
	table := buildTable(&calls)

	var unknownSeen domain.Mode
	table.OnUnknownMode = func(ws domain.WorkspaceInfo) { unknownSeen = ws.Mode }

	table.Dispatch(context.Background(), domain.WorkspaceInfo{Workspace: "w", Mode: "totally-made-up"})

	assert.Empty(t, calls)
	assert.Equal(t, domain.ModeUnknown, unknownSeen)
}

func TestIsDestructive(t *testing.T) {
	assert.True(t, IsDestructive(domain.ModeDeleting))
	assert.True(t, IsDestructive(domain.ModeArchivingClean))
	assert.True(t, IsDestructive(domain.ModeMigrationClean))
	assert.False(t, IsDestructive(domain.ModeCreating))
	assert.False(t, IsDestructive(domain.ModeUpgrading))
}
