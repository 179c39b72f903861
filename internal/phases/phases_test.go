package phases

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsfleet/workspace-worker/internal/account"
	"github.com/opsfleet/workspace-worker/internal/adapter"
	"github.com/opsfleet/workspace-worker/internal/domain"
)

// fakeAccount records every UpdateWorkspaceInfo call in order; its
// handshake, pending-workspace and transactor-endpoint calls always succeed
// with empty results.
type fakeAccount struct {
	mu       sync.Mutex
	events   []string // event name of each call
	progress []int    // progress value of each call, parallel to events
}

func (f *fakeAccount) WorkerHandshake(ctx context.Context, region string, version domain.Version, op domain.Operation) error {
	return nil
}
func (f *fakeAccount) GetPendingWorkspace(ctx context.Context, region string, version domain.Version, op domain.Operation) (*domain.WorkspaceInfo, error) {
	return nil, nil
}
func (f *fakeAccount) UpdateWorkspaceInfo(ctx context.Context, workspace string, event domain.Event, version *domain.Version, progress int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, string(event))
	f.progress = append(f.progress, progress)
	return nil
}
func (f *fakeAccount) GetTransactorEndpoint(ctx context.Context) (string, error) { return "", nil }

func (f *fakeAccount) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

var _ account.Client = (*fakeAccount)(nil)

type noopTransactor struct{ called bool }

func (n *noopTransactor) ForceClose(ctx context.Context, log zerolog.Logger) { n.called = true }

type noopFulltext struct {
	called   bool
	onlyDrop bool
}

func (n *noopFulltext) Reindex(ctx context.Context, log zerolog.Logger, clearIndexes bool) {
	n.called = true
	n.onlyDrop = clearIndexes
}

func baseDeps(acct *fakeAccount) Deps {
	return Deps{
		Account:    acct,
		Transactor: &noopTransactor{},
		Fulltext:   &noopFulltext{},
		Adapters:   adapter.Registry{},
		Options:    Options{Console: true},
		ErrorHandler: func(ws domain.WorkspaceInfo, err error) {},
	}
}

func TestCreate_ColdCreate(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	deps.Ops = WorkspaceOps{
		CreateWorkspace: func(ctx context.Context, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int)) error {
			onEvent(domain.EventProgress, 50)
			return nil
		},
	}

	h := Create{Deps: deps}
	h.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w1", Mode: domain.ModePendingCreation})

	got := acct.seen()
	require.Equal(t, []string{"create-started", "progress", "create-done"}, got)
}

func TestCreate_ResumeAfterInitFailure(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	createCalled := false
	deps.Ops = WorkspaceOps{
		CreateWorkspace: func(ctx context.Context, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int)) error {
			createCalled = true
			return nil
		},
	}

	progress := 42
	h := Create{Deps: deps}
	h.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w2", Mode: domain.ModeCreating, Progress: &progress})

	assert.False(t, createCalled, "init must not re-run past the resume threshold")
	assert.Equal(t, []string{"create-done"}, acct.seen())
}

func TestUpgrade_SkippedWhenDisabled(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	deps.Ops = WorkspaceOps{
		UpgradeWorkspace: func(ctx context.Context, version domain.Version, txes, migrations []string, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int), force bool) error {
			t.Fatal("upgrade must not run for a disabled workspace")
			return nil
		},
	}

	h := Upgrade{Deps: deps}
	h.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w3", Mode: domain.ModeUpgrading, Disabled: true})

	assert.Empty(t, acct.seen())
}

func TestArchiveBackupThenArchiveClean(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	deps.Pipelines = func(ctx context.Context, dbURL string, txes []string) (StoragePipeline, error) {
		return fakePipeline{}, nil
	}
	fakeAdapter := &fakeDestroyAdapter{}
	deps.Adapters = adapter.Registry{"postgresql": func(ctx context.Context, dbURL string) (adapter.DestroyAdapter, error) {
		return fakeAdapter, nil
	}}
	deps.Options.DBURL = "postgresql://localhost/ws"

	ArchiveBackup{Deps: deps}.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w4", Mode: domain.ModeArchivingBackup})
	require.Equal(t, []string{"archiving-backup-started", "progress", "archiving-backup-done"}, acct.seen())

	tx := &noopTransactor{}
	ft := &noopFulltext{}
	deps.Transactor = tx
	deps.Fulltext = ft

	ArchiveClean{Deps: deps}.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w4", Mode: domain.ModeArchivingClean})

	assert.True(t, tx.called, "archive-clean must force-close sessions first")
	assert.True(t, fakeAdapter.called)
	assert.True(t, ft.called)
	assert.False(t, ft.onlyDrop, "archive-clean reindexes rather than fully dropping")

	got := acct.seen()
	assert.Equal(t, []string{
		"archiving-backup-started", "progress", "archiving-backup-done",
		"archiving-clean-started", "archiving-clean-done",
	}, got)
}

func TestDelete_FailingReindexIsNotFatal(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	fakeAdapter := &fakeDestroyAdapter{}
	deps.Adapters = adapter.Registry{"postgresql": func(ctx context.Context, dbURL string) (adapter.DestroyAdapter, error) {
		return fakeAdapter, nil
	}}
	deps.Options.DBURL = "postgresql://localhost/ws"
	failingFulltext := &failingFulltextStub{}
	deps.Fulltext = failingFulltext

	Delete{Deps: deps}.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w5", Mode: domain.ModeDeleting})

	assert.True(t, fakeAdapter.called)
	assert.True(t, failingFulltext.called)
	assert.Equal(t, []string{"delete-started", "delete-done"}, acct.seen())
}

func TestCreate_PoisonedWorkspaceRoutesToErrorHandler(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	var handled struct {
		ws  domain.WorkspaceInfo
		err error
	}
	deps.ErrorHandler = func(ws domain.WorkspaceInfo, err error) { handled.ws = ws; handled.err = err }
	deps.Ops = WorkspaceOps{
		CreateWorkspace: func(ctx context.Context, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int)) error {
			return errors.New("boom")
		},
	}

	Create{Deps: deps}.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w6", Mode: domain.ModePendingCreation})

	assert.Equal(t, "w6", handled.ws.Workspace)
	require.Error(t, handled.err)
	assert.NotContains(t, acct.seen(), "create-done")
}

func TestMigrateClean_DoneProgressIsZero(t *testing.T) {
	acct := &fakeAccount{}
	deps := baseDeps(acct)
	deps.Options.MigrationCleanup = false // gate closed: no destroy call expected

	MigrateClean{Deps: deps}.Handle(context.Background(), domain.WorkspaceInfo{Workspace: "w7", Mode: domain.ModeMigrationClean})

	assert.Equal(t, []string{"migrate-clean-started", "migrate-clean-done"}, acct.seen())
	assert.Equal(t, []int{0, 0}, acct.progress)
}

type fakePipeline struct{}

func (fakePipeline) Backup(ctx context.Context, fullCheck bool, onProgress func(int)) error {
	onProgress(100)
	return nil
}
func (fakePipeline) Restore(ctx context.Context, onProgress func(int)) error {
	onProgress(100)
	return nil
}
func (fakePipeline) Close(ctx context.Context) error { return nil }

type fakeDestroyAdapter struct{ called bool }

func (a *fakeDestroyAdapter) DeleteWorkspace(ctx context.Context, target adapter.DestroyTarget) error {
	a.called = true
	return nil
}
func (a *fakeDestroyAdapter) Close(ctx context.Context) error { return nil }

type failingFulltextStub struct{ called bool }

func (f *failingFulltextStub) Reindex(ctx context.Context, log zerolog.Logger, clearIndexes bool) {
	f.called = true
	// simulates the reindex endpoint returning 500: logged and swallowed
	// inside fulltext.Client in production; here the fake simply records
	// the call and the phase proceeds regardless.
}
