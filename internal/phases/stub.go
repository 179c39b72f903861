package phases

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/domain"
)

// ErrCollaboratorNotConfigured is returned by the default bindings for the
// out-of-scope external collaborators (model init, schema migration,
// backup/restore byte-pumping). Their implementations are deployment
// specific and are injected by whatever embeds this worker; this default
// fails loudly rather than silently no-op'ing a lifecycle phase.
var ErrCollaboratorNotConfigured = errors.New("phases: external collaborator not configured")

// NotConfiguredOps returns a WorkspaceOps whose methods always fail with
// ErrCollaboratorNotConfigured. It is the zero-value wiring used until a
// real model-init/migration implementation is injected.
func NotConfiguredOps() WorkspaceOps {
	return WorkspaceOps{
		CreateWorkspace: func(ctx context.Context, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int)) error {
			return ErrCollaboratorNotConfigured
		},
		UpgradeWorkspace: func(ctx context.Context, version domain.Version, txes, migrations []string, ws domain.WorkspaceInfo, log zerolog.Logger, onEvent func(domain.Event, int), force bool) error {
			return ErrCollaboratorNotConfigured
		},
	}
}

// NotConfiguredPipelines returns a StoragePipelineFactory that always fails
// with ErrCollaboratorNotConfigured, for the same reason as NotConfiguredOps.
func NotConfiguredPipelines() StoragePipelineFactory {
	return func(ctx context.Context, dbURL string, txes []string) (StoragePipeline, error) {
		return nil, ErrCollaboratorNotConfigured
	}
}
