// Package adapter implements the storage/destroy adapter registry: an
// explicit, immutable map of URL scheme to adapter factory, built once at
// startup before the control loop starts rather than as a package-level
// mutable global.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrAdapterNotConfigured is returned by a registered-but-unimplemented
// scheme. It is not a programmer error: the scheme is a real, reachable
// configuration the control-plane may hand out, but this build carries no
// driver for it.
var ErrAdapterNotConfigured = errors.New("adapter: scheme not configured in this build")

// DestroyTarget identifies the workspace a destroy call acts on.
type DestroyTarget struct {
	Name string
	UUID uuid.UUID
}

// StorageAdapter is the backup/restore collaborator bound to one
// workspace's DB URL. Opened per phase execution and always closed on
// every exit path.
type StorageAdapter interface {
	Close(ctx context.Context) error
}

// DestroyAdapter force-drops a workspace's storage. Resolved from the
// registry by DB URL scheme ahead of ArchiveClean/MigrateClean/Delete.
type DestroyAdapter interface {
	DeleteWorkspace(ctx context.Context, target DestroyTarget) error
	Close(ctx context.Context) error
}

// Factory builds a DestroyAdapter bound to one DB URL. Building is cheap
// and adapters are short-lived: one per phase execution.
type Factory func(ctx context.Context, dbURL string) (DestroyAdapter, error)

// Registry is the immutable map[scheme]Factory built once at startup.
type Registry map[string]Factory

// Resolve selects a factory by inspecting the configured DB URL's scheme
// prefix and builds the adapter for it.
func (r Registry) Resolve(ctx context.Context, dbURL string) (DestroyAdapter, error) {
	scheme, _, found := strings.Cut(dbURL, "://")
	if !found {
		return nil, fmt.Errorf("adapter: db url %q has no scheme", dbURL)
	}
	factory, ok := r[scheme]
	if !ok {
		return nil, fmt.Errorf("adapter: no factory registered for scheme %q", scheme)
	}
	return factory(ctx, dbURL)
}

// Default builds the registry shipped with this worker: a real pgx-backed
// adapter for postgresql, and a stub for mongodb (see mongodb.go) since no
// MongoDB driver appears anywhere in this worker's dependency stack.
func Default() Registry {
	return Registry{
		"postgresql": newPostgresAdapter,
		"mongodb":    newMongoStubAdapter,
	}
}
