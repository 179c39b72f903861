// Package domain holds the types shared by every component of the worker:
// the workspace snapshot received from the control-plane, its lifecycle
// modes, and the worker's own immutable identity.
package domain

import "github.com/google/uuid"

// Version is a semantic triple. It is carried on the worker's identity and,
// optionally, on a WorkspaceInfo snapshot.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Operation is the set of lifecycle operations a worker instance declares
// itself capable of during the handshake.
type Operation string

const (
	OperationCreate     Operation = "create"
	OperationUpgrade    Operation = "upgrade"
	OperationAll        Operation = "all"
	OperationAllBackup  Operation = "all+backup"
)

// Branding is an opaque record looked up by name. The core never inspects
// its contents beyond the name used to select it.
type Branding struct {
	Name string
	Raw  map[string]any
}

// Mode is the workspace's current durable state as observed from the
// control-plane. It is a closed enum; ModeUnknown is never sent by this
// worker, only ever observed on an unrecognised wire value.
type Mode string

const (
	ModeUnknown Mode = ""

	ModePendingCreation Mode = "pending-creation"
	ModeCreating        Mode = "creating"

	ModeUpgrading Mode = "upgrading"
	ModeActive    Mode = "active"

	ModeArchivingPendingBackup Mode = "archiving-pending-backup"
	ModeArchivingBackup        Mode = "archiving-backup"
	ModeArchivingPendingClean  Mode = "archiving-pending-clean"
	ModeArchivingClean         Mode = "archiving-clean"

	ModeMigrationPendingBackup Mode = "migration-pending-backup"
	ModeMigrationBackup        Mode = "migration-backup"
	ModeMigrationPendingClean  Mode = "migration-pending-clean"
	ModeMigrationClean         Mode = "migration-clean"

	ModePendingRestore Mode = "pending-restore"
	ModeRestoring      Mode = "restoring"

	ModePendingDeletion Mode = "pending-deletion"
	ModeDeleting        Mode = "deleting"
)

// knownModes is the exhaustive set the dispatcher recognises. Anything else
// observed on the wire is ModeUnknown.
var knownModes = map[Mode]struct{}{
	ModePendingCreation: {}, ModeCreating: {},
	ModeUpgrading: {}, ModeActive: {},
	ModeArchivingPendingBackup: {}, ModeArchivingBackup: {},
	ModeArchivingPendingClean: {}, ModeArchivingClean: {},
	ModeMigrationPendingBackup: {}, ModeMigrationBackup: {},
	ModeMigrationPendingClean: {}, ModeMigrationClean: {},
	ModePendingRestore: {}, ModeRestoring: {},
	ModePendingDeletion: {}, ModeDeleting: {},
}

// Normalize returns m, or ModeUnknown if m is not one of the modes the
// dispatcher recognises. An empty mode defaults to active.
func (m Mode) Normalize() Mode {
	if m == "" {
		return ModeActive
	}
	if _, ok := knownModes[m]; ok {
		return m
	}
	return ModeUnknown
}

// WorkspaceInfo is a snapshot received from the control-plane. It is never
// mutated locally; phase handlers read it and report progress/events back
// out-of-band through the progress reporter.
type WorkspaceInfo struct {
	Workspace string
	UUID      uuid.UUID
	Branding  *string
	Version   *Version
	Mode      Mode
	Progress  *int
	Disabled  bool
}

// ProgressOrZero returns the observed progress, defaulting to 0 when the
// control-plane did not report one.
func (w WorkspaceInfo) ProgressOrZero() int {
	if w.Progress == nil {
		return 0
	}
	return *w.Progress
}

// Identity is the worker's immutable configuration for the process lifetime.
type Identity struct {
	Version    Version
	Region     string
	Limit      int
	Operation  Operation
	Brandings  map[string]Branding
	FulltextURL string
}
