package domain

// Event is a named progress marker sent back to the control-plane.
type Event string

const (
	EventPing Event = "ping"

	EventCreateStarted Event = "create-started"
	EventProgress      Event = "progress"
	EventCreateDone    Event = "create-done"

	EventUpgradeStarted Event = "upgrade-started"
	EventUpgradeDone    Event = "upgrade-done"

	EventArchivingBackupStarted Event = "archiving-backup-started"
	EventArchivingBackupDone    Event = "archiving-backup-done"
	EventArchivingCleanStarted  Event = "archiving-clean-started"
	EventArchivingCleanDone     Event = "archiving-clean-done"

	EventDeleteStarted Event = "delete-started"
	EventDeleteDone    Event = "delete-done"

	EventMigrateBackupStarted Event = "migrate-backup-started"
	EventMigrateBackupDone    Event = "migrate-backup-done"
	EventMigrateCleanStarted  Event = "migrate-clean-started"
	EventMigrateCleanDone     Event = "migrate-clean-done"

	EventRestoreStarted Event = "restore-started"
	EventRestoreDone    Event = "restore-done"
)
