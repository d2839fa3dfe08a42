package domain

// AuditAction classifies one change to the rule database.
type AuditAction string

const (
	AuditCreate      AuditAction = "CREATE"
	AuditUpdate      AuditAction = "UPDATE"
	AuditDelete      AuditAction = "DELETE"
	AuditPublishProd AuditAction = "PUBLISH_PROD"
	AuditPublishDev  AuditAction = "PUBLISH_DEV"
	AuditRollback    AuditAction = "ROLLBACK"
	AuditToggle      AuditAction = "TOGGLE"
)

// AuditLogEntry is one record in the bounded change history. SnapshotID
// references the immutable rule-set copy taken when the change was persisted,
// which is what rollback restores.
type AuditLogEntry struct {
	ID         string      `json:"id"`
	Timestamp  int64       `json:"timestamp"`
	User       string      `json:"user"`
	Action     AuditAction `json:"action"`
	Details    string      `json:"details"`
	SnapshotID string      `json:"snapshotId"`
}
