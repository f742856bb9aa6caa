package types

import "time"

// AuditKind enumerates the notable actions recorded in the audit log.
type AuditKind string

const (
	AuditPageAccess       AuditKind = "page-access"
	AuditFileUpdate       AuditKind = "file-update"
	AuditFileRestore      AuditKind = "file-restore"
	AuditFileClear        AuditKind = "file-clear"
	AuditBlockedEdit      AuditKind = "blocked-edit"
	AuditBlockedRestore   AuditKind = "blocked-restore"
	AuditBlockedClear     AuditKind = "blocked-clear"
	AuditAdminAction      AuditKind = "admin-action"
	AuditAdminFailedLogin AuditKind = "admin-failed-login"
)

// AuditEntry is the wire representation of one audit record.
type AuditEntry struct {
	ID        uint           `json:"id"`
	Kind      AuditKind      `json:"kind"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
