package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditRecord is one immutable entry in the audit log.
// Records are only ever inserted, never updated or deleted by repodash.
type AuditRecord struct {
	gorm.Model

	// Kind is one of the types.AuditKind values.
	Kind string `json:"kind" gorm:"type:varchar(32);index;not null"`

	// Payload holds the free-form structured details of the action
	// (actor IP, target key, content length, ...).
	Payload datatypes.JSON `json:"payload"`
}
