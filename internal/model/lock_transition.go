package model

import "gorm.io/gorm"

// LockTransition records one change of the system lock flag.
// Transitions are append-only: the current lock state is the newest row,
// and the full history of admin lock/unlock actions is preserved.
type LockTransition struct {
	gorm.Model

	Locked bool   `json:"locked" gorm:"not null"`
	Actor  string `json:"actor" gorm:"type:varchar(255);not null"`
}
