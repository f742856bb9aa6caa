package model

import "gorm.io/gorm"

// AdminCredential stores the bcrypt hash of the admin password.
// Setting a new password inserts a new row; the newest row is authoritative.
type AdminCredential struct {
	gorm.Model

	PasswordHash string `json:"-" gorm:"type:varchar(128);not null"`
}
