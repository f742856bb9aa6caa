// Package migrations keeps the database schema in sync with the models.
package migrations

import (
	"fmt"

	"github.com/repodash/repodash/internal/model"
	"gorm.io/gorm"
)

// Migrate runs schema migrations for all repodash models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.LockTransition{},
		&model.AuditRecord{},
		&model.AdminCredential{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
