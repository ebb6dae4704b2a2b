package database

import (
	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. It is
// the development and test path; production deployments run the SQL ledger
// via cmd/migrate instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Admin{},
		&models.Pilot{},
		&models.UserIdentity{},
		&models.MagicLink{},
		&models.Enquiry{},
		&models.EnquiryEvent{},
		&models.PilotInvitation{},
		&SchemaMigration{},
	)
}
