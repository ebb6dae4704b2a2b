package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/skyquote/skyquote/internal/models"
)

// SeedSourceForm tags demo rows so they can be removed later without
// touching production-authored data.
const SeedSourceForm = "seed-demo"

// SeedDemoData inserts demo pilots and enquiries. It is additive-only and
// idempotent: rows are keyed on their natural identifiers and never
// overwrite existing data.
func SeedDemoData(db *gorm.DB) error {
	pilots := []models.Pilot{
		{
			Email:       "demo.pilot.one@skyquote.example",
			Name:        "Demo Pilot One",
			BaseRegion:  "South West",
			DroneModels: "DJI Mavic 3E",
			FlightHours: 320,
			SourceForm:  SeedSourceForm,
		},
		{
			Email:       "demo.pilot.two@skyquote.example",
			Name:        "Demo Pilot Two",
			BaseRegion:  "Midlands",
			DroneModels: "DJI M350 RTK, Autel EVO II",
			FlightHours: 1100,
			SourceForm:  SeedSourceForm,
		},
	}

	for _, pilot := range pilots {
		if err := db.Where(models.Pilot{Email: pilot.Email}).
			Attrs(pilot).
			FirstOrCreate(&models.Pilot{}).Error; err != nil {
			return fmt.Errorf("seed pilot %s: %w", pilot.Email, err)
		}
	}

	enquiries := []models.Enquiry{
		{
			RequesterName:  "Demo Client",
			RequesterEmail: "demo.client@skyquote.example",
			Service:        "roof-survey",
			SiteLocation:   "Bristol BS1",
			FlexibleDates:  true,
			Details:        "Two-storey terrace, suspected slipped tiles.",
			ConsentContact: true,
			PolicyVersion:  "demo",
			SourceForm:     SeedSourceForm,
			Status:         models.EnquiryNew,
		},
	}

	for _, enquiry := range enquiries {
		if err := db.Where(models.Enquiry{
			RequesterEmail: enquiry.RequesterEmail,
			Service:        enquiry.Service,
			SourceForm:     SeedSourceForm,
		}).Attrs(enquiry).FirstOrCreate(&models.Enquiry{}).Error; err != nil {
			return fmt.Errorf("seed enquiry for %s: %w", enquiry.RequesterEmail, err)
		}
	}

	return nil
}

// ResetDemoData removes only rows carrying the seed sentinel. Cascades take
// care of events, invitations and identities owned by the seeded rows.
func ResetDemoData(db *gorm.DB) error {
	if err := db.Where("source_form = ?", SeedSourceForm).
		Delete(&models.Enquiry{}).Error; err != nil {
		return fmt.Errorf("reset seeded enquiries: %w", err)
	}
	if err := db.Where("source_form = ?", SeedSourceForm).
		Delete(&models.Pilot{}).Error; err != nil {
		return fmt.Errorf("reset seeded pilots: %w", err)
	}
	return nil
}
