package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyquote/skyquote/internal/models"
)

func TestSeedDemoDataIsIdempotent(t *testing.T) {
	db := openLedgerTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, SeedDemoData(db))
	require.NoError(t, SeedDemoData(db))

	var pilots int64
	require.NoError(t, db.Model(&models.Pilot{}).Where("source_form = ?", SeedSourceForm).Count(&pilots).Error)
	assert.EqualValues(t, 2, pilots)

	var enquiries int64
	require.NoError(t, db.Model(&models.Enquiry{}).Where("source_form = ?", SeedSourceForm).Count(&enquiries).Error)
	assert.EqualValues(t, 1, enquiries)
}

func TestResetDemoDataSparesRealRows(t *testing.T) {
	db := openLedgerTestDB(t)
	require.NoError(t, AutoMigrate(db))
	require.NoError(t, SeedDemoData(db))

	real := models.Pilot{Email: "real.pilot@example.com", Name: "Real Pilot", SourceForm: "web-v2"}
	require.NoError(t, db.Create(&real).Error)

	require.NoError(t, ResetDemoData(db))

	var seeded int64
	require.NoError(t, db.Model(&models.Pilot{}).Where("source_form = ?", SeedSourceForm).Count(&seeded).Error)
	assert.EqualValues(t, 0, seeded)

	var survivors int64
	require.NoError(t, db.Model(&models.Pilot{}).Count(&survivors).Error)
	assert.EqualValues(t, 1, survivors)
}
