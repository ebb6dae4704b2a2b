package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/skyquote/skyquote/internal/database/testutil"
	"github.com/skyquote/skyquote/internal/models"
)

func createPilot(t *testing.T, db *gorm.DB, email string) *models.Pilot {
	t.Helper()

	pilot := models.Pilot{Email: email, Name: "Test Pilot"}
	require.NoError(t, db.Create(&pilot).Error)
	return &pilot
}

func TestUpsertAdminIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewIdentityService(db)
	require.NoError(t, err)

	first, err := svc.UpsertAdmin(context.Background(), "Ops@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", first.Email)
	assert.Equal(t, models.RoleAdmin, first.Role)
	require.NotNil(t, first.AdminID)

	second, err := svc.UpsertAdmin(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.UserIdentity{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUpsertPilotBindsExistingPilot(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewIdentityService(db)
	require.NoError(t, err)

	pilot := createPilot(t, db, "pilot@example.com")

	identity, err := svc.UpsertPilot(context.Background(), "pilot@example.com", pilot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDronePilot, identity.Role)
	require.NotNil(t, identity.PilotID)
	assert.Equal(t, pilot.ID, *identity.PilotID)

	again, err := svc.UpsertPilot(context.Background(), "pilot@example.com", pilot.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, again.ID)
}

func TestUpsertPilotUnknownPilot(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewIdentityService(db)
	require.NoError(t, err)

	_, err = svc.UpsertPilot(context.Background(), "pilot@example.com", "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestIdentityRoleFlipIsRejected(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewIdentityService(db)
	require.NoError(t, err)

	pilot := createPilot(t, db, "shared@example.com")

	_, err = svc.UpsertPilot(context.Background(), "shared@example.com", pilot.ID)
	require.NoError(t, err)

	// Pilot email cannot silently become an admin
	_, err = svc.UpsertAdmin(context.Background(), "shared@example.com")
	assert.ErrorIs(t, err, ErrIdentityConflict)

	// The existing binding is untouched
	identity, err := svc.Resolve(context.Background(), "shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDronePilot, identity.Role)

	// And the reverse direction
	_, err = svc.UpsertAdmin(context.Background(), "boss@example.com")
	require.NoError(t, err)
	otherPilot := createPilot(t, db, "boss-drone@example.com")
	_, err = svc.UpsertPilot(context.Background(), "boss@example.com", otherPilot.ID)
	assert.ErrorIs(t, err, ErrIdentityConflict)
}

func TestResolveUnknownEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewIdentityService(db)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	_, err = svc.ResolveByID(context.Background(), "missing-id")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}
