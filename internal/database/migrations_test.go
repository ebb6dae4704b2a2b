package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAutoMigrateUsesAuthMagicLinksTable(t *testing.T) {
	db := openLedgerTestDB(t)
	require.NoError(t, AutoMigrate(db))

	require.True(t, db.Migrator().HasTable("auth_magic_links"))
	require.False(t, db.Migrator().HasTable("magic_links"))
}
