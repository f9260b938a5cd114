package database

import (
	"testing"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSQLiteMigrateAndSeed(t *testing.T) {
	db, err := Init("sqlite::memory:")
	require.NoError(t, err)
	defer Close(db)

	assert.True(t, IsSQLite(db))
	require.NoError(t, Migrate(db))

	require.NoError(t, SeedDevData(db))
	require.NoError(t, SeedDevData(db))

	var plans []models.Plan
	require.NoError(t, db.Order("id").Find(&plans).Error)
	require.Len(t, plans, 2)
	assert.True(t, plans[0].Enabled)
	assert.Equal(t, []string{"tiktok", "instagram"}, []string(plans[0].Platforms))
	assert.Equal(t, models.TriggerModeImmediate, plans[1].TriggerMode)
}

func TestEnsureTimezoneUTC(t *testing.T) {
	got, err := ensureTimezoneUTC("postgres://u:p@localhost:5432/app?sslmode=disable")
	require.NoError(t, err)
	assert.Contains(t, got, "TimeZone=UTC")

	got, err = ensureTimezoneUTC("postgres://localhost/app?TimeZone=Europe%2FBerlin")
	require.NoError(t, err)
	assert.Contains(t, got, "TimeZone=Europe%2FBerlin")
}
