package migration

import (
	"fmt"
	"testing"
	"time"

	"go-visa-office/internal/database"
	"go-visa-office/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestArrivalBackfill(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	secretary := models.Secretary{Name: "سارة", Code: "S"}
	require.NoError(t, db.Create(&secretary).Error)

	// Already on the inactive default: nothing to migrate.
	unverified := models.Visa{
		Name: "عاملة أولى", SecretaryID: secretary.ID, SecretaryCode: "S", OrderNumber: 1,
		VisaDeadline:   now.AddDate(0, 2, 0),
		CurrentStage:   models.StageA,
		Status:         models.StatusPurchasing,
		DeadlineStatus: models.DeadlineInactive,
	}
	require.NoError(t, db.Create(&unverified).Error)

	// Verified before the deadline system existed: deadline missing.
	arrival := now.AddDate(0, 0, -10)
	verified := models.Visa{
		Name: "عاملة ثانية", SecretaryID: secretary.ID, SecretaryCode: "S", OrderNumber: 2,
		VisaDeadline:        now.AddDate(0, 2, 0),
		CurrentStage:        models.StageArrival,
		Status:              models.StatusForSale,
		MaidArrivalVerified: true,
		MaidArrivalDate:     &arrival,
		DeadlineStatus:      models.DeadlineInactive,
	}
	require.NoError(t, db.Create(&verified).Error)

	result, err := ArrivalBackfill(db, now)
	require.NoError(t, err)
	require.Equal(t, 1, result.Migrated)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, result.Failed)

	var migrated models.Visa
	require.NoError(t, db.First(&migrated, verified.ID).Error)
	require.Equal(t, models.DeadlineActive, migrated.DeadlineStatus)
	require.NotNil(t, migrated.ActiveCancellationDeadline)
	expected := arrival.AddDate(0, 0, models.ReplacementWindowDays)
	require.WithinDuration(t, expected, *migrated.ActiveCancellationDeadline, time.Second)

	var untouched models.Visa
	require.NoError(t, db.First(&untouched, unverified.ID).Error)
	require.Equal(t, models.DeadlineInactive, untouched.DeadlineStatus)

	// Re-running migrates nothing further.
	again, err := ArrivalBackfill(db, now)
	require.NoError(t, err)
	require.Equal(t, 0, again.Migrated)
	require.Equal(t, 2, again.Skipped)
}
