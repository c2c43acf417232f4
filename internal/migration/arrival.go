// Package migration holds one-off data migrations run through visactl.
package migration

import (
	"time"

	"go-visa-office/internal/logger"
	"go-visa-office/internal/models"

	"gorm.io/gorm"
)

// BackfillResult summarizes an arrival-system backfill run.
type BackfillResult struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ArrivalBackfill moves pre-existing visas onto the arrival-based
// deadline system. Every unverified visa is forced to the inactive
// deadline state, which protects it from arrival-based auto-cancellation
// until someone verifies the arrival; verified visas get their deadline
// recomputed. Sold and cancelled visas keep their terminal state.
func ArrivalBackfill(db *gorm.DB, now time.Time) (BackfillResult, error) {
	log := logger.WithComponent("migration")
	var result BackfillResult

	var visas []models.Visa
	if err := db.Find(&visas).Error; err != nil {
		return result, err
	}
	log.Info().Int("count", len(visas)).Msg("starting arrival-system backfill")

	for i := range visas {
		visa := &visas[i]

		before := visa.DeadlineStatus
		beforeDeadline := visa.ActiveCancellationDeadline
		visa.RefreshDeadlineStatus(now)

		unchanged := visa.DeadlineStatus == before &&
			equalTimePtr(visa.ActiveCancellationDeadline, beforeDeadline)
		if unchanged {
			result.Skipped++
			continue
		}

		err := db.Model(visa).Updates(map[string]interface{}{
			"deadline_status":              visa.DeadlineStatus,
			"active_cancellation_deadline": visa.ActiveCancellationDeadline,
		}).Error
		if err != nil {
			log.Error().Err(err).Uint("visa_id", visa.ID).Msg("backfill failed for visa")
			result.Failed++
			continue
		}
		result.Migrated++
	}

	log.Info().
		Int("migrated", result.Migrated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("arrival-system backfill finished")
	return result, nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
