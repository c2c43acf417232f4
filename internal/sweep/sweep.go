// Package sweep implements the overdue-visa batch cancellation. It is
// triggered from the check-overdue endpoint or the visactl CLI, never
// from a timer.
package sweep

import (
	"time"

	"go-visa-office/internal/database"
	"go-visa-office/internal/logger"
	"go-visa-office/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Cancellation reasons recorded on swept visas.
const (
	ReasonDeadlinePassed = "انتهاء الموعد النهائي للتأشيرة"
	ReasonArrivalExpired = "انتهاء الموعد النهائي بعد وصول الخادمة (30 يوماً)"
)

// Result summarizes one sweep run.
type Result struct {
	Cancelled        int `json:"cancelled_count"`
	DeadlinesUpdated int `json:"updated_count"`
	Failed           int `json:"failed_count"`
}

// Run scans for overdue visas and cancels them through the shared
// cancellation path. Three passes:
//
//  1. visas whose original visa deadline has passed;
//  2. visas whose maid arrived and whose 30-day post-arrival deadline
//     has expired — unverified visas are never touched by this pass;
//  3. refresh of the deadline status on remaining verified visas.
//
// A failure on one visa is logged and skipped; the sweep runs to
// completion.
func Run(db *gorm.DB, now time.Time) (Result, error) {
	log := logger.WithComponent("sweep")
	var result Result

	openStatuses := []string{models.StatusPurchasing, models.StatusForSale}

	var overdue []models.Visa
	if err := db.Where("status IN ? AND visa_deadline < ?", openStatuses, now).
		Find(&overdue).Error; err != nil {
		return result, err
	}
	for i := range overdue {
		cancelOne(db, &overdue[i], ReasonDeadlinePassed, now, &result, log)
	}

	arrivalStatuses := []string{models.StatusPurchasing, models.StatusForSale, models.StatusAwaitingArrival}

	var arrivalOverdue []models.Visa
	if err := db.Where(
		"maid_arrival_verified = ? AND deadline_status = ? AND active_cancellation_deadline < ? AND status IN ?",
		true, models.DeadlineActive, now, arrivalStatuses).
		Find(&arrivalOverdue).Error; err != nil {
		return result, err
	}
	for i := range arrivalOverdue {
		arrivalOverdue[i].DeadlineStatus = models.DeadlineExpired
		cancelOne(db, &arrivalOverdue[i], ReasonArrivalExpired, now, &result, log)
	}

	var active []models.Visa
	if err := db.Where(
		"maid_arrival_verified = ? AND deadline_status = ? AND status IN ?",
		true, models.DeadlineActive, arrivalStatuses).
		Find(&active).Error; err != nil {
		return result, err
	}
	for i := range active {
		visa := &active[i]
		before := visa.DeadlineStatus
		visa.RefreshDeadlineStatus(now)
		if visa.DeadlineStatus == before {
			continue
		}
		if err := db.Model(visa).Updates(map[string]interface{}{
			"deadline_status":              visa.DeadlineStatus,
			"active_cancellation_deadline": visa.ActiveCancellationDeadline,
		}).Error; err != nil {
			log.Error().Err(err).Uint("visa_id", visa.ID).Msg("failed to refresh deadline status")
			result.Failed++
			continue
		}
		result.DeadlinesUpdated++
	}

	log.Info().
		Int("cancelled", result.Cancelled).
		Int("updated", result.DeadlinesUpdated).
		Int("failed", result.Failed).
		Msg("overdue sweep finished")
	return result, nil
}

func cancelOne(db *gorm.DB, visa *models.Visa, reason string, now time.Time, result *Result, log zerolog.Logger) {
	err := db.Transaction(func(tx *gorm.DB) error {
		return database.CancelAndDebit(tx, visa, reason, now)
	})
	if err != nil {
		log.Error().Err(err).Uint("visa_id", visa.ID).Str("reference", visa.Reference()).
			Msg("failed to cancel overdue visa")
		result.Failed++
		return
	}
	log.Info().Uint("visa_id", visa.ID).Str("reference", visa.Reference()).Str("reason", reason).
		Msg("cancelled overdue visa")
	result.Cancelled++
}
