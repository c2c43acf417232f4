package database

import (
	"go-visa-office/internal/models"

	"gorm.io/gorm"
)

// VisaStats aggregates visa counters and money totals database-side.
type VisaStats struct {
	TotalVisas             int64   `json:"total_visas"`
	TotalExpenses          float64 `json:"total_expenses"`
	ActiveVisas            int64   `json:"active_visas"`
	AvailableVisas         int64   `json:"available_visas"`
	SoldVisas              int64   `json:"sold_visas"`
	CancelledVisas         int64   `json:"cancelled_visas"`
	TotalProfit            float64 `json:"total_profit"`
	TotalSecretaryEarnings float64 `json:"total_secretary_earnings"`
	TotalDebt              float64 `json:"total_debt"`
}

const visaStatsSelect = `
	COUNT(*) AS total_visas,
	COALESCE(SUM(total_expenses), 0) AS total_expenses,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active_visas,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS available_visas,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS sold_visas,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS cancelled_visas,
	COALESCE(SUM(CASE WHEN status = ? THEN profit - secretary_earnings ELSE 0 END), 0) AS total_profit,
	COALESCE(SUM(CASE WHEN status = ? THEN secretary_earnings ELSE 0 END), 0) AS total_secretary_earnings,
	COALESCE(SUM(CASE WHEN status = ? THEN total_expenses ELSE 0 END), 0) AS total_debt`

func visaStatsArgs() []interface{} {
	return []interface{}{
		models.StatusPurchasing,
		models.StatusForSale,
		models.StatusSold,
		models.StatusCancelled,
		models.StatusSold,
		models.StatusSold,
		models.StatusCancelled,
	}
}

// CompanyVisaStats aggregates over every visa in the system.
func CompanyVisaStats(db *gorm.DB) (VisaStats, error) {
	var stats VisaStats
	err := db.Model(&models.Visa{}).
		Select(visaStatsSelect, visaStatsArgs()...).
		Scan(&stats).Error
	return stats, err
}

// SecretaryVisaStats aggregates over one secretary's pipeline.
func SecretaryVisaStats(db *gorm.DB, secretaryID uint) (VisaStats, error) {
	var stats VisaStats
	err := db.Model(&models.Visa{}).
		Where("secretary_id = ?", secretaryID).
		Select(visaStatsSelect, visaStatsArgs()...).
		Scan(&stats).Error
	return stats, err
}
