package database

import (
	"errors"
	"time"

	"go-visa-office/internal/lifecycle"
	"go-visa-office/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate applies a row lock on dialects that support it. SQLite
// serializes writers on its own, so the clause is skipped there.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// CancelAndDebit cancels a visa and books its sunk cost as debt on the
// responsible secretary. Every cancellation in the system (manual route,
// overdue sweep, CLI) goes through here, inside the caller's
// transaction.
func CancelAndDebit(tx *gorm.DB, visa *models.Visa, reason string, now time.Time) error {
	if err := lifecycle.Cancel(visa, reason, now); err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Save(visa).Error; err != nil {
		return err
	}

	var secretary models.Secretary
	if err := LockForUpdate(tx).First(&secretary, visa.SecretaryID).Error; err != nil {
		return err
	}
	secretary.TotalDebt += visa.TotalExpenses
	return tx.Save(&secretary).Error
}

// CompanyAccount returns the single company-wide aggregate account,
// creating it on first use.
func CompanyAccount(tx *gorm.DB) (*models.Account, error) {
	var account models.Account
	err := tx.Where("type = ?", models.AccountTypeCompany).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.Account{Name: "الحساب الرئيسي", Type: models.AccountTypeCompany}
		err = tx.Create(&account).Error
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// NextOrderNumber allocates the next per-secretary sequence number
// (max + 1, starting at 1).
func NextOrderNumber(tx *gorm.DB, secretaryID uint) (int, error) {
	var max int
	err := tx.Model(&models.Visa{}).
		Where("secretary_id = ?", secretaryID).
		Select("COALESCE(MAX(order_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}
