package models

import (
	"time"
)

// User - back-office login account
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'secretary'
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Secretary - the staff member responsible for a visa purchase pipeline.
// Earnings and debt are running totals adjusted on sale/cancellation.
type Secretary struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;size:100" json:"name"`
	Code          string    `gorm:"uniqueIndex;size:10" json:"code"`
	Email         string    `gorm:"size:100" json:"email"`
	Phone         string    `gorm:"size:30" json:"phone"`
	TotalEarnings float64   `json:"total_earnings"`
	TotalDebt     float64   `json:"total_debt"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Account types
const (
	AccountTypeCompany   = "شركة"
	AccountTypeSecretary = "سكرتيرة"
)

// Account - aggregate ledger record. The single company account collects
// organization-wide profit and sold-visa counters on every sale.
type Account struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:100" json:"name"`
	Type           string    `gorm:"size:30;index" json:"type"`
	SecretaryID    *uint     `gorm:"index" json:"secretary_id,omitempty"`
	TotalProfit    float64   `json:"total_profit"`
	TotalVisasSold int64     `json:"total_visas_sold"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Expense - a single ledger line on a visa, tagged with the stage it
// belongs to (أ/ب/ج/د or استبدال).
type Expense struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	VisaID      uint      `gorm:"index" json:"visa_id"`
	Amount      float64   `json:"amount"`
	Description string    `gorm:"size:255" json:"description"`
	Stage       string    `gorm:"size:20;index" json:"stage"`
	Date        time.Time `json:"date"`
}
