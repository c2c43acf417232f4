package models

import (
	"fmt"
	"math"
	"time"
)

// Processing stages. A visa walks أ→ب→ج→د→مكتملة and terminates in
// either مباعة or ملغاة. وصول is entered when the maid's arrival is
// verified while still in stage د.
const (
	StageA         = "أ"
	StageB         = "ب"
	StageC         = "ج"
	StageD         = "د"
	StageArrival   = "وصول"
	StageCompleted = "مكتملة"
	StageCancelled = "ملغاة"
	StageSold      = "مباعة"

	// Expense-only tag for replacement costs.
	StageReplacement = "استبدال"
)

// Coarse visa status. Gates which stage transitions are legal.
const (
	StatusPurchasing      = "قيد_الشراء"
	StatusAwaitingArrival = "في_انتظار_الوصول"
	StatusForSale         = "معروضة_للبيع"
	StatusSold            = "مباعة"
	StatusCancelled       = "ملغاة"
)

// Arrival-based deadline state. Inactive means the visa is protected
// from arrival-based auto-cancellation.
const (
	DeadlineInactive = "inactive"
	DeadlineActive   = "active"
	DeadlineExpired  = "expired"
)

// ReplacementWindowDays limits how long after creation a visa may be
// replaced; the same window length is reused for the arrival deadline.
const ReplacementWindowDays = 30

// Visa - the only entity with lifecycle state.
type Visa struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Identity
	Name           string    `gorm:"size:100" json:"name"`
	DateOfBirth    time.Time `json:"date_of_birth"`
	Nationality    string    `gorm:"size:50" json:"nationality"`
	PassportNumber string    `gorm:"size:50" json:"passport_number"`
	VisaNumber     string    `gorm:"size:50" json:"visa_number"`

	// Ownership. Secretary is immutable once set; code and order number
	// are denormalized so the reference string survives secretary edits.
	SecretaryID   uint      `gorm:"index" json:"secretary_id"`
	Secretary     Secretary `json:"secretary"`
	SecretaryCode string    `gorm:"size:10" json:"secretary_code"`
	OrderNumber   int       `gorm:"index" json:"order_number"`

	MiddlemanName string `gorm:"size:100" json:"middleman_name"`
	VisaSponsor   string `gorm:"size:100" json:"visa_sponsor"`

	// Temporal fields
	VisaIssueDate  time.Time `json:"visa_issue_date"`
	VisaExpiryDate time.Time `json:"visa_expiry_date"`
	VisaDeadline   time.Time `json:"visa_deadline"`

	// Arrival verification and the 30-day cancellation deadline it starts
	MaidArrivalVerified        bool       `json:"maid_arrival_verified"`
	MaidArrivalDate            *time.Time `json:"maid_arrival_date,omitempty"`
	MaidArrivalVerifiedByID    *uint      `json:"maid_arrival_verified_by_id,omitempty"`
	MaidArrivalNotes           string     `gorm:"size:255" json:"maid_arrival_notes"`
	ActiveCancellationDeadline *time.Time `json:"active_cancellation_deadline,omitempty"`
	DeadlineStatus             string     `gorm:"size:20;default:inactive" json:"deadline_status"`

	VisaDocument string `gorm:"size:255" json:"visa_document"`

	// Financial
	SecretaryProfitPercentage float64 `json:"secretary_profit_percentage"`
	TotalExpenses             float64 `json:"total_expenses"`
	SellingPrice              float64 `json:"selling_price"`
	Profit                    float64 `json:"profit"`
	SecretaryEarnings         float64 `json:"secretary_earnings"`

	CustomerName  string `gorm:"size:100" json:"customer_name"`
	CustomerPhone string `gorm:"size:30" json:"customer_phone"`

	SellingSecretaryID *uint   `gorm:"index" json:"selling_secretary_id,omitempty"`
	SellingCommission  float64 `json:"selling_commission"`

	// Stage machine
	CurrentStage    string `gorm:"size:20;index;default:أ" json:"current_stage"`
	StageACompleted bool   `json:"stage_a_completed"`
	StageBCompleted bool   `json:"stage_b_completed"`
	StageCCompleted bool   `json:"stage_c_completed"`
	StageDCompleted bool   `json:"stage_d_completed"`

	Expenses []Expense `gorm:"foreignKey:VisaID" json:"expenses"`

	// Replacement linkage
	IsReplaced      bool       `json:"is_replaced"`
	OriginalVisaID  *uint      `gorm:"index" json:"original_visa_id,omitempty"`
	ReplacedVisaID  *uint      `gorm:"index" json:"replaced_visa_id,omitempty"`
	ReplacementDate *time.Time `json:"replacement_date,omitempty"`

	Status          string     `gorm:"size:30;index;default:قيد_الشراء" json:"status"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	SoldAt          *time.Time `json:"sold_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelledReason string     `gorm:"size:255" json:"cancelled_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reference builds the human-readable id: secretary code + zero-padded
// per-secretary sequence number, e.g. "S007".
func (v *Visa) Reference() string {
	return fmt.Sprintf("%s%03d", v.SecretaryCode, v.OrderNumber)
}

// StageExpenses returns the expense lines recorded for one stage tag.
func (v *Visa) StageExpenses(stage string) []Expense {
	var out []Expense
	for _, e := range v.Expenses {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// RecalculateTotalExpenses sums every expense line plus the selling
// commission and stores the result. This is the only way TotalExpenses
// is ever written.
func (v *Visa) RecalculateTotalExpenses() float64 {
	total := v.SellingCommission
	for _, e := range v.Expenses {
		total += e.Amount
	}
	v.TotalExpenses = total
	return total
}

// RecalculateProfit derives profit from the selling price and expenses.
func (v *Visa) RecalculateProfit() float64 {
	v.Profit = v.SellingPrice - v.TotalExpenses
	return v.Profit
}

// RecalculateSecretaryEarnings applies the secretary's profit share.
func (v *Visa) RecalculateSecretaryEarnings() float64 {
	v.SecretaryEarnings = v.Profit * v.SecretaryProfitPercentage / 100
	return v.SecretaryEarnings
}

// CompanyProfit is what remains after the secretary's share.
func (v *Visa) CompanyProfit() float64 {
	return v.Profit - v.SecretaryEarnings
}

// ArrivalDeadline returns arrival date + 30 days, or nil before the
// arrival has been verified.
func (v *Visa) ArrivalDeadline() *time.Time {
	if !v.MaidArrivalVerified || v.MaidArrivalDate == nil {
		return nil
	}
	d := v.MaidArrivalDate.AddDate(0, 0, ReplacementWindowDays)
	return &d
}

// RefreshDeadlineStatus recomputes the tri-state deadline status against
// the given instant. Unverified visas stay inactive, which shields them
// from the arrival-based sweep.
func (v *Visa) RefreshDeadlineStatus(now time.Time) {
	deadline := v.ArrivalDeadline()
	if deadline == nil {
		v.DeadlineStatus = DeadlineInactive
		v.ActiveCancellationDeadline = nil
		return
	}
	v.ActiveCancellationDeadline = deadline
	if now.After(*deadline) {
		v.DeadlineStatus = DeadlineExpired
	} else {
		v.DeadlineStatus = DeadlineActive
	}
}

// EligibleForArrivalVerification reports whether arrival can be recorded:
// stage د or مكتملة, status purchasing or for-sale, not yet verified.
func (v *Visa) EligibleForArrivalVerification() bool {
	stageOK := v.CurrentStage == StageD || v.CurrentStage == StageCompleted
	statusOK := v.Status == StatusPurchasing || v.Status == StatusForSale
	return stageOK && statusOK && !v.MaidArrivalVerified
}

// DaysUntilCancellation counts whole days left on an active arrival
// deadline; nil when no deadline is running.
func (v *Visa) DaysUntilCancellation(now time.Time) *int {
	if v.DeadlineStatus != DeadlineActive || v.ActiveCancellationDeadline == nil {
		return nil
	}
	days := int(math.Ceil(v.ActiveCancellationDeadline.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return &days
}

// IsOverdue reports whether the original visa deadline has passed.
func (v *Visa) IsOverdue(now time.Time) bool {
	return now.After(v.VisaDeadline)
}
