package lifecycle

import (
	"math"
	"strings"
	"time"

	"go-visa-office/internal/models"
)

// CompleteStage advances the stage machine by one step. The caller names
// the stage it believes is current; a mismatch fails without mutation.
// Stage أ cannot complete without at least one stage-أ expense; ب and ج
// are skippable with zero expenses. Completing د puts the visa up for
// sale and stamps completedAt.
func CompleteStage(v *models.Visa, stage string, now time.Time) error {
	if v.CurrentStage != stage {
		return ErrWrongStage
	}

	switch stage {
	case models.StageA:
		if len(v.StageExpenses(models.StageA)) == 0 {
			return ErrStageANeedsExpense
		}
		v.StageACompleted = true
		v.CurrentStage = models.StageB
	case models.StageB:
		v.StageBCompleted = true
		v.CurrentStage = models.StageC
	case models.StageC:
		v.StageCCompleted = true
		v.CurrentStage = models.StageD
	case models.StageD:
		if v.IsOverdue(now) {
			return ErrDeadlinePassed
		}
		v.StageDCompleted = true
		v.CurrentStage = models.StageCompleted
		v.Status = models.StatusForSale
		v.CompletedAt = &now
	default:
		return ErrWrongStage
	}
	return nil
}

// AddExpense validates and appends an expense line, then recomputes the
// running total. The date defaults to now when the caller passes the
// zero value.
func AddExpense(v *models.Visa, amount float64, description, stage string, date, now time.Time) (models.Expense, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return models.Expense{}, ErrInvalidAmount
	}
	if strings.TrimSpace(description) == "" {
		return models.Expense{}, ErrEmptyDescription
	}
	switch stage {
	case models.StageA, models.StageB, models.StageC, models.StageD, models.StageReplacement:
	default:
		return models.Expense{}, ErrInvalidExpenseStage
	}
	if date.IsZero() {
		date = now
	}

	expense := models.Expense{
		VisaID:      v.ID,
		Amount:      amount,
		Description: description,
		Stage:       stage,
		Date:        date,
	}
	v.Expenses = append(v.Expenses, expense)
	v.RecalculateTotalExpenses()
	return expense, nil
}

// SaleInput carries the fields recorded when a visa is sold.
type SaleInput struct {
	SellingPrice       float64
	CustomerName       string
	CustomerPhone      string
	SellingSecretaryID *uint
	SellingCommission  float64
}

// Sell closes the visa as مباعة and recomputes the financial outputs.
// The selling commission is folded into total expenses before profit is
// derived, so profit == sellingPrice - totalExpenses always holds.
func Sell(v *models.Visa, in SaleInput, now time.Time) error {
	if v.Status != models.StatusForSale {
		return ErrNotForSale
	}

	v.SellingPrice = in.SellingPrice
	v.CustomerName = in.CustomerName
	v.CustomerPhone = in.CustomerPhone
	if in.SellingSecretaryID != nil && in.SellingCommission > 0 {
		v.SellingSecretaryID = in.SellingSecretaryID
		v.SellingCommission = in.SellingCommission
	}

	v.Status = models.StatusSold
	v.CurrentStage = models.StageSold
	v.SoldAt = &now

	v.RecalculateTotalExpenses()
	v.RecalculateProfit()
	v.RecalculateSecretaryEarnings()
	return nil
}

// Cancel closes the visa as ملغاة. Sold visas are immutable.
func Cancel(v *models.Visa, reason string, now time.Time) error {
	if v.Status == models.StatusSold {
		return ErrAlreadySold
	}
	v.Status = models.StatusCancelled
	v.CurrentStage = models.StageCancelled
	v.CancelledAt = &now
	v.CancelledReason = reason
	return nil
}

// Eligibility describes whether a visa can still be replaced and why not.
type Eligibility struct {
	Eligible          bool     `json:"eligible"`
	DaysSinceCreation int      `json:"days_since_creation"`
	RemainingDays     int      `json:"remaining_days"`
	MaxAllowedDays    int      `json:"max_allowed_days"`
	IsReplaced        bool     `json:"is_replaced"`
	Status            string   `json:"status"`
	Reasons           []string `json:"reasons"`
}

// ReplacementEligibility applies the 30-day replacement rule. It is the
// single source of truth for both the replace operation and the
// eligibility endpoint.
func ReplacementEligibility(v *models.Visa, now time.Time) Eligibility {
	days := int(math.Floor(now.Sub(v.CreatedAt).Hours() / 24))
	remaining := models.ReplacementWindowDays - days
	if remaining < 0 {
		remaining = 0
	}

	e := Eligibility{
		DaysSinceCreation: days,
		RemainingDays:     remaining,
		MaxAllowedDays:    models.ReplacementWindowDays,
		IsReplaced:        v.IsReplaced,
		Status:            v.Status,
		Reasons:           []string{},
	}
	if v.IsReplaced {
		e.Reasons = append(e.Reasons, "visa has already been replaced")
	}
	if v.Status == models.StatusSold {
		e.Reasons = append(e.Reasons, "visa is sold")
	}
	if v.Status == models.StatusCancelled {
		e.Reasons = append(e.Reasons, "visa is cancelled")
	}
	if days > models.ReplacementWindowDays {
		e.Reasons = append(e.Reasons, "replacement window has expired")
	}
	e.Eligible = len(e.Reasons) == 0
	return e
}

// ReplacementInput carries the identity of the replacement worker.
type ReplacementInput struct {
	Name           string
	DateOfBirth    time.Time
	Nationality    string
	PassportNumber string
	VisaNumber     string
	MiddlemanName  string
	VisaSponsor    string
	VisaIssueDate  time.Time
	VisaExpiryDate time.Time
	VisaDeadline   time.Time
	VisaDocument   string
}

// Replace builds the replacement visa and marks the original as
// replaced. The new visa inherits secretary, code, order number and
// profit percentage and starts fresh at stage أ. The caller persists
// both records and links original.ReplacedVisaID once the new id is
// known.
func Replace(original *models.Visa, in ReplacementInput, now time.Time) (*models.Visa, error) {
	if original.IsReplaced {
		return nil, ErrAlreadyReplaced
	}
	days := int(math.Floor(now.Sub(original.CreatedAt).Hours() / 24))
	if days > models.ReplacementWindowDays {
		return nil, ErrReplacementWindowExpired
	}

	replacement := &models.Visa{
		Name:           in.Name,
		DateOfBirth:    in.DateOfBirth,
		Nationality:    in.Nationality,
		PassportNumber: in.PassportNumber,
		VisaNumber:     in.VisaNumber,
		MiddlemanName:  in.MiddlemanName,
		VisaSponsor:    in.VisaSponsor,
		VisaIssueDate:  in.VisaIssueDate,
		VisaExpiryDate: in.VisaExpiryDate,
		VisaDeadline:   in.VisaDeadline,
		VisaDocument:   in.VisaDocument,

		SecretaryID:               original.SecretaryID,
		SecretaryCode:             original.SecretaryCode,
		OrderNumber:               original.OrderNumber,
		SecretaryProfitPercentage: original.SecretaryProfitPercentage,

		CurrentStage:    models.StageA,
		Status:          models.StatusPurchasing,
		DeadlineStatus:  models.DeadlineInactive,
		IsReplaced:      true,
		OriginalVisaID:  &original.ID,
		ReplacementDate: &now,
	}

	original.IsReplaced = true
	original.ReplacementDate = &now
	return replacement, nil
}

// VerifyArrival records the maid's arrival and starts the 30-day
// cancellation deadline. A visa still in stage د moves to وصول and goes
// up for sale.
func VerifyArrival(v *models.Visa, arrival time.Time, verifiedBy *uint, notes string, now time.Time) error {
	if !v.EligibleForArrivalVerification() {
		return ErrArrivalIneligible
	}
	if arrival.After(now) {
		return ErrArrivalInFuture
	}
	if arrival.Before(v.CreatedAt) {
		return ErrArrivalBeforeCreation
	}

	v.MaidArrivalVerified = true
	v.MaidArrivalDate = &arrival
	v.MaidArrivalVerifiedByID = verifiedBy
	v.MaidArrivalNotes = notes
	v.RefreshDeadlineStatus(now)

	if v.CurrentStage == models.StageD {
		v.CurrentStage = models.StageArrival
		v.Status = models.StatusForSale
	}
	return nil
}
