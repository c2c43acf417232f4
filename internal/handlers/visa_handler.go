package handlers

import (
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-visa-office/internal/database"
	"go-visa-office/internal/lifecycle"
	"go-visa-office/internal/models"
	"go-visa-office/internal/sweep"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListVisas returns a paginated, filterable visa listing.
func ListVisas(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	query := database.DB.Model(&models.Visa{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if stage := c.Query("stage"); stage != "" {
		query = query.Where("current_stage = ?", stage)
	}
	if secretary := c.Query("secretary"); secretary != "" {
		query = query.Where("secretary_id = ?", secretary)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	var visas []models.Visa
	err := query.Preload("Secretary").
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&visas).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(limit)))
	c.JSON(http.StatusOK, gin.H{
		"visas": visas,
		"pagination": gin.H{
			"current_page":  page,
			"total_pages":   totalPages,
			"total_count":   totalCount,
			"has_next_page": page < totalPages,
			"has_prev_page": page > 1,
		},
	})
}

// GetVisa returns one visa with its expense ledger.
func GetVisa(c *gin.Context) {
	visa, ok := findVisa(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, visa)
}

// CreateVisa opens a new purchase pipeline at stage أ. Multipart so the
// visa document can be attached.
func CreateVisa(c *gin.Context) {
	secretaryID, err := strconv.ParseUint(c.PostForm("secretary_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Valid secretary_id is required"})
		return
	}

	var secretary models.Secretary
	if err := database.DB.First(&secretary, secretaryID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Secretary not found"})
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	nationality := strings.TrimSpace(c.PostForm("nationality"))
	passportNumber := strings.TrimSpace(c.PostForm("passport_number"))
	visaNumber := strings.TrimSpace(c.PostForm("visa_number"))
	if name == "" || nationality == "" || passportNumber == "" || visaNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, nationality, passport_number and visa_number are required"})
		return
	}

	dateOfBirth, err := parseDate(c.PostForm("date_of_birth"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid date_of_birth"})
		return
	}
	issueDate, err := parseDate(c.PostForm("visa_issue_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa_issue_date"})
		return
	}
	expiryDate, err := parseDate(c.PostForm("visa_expiry_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa_expiry_date"})
		return
	}
	deadline, err := parseDate(c.PostForm("visa_deadline"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa_deadline"})
		return
	}
	percentage, err := strconv.ParseFloat(c.PostForm("secretary_profit_percentage"), 64)
	if err != nil || percentage < 0 || percentage > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "secretary_profit_percentage must be between 0 and 100"})
		return
	}

	document, err := saveUploadedDocument(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	orderNumber, err := database.NextOrderNumber(database.DB, secretary.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	visa := models.Visa{
		Name:           name,
		DateOfBirth:    dateOfBirth,
		Nationality:    nationality,
		PassportNumber: passportNumber,
		VisaNumber:     visaNumber,

		SecretaryID:   secretary.ID,
		SecretaryCode: secretary.Code,
		OrderNumber:   orderNumber,

		MiddlemanName: c.PostForm("middleman_name"),
		VisaSponsor:   c.PostForm("visa_sponsor"),

		VisaIssueDate:  issueDate,
		VisaExpiryDate: expiryDate,
		VisaDeadline:   deadline,
		VisaDocument:   document,

		SecretaryProfitPercentage: percentage,
		CurrentStage:              models.StageA,
		Status:                    models.StatusPurchasing,
		DeadlineStatus:            models.DeadlineInactive,
	}

	if err := database.DB.Create(&visa).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	dashboardCache.Invalidate()
	c.JSON(http.StatusCreated, visa)
}

// saveUploadedDocument stores an optional visa_document attachment and
// returns the stored filename.
func saveUploadedDocument(c *gin.Context) (string, error) {
	file, err := c.FormFile("visa_document")
	if err != nil {
		return "", nil // no attachment
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpeg", ".jpg", ".png", ".pdf", ".doc", ".docx":
	default:
		return "", fmt.Errorf("only images, PDF and document files are allowed")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%d%s", time.Now().UnixNano(), ext)
	if err := c.SaveUploadedFile(file, filepath.Join(cfg.UploadDir, filename)); err != nil {
		return "", err
	}
	return filename, nil
}

func completeStage(c *gin.Context, stage string) {
	visa, ok := findVisa(c)
	if !ok {
		return
	}

	if err := lifecycle.CompleteStage(visa, stage, time.Now()); err != nil {
		respondError(c, err)
		return
	}

	if err := database.DB.Omit(clause.Associations).Save(visa).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	dashboardCache.Invalidate()
	c.JSON(http.StatusOK, visa)
}

func CompleteStageA(c *gin.Context) { completeStage(c, models.StageA) }
func CompleteStageB(c *gin.Context) { completeStage(c, models.StageB) }
func CompleteStageC(c *gin.Context) { completeStage(c, models.StageC) }
func CompleteStageD(c *gin.Context) { completeStage(c, models.StageD) }

type ExpenseRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Stage       string  `json:"stage"`
	Date        string  `json:"date"`
}

// AddVisaExpense appends an expense line and refreshes the total.
func AddVisaExpense(c *gin.Context) {
	var input ExpenseRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	var date time.Time
	if input.Date != "" {
		parsed, err := parseDate(input.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid expense date"})
			return
		}
		date = parsed
	}

	visa, ok := findVisa(c)
	if !ok {
		return
	}

	expense, err := lifecycle.AddExpense(visa, input.Amount, input.Description, input.Stage, date, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}
		return tx.Model(&models.Visa{}).Where("id = ?", visa.ID).
			Update("total_expenses", visa.TotalExpenses).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	// Re-read so the response carries the stored expense ids.
	if err := database.DB.Preload("Expenses").Preload("Secretary").First(visa, visa.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	dashboardCache.Invalidate()
	c.JSON(http.StatusOK, visa)
}

type SellRequest struct {
	SellingPrice       float64 `json:"selling_price" binding:"required"`
	CustomerName       string  `json:"customer_name"`
	CustomerPhone      string  `json:"customer_phone"`
	SellingSecretaryID *uint   `json:"selling_secretary_id"`
	SellingCommission  float64 `json:"selling_commission"`
}

// SellVisa closes the visa as sold and distributes the money: buying
// secretary's earnings, optional selling secretary's commission and the
// company aggregate, all in one transaction.
func SellVisa(c *gin.Context) {
	var input SellRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	visa, ok := findVisa(c)
	if !ok {
		return
	}

	now := time.Now()
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// Re-read under lock so concurrent sells cannot both pass the
		// status precondition.
		if err := database.LockForUpdate(tx).First(visa, visa.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(visa).Association("Expenses").Find(&visa.Expenses); err != nil {
			return err
		}

		saleInput := lifecycle.SaleInput{
			SellingPrice:       input.SellingPrice,
			CustomerName:       input.CustomerName,
			CustomerPhone:      input.CustomerPhone,
			SellingSecretaryID: input.SellingSecretaryID,
			SellingCommission:  input.SellingCommission,
		}
		if err := lifecycle.Sell(visa, saleInput, now); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(visa).Error; err != nil {
			return err
		}

		var secretary models.Secretary
		if err := database.LockForUpdate(tx).First(&secretary, visa.SecretaryID).Error; err != nil {
			return err
		}
		secretary.TotalEarnings += visa.SecretaryEarnings
		if err := tx.Save(&secretary).Error; err != nil {
			return err
		}

		// Commission goes to a distinct selling secretary only.
		if visa.SellingSecretaryID != nil && *visa.SellingSecretaryID != visa.SecretaryID && visa.SellingCommission > 0 {
			var seller models.Secretary
			if err := database.LockForUpdate(tx).First(&seller, *visa.SellingSecretaryID).Error; err != nil {
				return err
			}
			seller.TotalEarnings += visa.SellingCommission
			if err := tx.Save(&seller).Error; err != nil {
				return err
			}
		}

		account, err := database.CompanyAccount(tx)
		if err != nil {
			return err
		}
		account.TotalProfit += visa.CompanyProfit()
		account.TotalVisasSold++
		return tx.Save(account).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	dashboardCache.Invalidate()
	c.JSON(http.StatusOK, visa)
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

// CancelVisa cancels the visa and books its expenses as secretary debt.
func CancelVisa(c *gin.Context) {
	var input CancelRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	visa, ok := findVisa(c)
	if !ok {
		return
	}

	now := time.Now()
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		return database.CancelAndDebit(tx, visa, input.Reason, now)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	dashboardCache.Invalidate()
	c.JSON(http.StatusOK, visa)
}

// ReplaceVisa forks a fresh pipeline for a replacement worker within the
// 30-day window. Multipart like CreateVisa.
func ReplaceVisa(c *gin.Context) {
	visa, ok := findVisa(c)
	if !ok {
		return
	}

	dateOfBirth, err := parseDate(c.PostForm("date_of_birth"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid date_of_birth"})
		return
	}
	issueDate, err := parseDate(c.PostForm("visa_issue_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa_issue_date"})
		return
	}
	expiryDate, err := parseDate(c.PostForm("visa_expiry_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa_expiry_date"})
		return
	}
	deadline, err := parseDate(c.PostForm("visa_deadline"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa_deadline"})
		return
	}

	document, err := saveUploadedDocument(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	input := lifecycle.ReplacementInput{
		Name:           c.PostForm("name"),
		DateOfBirth:    dateOfBirth,
		Nationality:    c.PostForm("nationality"),
		PassportNumber: c.PostForm("passport_number"),
		VisaNumber:     c.PostForm("visa_number"),
		MiddlemanName:  c.PostForm("middleman_name"),
		VisaSponsor:    c.PostForm("visa_sponsor"),
		VisaIssueDate:  issueDate,
		VisaExpiryDate: expiryDate,
		VisaDeadline:   deadline,
		VisaDocument:   document,
	}

	now := time.Now()
	replacement, err := lifecycle.Replace(visa, input, now)
	if err != nil {
		respondError(c, err)
		return
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(replacement).Error; err != nil {
			return err
		}
		return tx.Model(&models.Visa{}).Where("id = ?", visa.ID).Updates(map[string]interface{}{
			"is_replaced":      true,
			"replaced_visa_id": replacement.ID,
			"replacement_date": now,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	dashboardCache.Invalidate()
	c.JSON(http.StatusCreated, replacement)
}

// GetReplacementEligibility reports the 30-day replacement rule without
// mutating anything; it shares the rule with ReplaceVisa.
func GetReplacementEligibility(c *gin.Context) {
	visa, ok := findVisa(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, lifecycle.ReplacementEligibility(visa, time.Now()))
}

type VerifyArrivalRequest struct {
	ArrivalDate string `json:"arrival_date" binding:"required"`
	Notes       string `json:"notes"`
	VerifiedBy  *uint  `json:"verified_by"`
}

// VerifyArrival records the maid's arrival and starts the 30-day
// cancellation deadline.
func VerifyArrival(c *gin.Context) {
	var input VerifyArrivalRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "arrival_date is required"})
		return
	}

	arrival, err := parseDate(input.ArrivalDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid arrival_date"})
		return
	}

	visa, ok := findVisa(c)
	if !ok {
		return
	}

	now := time.Now()
	if err := lifecycle.VerifyArrival(visa, arrival, input.VerifiedBy, input.Notes, now); err != nil {
		respondError(c, err)
		return
	}

	if err := database.DB.Omit(clause.Associations).Save(visa).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":                 "Arrival verified",
		"visa":                    visa,
		"days_until_cancellation": visa.DaysUntilCancellation(now),
	})
}

// GetArrivalStatus refreshes and returns the arrival deadline state.
func GetArrivalStatus(c *gin.Context) {
	visa, ok := findVisa(c)
	if !ok {
		return
	}

	now := time.Now()
	before := visa.DeadlineStatus
	visa.RefreshDeadlineStatus(now)
	if visa.DeadlineStatus != before {
		if err := database.DB.Model(visa).Updates(map[string]interface{}{
			"deadline_status":              visa.DeadlineStatus,
			"active_cancellation_deadline": visa.ActiveCancellationDeadline,
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
	}

	status := gin.H{
		"visa_id":                            visa.ID,
		"visa_number":                        visa.VisaNumber,
		"maid_arrival_verified":              visa.MaidArrivalVerified,
		"maid_arrival_date":                  visa.MaidArrivalDate,
		"maid_arrival_verified_by_id":        visa.MaidArrivalVerifiedByID,
		"maid_arrival_notes":                 visa.MaidArrivalNotes,
		"active_cancellation_deadline":       visa.ActiveCancellationDeadline,
		"deadline_status":                    visa.DeadlineStatus,
		"days_until_cancellation":            visa.DaysUntilCancellation(now),
		"eligible_for_arrival_verification":  visa.EligibleForArrivalVerification(),
		"current_stage":                      visa.CurrentStage,
		"status":                             visa.Status,
	}
	if visa.MaidArrivalVerified && visa.MaidArrivalDate != nil {
		status["days_since_arrival"] = int(now.Sub(*visa.MaidArrivalDate).Hours() / 24)
	}
	c.JSON(http.StatusOK, status)
}

// PendingArrivalVerification lists visas waiting for arrival
// verification.
func PendingArrivalVerification(c *gin.Context) {
	var visas []models.Visa
	err := database.DB.Preload("Secretary").
		Where("current_stage IN ? AND status IN ? AND maid_arrival_verified = ?",
			[]string{models.StageD, models.StageCompleted},
			[]string{models.StatusPurchasing, models.StatusForSale},
			false).
		Order("created_at desc").
		Find(&visas).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"visas": visas, "count": len(visas)})
}

// CheckOverdueVisas runs the overdue sweep on demand.
func CheckOverdueVisas(c *gin.Context) {
	result, err := sweep.Run(database.DB, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	if result.Cancelled > 0 {
		dashboardCache.Invalidate()
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         fmt.Sprintf("Overdue check finished, %d visa(s) cancelled", result.Cancelled),
		"cancelled_count": result.Cancelled,
		"updated_count":   result.DeadlinesUpdated,
		"failed_count":    result.Failed,
	})
}
