package handlers

import (
	"net/http"
	"strconv"

	"go-visa-office/internal/database"
	"go-visa-office/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func findSecretary(c *gin.Context) (*models.Secretary, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid secretary id"})
		return nil, false
	}

	var secretary models.Secretary
	if err := database.DB.First(&secretary, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Secretary not found"})
		return nil, false
	}
	return &secretary, true
}

func ListSecretaries(c *gin.Context) {
	var secretaries []models.Secretary
	if err := database.DB.Order("name asc").Find(&secretaries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, secretaries)
}

// GetSecretary returns the secretary with aggregated pipeline
// statistics and her most recent visas.
func GetSecretary(c *gin.Context) {
	secretary, ok := findSecretary(c)
	if !ok {
		return
	}

	stats, err := database.SecretaryVisaStats(database.DB, secretary.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	var visas []models.Visa
	err = database.DB.Preload("Secretary").
		Where("secretary_id = ?", secretary.ID).
		Order("created_at desc").
		Limit(50).
		Find(&visas).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secretary":  secretary,
		"visas":      visas,
		"statistics": stats,
	})
}

type SecretaryRequest struct {
	Name  string `json:"name" binding:"required"`
	Code  string `json:"code"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func CreateSecretary(c *gin.Context) {
	var input SecretaryRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name is required"})
		return
	}
	if input.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "code is required"})
		return
	}

	var existing models.Secretary
	if err := database.DB.Where("name = ? OR code = ?", input.Name, input.Code).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "A secretary with this name or code already exists"})
		return
	}

	secretary := models.Secretary{
		Name:  input.Name,
		Code:  input.Code,
		Email: input.Email,
		Phone: input.Phone,
	}
	if err := database.DB.Create(&secretary).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// Per-secretary ledger account; creation failure does not block the
	// secretary itself.
	account := models.Account{
		Name:        "حساب " + secretary.Name,
		Type:        models.AccountTypeSecretary,
		SecretaryID: &secretary.ID,
	}
	if err := database.DB.Create(&account).Error; err != nil {
		log.Error().Err(err).Uint("secretary_id", secretary.ID).Msg("failed to create secretary account")
	}

	c.JSON(http.StatusCreated, secretary)
}

func UpdateSecretary(c *gin.Context) {
	secretary, ok := findSecretary(c)
	if !ok {
		return
	}

	var input struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if input.Name != "" {
		secretary.Name = input.Name
	}
	if input.Email != "" {
		secretary.Email = input.Email
	}
	if input.Phone != "" {
		secretary.Phone = input.Phone
	}

	if err := database.DB.Save(secretary).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, secretary)
}

// DeleteSecretary refuses while the secretary still has open visas.
func DeleteSecretary(c *gin.Context) {
	secretary, ok := findSecretary(c)
	if !ok {
		return
	}

	var activeCount int64
	err := database.DB.Model(&models.Visa{}).
		Where("secretary_id = ? AND status IN ?", secretary.ID,
			[]string{models.StatusPurchasing, models.StatusForSale}).
		Count(&activeCount).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if activeCount > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Secretary still has active visas"})
		return
	}

	if err := database.DB.Delete(secretary).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Secretary deleted"})
}

func GetSecretaryStatistics(c *gin.Context) {
	secretary, ok := findSecretary(c)
	if !ok {
		return
	}

	stats, err := database.SecretaryVisaStats(database.DB, secretary.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	var averageProfit float64
	err = database.DB.Model(&models.Visa{}).
		Where("secretary_id = ? AND status = ?", secretary.ID, models.StatusSold).
		Select("COALESCE(AVG(profit), 0)").
		Scan(&averageProfit).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_visas":             stats.TotalVisas,
		"active_visas":            stats.ActiveVisas,
		"available_visas":         stats.AvailableVisas,
		"sold_visas":              stats.SoldVisas,
		"cancelled_visas":         stats.CancelledVisas,
		"total_expenses":          stats.TotalExpenses,
		"total_earnings":          stats.TotalSecretaryEarnings,
		"total_debt":              stats.TotalDebt,
		"average_profit_per_visa": averageProfit,
	})
}
