package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go-visa-office/internal/database"
	"go-visa-office/internal/lifecycle"
	"go-visa-office/internal/models"

	"github.com/gin-gonic/gin"
)

var preconditionErrors = []error{
	lifecycle.ErrWrongStage,
	lifecycle.ErrStageANeedsExpense,
	lifecycle.ErrDeadlinePassed,
	lifecycle.ErrNotForSale,
	lifecycle.ErrAlreadySold,
	lifecycle.ErrAlreadyReplaced,
	lifecycle.ErrReplacementWindowExpired,
	lifecycle.ErrArrivalIneligible,
	lifecycle.ErrArrivalInFuture,
	lifecycle.ErrArrivalBeforeCreation,
	lifecycle.ErrInvalidAmount,
	lifecycle.ErrEmptyDescription,
	lifecycle.ErrInvalidExpenseStage,
}

// respondError maps lifecycle precondition/validation failures to 400
// and everything else to 500.
func respondError(c *gin.Context, err error) {
	for _, known := range preconditionErrors {
		if errors.Is(err, known) {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
}

// findVisa loads the visa addressed by the :id param with its expenses
// and secretary; writes the 404/400 response itself on failure.
func findVisa(c *gin.Context) (*models.Visa, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid visa id"})
		return nil, false
	}

	var visa models.Visa
	if err := database.DB.Preload("Expenses").Preload("Secretary").First(&visa, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Visa not found"})
		return nil, false
	}
	return &visa, true
}

// parseDate accepts plain dates or RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
