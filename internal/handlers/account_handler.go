package handlers

import (
	"net/http"

	"go-visa-office/internal/database"
	"go-visa-office/internal/models"

	"github.com/gin-gonic/gin"
)

type soldVisaSummary struct {
	ID                uint    `json:"id"`
	Reference         string  `json:"reference"`
	Name              string  `json:"name"`
	SecretaryName     string  `json:"secretary_name"`
	CustomerName      string  `json:"customer_name"`
	SellingPrice      float64 `json:"selling_price"`
	TotalExpenses     float64 `json:"total_expenses"`
	Profit            float64 `json:"profit"`
	SecretaryEarnings float64 `json:"secretary_earnings"`
	CompanyProfit     float64 `json:"company_profit"`
	SoldAt            string  `json:"sold_at"`
}

type dashboardResponse struct {
	Account    *models.Account    `json:"account"`
	Statistics database.VisaStats `json:"statistics"`
	SoldVisas  []soldVisaSummary  `json:"sold_visas"`
}

func buildDashboard() (*dashboardResponse, error) {
	account, err := database.CompanyAccount(database.DB)
	if err != nil {
		return nil, err
	}

	stats, err := database.CompanyVisaStats(database.DB)
	if err != nil {
		return nil, err
	}

	var sold []models.Visa
	err = database.DB.Preload("Secretary").
		Where("status = ?", models.StatusSold).
		Order("sold_at desc").
		Limit(20).
		Find(&sold).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]soldVisaSummary, 0, len(sold))
	for i := range sold {
		v := &sold[i]
		s := soldVisaSummary{
			ID:                v.ID,
			Reference:         v.Reference(),
			Name:              v.Name,
			SecretaryName:     v.Secretary.Name,
			CustomerName:      v.CustomerName,
			SellingPrice:      v.SellingPrice,
			TotalExpenses:     v.TotalExpenses,
			Profit:            v.Profit,
			SecretaryEarnings: v.SecretaryEarnings,
			CompanyProfit:     v.CompanyProfit(),
		}
		if v.SoldAt != nil {
			s.SoldAt = v.SoldAt.Format("2006-01-02")
		}
		summaries = append(summaries, s)
	}

	return &dashboardResponse{Account: account, Statistics: stats, SoldVisas: summaries}, nil
}

// GetCompanyDashboard serves the company account, system-wide visa
// statistics and the latest sales. The response is cached; every
// write path invalidates the cache.
func GetCompanyDashboard(c *gin.Context) {
	if cached, ok := dashboardCache.Get(); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	dashboard, err := buildDashboard()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	dashboardCache.Set(dashboard)
	c.JSON(http.StatusOK, dashboard)
}

// GetDashboardSummary is the lightweight counters-only variant. It
// reuses the cached dashboard when one is fresh.
func GetDashboardSummary(c *gin.Context) {
	if cached, ok := dashboardCache.Get(); ok {
		if dashboard, ok := cached.(*dashboardResponse); ok {
			c.JSON(http.StatusOK, dashboard.Statistics)
			return
		}
	}

	stats, err := database.CompanyVisaStats(database.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
