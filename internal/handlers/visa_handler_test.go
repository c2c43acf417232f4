package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-visa-office/internal/auth"
	"go-visa-office/internal/config"
	"go-visa-office/internal/database"
	"go-visa-office/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.Set(db)

	r := gin.New()
	RegisterRoutes(r, config.Config{
		UploadDir:         t.TempDir(),
		DashboardCacheTTL: time.Minute,
	})
	return r
}

func authHeader(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(1, "tester", "admin")
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doForm(t *testing.T, r *gin.Engine, method, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", authHeader(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func createSecretary(t *testing.T, name, code string) models.Secretary {
	t.Helper()
	secretary := models.Secretary{Name: name, Code: code}
	require.NoError(t, database.DB.Create(&secretary).Error)
	return secretary
}

func visaFields(secretaryID uint, deadline time.Time) map[string]string {
	return map[string]string{
		"secretary_id":                fmt.Sprint(secretaryID),
		"name":                        "ماريا سانتوس",
		"nationality":                 "الفلبين",
		"passport_number":             "P1234567",
		"visa_number":                 "V7654321",
		"date_of_birth":               "1992-03-10",
		"visa_issue_date":             "2025-01-01",
		"visa_expiry_date":            "2026-01-01",
		"visa_deadline":               deadline.Format("2006-01-02"),
		"secretary_profit_percentage": "20",
	}
}

func createVisa(t *testing.T, r *gin.Engine, secretaryID uint, deadline time.Time) models.Visa {
	t.Helper()
	w := doForm(t, r, http.MethodPost, "/api/visas", visaFields(secretaryID, deadline))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var visa models.Visa
	decode(t, w, &visa)
	return visa
}

func backdateVisa(t *testing.T, visaID uint, createdAt time.Time) {
	t.Helper()
	err := database.DB.Model(&models.Visa{}).Where("id = ?", visaID).
		Update("created_at", createdAt).Error
	require.NoError(t, err)
}

func TestRoutesRequireToken(t *testing.T) {
	r := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/visas", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateVisaValidation(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")

	fields := visaFields(secretary.ID, time.Now().AddDate(0, 2, 0))
	fields["name"] = ""
	w := doForm(t, r, http.MethodPost, "/api/visas", fields)
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields = visaFields(secretary.ID, time.Now().AddDate(0, 2, 0))
	fields["secretary_profit_percentage"] = "150"
	w = doForm(t, r, http.MethodPost, "/api/visas", fields)
	require.Equal(t, http.StatusBadRequest, w.Code)

	fields = visaFields(999, time.Now().AddDate(0, 2, 0))
	w = doForm(t, r, http.MethodPost, "/api/visas", fields)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderNumbersArePerSecretary(t *testing.T) {
	r := setupRouter(t)
	first := createSecretary(t, "سارة", "S")
	second := createSecretary(t, "منى", "M")
	deadline := time.Now().AddDate(0, 2, 0)

	v1 := createVisa(t, r, first.ID, deadline)
	require.Equal(t, 1, v1.OrderNumber)
	require.Equal(t, "S001", v1.Reference())

	w := doForm(t, r, http.MethodPost, "/api/visas", visaFields(first.ID, deadline))
	require.Equal(t, http.StatusCreated, w.Code)
	var v2 models.Visa
	decode(t, w, &v2)
	require.Equal(t, 2, v2.OrderNumber)

	v3 := createVisa(t, r, second.ID, deadline)
	require.Equal(t, 1, v3.OrderNumber)
	require.Equal(t, "M001", v3.Reference())
}

func TestFullSaleFlowDistributesMoney(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")
	visa := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 2, 0))
	path := fmt.Sprintf("/api/visas/%d", visa.ID)

	// Stage أ refuses to complete before any expense is recorded.
	w := doJSON(t, r, http.MethodPut, path+"/stage-a", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, path+"/expenses", ExpenseRequest{
		Amount: 100, Description: "رسوم التقديم", Stage: models.StageA,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPut, path+"/stage-a", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, r, http.MethodPut, path+"/complete-stage-b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPut, path+"/complete-stage-c", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, path+"/expenses", ExpenseRequest{
		Amount: 50, Description: "رسوم الاستخراج", Stage: models.StageD,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, path+"/complete-stage-d", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var completed models.Visa
	decode(t, w, &completed)
	require.Equal(t, models.StatusForSale, completed.Status)

	w = doJSON(t, r, http.MethodPut, path+"/sell", SellRequest{
		SellingPrice: 1000, CustomerName: "أبو خالد",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sold models.Visa
	decode(t, w, &sold)
	require.Equal(t, models.StatusSold, sold.Status)
	require.Equal(t, 150.0, sold.TotalExpenses)
	require.Equal(t, 850.0, sold.Profit)
	require.Equal(t, 170.0, sold.SecretaryEarnings)

	var updated models.Secretary
	require.NoError(t, database.DB.First(&updated, secretary.ID).Error)
	require.Equal(t, 170.0, updated.TotalEarnings)

	account, err := database.CompanyAccount(database.DB)
	require.NoError(t, err)
	require.Equal(t, 680.0, account.TotalProfit)
	require.Equal(t, int64(1), account.TotalVisasSold)

	// A sold visa cannot be sold twice.
	w = doJSON(t, r, http.MethodPut, path+"/sell", SellRequest{SellingPrice: 2000})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSellingCommissionGoesToDistinctSeller(t *testing.T) {
	r := setupRouter(t)
	buyer := createSecretary(t, "سارة", "S")
	seller := createSecretary(t, "منى", "M")
	visa := createVisa(t, r, buyer.ID, time.Now().AddDate(0, 2, 0))
	path := fmt.Sprintf("/api/visas/%d", visa.ID)

	w := doJSON(t, r, http.MethodPost, path+"/expenses", ExpenseRequest{
		Amount: 100, Description: "رسوم التقديم", Stage: models.StageA,
	})
	require.Equal(t, http.StatusOK, w.Code)
	for _, step := range []string{"/stage-a", "/complete-stage-b", "/complete-stage-c", "/complete-stage-d"} {
		w = doJSON(t, r, http.MethodPut, path+step, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPut, path+"/sell", SellRequest{
		SellingPrice:       1000,
		SellingSecretaryID: &seller.ID,
		SellingCommission:  30,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sold models.Visa
	decode(t, w, &sold)
	require.Equal(t, 130.0, sold.TotalExpenses)
	require.Equal(t, 870.0, sold.Profit)

	var sellerRow models.Secretary
	require.NoError(t, database.DB.First(&sellerRow, seller.ID).Error)
	require.Equal(t, 30.0, sellerRow.TotalEarnings)
}

func TestCancelBooksDebtOnSecretary(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")
	visa := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 2, 0))
	path := fmt.Sprintf("/api/visas/%d", visa.ID)

	w := doJSON(t, r, http.MethodPost, path+"/expenses", ExpenseRequest{
		Amount: 100, Description: "رسوم التقديم", Stage: models.StageA,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, path+"/cancel", CancelRequest{Reason: "طلب العميل"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cancelled models.Visa
	decode(t, w, &cancelled)
	require.Equal(t, models.StatusCancelled, cancelled.Status)
	require.Equal(t, "طلب العميل", cancelled.CancelledReason)

	var updated models.Secretary
	require.NoError(t, database.DB.First(&updated, secretary.ID).Error)
	require.Equal(t, 100.0, updated.TotalDebt)
}

func TestOverdueSweepCancelsAndDebits(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")

	visa := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 0, -1))
	path := fmt.Sprintf("/api/visas/%d", visa.ID)
	w := doJSON(t, r, http.MethodPost, path+"/expenses", ExpenseRequest{
		Amount: 80, Description: "رسوم التقديم", Stage: models.StageA,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// A visa with a healthy deadline must survive the sweep.
	safe := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 2, 0))

	w = doJSON(t, r, http.MethodPost, "/api/visas/check-overdue", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		CancelledCount int `json:"cancelled_count"`
		FailedCount    int `json:"failed_count"`
	}
	decode(t, w, &result)
	require.Equal(t, 1, result.CancelledCount)
	require.Equal(t, 0, result.FailedCount)

	var swept models.Visa
	require.NoError(t, database.DB.First(&swept, visa.ID).Error)
	require.Equal(t, models.StatusCancelled, swept.Status)

	var untouched models.Visa
	require.NoError(t, database.DB.First(&untouched, safe.ID).Error)
	require.Equal(t, models.StatusPurchasing, untouched.Status)

	var updated models.Secretary
	require.NoError(t, database.DB.First(&updated, secretary.ID).Error)
	require.Equal(t, 80.0, updated.TotalDebt)
}

func TestReplaceCreatesLinkedSibling(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")
	visa := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 2, 0))
	path := fmt.Sprintf("/api/visas/%d", visa.ID)

	w := doJSON(t, r, http.MethodGet, path+"/replacement-eligibility", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eligibility struct {
		Eligible      bool `json:"eligible"`
		RemainingDays int  `json:"remaining_days"`
	}
	decode(t, w, &eligibility)
	require.True(t, eligibility.Eligible)

	fields := visaFields(secretary.ID, time.Now().AddDate(0, 3, 0))
	fields["name"] = "عاملة بديلة"
	fields["passport_number"] = "P9999999"
	w = doForm(t, r, http.MethodPost, path+"/replace", fields)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var replacement models.Visa
	decode(t, w, &replacement)
	require.Equal(t, visa.OrderNumber, replacement.OrderNumber)
	require.Equal(t, visa.SecretaryCode, replacement.SecretaryCode)
	require.Equal(t, models.StageA, replacement.CurrentStage)
	require.NotNil(t, replacement.OriginalVisaID)
	require.Equal(t, visa.ID, *replacement.OriginalVisaID)

	var original models.Visa
	require.NoError(t, database.DB.First(&original, visa.ID).Error)
	require.True(t, original.IsReplaced)
	require.NotNil(t, original.ReplacedVisaID)
	require.Equal(t, replacement.ID, *original.ReplacedVisaID)

	// Second replacement of the same visa is refused.
	w = doForm(t, r, http.MethodPost, path+"/replace", fields)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReplaceRefusedAfterWindow(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")
	visa := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 2, 0))
	backdateVisa(t, visa.ID, time.Now().AddDate(0, 0, -31))

	path := fmt.Sprintf("/api/visas/%d", visa.ID)
	w := doJSON(t, r, http.MethodGet, path+"/replacement-eligibility", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eligibility struct {
		Eligible bool `json:"eligible"`
	}
	decode(t, w, &eligibility)
	require.False(t, eligibility.Eligible)

	w = doForm(t, r, http.MethodPost, path+"/replace", visaFields(secretary.ID, time.Now().AddDate(0, 3, 0)))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyArrivalFlow(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")
	visa := createVisa(t, r, secretary.ID, time.Now().AddDate(0, 2, 0))
	backdateVisa(t, visa.ID, time.Now().AddDate(0, 0, -5))
	path := fmt.Sprintf("/api/visas/%d", visa.ID)

	// Not yet in stage د.
	w := doJSON(t, r, http.MethodPost, path+"/verify-arrival", gin.H{
		"arrival_date": time.Now().AddDate(0, 0, -1).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, path+"/expenses", ExpenseRequest{
		Amount: 100, Description: "رسوم التقديم", Stage: models.StageA,
	})
	require.Equal(t, http.StatusOK, w.Code)
	for _, step := range []string{"/stage-a", "/complete-stage-b", "/complete-stage-c"} {
		w = doJSON(t, r, http.MethodPut, path+step, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/visas/pending-arrival-verification", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending struct {
		Count int `json:"count"`
	}
	decode(t, w, &pending)
	require.Equal(t, 1, pending.Count)

	w = doJSON(t, r, http.MethodPost, path+"/verify-arrival", gin.H{
		"arrival_date": time.Now().AddDate(0, 0, -1).Format(time.RFC3339),
		"notes":        "وصلت بسلام",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verified struct {
		Visa models.Visa `json:"visa"`
	}
	decode(t, w, &verified)
	require.True(t, verified.Visa.MaidArrivalVerified)
	require.Equal(t, models.StageArrival, verified.Visa.CurrentStage)
	require.Equal(t, models.StatusForSale, verified.Visa.Status)
	require.Equal(t, models.DeadlineActive, verified.Visa.DeadlineStatus)

	w = doJSON(t, r, http.MethodGet, path+"/arrival-status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		DeadlineStatus        string `json:"deadline_status"`
		DaysUntilCancellation *int   `json:"days_until_cancellation"`
		DaysSinceArrival      int    `json:"days_since_arrival"`
	}
	decode(t, w, &status)
	require.Equal(t, models.DeadlineActive, status.DeadlineStatus)
	require.NotNil(t, status.DaysUntilCancellation)
	require.Equal(t, 29, *status.DaysUntilCancellation)
	require.Equal(t, 1, status.DaysSinceArrival)

	// Verifying twice is refused.
	w = doJSON(t, r, http.MethodPost, path+"/verify-arrival", gin.H{
		"arrival_date": time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListVisasPagination(t *testing.T) {
	r := setupRouter(t)
	secretary := createSecretary(t, "سارة", "S")
	deadline := time.Now().AddDate(0, 2, 0)
	for i := 0; i < 3; i++ {
		createVisa(t, r, secretary.ID, deadline)
	}

	w := doJSON(t, r, http.MethodGet, "/api/visas?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Visas      []models.Visa `json:"visas"`
		Pagination struct {
			CurrentPage int   `json:"current_page"`
			TotalPages  int   `json:"total_pages"`
			TotalCount  int64 `json:"total_count"`
			HasNextPage bool  `json:"has_next_page"`
		} `json:"pagination"`
	}
	decode(t, w, &listing)
	require.Len(t, listing.Visas, 2)
	require.Equal(t, int64(3), listing.Pagination.TotalCount)
	require.Equal(t, 2, listing.Pagination.TotalPages)
	require.True(t, listing.Pagination.HasNextPage)
}

func TestGetVisaNotFound(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/visas/999", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
