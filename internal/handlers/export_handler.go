package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go-visa-office/internal/database"
	"go-visa-office/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const excelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// moneyNumFmt is the builtin "#,##0.00" number format.
const moneyNumFmt = 4

func newSheet(f *excelize.File, name string) (int, error) {
	index, err := f.NewSheet(name)
	if err != nil {
		return 0, err
	}
	f.SetActiveSheet(index)
	return index, f.DeleteSheet("Sheet1")
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E0E0E0"}},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func streamWorkbook(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", excelContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// ExportVisas writes the full visa register to an xlsx workbook.
// Optional query filters: secretary (id) and status.
func ExportVisas(c *gin.Context) {
	query := database.DB.Preload("Secretary").Order("created_at desc")
	if secretaryID := c.Query("secretary"); secretaryID != "" {
		query = query.Where("secretary_id = ?", secretaryID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var visas []models.Visa
	if err := query.Find(&visas).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "التأشيرات"
	if _, err := newSheet(f, sheet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	headers := []string{
		"الرقم المرجعي", "الاسم", "تاريخ الميلاد", "الجنسية", "رقم الجواز",
		"رقم التأشيرة", "السكرتيرة", "الوسيط", "الكفيل", "تاريخ الإصدار",
		"تاريخ الانتهاء", "الموعد النهائي", "المرحلة", "الحالة",
		"إجمالي المصروفات", "سعر البيع", "الربح", "أرباح السكرتيرة",
		"ربح الشركة", "اسم العميل", "تاريخ البيع",
	}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	for i := range visas {
		v := &visas[i]
		row := []interface{}{
			v.Reference(), v.Name, formatDate(v.DateOfBirth), v.Nationality,
			v.PassportNumber, v.VisaNumber, v.Secretary.Name, v.MiddlemanName,
			v.VisaSponsor, formatDate(v.VisaIssueDate), formatDate(v.VisaExpiryDate),
			formatDate(v.VisaDeadline), v.CurrentStage, v.Status,
			v.TotalExpenses, v.SellingPrice, v.Profit, v.SecretaryEarnings,
			v.CompanyProfit(), v.CustomerName, formatDatePtr(v.SoldAt),
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err == nil {
		f.SetColStyle(sheet, "O:S", moneyStyle)
	}

	streamWorkbook(c, f, fmt.Sprintf("visas-%s.xlsx", time.Now().Format("2006-01-02")))
}

// ExportSecretaries writes one row per secretary with her aggregated
// pipeline numbers.
func ExportSecretaries(c *gin.Context) {
	var secretaries []models.Secretary
	if err := database.DB.Order("name asc").Find(&secretaries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "السكرتيرات"
	if _, err := newSheet(f, sheet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	headers := []string{
		"الاسم", "الرمز", "البريد الإلكتروني", "الهاتف",
		"إجمالي التأشيرات", "قيد الشراء", "معروضة للبيع", "مباعة", "ملغاة",
		"إجمالي المصروفات", "إجمالي الأرباح", "إجمالي الديون",
	}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	for i := range secretaries {
		s := &secretaries[i]
		stats, err := database.SecretaryVisaStats(database.DB, s.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		row := []interface{}{
			s.Name, s.Code, s.Email, s.Phone,
			stats.TotalVisas, stats.ActiveVisas, stats.AvailableVisas,
			stats.SoldVisas, stats.CancelledVisas,
			stats.TotalExpenses, stats.TotalSecretaryEarnings, stats.TotalDebt,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err == nil {
		f.SetColStyle(sheet, "J:L", moneyStyle)
	}

	streamWorkbook(c, f, fmt.Sprintf("secretaries-%s.xlsx", time.Now().Format("2006-01-02")))
}
