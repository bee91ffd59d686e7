package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/campusware/atp-api/internal/models"
)

var summaryHeaders = []string{"Course", "Total Lectures", "Attended", "Percentage"}

// SummaryCSV renders attendance summary rows as CSV bytes.
func SummaryCSV(rows []models.AttendanceSummary) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(summaryHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.CourseName,
			fmt.Sprintf("%d", row.TotalLectures),
			fmt.Sprintf("%d", row.Attended),
			fmt.Sprintf("%.2f", row.Percentage),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// SummaryPDF renders attendance summary rows into a tabular PDF document.
func SummaryPDF(rows []models.AttendanceSummary, title string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(summaryHeaders))
	for _, header := range summaryHeaders {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		pdf.CellFormat(colWidth, 7, row.CourseName, "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, 7, fmt.Sprintf("%d", row.TotalLectures), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidth, 7, fmt.Sprintf("%d", row.Attended), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colWidth, 7, fmt.Sprintf("%.2f%%", row.Percentage), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
