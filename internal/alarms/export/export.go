package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alarms "alarm-dashboard/internal/alarms/domain"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

const displayLayout = "2006-01-02 15:04:05"

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", value)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Report is a list of open alarms for one window.
type Report struct {
	Window      alarms.Window
	GeneratedAt time.Time
	Location    *time.Location
	Alarms      []alarms.Alarm
}

// Filename returns a download name for the report.
func (r Report) Filename(format Format) string {
	return fmt.Sprintf("alarms-%s-%s.%s", r.Window, r.GeneratedAt.In(r.location()).Format("20060102-1504"), format)
}

func (r Report) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

var header = []string{"ID", "Detected", "Measurement", "Equipment", "Type", "Value", "Unit", "Reference", "Duration (min)", "Priority"}

func (r Report) rows() [][]string {
	loc := r.location()
	rows := make([][]string, 0, len(r.Alarms))
	for _, a := range r.Alarms {
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.DetectedAt.In(loc).Format(displayLayout),
			a.MeasurementName,
			a.Equipment,
			a.AlarmType,
			strconv.FormatFloat(a.ObservedValue, 'f', 2, 64),
			a.Unit,
			reference(a.ReferenceMin, a.ReferenceMax),
			strconv.Itoa(a.DurationMinutes),
			strconv.Itoa(a.Priority),
		})
	}
	return rows
}

// Build renders the report in format.
func Build(format Format, report Report) ([]byte, error) {
	switch format {
	case FormatCSV:
		return BuildCSV(report)
	case FormatXLSX:
		return BuildXLSX(report)
	case FormatPDF:
		return BuildPDF(report)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

// BuildCSV renders the report as CSV with a header row.
func BuildCSV(report Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, err
	}
	if err := writer.WriteAll(report.rows()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders the report as a single-sheet workbook.
func BuildXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := string(report.Window)
	if sheet == "" {
		sheet = "alarms"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(sheet, "A1", report.Window.Title())
	_ = f.SetCellValue(sheet, "A2", "Generated")
	_ = f.SetCellValue(sheet, "B2", report.GeneratedAt.In(report.location()).Format(displayLayout))
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 4)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, name)
	}
	loc := report.location()
	for i, a := range report.Alarms {
		row := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), a.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.DetectedAt.In(loc).Format(displayLayout))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), a.MeasurementName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), a.Equipment)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), a.AlarmType)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), a.ObservedValue)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), a.Unit)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), reference(a.ReferenceMin, a.ReferenceMax))
		_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), a.DurationMinutes)
		_ = f.SetCellValue(sheet, fmt.Sprintf("J%d", row), a.Priority)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders the report as a landscape A4 table.
func BuildPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, report.Window.Title())
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.In(report.location()).Format(displayLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Open alarms: %d", len(report.Alarms)))
	pdf.Ln(8)

	widths := []float64{14, 34, 40, 36, 24, 20, 14, 34, 24, 18}
	pdf.SetFont("Arial", "B", 9)
	for i, name := range header {
		pdf.CellFormat(widths[i], 6, name, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, row := range report.rows() {
		for i, value := range row {
			align := "L"
			if i == 0 || i == 5 || i >= 8 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, tr(value), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func reference(lower, upper *float64) string {
	switch {
	case lower != nil && upper != nil:
		return fmt.Sprintf("%.2f .. %.2f", *lower, *upper)
	case lower != nil:
		return fmt.Sprintf(">= %.2f", *lower)
	case upper != nil:
		return fmt.Sprintf("<= %.2f", *upper)
	default:
		return "-"
	}
}
