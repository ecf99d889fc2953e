package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"event-checkin/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

const hourLayout = "2006-01-02 15:00"

func summaryRows(s model.AnalyticsSummary) [][]string {
	return [][]string{
		{"Event", s.EventTitle},
		{"Starts at", s.StartsAt.Format("2006-01-02 15:04")},
		{"Total guests", strconv.Itoa(s.TotalGuests)},
		{"Checked in", strconv.Itoa(s.CheckedIn)},
		{"Not checked in", strconv.Itoa(s.NotCheckedIn)},
		{"Check-in rate (%)", s.CheckInRate.StringFixed(2)},
		{"Invitations sent", strconv.Itoa(s.InvitationsSent)},
		{"Photos taken", strconv.Itoa(s.PhotosTaken)},
	}
}

var (
	hourlyHeader = []string{"Hour", "Check-ins"}
	usherHeader  = []string{"Usher", "Email", "Check-ins", "Scans", "Sessions"}
)

func hourlyRow(b model.HourlyBucket) []string {
	return []string{b.Hour.Format(hourLayout), strconv.Itoa(b.Count)}
}

func usherRow(u model.UsherStat) []string {
	return []string{u.UsherName, u.UsherEmail, strconv.Itoa(u.CheckIns), strconv.Itoa(u.Scans), strconv.Itoa(u.Sessions)}
}

// WriteAnalyticsCSV writes the three report sections separated by blank lines.
func WriteAnalyticsCSV(w io.Writer, a *model.Analytics) error {
	cw := csv.NewWriter(w)

	rows := summaryRows(a.Summary)
	rows = append(rows, nil, hourlyHeader)
	for _, b := range a.Hourly {
		rows = append(rows, hourlyRow(b))
	}
	rows = append(rows, nil, usherHeader)
	for _, u := range a.Ushers {
		rows = append(rows, usherRow(u))
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAnalyticsXLSX writes a workbook with Summary, Hourly and Ushers sheets.
func WriteAnalyticsXLSX(w io.Writer, a *model.Analytics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Summary"); err != nil {
		return err
	}
	if err := writeSheet(f, "Summary", nil, summaryRows(a.Summary)); err != nil {
		return err
	}

	hourly := make([][]string, 0, len(a.Hourly))
	for _, b := range a.Hourly {
		hourly = append(hourly, hourlyRow(b))
	}
	if _, err := f.NewSheet("Hourly"); err != nil {
		return err
	}
	if err := writeSheet(f, "Hourly", hourlyHeader, hourly); err != nil {
		return err
	}

	ushers := make([][]string, 0, len(a.Ushers))
	for _, u := range a.Ushers {
		ushers = append(ushers, usherRow(u))
	}
	if _, err := f.NewSheet("Ushers"); err != nil {
		return err
	}
	if err := writeSheet(f, "Ushers", usherHeader, ushers); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	row := 1
	if header != nil {
		if err := setRow(f, sheet, row, header); err != nil {
			return err
		}
		row++
	}
	for _, r := range rows {
		if err := setRow(f, sheet, row, r); err != nil {
			return err
		}
		row++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			out[i] = n
			continue
		}
		out[i] = v
	}
	return f.SetSheetRow(sheet, cell, &out)
}

// WriteAnalyticsPDF renders the report as a single A4 document.
func WriteAnalyticsPDF(w io.Writer, a *model.Analytics) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(a.Summary.EventTitle+" - check-in report"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+a.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range summaryRows(a.Summary) {
		pdf.CellFormat(60, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, tr(row[1]), "1", 1, "L", false, 0, "")
	}

	pdfTable(pdf, tr, "Check-ins per hour", hourlyHeader, []float64{60, 40}, func(yield func([]string)) {
		for _, b := range a.Hourly {
			yield(hourlyRow(b))
		}
	})
	pdfTable(pdf, tr, "Ushers", usherHeader, []float64{50, 60, 25, 25, 25}, func(yield func([]string)) {
		for _, u := range a.Ushers {
			yield(usherRow(u))
		}
	})

	if pdf.Err() {
		return fmt.Errorf("render analytics pdf: %w", pdf.Error())
	}
	return pdf.Output(w)
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, title string, header []string, widths []float64, rows func(func([]string))) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	rows(func(row []string) {
		for i, v := range row {
			pdf.CellFormat(widths[i], 7, tr(v), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	})
}
