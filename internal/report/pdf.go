package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/edmgate/internal/rules"
)

// SaveInspectionPDF renders the inspection summary into a PDF document.
func SaveInspectionPDF(sum Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Flight Log Inspection Report", false)
	pdf.SetAuthor("edmctl", false)
	pdf.SetCreator("edmctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Flight Log Inspection Report")
	addSummarySection(pdf, sum)
	addFlightTableSection(pdf, sum.Flights)
	addGateMatrixSection(pdf, sum.Acceptance.GateMatrix)
	addFindingsSection(pdf, sum.Acceptance.Findings)
	addDigestFooter(pdf, sum.Sha256)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	resolved := 0
	for _, f := range sum.Flights {
		if f.Resolved {
			resolved++
		}
	}
	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "File", value: emptyFallback(sum.File, "-")},
		{label: "Registration", value: emptyFallback(sum.TailNumber, "-")},
		{label: "Unit Model", value: strconv.Itoa(sum.Model)},
		{label: "Downloaded", value: emptyFallback(sum.Downloaded, "-")},
		{label: "Flights", value: fmt.Sprintf("%d (%d located)", len(sum.Flights), resolved)},
		{label: "Binary Region", value: fmt.Sprintf("starts at byte %d of %d", sum.BinaryStart, sum.Size)},
		{label: "Overall", value: passLabel(sum.Acceptance.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addFlightTableSection(pdf *gofpdf.Fpdf, flights []FlightSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Flights")
	pdf.Ln(9)

	headers := []string{"Flight", "Words", "Declared", "Resolved", "Date", "Time", "Interval"}
	widths := []float64{20, 22, 28, 28, 30, 26, 26}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, f := range flights {
		resolved := "not located"
		if f.Resolved {
			resolved = strconv.FormatInt(f.Offset, 10)
		}
		interval := "-"
		if f.Interval > 0 {
			interval = fmt.Sprintf("%d s", f.Interval)
		}
		values := []string{
			strconv.Itoa(int(f.Number)),
			strconv.Itoa(f.DataWords),
			strconv.FormatInt(f.DeclaredOffset, 10),
			resolved,
			emptyFallback(f.Date, "-"),
			emptyFallback(f.Time, "-"),
			interval,
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addGateMatrixSection(pdf *gofpdf.Fpdf, rows []rules.GateResult) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Check Matrix")
	pdf.Ln(9)

	headers := []string{"Severity", "Rule", "Name", "Pass", "Findings"}
	widths := []float64{22, 42, 70, 18, 18}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			severityLabel(row.Severity),
			row.RuleId,
			emptyFallback(row.Name, "-"),
			passLabel(row.Pass),
			strconv.Itoa(row.Findings),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		pdf.Ln(2)
	}
}

func addDigestFooter(pdf *gofpdf.Fpdf, digest string) {
	png, err := DigestToQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest-qr", opts, bytes.NewReader(png))
	pdf.Ln(4)
	y := pdf.GetY()
	pdf.ImageOptions("digest-qr", 15, y, 24, 24, false, opts, 0, "")
	pdf.SetXY(42, y+8)
	pdf.SetFont("Helvetica", "", 8)
	pdf.MultiCell(0, 4, "SHA-256 "+digest, "", "L", false)
	pdf.SetY(y + 26)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	if d.FlightNumber != 0 {
		parts = append(parts, fmt.Sprintf("Flight %d", d.FlightNumber))
	}
	if d.Offset != "" {
		parts = append(parts, "Offset "+d.Offset)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " - ")
}
