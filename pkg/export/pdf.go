package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ReportDocument is the printable form of a stored report.
type ReportDocument struct {
	Title       string
	GeneratedAt time.Time
	Body        string
}

// RenderReport lays the report out as a simple A4 document with a centered
// title, a generation timestamp and the body flowed into wrapped cells.
func RenderReport(doc ReportDocument) ([]byte, error) {
	if strings.TrimSpace(doc.Body) == "" {
		return nil, fmt.Errorf("pdf requires a non-empty body")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 10, doc.Title, "", 1, "C", false, 0, "")
		pdf.Ln(2)
	}

	if !doc.GeneratedAt.IsZero() {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 6, "Generated "+doc.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "", 11)
	for _, paragraph := range strings.Split(doc.Body, "\n") {
		paragraph = strings.TrimRight(paragraph, " \t")
		if paragraph == "" {
			pdf.Ln(4)
			continue
		}
		pdf.MultiCell(0, 6, paragraph, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
