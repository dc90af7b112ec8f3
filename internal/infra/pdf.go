package infra

// pdf.go: closure (Z) report rendered with go-pdf/fpdf.
// A4 portrait with:
//   - Register header and closure window
//   - Sales totals
//   - Calculated amounts per payment method
//   - Declared cash and difference
//
// The output file is saved to storagePath/closure_{register}_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"eventpos/internal/model"

	"github.com/go-pdf/fpdf"
)

// ClosureReport is the data rendered on a Z-report.
type ClosureReport struct {
	RegisterNumber int
	RegisterName   string
	Closure        *model.CashRegisterClosure
}

// GenerateClosureReportPDF writes the Z-report for a closure and returns the
// path to the generated file.
func GenerateClosureReportPDF(r ClosureReport, storagePath string) (string, error) {
	if r.Closure == nil {
		return "", fmt.Errorf("pdf: nil closure")
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	c := r.Closure
	fileName := fmt.Sprintf("closure_%02d_%d.pdf", r.RegisterNumber, c.ID)
	filePath := filepath.Join(storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 9, "Cash Register Closure", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Register %02d - %s", r.RegisterNumber, r.RegisterName), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 6, fmt.Sprintf("%s  to  %s",
		c.OpeningDate.Format("2006-01-02 15:04"), c.ClosingDate.Format("2006-01-02 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(4)

	labelW := contentW * 0.6
	valueW := contentW * 0.4
	row := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 11)
		pdf.CellFormat(labelW, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 7, value, "", 1, "R", false, 0, "")
	}

	// ── Sales ────────────────────────────────────────────────────────────────
	row("Transactions", fmt.Sprintf("%d", c.TotalTransactions), false)
	row("Items sold", fmt.Sprintf("%d", c.TotalItemsSold), false)
	row("Total sales", c.TotalSalesAmount.StringFixed(2), true)
	pdf.Ln(3)

	// ── Payment methods ──────────────────────────────────────────────────────
	row(model.PaymentMethodCash, c.CashCalculated.StringFixed(2), false)
	row(model.PaymentMethodCard, c.CardsCalculated.StringFixed(2), false)
	row(model.PaymentMethodSINPE, c.SinpeCalculated.StringFixed(2), false)
	pdf.Ln(3)

	// ── Reconciliation ───────────────────────────────────────────────────────
	row("Cash declared", c.CashDeclared.StringFixed(2), false)
	row("Cash difference", c.CashDifference.StringFixed(2), true)

	if c.Observations != nil && *c.Observations != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(contentW, 5, *c.Observations, "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
