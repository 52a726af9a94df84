package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator renders investment statements
type PDFGenerator struct {
	options PDFOptions
	now     func() time.Time
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize      string   `json:"page_size"` // A4, Letter, Legal
	Title         string   `json:"title"`
	DateFormat    string   `json:"date_format"`
	HeaderColor   PDFColor `json:"header_color"`
	FontFamily    string   `json:"font_family"`
	FontSize      float64  `json:"font_size"`
	TitleFontSize float64  `json:"title_font_size"`
	Margin        float64  `json:"margin"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:      "A4",
		Title:         "Investment Statement",
		DateFormat:    "2006-01-02 15:04 MST",
		HeaderColor:   PDFColor{R: 46, G: 125, B: 50},
		FontFamily:    "Arial",
		FontSize:      10,
		TitleFontSize: 16,
		Margin:        15,
	}
}

// StatementInput is everything printed on one investment statement
type StatementInput struct {
	Campaign   financing.Campaign
	Investment financing.Investment
	Steps      []calculation.CalculationStep
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	return &PDFGenerator{options: options, now: time.Now}
}

// InvestmentStatement renders a one-investment statement with its lock identifiers
// and the derivation of its terms.
func (g *PDFGenerator) InvestmentStatement(in StatementInput) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", g.options.PageSize, "")
	pdf.SetMargins(g.options.Margin, 20, g.options.Margin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.options.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	pdf.CellFormat(0, 10, g.options.Title, "", 1, "C", false, 0, "")
	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+2)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 8, in.Campaign.Title, "", 1, "C", false, 0, "")
	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	pdf.CellFormat(0, 6, "Generated: "+g.now().UTC().Format(g.options.DateFormat), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	inv := in.Investment
	g.section(pdf, "Investment", [][2]string{
		{"Investment ID", fmt.Sprintf("%d", inv.ID)},
		{"Campaign", fmt.Sprintf("#%d %s", in.Campaign.ID, in.Campaign.Title)},
		{"Farmer", in.Campaign.FarmerName},
		{"Investor", inv.InvestorAddress},
		{"Amount", fmt.Sprintf("%d XRP", inv.Amount)},
		{"Tokens", fmt.Sprintf("%d %s", inv.TokenAmount, inv.TokenSymbol)},
		{"Status", string(inv.Status)},
	})

	lock := [][2]string{
		{"Lock owner", inv.EscrowOwner},
		{"Lock sequence", fmt.Sprintf("%d", inv.EscrowSequence)},
		{"Lock tx", inv.EscrowTxHash},
		{"Release after", g.formatTime(&inv.ReleaseAfter)},
		{"Cancel after", g.formatTime(inv.CancelAfter)},
	}
	if inv.EscrowCondition != "" {
		lock = append(lock, [2]string{"Condition", inv.EscrowCondition})
	}
	if inv.TrustTxHash != "" {
		lock = append(lock, [2]string{"Trust line tx", inv.TrustTxHash})
	}
	if inv.TokenTxHash != "" {
		lock = append(lock, [2]string{"Token tx", inv.TokenTxHash})
	}
	if inv.FailedStep != "" {
		lock = append(lock, [2]string{"Failed step", inv.FailedStep}, [2]string{"Failure", inv.FailureReason})
	}
	g.section(pdf, "Ledger references", lock)

	if len(in.Steps) > 0 {
		g.stepsTable(pdf, in.Steps)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *PDFGenerator) section(pdf *gofpdf.Fpdf, title string, items [][2]string) {
	pdf.Ln(6)
	pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+2)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	for _, item := range items {
		pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		pdf.CellFormat(40, 6, item[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		pdf.MultiCell(0, 6, item[1], "", "L", false)
	}
}

func (g *PDFGenerator) stepsTable(pdf *gofpdf.Fpdf, steps []calculation.CalculationStep) {
	pdf.Ln(6)
	pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize+2)
	pdf.CellFormat(0, 8, "Calculation", "", 1, "L", false, 0, "")

	widths := []float64{10, 35, 70, 65}
	pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
	pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	pdf.SetTextColor(255, 255, 255)
	for i, label := range []string{"#", "Step", "Formula", "Result"} {
		pdf.CellFormat(widths[i], 8, label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	pdf.SetTextColor(0, 0, 0)
	for _, step := range steps {
		cells := []string{fmt.Sprintf("%d", step.StepNumber), step.Name, step.Formula, g.formatOutputs(step.Outputs)}
		lines := 1
		for i, cell := range cells {
			if n := len(pdf.SplitLines([]byte(cell), widths[i]-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines) * 5

		x, y := pdf.GetXY()
		for i, cell := range cells {
			pdf.Rect(x, y, widths[i], height, "D")
			pdf.MultiCell(widths[i], 5, cell, "", "L", false)
			x += widths[i]
			pdf.SetXY(x, y)
		}
		pdf.SetXY(g.options.Margin, y+height)
	}
}

func (g *PDFGenerator) formatOutputs(outputs map[string]any) string {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "\n"
		}
		out += k + " = " + g.formatValue(outputs[k])
	}
	return out
}

func (g *PDFGenerator) formatValue(val any) string {
	switch v := val.(type) {
	case time.Time:
		return g.formatTime(&v)
	case *time.Time:
		return g.formatTime(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g *PDFGenerator) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(g.options.DateFormat)
}
