package export

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes tables to an Excel workbook, one sheet per table
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	styles  map[string]int
	sheets  int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	DateFormat   string            `json:"date_format"`
	NumberFormat string            `json:"number_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		FreezeHeader: true,
		AutoFilter:   true,
		DateFormat:   "yyyy-mm-dd hh:mm",
		NumberFormat: "#,##0",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "2E7D32",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{
		file:    excelize.NewFile(),
		options: options,
		styles:  make(map[string]int),
	}
}

// AddTable writes t to a new sheet named after the table
func (e *ExcelExporter) AddTable(t Table) error {
	sheet := t.Name
	if e.sheets == 0 {
		// Reuse the default sheet for the first table
		if err := e.file.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := e.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	e.sheets++

	if err := e.writeHeader(sheet, t.Labels()); err != nil {
		return err
	}
	return e.writeRows(sheet, t)
}

func (e *ExcelExporter) writeHeader(sheet string, labels []string) error {
	headerStyleID := 0
	if e.options.HeaderStyle != nil {
		style, err := e.createStyle(e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyleID = style
	}

	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		if headerStyleID > 0 {
			e.file.SetCellStyle(sheet, cell, cell, headerStyleID)
		}
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (e *ExcelExporter) writeRows(sheet string, t Table) error {
	keys := t.Keys()
	widths := make(map[int]float64)
	for i, label := range t.Labels() {
		widths[i] = float64(len(label)) * 1.2
	}

	for rowIdx, row := range t.Rows {
		for colIdx, key := range keys {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := row[key]
			if err := e.setCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if w := estimateCellWidth(val); w > widths[colIdx] {
				widths[colIdx] = w
			}
		}
	}

	if e.options.AutoFilter && len(t.Rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(keys), len(t.Rows)+1)
		if err := e.file.AutoFilter(sheet, "A1:"+lastCol, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}

	if e.options.AutoWidth {
		for colIdx, width := range widths {
			col, _ := excelize.ColumnNumberToName(colIdx + 1)
			// Min width 10, max width 70 so tx hashes stay readable
			if width < 10 {
				width = 10
			}
			if width > 70 {
				width = 70
			}
			e.file.SetColWidth(sheet, col, col, width)
		}
	}
	return nil
}

// WriteTo writes the workbook to w
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// createStyle creates an Excel style from config
func (e *ExcelExporter) createStyle(config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return e.file.NewStyle(style)
}

// numFmtStyle returns a cached style id for a custom number format
func (e *ExcelExporter) numFmtStyle(format string) (int, error) {
	if id, ok := e.styles[format]; ok {
		return id, nil
	}
	f := format
	id, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &f})
	if err != nil {
		return 0, err
	}
	e.styles[format] = id
	return id, nil
}

// setCellValue sets a cell value with appropriate formatting
func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}) error {
	format := ""
	switch v := val.(type) {
	case nil:
		return e.file.SetCellValue(sheet, cell, "")
	case *time.Time:
		if v == nil {
			return e.file.SetCellValue(sheet, cell, "")
		}
		return e.setCellValue(sheet, cell, *v)
	case time.Time:
		if v.IsZero() {
			return e.file.SetCellValue(sheet, cell, "")
		}
		val = v.UTC()
		format = e.options.DateFormat
	case int64, int, uint32:
		format = e.options.NumberFormat
	}

	if err := e.file.SetCellValue(sheet, cell, val); err != nil {
		return err
	}
	if format == "" {
		return nil
	}
	style, err := e.numFmtStyle(format)
	if err != nil {
		return err
	}
	return e.file.SetCellStyle(sheet, cell, cell, style)
}

// estimateCellWidth estimates the display width of a cell value
func estimateCellWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	if t, ok := val.(time.Time); ok {
		if t.IsZero() {
			return 0
		}
		return 18
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

// PortfolioWorkbook renders campaigns, investments and microloans as an xlsx document
func PortfolioWorkbook(snap *financing.Snapshot, campaignID int64) ([]byte, error) {
	e := NewExcelExporter(DefaultExcelOptions())
	defer e.Close()

	tables := []Table{InvestmentTable(snap, campaignID)}
	if campaignID == 0 {
		tables = append(tables, CampaignTable(snap), MicroloanTable(snap))
	}
	for _, t := range tables {
		if err := e.AddTable(t); err != nil {
			return nil, fmt.Errorf("%s sheet: %w", t.Name, err)
		}
	}

	var buf bytes.Buffer
	if err := e.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
