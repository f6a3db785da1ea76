package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Statement formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Statement is a filtered ledger listing with totals
type Statement struct {
	Query        LedgerQuery
	GeneratedAt  time.Time
	Entries      []models.LedgerEntry
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Net          decimal.Decimal
}

// RenderedStatement is a statement encoded for download
type RenderedStatement struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportService renders ledger statements as CSV, XLSX or PDF
type ExportService struct {
	ledgerSvc *LedgerService
	now       func() time.Time
}

// NewExportService creates a new export service
func NewExportService(ledgerSvc *LedgerService) *ExportService {
	return &ExportService{ledgerSvc: ledgerSvc, now: time.Now}
}

// BuildStatement lists the filtered ledger and totals it. Expense and salary
// count as outgoing; bank movements are listed but not totalled.
func (s *ExportService) BuildStatement(ctx context.Context, query LedgerQuery) (*Statement, error) {
	entries, err := s.ledgerSvc.List(ctx, query)
	if err != nil {
		return nil, err
	}

	st := &Statement{
		Query:        query,
		GeneratedAt:  s.now(),
		Entries:      entries,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, entry := range entries {
		switch entry.Category.Normalize() {
		case models.CategoryIncome:
			st.TotalIncome = st.TotalIncome.Add(entry.Amount)
		case models.CategoryExpense, models.CategorySalary:
			st.TotalExpense = st.TotalExpense.Add(entry.Amount)
		}
	}
	st.Net = st.TotalIncome.Sub(st.TotalExpense)
	return st, nil
}

// Render encodes the statement in the requested format
func (s *ExportService) Render(st *Statement, format string) (*RenderedStatement, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return s.ExportCSV(st)
	case FormatXLSX:
		return s.ExportXLSX(st)
	case FormatPDF:
		return s.ExportPDF(st)
	}
	return nil, newValidationError("unsupported export format %q", format)
}

func statementFilename(st *Statement, ext string) string {
	return fmt.Sprintf("ledger_statement_%s.%s", st.GeneratedAt.Format("2006-01-02"), ext)
}

func statementPeriod(q LedgerQuery) string {
	from, to := q.From, q.To
	if from == "" {
		from = "beginning"
	}
	if to == "" {
		to = "today"
	}
	return from + " to " + to
}

var statementHeader = []string{"Date", "Category", "Title", "Type", "Amount", "Status", "Payment Method", "Account"}

func statementRow(e models.LedgerEntry) []string {
	account := ""
	if e.AccountID != nil {
		account = fmt.Sprintf("%d", *e.AccountID)
	}
	return []string{
		e.Date.Format(models.DateLayout),
		string(e.Category),
		e.Title,
		e.EntryType,
		e.Amount.StringFixed(2),
		e.Status,
		e.PaymentMethod,
		account,
	}
}

func (s *ExportService) ExportCSV(st *Statement) (*RenderedStatement, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	_ = writer.Write([]string{"Ledger Statement", st.GeneratedAt.Format("2006-01-02 15:04")})
	_ = writer.Write([]string{"Period", statementPeriod(st.Query)})
	_ = writer.Write([]string{""})

	_ = writer.Write(statementHeader)
	for _, entry := range st.Entries {
		_ = writer.Write(statementRow(entry))
	}
	_ = writer.Write([]string{""})

	_ = writer.Write([]string{"Total Income", st.TotalIncome.StringFixed(2)})
	_ = writer.Write([]string{"Total Expense", st.TotalExpense.StringFixed(2)})
	_ = writer.Write([]string{"Net", st.Net.StringFixed(2)})

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return &RenderedStatement{
		Data:        buf.Bytes(),
		Filename:    statementFilename(st, FormatCSV),
		ContentType: "text/csv",
	}, nil
}

func (s *ExportService) ExportXLSX(st *Statement) (*RenderedStatement, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Ledger"
	_ = f.SetSheetName("Sheet1", sheet)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	_ = f.SetCellValue(sheet, "A1", "Ledger Statement")
	_ = f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(sheet, "A2", "Period")
	_ = f.SetCellValue(sheet, "B2", statementPeriod(st.Query))

	const headerRow = 4
	for i, title := range statementHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(sheet, cell, title)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(statementHeader), headerRow)
	_ = f.SetCellStyle(sheet, "A4", lastHeader, headerStyle)

	row := headerRow + 1
	for _, entry := range st.Entries {
		values := statementRow(entry)
		for i, value := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if i == 4 {
				amount, _ := entry.Amount.Float64()
				_ = f.SetCellValue(sheet, cell, amount)
				continue
			}
			_ = f.SetCellValue(sheet, cell, value)
		}
		row++
	}

	row++
	totals := []struct {
		label string
		value decimal.Decimal
	}{
		{"Total Income", st.TotalIncome},
		{"Total Expense", st.TotalExpense},
		{"Net", st.Net},
	}
	for _, total := range totals {
		amount, _ := total.value.Float64()
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), total.label)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), amount)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return &RenderedStatement{
		Data:        buf.Bytes(),
		Filename:    statementFilename(st, FormatXLSX),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}

func (s *ExportService) ExportPDF(st *Statement) (*RenderedStatement, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Ledger Statement")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 8, "Period: "+statementPeriod(st.Query))
	pdf.Ln(6)
	pdf.Cell(40, 8, "Generated: "+st.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	widths := []float64{25, 25, 70, 35, 30, 25, 40, 20}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(224, 224, 224)
	for i, title := range statementHeader {
		pdf.CellFormat(widths[i], 7, title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 9)
	for _, entry := range st.Entries {
		for i, value := range statementRow(entry) {
			align := "L"
			if i == 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, tr(value), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(50, 8, "Total Income:")
	pdf.Cell(40, 8, st.TotalIncome.StringFixed(2))
	pdf.Ln(6)
	pdf.Cell(50, 8, "Total Expense:")
	pdf.Cell(40, 8, st.TotalExpense.StringFixed(2))
	pdf.Ln(6)
	pdf.Cell(50, 8, "Net:")
	pdf.Cell(40, 8, st.Net.StringFixed(2))

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}

	return &RenderedStatement{
		Data:        buf.Bytes(),
		Filename:    statementFilename(st, FormatPDF),
		ContentType: "application/pdf",
	}, nil
}
