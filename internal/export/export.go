// Package export renders a filtered customer ledger as CSV, XLSX or PDF.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/format"
	"shopmunim-backend/internal/ledger"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Meta describes whose ledger is being exported.
type Meta struct {
	ShopName     string
	CustomerName string
	Phone        string
	From         *time.Time
	To           *time.Time
	GeneratedAt  time.Time
}

var header = []string{"Date", "Type", "Items", "Note", "Amount"}

func row(tx domain.Transaction) []string {
	return []string{
		tx.Date.Format("2006-01-02"),
		ledger.Direction(tx.Type),
		itemsLabel(tx.Items),
		tx.Note,
		ledger.SignedAmount(tx),
	}
}

func itemsLabel(items []domain.TransactionItem) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

// Filename builds a download name such as "ledger_ravi_20240101_20240131.xlsx".
func Filename(meta Meta, ext string) string {
	name := strings.ToLower(strings.Join(strings.Fields(meta.CustomerName), "_"))
	if name == "" {
		name = "customer"
	}
	suffix := meta.GeneratedAt.Format("20060102_150405")
	if meta.From != nil && meta.To != nil {
		suffix = meta.From.Format("20060102") + "_" + meta.To.Format("20060102")
	}
	return fmt.Sprintf("ledger_%s_%s.%s", name, suffix, ext)
}

func CSV(txs []domain.Transaction) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(header)
	for _, tx := range txs {
		_ = w.Write(row(tx))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func XLSX(meta Meta, txs []domain.Transaction, sum ledger.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Ledger"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for r, tx := range txs {
		for c, v := range row(tx) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	totals := [][2]string{
		{"Customer", meta.CustomerName},
		{"Transactions", strconv.Itoa(sum.Total)},
		{"Total Credit", format.Currency(sum.CreditAmount)},
		{"Total Payments", format.Currency(sum.PaymentAmount)},
		{"Net Balance", format.Currency(sum.NetBalance)},
	}
	start := len(txs) + 3
	for i, kv := range totals {
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", start+i), kv[0])
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", start+i), kv[1])
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 10)
	_ = f.SetColWidth(sheet, "C", "C", 36)
	_ = f.SetColWidth(sheet, "D", "D", 28)
	_ = f.SetColWidth(sheet, "E", "E", 16)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "E1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PDF writes an A4 statement. The core PDF fonts have no rupee glyph, so
// amounts use "Rs." instead.
func PDF(w io.Writer, meta Meta, txs []domain.Transaction, sum ledger.Summary) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	rs := func(s string) string {
		return tr(strings.ReplaceAll(s, format.CurrencySymbol, "Rs. "))
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(meta.ShopName))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Statement for %s (%s)", meta.CustomerName, meta.Phone)))
	pdf.Ln(6)
	period := "All transactions"
	if meta.From != nil || meta.To != nil {
		period = "Period: " + dateOrDash(meta.From) + " to " + dateOrDash(meta.To)
	}
	pdf.Cell(0, 8, period)
	pdf.Ln(10)

	widths := []float64{26, 22, 70, 42, 30}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(31, 41, 55)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(0, 0, 0)
	if len(txs) == 0 {
		pdf.CellFormat(190, 8, "No transactions found", "1", 1, "C", false, 0, "")
	}
	for _, tx := range txs {
		cells := row(tx)
		cells[0] = format.Date(tx.Date)
		for i, v := range cells {
			align := "L"
			if i == len(cells)-1 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, rs(format.Truncate(v, 40)), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 10)
	lines := []string{
		fmt.Sprintf("Transactions: %d", sum.Total),
		fmt.Sprintf("Total Credit (%d): %s", sum.CreditCount, format.Currency(sum.CreditAmount)),
		fmt.Sprintf("Total Payments (%d): %s", sum.PaymentCount, format.Currency(sum.PaymentAmount)),
		fmt.Sprintf("Net Balance: %s", format.Currency(sum.NetBalance)),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, rs(l))
		pdf.Ln(6)
	}
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Cell(0, 6, "Generated "+format.DateTime(meta.GeneratedAt))

	return pdf.Output(w)
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return format.Date(*t)
}
