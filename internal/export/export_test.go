package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func fixture() []domain.Transaction {
	return []domain.Transaction{
		{
			Type: "debit", Amount: decimal.NewFromInt(40),
			Date: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			Type: "credit", Amount: decimal.NewFromInt(100), Note: "monthly",
			Date: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			Items: []domain.TransactionItem{
				{Name: "Rice", Quantity: 2, Price: decimal.NewFromInt(50), Subtotal: decimal.NewFromInt(100)},
			},
		},
	}
}

func TestCSV(t *testing.T) {
	data, err := CSV(fixture())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[1][4] != "+₹40.00" || records[2][4] != "-₹100.00" {
		t.Fatalf("unexpected amounts %q %q", records[1][4], records[2][4])
	}
	if records[2][2] != "Rice x2" {
		t.Fatalf("unexpected items label %q", records[2][2])
	}
}

func TestXLSX(t *testing.T) {
	txs := fixture()
	data, err := XLSX(Meta{CustomerName: "Ravi"}, txs, ledger.Summarize(txs))
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue("Ledger", "E3")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if v != "-₹100.00" {
		t.Fatalf("E3 = %q", v)
	}
	net, _ := f.GetCellValue("Ledger", "E9")
	if net != "-₹60.00" {
		t.Fatalf("net balance cell = %q", net)
	}
}

func TestPDF(t *testing.T) {
	txs := fixture()
	var buf bytes.Buffer
	meta := Meta{ShopName: "Gupta Stores", CustomerName: "Ravi", Phone: "9876543210", GeneratedAt: time.Now()}
	if err := PDF(&buf, meta, txs, ledger.Summarize(txs)); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("output is not a PDF")
	}
}

func TestFilename(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	got := Filename(Meta{CustomerName: "Ravi Kumar", From: &from, To: &to}, "xlsx")
	if got != "ledger_ravi_kumar_20240101_20240131.xlsx" {
		t.Fatalf("got %q", got)
	}
}
