// Package receipt renders donation receipts as PDF files on local disk.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"donation-service/config"
	"donation-service/internal/domain"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// URLPrefix is where the HTTP edge serves the receipts directory.
const URLPrefix = "/api/receipts/"

var ErrInvalidReceiptNumber = errors.New("receipt: invalid receipt number")

// Data is what goes on a receipt.
type Data struct {
	Donor         string
	Amount        decimal.Decimal
	ReceiptNumber string
	Date          time.Time
}

type Generator struct {
	dir     string
	orgName string
	logger  *zap.Logger
}

// NewGenerator makes sure the receipts directory exists.
func NewGenerator(cfg config.ReceiptConfig, logger *zap.Logger) (*Generator, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("receipt: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("receipt: ensure directory: %w", err)
	}
	return &Generator{dir: dir, orgName: cfg.OrgName, logger: logger}, nil
}

func (g *Generator) Dir() string { return g.dir }

// FileName is the predictable file name for a receipt number.
func FileName(receiptNumber string) (string, error) {
	if !domain.ValidReceiptNumber(receiptNumber) {
		return "", ErrInvalidReceiptNumber
	}
	return "receipt_" + receiptNumber + ".pdf", nil
}

// URLPath is the public path of a receipt, relative to the site root.
func URLPath(receiptNumber string) (string, error) {
	name, err := FileName(receiptNumber)
	if err != nil {
		return "", err
	}
	return URLPrefix + name, nil
}

// Render writes the receipt PDF and returns its path on disk. The file only
// appears under its final name once completely written.
func (g *Generator) Render(ctx context.Context, data Data) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := FileName(data.ReceiptNumber)
	if err != nil {
		return "", err
	}
	if data.Donor == "" {
		data.Donor = domain.AnonymousDonor
	}
	if data.Date.IsZero() {
		data.Date = time.Now()
	}

	pdf := g.build(data)
	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("receipt: build pdf: %w", err)
	}

	tmp, err := os.CreateTemp(g.dir, ".receipt-*.pdf.tmp")
	if err != nil {
		return "", fmt.Errorf("receipt: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := pdf.Output(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("receipt: write pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("receipt: close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	final := filepath.Join(g.dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("receipt: publish file: %w", err)
	}

	g.logger.Debug("receipt rendered", zap.String("receipt_number", data.ReceiptNumber), zap.String("path", final))
	return final, nil
}

func (g *Generator) build(data Data) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Donation Receipt "+data.ReceiptNumber, true)
	pdf.SetCreator(g.orgName, true)
	pdf.SetCreationDate(data.Date)
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 12, tr(g.orgName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 8, "Donation Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	rows := [][2]string{
		{"Receipt No.", data.ReceiptNumber},
		{"Donor", data.Donor},
		{"Amount", domain.CurrencyKES + " " + FormatAmount(data.Amount)},
		{"Date", data.Date.Format("02 Jan 2006, 15:04")},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 10, row[0], "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 10, tr(row[1]), "B", 1, "L", false, 0, "")
	}

	pdf.Ln(14)
	pdf.SetFont("Helvetica", "I", 12)
	pdf.MultiCell(0, 7, tr("Thank you for your generous donation. Your support keeps "+g.orgName+" going."), "", "C", false)
	return pdf
}

// FormatAmount renders 1500 as "1,500.00".
func FormatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
