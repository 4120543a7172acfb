// Package export renders stored invoices into spreadsheet workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

const (
	InvoicesSheet  = "Invoices"
	LineItemsSheet = "LineItems"

	pageSize = 100
)

// Service produces XLSX bytes from the invoice store.
type Service struct {
	repo   repository.InvoiceRepository
	logger *slog.Logger
}

func NewService(repo repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Window bounds the export by order date (YYYY-MM-DD, inclusive).
// Empty bounds are open.
type Window struct {
	From string
	To   string
}

func (w Window) contains(date string) bool {
	if w.From != "" && date < w.From {
		return false
	}
	if w.To != "" && date > w.To {
		return false
	}
	return true
}

// ExportInvoicesXLSX returns a workbook with one row per invoice on the
// Invoices sheet and one row per line item on the LineItems sheet.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, w Window) ([]byte, error) {
	start := time.Now()

	recs, err := s.collect(ctx, w)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(LineItemsSheet); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	writeHeader(f, InvoicesSheet, []string{
		"Order ID", "Invoice Number", "Order Date", "Customer", "Email",
		"Status", "Tax", "Total", "Shipping Address", "Billing Address",
	})
	writeHeader(f, LineItemsSheet, []string{
		"Order ID", "Invoice Number", "Product", "Code", "Description",
		"Quantity", "Unit Price", "Line Total",
	})

	row, itemRow := 2, 2
	for _, r := range recs {
		writeRow(f, InvoicesSheet, row, []any{
			r.ID, r.InvoiceNumber, r.OrderDate, r.CustomerName, r.CustomerEmail,
			string(r.Status), r.TaxAmount.InexactFloat64(), r.TotalAmount.InexactFloat64(),
			r.ShippingAddress, r.BillingAddress,
		})
		row++
		for _, li := range r.LineItems {
			writeRow(f, LineItemsSheet, itemRow, []any{
				r.ID, r.InvoiceNumber, li.ProductName, li.ProductCode, truncate(li.Description, 140),
				li.Quantity, li.UnitPrice.InexactFloat64(), li.LineTotal.InexactFloat64(),
			})
			itemRow++
		}
	}

	if row > 2 {
		_ = f.SetCellStyle(InvoicesSheet, "G2", fmt.Sprintf("H%d", row-1), money)
	}
	if itemRow > 2 {
		_ = f.SetCellStyle(LineItemsSheet, "G2", fmt.Sprintf("H%d", itemRow-1), money)
	}

	_ = f.SetColWidth(InvoicesSheet, "B", "B", 18)
	_ = f.SetColWidth(InvoicesSheet, "C", "C", 12)
	_ = f.SetColWidth(InvoicesSheet, "D", "E", 28)
	_ = f.SetColWidth(InvoicesSheet, "I", "J", 40)
	_ = f.SetColWidth(LineItemsSheet, "C", "C", 28)
	_ = f.SetColWidth(LineItemsSheet, "E", "E", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(recs),
		"line_items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// collect pages through the store, oldest first in the workbook.
func (s *Service) collect(ctx context.Context, w Window) ([]*entity.InvoiceRecord, error) {
	var out []*entity.InvoiceRecord
	for page := 1; ; page++ {
		recs, total, err := s.repo.ListOrders(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("query invoices: %w", err)
		}
		for _, r := range recs {
			if w.contains(r.OrderDate) {
				out = append(out, r)
			}
		}
		if len(recs) == 0 || page*pageSize >= total {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
