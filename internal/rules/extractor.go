// Package rules pulls a best-effort invoice candidate out of free text with
// label-anchored regular expressions. It makes no external calls and never fails.
package rules

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

var (
	reCustomerName  = regexp.MustCompile(`(?im)(?:customer|client|bill to|sold to|name)[:\s]*([A-Za-z\s\.]{3,50})(?:\n|$)`)
	reInvoiceNumber = regexp.MustCompile(`(?im)(?:invoice|inv|number|#)[\s#:]*([A-Z0-9\-_]{3,20})`)
	reTotalAmount   = regexp.MustCompile(`(?im)(?:total|amount|due|balance)[\s:$]*([\d,]+\.?\d{0,2})`)
	reOrderDate     = regexp.MustCompile(`(?im)(?:date|invoice date|order date)[\s:]*(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`)
)

// dateLayouts: MM/DD/YYYY, DD/MM/YYYY, MM-DD-YYYY, YYYY-MM-DD, DD-MM-YYYY.
var dateLayouts = []string{"1/2/2006", "2/1/2006", "1-2-2006", "2006-1-2", "2-1-2006"}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract returns a candidate with customer_name, invoice_number, total_amount,
// order_date and an empty line_items list. Fields without a match keep their zero value,
// except invoice_number which falls back to a placeholder derived from text.
func (e *Extractor) Extract(ctx context.Context, text string) map[string]any {
	customer := firstGroup(reCustomerName, text)
	invoice := firstGroup(reInvoiceNumber, text)
	if invoice == "" {
		invoice = entity.PlaceholderInvoiceNumber(text)
	}

	total := decimal.Zero
	if raw := lastGroup(reTotalAmount, text); raw != "" {
		if d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "")); err == nil {
			total = d
		}
	}

	orderDate := lastGroup(reOrderDate, text)
	if orderDate != "" {
		orderDate = parseDate(orderDate)
	}

	common.LoggerFrom(ctx, e.logger).Info("rules.extract.ok",
		"has_customer", customer != "",
		"invoice_number", invoice,
		"total", total.StringFixed(2),
		"order_date", orderDate,
		"text_len", len(text),
	)

	return map[string]any{
		"customer_name":  customer,
		"invoice_number": invoice,
		"total_amount":   total,
		"order_date":     orderDate,
		"line_items":     []any{},
	}
}

// parseDate normalizes to YYYY-MM-DD, or returns s unchanged when no layout fits.
func parseDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func lastGroup(re *regexp.Regexp, text string) string {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return ""
	}
	return strings.TrimSpace(all[len(all)-1][1])
}
