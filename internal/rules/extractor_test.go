package rules

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/internal/common"
)

const sampleInvoice = `Invoice #INV-100
Bill To: Acme Corporation
Date: 01/15/2024

Description                      Qty   Price
Consulting services rendered     1     1,200.00

Subtotal: $1,100.00
Tax: $100.00
Total: $1,200.00
Thank you for your business.`

func TestExtractSampleInvoice(t *testing.T) {
	got := NewExtractor(nil).Extract(context.Background(), sampleInvoice)

	assert.Equal(t, "INV-100", got["invoice_number"])
	assert.Equal(t, "Acme Corporation", got["customer_name"])
	assert.Equal(t, "2024-01-15", got["order_date"])

	total, ok := got["total_amount"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, total.Equal(decimal.RequireFromString("1200.00")), "got %s", total)
	assert.Empty(t, got["line_items"])
}

func TestExtractTakesLastTotal(t *testing.T) {
	got := NewExtractor(nil).Extract(context.Background(), "Running total: 50.00\nBalance: 75.25\n")
	total := got["total_amount"].(decimal.Decimal)
	assert.True(t, total.Equal(decimal.RequireFromString("75.25")), "got %s", total)
}

func TestExtractDates(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "Date: 01/15/2024", want: "2024-01-15"},
		{text: "Date: 25/12/2023", want: "2023-12-25"},
		{text: "order date: 3-4-2024", want: "2024-03-04"},
		{text: "Date: 13-13-2023", want: "13-13-2023"},
		{text: "Date: 1/2/2024\nInvoice date: 2/3/2024", want: "2024-02-03"},
		{text: "no dates here", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, NewExtractor(nil).Extract(context.Background(), tt.text)["order_date"])
		})
	}
}

func TestExtractPlaceholderDeterministic(t *testing.T) {
	text := "Thanks for shopping with us today"
	e := NewExtractor(nil)

	first := e.Extract(context.Background(), text)["invoice_number"]
	second := e.Extract(context.Background(), text)["invoice_number"]
	assert.Equal(t, first, second)
	assert.Regexp(t, `^INV-\d{4}$`, first)

	assert.True(t, e.Extract(context.Background(), text)["total_amount"].(decimal.Decimal).IsZero())
	assert.Equal(t, "", e.Extract(context.Background(), text)["customer_name"])
}

func TestExtractUnparseableTotalStaysZero(t *testing.T) {
	got := NewExtractor(nil).Extract(context.Background(), "Total: ,,,")
	assert.True(t, got["total_amount"].(decimal.Decimal).IsZero())
}

func TestExtractLogsJobID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	NewExtractor(logger).Extract(common.WithJobID(context.Background(), "job-42"), sampleInvoice)

	assert.Contains(t, buf.String(), `"msg":"rules.extract.ok"`)
	assert.Contains(t, buf.String(), `"job_id":"job-42"`)
}
