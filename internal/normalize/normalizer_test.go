package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
}

func newTestNormalizer() *Normalizer {
	return New(nil, WithClock(fixedClock))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.StringFixed(2), msgAndArgs)
}

func recordJSON(t *testing.T, r entity.InvoiceRecord) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}

func TestCleanDefaults(t *testing.T) {
	rec := newTestNormalizer().Clean(nil)

	assert.Equal(t, DefaultCustomerName, rec.CustomerName)
	assert.Equal(t, "2024-03-09", rec.OrderDate)
	assert.Regexp(t, `^INV-\d{4}$`, rec.InvoiceNumber)
	assert.True(t, rec.TotalAmount.IsZero())
	assert.True(t, rec.TaxAmount.IsZero())
	assert.Equal(t, constants.OrderStatusPending, rec.Status)
	assert.Empty(t, rec.LineItems)
}

func TestCleanLineTotalRecomputed(t *testing.T) {
	rec := newTestNormalizer().Clean(map[string]any{
		"customer_name": "Acme",
		"tax_amount":    "2.40",
		"line_items": []any{
			map[string]any{"product_name": "Widget", "quantity": 3, "unit_price": "10.00"},
		},
	})

	require.Len(t, rec.LineItems, 1)
	assertDecimal(t, "30.00", rec.LineItems[0].LineTotal)
	assertDecimal(t, "32.40", rec.TotalAmount, "header total becomes sum of lines plus tax")
}

func TestCleanKeepsSuppliedTotal(t *testing.T) {
	rec := newTestNormalizer().Clean(map[string]any{
		"total_amount": 999.99,
		"line_items": []any{
			map[string]any{"quantity": 1, "unit_price": 5, "line_total": 5},
		},
	})
	assertDecimal(t, "999.99", rec.TotalAmount)
	assertDecimal(t, "5", rec.LineItems[0].LineTotal)
}

func TestCleanCoercion(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "currency and separators", in: "$1,200.50", want: "1200.50"},
		{name: "float", in: 12.345, want: "12.35"},
		{name: "int", in: 7, want: "7"},
		{name: "json number", in: json.Number("3.1"), want: "3.1"},
		{name: "garbage", in: "twelve", want: "0"},
		{name: "negative", in: "-4.00", want: "0"},
		{name: "bool", in: true, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestNormalizer().Clean(map[string]any{"tax_amount": tt.in})
			assertDecimal(t, tt.want, rec.TaxAmount)
		})
	}
}

func TestCleanQuantity(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{in: nil, want: 1},
		{in: 0, want: 1},
		{in: -3, want: 1},
		{in: 2.9, want: 2},
		{in: "4", want: 4},
		{in: "abc", want: 1},
	}
	for _, tt := range tests {
		rec := newTestNormalizer().Clean(map[string]any{
			"line_items": []any{map[string]any{"quantity": tt.in, "unit_price": "1.00"}},
		})
		require.Len(t, rec.LineItems, 1)
		assert.Equalf(t, tt.want, rec.LineItems[0].Quantity, "input %v", tt.in)
		assert.Equal(t, DefaultProductName, rec.LineItems[0].ProductName)
	}
}

func TestCleanAcceptsAliases(t *testing.T) {
	rec := newTestNormalizer().Clean(map[string]any{
		"customerName":  "Globex",
		"invoiceNumber": "G-77",
		"orderDate":     "March 4, 2024",
		"status":        "approved",
		"order_details": []any{
			map[string]any{"productName": "Bolt", "qty": "2", "unitPrice": "0.50"},
			"not an item",
		},
	})
	assert.Equal(t, "Globex", rec.CustomerName)
	assert.Equal(t, "G-77", rec.InvoiceNumber)
	assert.Equal(t, "2024-03-04", rec.OrderDate)
	assert.Equal(t, constants.OrderStatusReviewed, rec.Status)
	require.Len(t, rec.LineItems, 1)
	assertDecimal(t, "1.00", rec.LineItems[0].LineTotal)
	assertDecimal(t, "1.00", rec.TotalAmount)
}

func TestCleanUnparseableDateUsesToday(t *testing.T) {
	rec := newTestNormalizer().Clean(map[string]any{"order_date": "sometime last week"})
	assert.Equal(t, "2024-03-09", rec.OrderDate)
}

func TestCleanInvoiceNumberDeterministic(t *testing.T) {
	in := map[string]any{"customer_name": "Initech", "total_amount": "10"}
	a := newTestNormalizer().Clean(in)
	b := newTestNormalizer().Clean(in)
	assert.Equal(t, a.InvoiceNumber, b.InvoiceNumber)
}

func TestCleanIdempotent(t *testing.T) {
	candidates := []map[string]any{
		nil,
		{"customer_name": "  Acme  ", "total_amount": "0", "tax_amount": "1.5"},
		{
			"customer_name": "Acme",
			"order_date":    "01/15/2024",
			"tax_amount":    "3.333",
			"line_items": []any{
				map[string]any{"product_name": "A", "quantity": 3, "unit_price": "10.005"},
				map[string]any{"quantity": "0", "unit_price": 2.5, "line_total": 0},
				map[string]any{"product_name": "C", "unit_price": "-1"},
			},
		},
		{"total_amount": "$1,200.00", "invoice_number": "INV-100", "status": "garbage"},
		{"line_items": "not a list", "customer_email": 42},
	}
	n := newTestNormalizer()
	for i, c := range candidates {
		once := n.Clean(c)
		twice := n.Clean(once.Candidate())
		assert.JSONEqf(t, recordJSON(t, once), recordJSON(t, twice), "candidate %d", i)
	}
}

func TestCleanTotalFollowsLineItems(t *testing.T) {
	rec := newTestNormalizer().Clean(map[string]any{
		"tax_amount": "1.07",
		"line_items": []any{
			map[string]any{"quantity": 2, "unit_price": "3.333"},
			map[string]any{"quantity": 1, "unit_price": "0.10", "line_total": "0.10"},
		},
	})
	sum := decimal.Zero
	for _, li := range rec.LineItems {
		sum = sum.Add(li.LineTotal)
	}
	assertDecimal(t, sum.Add(rec.TaxAmount).StringFixed(2), rec.TotalAmount)
	assertDecimal(t, "6.66", rec.LineItems[0].LineTotal, "unit price rounds to cents before multiplying")
}
