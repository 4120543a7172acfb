package entity

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-tracker/constants"
)

// InvoiceRecord is the canonical invoice shape. Only records produced by the
// normalizer are considered storable.
type InvoiceRecord struct {
	ID              int64                 `json:"order_id,omitempty"`
	CustomerName    string                `json:"customer_name"`
	CustomerEmail   string                `json:"customer_email,omitempty"`
	OrderDate       string                `json:"order_date"` // YYYY-MM-DD
	InvoiceNumber   string                `json:"invoice_number"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	TaxAmount       decimal.Decimal       `json:"tax_amount"`
	ShippingAddress string                `json:"shipping_address,omitempty"`
	BillingAddress  string                `json:"billing_address,omitempty"`
	Status          constants.OrderStatus `json:"status"`
	LineItems       []LineItem            `json:"line_items"`
	CreatedAt       *time.Time            `json:"created_at,omitempty"`
	UpdatedAt       *time.Time            `json:"updated_at,omitempty"`
}

// LineItem is one row of an invoice.
type LineItem struct {
	ID          int64           `json:"detail_id,omitempty"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Subtotal sums the line totals.
func (r *InvoiceRecord) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range r.LineItems {
		sum = sum.Add(li.LineTotal)
	}
	return sum
}

// Candidate renders the record back into the loose map shape accepted by the
// normalizer, with amounts as fixed two-digit strings.
func (r *InvoiceRecord) Candidate() map[string]any {
	items := make([]any, 0, len(r.LineItems))
	for _, li := range r.LineItems {
		items = append(items, map[string]any{
			"product_name": li.ProductName,
			"product_code": li.ProductCode,
			"description":  li.Description,
			"quantity":     li.Quantity,
			"unit_price":   li.UnitPrice.StringFixed(2),
			"line_total":   li.LineTotal.StringFixed(2),
		})
	}
	return map[string]any{
		"customer_name":    r.CustomerName,
		"customer_email":   r.CustomerEmail,
		"order_date":       r.OrderDate,
		"invoice_number":   r.InvoiceNumber,
		"total_amount":     r.TotalAmount.StringFixed(2),
		"tax_amount":       r.TaxAmount.StringFixed(2),
		"shipping_address": r.ShippingAddress,
		"billing_address":  r.BillingAddress,
		"status":           string(r.Status),
		"line_items":       items,
	}
}

// PlaceholderInvoiceNumber derives a stable INV-NNNN number from seed.
// The same seed always yields the same number.
func PlaceholderInvoiceNumber(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return fmt.Sprintf("INV-%04d", h.Sum32()%10000)
}
