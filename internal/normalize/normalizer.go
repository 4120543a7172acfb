// Package normalize turns loosely typed extraction candidates into canonical
// invoice records. Every extraction path goes through Clean before a record
// can be stored.
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

const (
	DefaultCustomerName = "Unknown Customer"
	DefaultProductName  = "Unknown Product"
)

// key aliases accepted on input, canonical name first.
var (
	keyCustomerName  = []string{"customer_name", "customerName"}
	keyCustomerEmail = []string{"customer_email", "customerEmail"}
	keyOrderDate     = []string{"order_date", "orderDate", "invoice_date", "date"}
	keyInvoiceNumber = []string{"invoice_number", "invoiceNumber"}
	keyTotalAmount   = []string{"total_amount", "totalAmount", "total"}
	keyTaxAmount     = []string{"tax_amount", "taxAmount", "tax"}
	keyShipping      = []string{"shipping_address", "shippingAddress"}
	keyBilling       = []string{"billing_address", "billingAddress"}
	keyStatus        = []string{"status"}
	keyLineItems     = []string{"line_items", "lineItems", "order_details", "items"}

	keyProductName = []string{"product_name", "productName", "name"}
	keyProductCode = []string{"product_code", "productCode", "sku", "code"}
	keyDescription = []string{"description"}
	keyQuantity    = []string{"quantity", "qty"}
	keyUnitPrice   = []string{"unit_price", "unitPrice", "price"}
	keyLineTotal   = []string{"line_total", "lineTotal", "amount"}
)

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for the default order date.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalizer is stateless apart from its clock and is safe for concurrent use.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

func New(logger *slog.Logger, opts ...Option) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{now: time.Now, logger: logger}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Clean coerces a candidate into a canonical record. It never fails:
// missing or unreadable values are replaced by defaults, and
// Clean(Clean(x).Candidate()) equals Clean(x).
func (n *Normalizer) Clean(candidate map[string]any) entity.InvoiceRecord {
	if candidate == nil {
		candidate = map[string]any{}
	}

	rec := entity.InvoiceRecord{
		CustomerName:    toString(pick(candidate, keyCustomerName)),
		CustomerEmail:   toString(pick(candidate, keyCustomerEmail)),
		InvoiceNumber:   toString(pick(candidate, keyInvoiceNumber)),
		TotalAmount:     toDecimal(pick(candidate, keyTotalAmount)),
		TaxAmount:       toDecimal(pick(candidate, keyTaxAmount)),
		ShippingAddress: toString(pick(candidate, keyShipping)),
		BillingAddress:  toString(pick(candidate, keyBilling)),
		LineItems:       cleanLineItems(pick(candidate, keyLineItems)),
	}

	if rec.CustomerName == "" {
		rec.CustomerName = DefaultCustomerName
	}

	rec.OrderDate = toISODate(pick(candidate, keyOrderDate))
	if rec.OrderDate == "" {
		rec.OrderDate = n.now().Format("2006-01-02")
	}

	if rec.InvoiceNumber == "" {
		rec.InvoiceNumber = entity.PlaceholderInvoiceNumber(canonicalSeed(candidate))
		n.logger.Debug("normalize.invoice_number.derived", "invoice_number", rec.InvoiceNumber)
	}

	rec.Status, _ = constants.CanonicalizeOrderStatus(toString(pick(candidate, keyStatus)))

	if rec.TotalAmount.IsZero() && len(rec.LineItems) > 0 {
		rec.TotalAmount = rec.Subtotal().Add(rec.TaxAmount).Round(2)
		n.logger.Debug("normalize.total.recomputed",
			"invoice_number", rec.InvoiceNumber,
			"total", rec.TotalAmount.StringFixed(2),
			"line_items", len(rec.LineItems),
		)
	}
	return rec
}

func cleanLineItems(v any) []entity.LineItem {
	raw, ok := v.([]any)
	if !ok {
		if typed, ok2 := v.([]map[string]any); ok2 {
			raw = make([]any, len(typed))
			for i := range typed {
				raw[i] = typed[i]
			}
		}
	}
	items := make([]entity.LineItem, 0, len(raw))
	for _, el := range raw {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		li := entity.LineItem{
			ProductName: toString(pick(m, keyProductName)),
			ProductCode: toString(pick(m, keyProductCode)),
			Description: toString(pick(m, keyDescription)),
			Quantity:    toQuantity(pick(m, keyQuantity)),
			UnitPrice:   toDecimal(pick(m, keyUnitPrice)),
			LineTotal:   toDecimal(pick(m, keyLineTotal)),
		}
		if li.ProductName == "" {
			li.ProductName = DefaultProductName
		}
		if li.LineTotal.IsZero() {
			li.LineTotal = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
		}
		items = append(items, li)
	}
	return items
}

// pick returns the first present, non-nil value among keys.
func pick(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// canonicalSeed renders the candidate deterministically; encoding/json sorts map keys.
func canonicalSeed(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(b)
}
