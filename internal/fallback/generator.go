// Package fallback synthesizes an internally consistent sample invoice when
// nothing usable could be extracted, so consumers always receive a valid shape.
package fallback

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Product is one entry of the sample catalog.
type Product struct {
	Name      string
	Code      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// DefaultTaxRate is 6.875%.
var DefaultTaxRate = decimal.RequireFromString("0.06875")

// DefaultCatalog is the sample product list used when none is configured.
func DefaultCatalog() []Product {
	return []Product{
		{Name: "Product XYZ", Code: "23423423", UnitPrice: decimal.RequireFromString("150.00"), Quantity: 15},
		{Name: "Product ABC", Code: "45645645", UnitPrice: decimal.RequireFromString("75.00"), Quantity: 1},
		{Name: "Web Development Service", Code: "WEB-001", UnitPrice: decimal.RequireFromString("5000.00"), Quantity: 1},
		{Name: "Consulting Hours", Code: "CONS-001", UnitPrice: decimal.RequireFromString("150.00"), Quantity: 40},
	}
}

type Config struct {
	TaxRate       decimal.Decimal
	Catalog       []Product
	MaxItems      int // at most this many catalog entries per record, default 3
	CustomerName  string
	CustomerEmail string
	Address       string
	Seed          uint64 // 0 = seeded from the clock
}

type Generator struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TaxRate.IsZero() || cfg.TaxRate.IsNegative() {
		cfg.TaxRate = DefaultTaxRate
	}
	if len(cfg.Catalog) == 0 {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 3
	}
	if cfg.CustomerName == "" {
		cfg.CustomerName = "Sample Customer"
	}
	if cfg.CustomerEmail == "" {
		cfg.CustomerEmail = "customer@example.com"
	}
	if cfg.Address == "" {
		cfg.Address = "123 Main St, City, State, ZIP"
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Generate returns a sample candidate whose total equals the sum of its line
// totals plus tax at the configured rate, rounded to cents.
func (g *Generator) Generate() map[string]any {
	g.mu.Lock()
	picks := g.pickProducts()
	daysAgo := 1 + g.rnd.IntN(30)
	number := 1000 + g.rnd.IntN(9000)
	g.mu.Unlock()

	subtotal := decimal.Zero
	items := make([]any, 0, len(picks))
	for _, p := range picks {
		lineTotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, map[string]any{
			"product_name": p.Name,
			"product_code": p.Code,
			"quantity":     p.Quantity,
			"unit_price":   p.UnitPrice.StringFixed(2),
			"line_total":   lineTotal.StringFixed(2),
		})
	}
	tax := subtotal.Mul(g.cfg.TaxRate).Round(2)
	total := subtotal.Add(tax)

	invoiceNumber := fmt.Sprintf("INV-FALLBACK-%04d", number)
	g.logger.Info("fallback.generate.ok",
		"invoice_number", invoiceNumber,
		"line_items", len(items),
		"subtotal", subtotal.StringFixed(2),
		"tax", tax.StringFixed(2),
	)

	return map[string]any{
		"customer_name":    g.cfg.CustomerName,
		"customer_email":   g.cfg.CustomerEmail,
		"order_date":       g.now().AddDate(0, 0, -daysAgo).Format("2006-01-02"),
		"invoice_number":   invoiceNumber,
		"total_amount":     total.StringFixed(2),
		"tax_amount":       tax.StringFixed(2),
		"shipping_address": g.cfg.Address,
		"billing_address":  g.cfg.Address,
		"status":           "pending",
		"line_items":       items,
	}
}

// pickProducts draws 1..MaxItems distinct catalog entries. Caller holds mu.
func (g *Generator) pickProducts() []Product {
	limit := min(g.cfg.MaxItems, len(g.cfg.Catalog))
	n := 1 + g.rnd.IntN(limit)
	order := g.rnd.Perm(len(g.cfg.Catalog))
	out := make([]Product, 0, n)
	for _, idx := range order[:n] {
		out = append(out, g.cfg.Catalog[idx])
	}
	return out
}
