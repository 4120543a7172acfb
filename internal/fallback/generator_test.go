package fallback

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
)

func TestGenerateIsConsistent(t *testing.T) {
	g := NewGenerator(Config{Seed: 42}, nil)
	n := normalize.New(nil)

	for i := 0; i < 50; i++ {
		rec := n.Clean(g.Generate())

		require.NotEmpty(t, rec.LineItems)
		require.LessOrEqual(t, len(rec.LineItems), 3)
		assert.Regexp(t, `^INV-FALLBACK-\d{4}$`, rec.InvoiceNumber)
		assert.Equal(t, "Sample Customer", rec.CustomerName)

		subtotal := rec.Subtotal()
		wantTax := subtotal.Mul(DefaultTaxRate).Round(2)
		assert.True(t, wantTax.Equal(rec.TaxAmount), "tax %s want %s", rec.TaxAmount, wantTax)
		assert.True(t, subtotal.Add(rec.TaxAmount).Equal(rec.TotalAmount),
			"total %s != subtotal %s + tax %s", rec.TotalAmount, subtotal, rec.TaxAmount)
	}
}

func TestGenerateConfigurableCatalogAndRate(t *testing.T) {
	g := NewGenerator(Config{
		Seed:    7,
		TaxRate: decimal.RequireFromString("0.10"),
		Catalog: []Product{{Name: "Only", Code: "ONE", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 2}},
	}, nil)

	rec := normalize.New(nil).Clean(g.Generate())
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "Only", rec.LineItems[0].ProductName)
	assert.True(t, decimal.RequireFromString("39.98").Equal(rec.LineItems[0].LineTotal))
	assert.True(t, decimal.RequireFromString("4.00").Equal(rec.TaxAmount))
	assert.True(t, decimal.RequireFromString("43.98").Equal(rec.TotalAmount))
}

func TestGenerateSameSeedSameOutput(t *testing.T) {
	a := NewGenerator(Config{Seed: 99}, nil).Generate()
	b := NewGenerator(Config{Seed: 99}, nil).Generate()
	assert.Equal(t, a["invoice_number"], b["invoice_number"])
	assert.Equal(t, a["line_items"], b["line_items"])
}
