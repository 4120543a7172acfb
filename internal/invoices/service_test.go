package invoices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

func setup(t *testing.T) (*Service, repository.InvoiceRepository, *recorder) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	repo := repository.NewInvoiceRepository(db, nil)
	rec := &recorder{}
	return NewService(repo, nil, rec, nil), repo, rec
}

func seed(t *testing.T, repo repository.InvoiceRepository, number string) *entity.InvoiceRecord {
	t.Helper()
	stored, err := repo.CreateOrder(context.Background(), &entity.InvoiceRecord{
		CustomerName:  "Acme Corporation",
		OrderDate:     "2024-01-15",
		InvoiceNumber: number,
		TaxAmount:     dec("2.40"),
		TotalAmount:   dec("32.40"),
		Status:        constants.OrderStatusExtracted,
		LineItems: []entity.LineItem{
			{ProductName: "Widget", Quantity: 3, UnitPrice: dec("10.00"), LineTotal: dec("30.00")},
		},
	})
	require.NoError(t, err)
	return stored
}

func code(err error) codes.Code {
	return status.Code(err)
}

func TestGetInvoice(t *testing.T) {
	svc, repo, _ := setup(t)
	stored := seed(t, repo, "INV-1")

	got, err := svc.GetInvoice(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.InvoiceNumber)

	_, err = svc.GetInvoice(context.Background(), 0)
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = svc.GetInvoice(context.Background(), stored.ID+100)
	assert.Equal(t, codes.NotFound, code(err))
}

func TestListInvoices(t *testing.T) {
	svc, repo, _ := setup(t)
	for _, n := range []string{"INV-1", "INV-2", "INV-3"} {
		seed(t, repo, n)
	}

	page, err := svc.ListInvoices(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Invoices, 2)
	assert.Equal(t, "INV-3", page.Invoices[0].InvoiceNumber)

	_, err = svc.ListInvoices(context.Background(), 1, maxPerPage+1)
	assert.Equal(t, codes.InvalidArgument, code(err))
}

func TestUpdateInvoice(t *testing.T) {
	svc, repo, rec := setup(t)
	stored := seed(t, repo, "INV-1")
	ctx := context.Background()

	got, err := svc.UpdateInvoice(ctx, stored.ID, UpdateRequest{
		CustomerName: strPtr("  Globex  "),
		Status:       strPtr("approved"),
		TaxAmount:    strPtr("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.CustomerName)
	assert.Equal(t, constants.OrderStatusReviewed, got.Status)
	assert.True(t, dec("35.00").Equal(got.TotalAmount), got.TotalAmount.String())

	ev := rec.last()
	assert.Equal(t, events.TypeInvoiceUpdated, ev.Type)
	assert.Equal(t, stored.ID, ev.OrderID)
	assert.False(t, ev.At.IsZero())

	cases := []struct {
		name string
		req  UpdateRequest
	}{
		{"bad status", UpdateRequest{Status: strPtr("shipped")}},
		{"bad email", UpdateRequest{CustomerEmail: strPtr("not-an-email")}},
		{"bad date", UpdateRequest{OrderDate: strPtr("15/01/2024")}},
		{"negative tax", UpdateRequest{TaxAmount: strPtr("-1")}},
		{"text total", UpdateRequest{TotalAmount: strPtr("lots")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateInvoice(ctx, stored.ID, tc.req)
			assert.Equal(t, codes.InvalidArgument, code(err))
		})
	}
}

func TestUpdateInvoiceBlankCustomerGetsDefault(t *testing.T) {
	svc, repo, _ := setup(t)
	stored := seed(t, repo, "INV-1")

	got, err := svc.UpdateInvoice(context.Background(), stored.ID, UpdateRequest{CustomerName: strPtr("   ")})
	require.NoError(t, err)
	assert.Equal(t, normalize.DefaultCustomerName, got.CustomerName)

	got, err = svc.UpdateInvoice(context.Background(), stored.ID, UpdateRequest{CustomerEmail: strPtr(" ap@acme.test ")})
	require.NoError(t, err)
	assert.Equal(t, "ap@acme.test", got.CustomerEmail)
}

func TestReplaceLineItems(t *testing.T) {
	svc, repo, rec := setup(t)
	stored := seed(t, repo, "INV-1")

	got, err := svc.ReplaceLineItems(context.Background(), stored.ID, []map[string]any{
		{"product_name": "Gadget", "quantity": "2", "unit_price": "$7.50"},
		{"quantity": 0, "unit_price": 1},
	})
	require.NoError(t, err)
	require.Len(t, got.LineItems, 2)
	assert.True(t, dec("15.00").Equal(got.LineItems[0].LineTotal))
	assert.Equal(t, 1, got.LineItems[1].Quantity)
	// 15.00 + 1.00 + 2.40 tax
	assert.True(t, dec("18.40").Equal(got.TotalAmount), got.TotalAmount.String())
	assert.Equal(t, events.TypeInvoiceUpdated, rec.last().Type)
}

func TestDeleteLineItemAndInvoice(t *testing.T) {
	svc, repo, rec := setup(t)
	stored := seed(t, repo, "INV-1")
	ctx := context.Background()

	total, err := svc.DeleteLineItem(ctx, stored.ID, stored.LineItems[0].ID)
	require.NoError(t, err)
	assert.True(t, dec("2.40").Equal(total), total.String())

	_, err = svc.DeleteLineItem(ctx, stored.ID, -1)
	assert.Equal(t, codes.InvalidArgument, code(err))

	require.NoError(t, svc.DeleteInvoice(ctx, stored.ID))
	ev := rec.last()
	assert.Equal(t, events.TypeInvoiceDeleted, ev.Type)
	assert.WithinDuration(t, time.Now(), ev.At, time.Minute)

	err = svc.DeleteInvoice(ctx, stored.ID)
	assert.Equal(t, codes.NotFound, code(err))
}
