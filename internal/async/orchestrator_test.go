package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
	"github.com/joseph-ayodele/invoice-tracker/internal/extract"
	"github.com/joseph-ayodele/invoice-tracker/internal/fallback"
	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
	"github.com/joseph-ayodele/invoice-tracker/internal/rules"
)

const invoiceText = `Invoice #INV-100
Bill To: Acme Corporation
Date: 01/15/2024
Consulting services rendered     1     1,200.00
Total: $1,200.00`

type textSource struct {
	prov  entity.Provenance
	text  string
	calls int
}

func (s *textSource) Name() string                  { return string(s.prov) }
func (s *textSource) Provenance() entity.Provenance { return s.prov }
func (s *textSource) Extract(context.Context, entity.RawDocument) (string, error) {
	s.calls++
	return s.text, nil
}

type modelFields map[string]any

func (m modelFields) Extract(context.Context, string) (map[string]any, error) {
	return map[string]any(m), nil
}

type harness struct {
	repo repository.InvoiceRepository
	bus  *events.Bus
	sub  <-chan events.Event
	orch *Orchestrator
}

// blockingFields stands in for a model call that never answers before the deadline.
type blockingFields struct{}

func (blockingFields) Extract(ctx context.Context, _ string) (map[string]any, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newHarness(t *testing.T, src extract.Sources, fields pipeline.FieldExtractor, opts ...Option) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	repo := repository.NewInvoiceRepository(db, nil)

	p := pipeline.New(
		extract.NewTextExtractor(src, nil),
		fields,
		rules.NewExtractor(nil),
		normalize.New(nil),
		fallback.NewGenerator(fallback.Config{TaxRate: fallback.DefaultTaxRate, Seed: 11}, nil),
		nil,
	)

	bus := events.NewBus(nil)
	sub, cancel := bus.Subscribe(32)
	t.Cleanup(cancel)

	return &harness{repo: repo, bus: bus, sub: sub, orch: NewOrchestrator(p, repo, bus, nil, opts...)}
}

func (h *harness) submit(t *testing.T, doc entity.RawDocument) ([]events.Event, events.Event) {
	t.Helper()
	task, err := h.orch.Submit(context.Background(), doc)
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}
	return drain(h.sub), task.Result()
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func statuses(evs []events.Event) []constants.JobStatus {
	out := make([]constants.JobStatus, len(evs))
	for i, ev := range evs {
		out[i] = ev.Status
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestJobPDFRulesCompleted(t *testing.T) {
	native := &textSource{prov: entity.ProvenanceNativeText, text: invoiceText}
	pdfOCR := &textSource{prov: entity.ProvenanceOCR, text: "unused"}
	h := newHarness(t, extract.Sources{PDFText: native, PDFOCR: pdfOCR}, nil)

	evs, result := h.submit(t, entity.RawDocument{Filename: "inv.pdf", Ext: "pdf", Kind: constants.KindPDF})

	assert.Equal(t, []constants.JobStatus{
		constants.JobStatusProcessing, constants.JobStatusExtracted, constants.JobStatusCompleted,
	}, statuses(evs))
	assert.Equal(t, 0, pdfOCR.calls)
	for _, ev := range evs {
		assert.Equal(t, result.JobID, ev.JobID)
		assert.Equal(t, events.TypeProcessingStatus, ev.Type)
	}

	extracted := evs[1].Data
	require.NotNil(t, extracted)
	assert.Equal(t, "INV-100", extracted.InvoiceNumber)

	require.Equal(t, constants.JobStatusCompleted, result.Status)
	require.NotZero(t, result.OrderID)

	stored, err := h.repo.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "INV-100", stored.InvoiceNumber)
	assert.Equal(t, "2024-01-15", stored.OrderDate)
	assert.True(t, stored.TotalAmount.Equal(dec("1200.00")), "got %s", stored.TotalAmount)
	assert.Equal(t, constants.OrderStatusExtracted, stored.Status)
	assert.Equal(t, stored.ID, result.Data.ID)
}

func TestJobImageInsufficientText(t *testing.T) {
	imgOCR := &textSource{prov: entity.ProvenanceOCR, text: "ab 1"}
	h := newHarness(t, extract.Sources{ImageOCR: imgOCR}, nil)

	evs, result := h.submit(t, entity.RawDocument{Filename: "blurry.png", Ext: "png", Kind: constants.KindImage})

	assert.Equal(t, []constants.JobStatus{
		constants.JobStatusProcessing, constants.JobStatusExtracted, constants.JobStatusError,
	}, statuses(evs))
	assert.True(t, evs[1].Fallback)

	require.Equal(t, constants.JobStatusError, result.Status)
	assert.Contains(t, result.Message, "insufficient text")
	assert.True(t, result.Fallback)
	assert.Zero(t, result.OrderID)

	fb := result.Data
	require.NotNil(t, fb)
	require.NotEmpty(t, fb.LineItems)
	subtotal := fb.Subtotal()
	tax := subtotal.Mul(dec("0.06875")).Round(2)
	assert.True(t, fb.TaxAmount.Equal(tax))
	assert.True(t, fb.TotalAmount.Equal(subtotal.Add(tax)))

	_, total, err := h.repo.ListOrders(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestJobLineTotalsAndHeaderTotal(t *testing.T) {
	native := &textSource{prov: entity.ProvenanceNativeText, text: invoiceText}
	model := modelFields{
		"customer_name":  "Acme",
		"invoice_number": "INV-300",
		"total_amount":   0,
		"tax_amount":     "2.40",
		"line_items": []any{
			map[string]any{"product_name": "Widget", "quantity": 3, "unit_price": "10.00"},
		},
	}
	h := newHarness(t, extract.Sources{PDFText: native}, model)

	_, result := h.submit(t, entity.RawDocument{Filename: "inv.pdf", Ext: "pdf", Kind: constants.KindPDF})
	require.Equal(t, constants.JobStatusCompleted, result.Status)

	stored, err := h.repo.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Len(t, stored.LineItems, 1)
	assert.True(t, stored.LineItems[0].LineTotal.Equal(dec("30.00")))
	assert.True(t, stored.TotalAmount.Equal(dec("32.40")), "got %s", stored.TotalAmount)
}

func TestJobDuplicateInvoiceIsPersistenceError(t *testing.T) {
	native := &textSource{prov: entity.ProvenanceNativeText, text: invoiceText}
	h := newHarness(t, extract.Sources{PDFText: native}, nil)
	doc := entity.RawDocument{Filename: "inv.pdf", Ext: "pdf", Kind: constants.KindPDF}

	_, first := h.submit(t, doc)
	require.Equal(t, constants.JobStatusCompleted, first.Status)

	evs, second := h.submit(t, doc)
	assert.Equal(t, constants.JobStatusError, second.Status)
	assert.Contains(t, second.Message, "database error")
	// the extracted data still went out before the failed write
	assert.Equal(t, constants.JobStatusExtracted, evs[1].Status)

	_, total, err := h.repo.ListOrders(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

type stubRunner struct {
	run func(ctx context.Context) pipeline.Outcome
}

func (s stubRunner) Run(ctx context.Context, _ entity.RawDocument) pipeline.Outcome { return s.run(ctx) }

type failingStore struct{}

func (failingStore) CreateOrder(context.Context, *entity.InvoiceRecord) (*entity.InvoiceRecord, error) {
	return nil, errors.New("connection reset")
}

type panickyPublisher struct{}

func (panickyPublisher) Publish(events.Event) { panic("subscriber went away") }

func okOutcome() pipeline.Outcome {
	rec := &entity.InvoiceRecord{CustomerName: "A", InvoiceNumber: "INV-1", OrderDate: "2024-01-01"}
	return pipeline.Outcome{Record: rec, Method: pipeline.MethodRules}
}

func TestJobStoreFailure(t *testing.T) {
	o := NewOrchestrator(stubRunner{run: func(context.Context) pipeline.Outcome { return okOutcome() }}, failingStore{}, nil, nil)

	task, err := o.Submit(context.Background(), entity.RawDocument{})
	require.NoError(t, err)
	res := task.Result()
	assert.Equal(t, constants.JobStatusError, res.Status)
	assert.Contains(t, res.Message, "database error")
	assert.Contains(t, res.Message, "connection reset")
}

func TestJobSurvivesPublisherPanic(t *testing.T) {
	store := &recordingStore{}
	o := NewOrchestrator(stubRunner{run: func(context.Context) pipeline.Outcome { return okOutcome() }}, store, panickyPublisher{}, nil)

	task, err := o.Submit(context.Background(), entity.RawDocument{})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, task.Result().Status)
	assert.Equal(t, 1, store.calls)
}

type recordingStore struct{ calls int }

func (r *recordingStore) CreateOrder(_ context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error) {
	r.calls++
	out := *rec
	out.ID = int64(r.calls)
	return &out, nil
}

func TestJobTimeout(t *testing.T) {
	runner := stubRunner{run: func(ctx context.Context) pipeline.Outcome {
		<-ctx.Done()
		return pipeline.Outcome{Err: ctx.Err()}
	}}
	o := NewOrchestrator(runner, &recordingStore{}, nil, nil, WithJobTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	task, err := o.Submit(ctx, entity.RawDocument{})
	require.NoError(t, err)
	cancel() // caller cancellation does not stop the job; the job timeout does

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job ignored its timeout")
	}
	assert.Equal(t, constants.JobStatusError, task.Result().Status)
	assert.Contains(t, task.Result().Message, "deadline exceeded")
}

func TestJobTimeoutFallsBackToRulesAndCompletes(t *testing.T) {
	native := &textSource{prov: entity.ProvenanceNativeText, text: invoiceText}
	h := newHarness(t, extract.Sources{PDFText: native}, blockingFields{}, WithJobTimeout(100*time.Millisecond))

	evs, result := h.submit(t, entity.RawDocument{Filename: "inv.pdf", Ext: "pdf", Kind: constants.KindPDF})

	assert.Equal(t, []constants.JobStatus{
		constants.JobStatusProcessing, constants.JobStatusExtracted, constants.JobStatusCompleted,
	}, statuses(evs))
	require.Equal(t, constants.JobStatusCompleted, result.Status, result.Message)
	require.NotZero(t, result.OrderID)

	stored, err := h.repo.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "INV-100", stored.InvoiceNumber)
	assert.True(t, dec("1200").Equal(stored.TotalAmount), stored.TotalAmount.String())
}

func TestRunnerPanicBecomesErrorEvent(t *testing.T) {
	o := NewOrchestrator(stubRunner{run: func(context.Context) pipeline.Outcome { panic("boom") }}, &recordingStore{}, nil, nil)

	task, err := o.Submit(context.Background(), entity.RawDocument{})
	require.NoError(t, err)
	res := task.Result()
	assert.Equal(t, constants.JobStatusError, res.Status)
	assert.Contains(t, res.Message, "boom")
}

func TestShutdownWaitsAndRejects(t *testing.T) {
	release := make(chan struct{})
	runner := stubRunner{run: func(context.Context) pipeline.Outcome {
		<-release
		return okOutcome()
	}}
	o := NewOrchestrator(runner, &recordingStore{}, nil, nil)

	task, err := o.Submit(context.Background(), entity.RawDocument{})
	require.NoError(t, err)
	assert.Equal(t, 1, o.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Shutdown(ctx), context.DeadlineExceeded)

	_, err = o.Submit(context.Background(), entity.RawDocument{})
	assert.ErrorIs(t, err, ErrShuttingDown)

	close(release)
	<-task.Done()
	require.NoError(t, o.Shutdown(context.Background()))
	assert.Zero(t, o.InFlight())
}

type gatedPublisher struct{ gate chan struct{} }

func (p gatedPublisher) Publish(events.Event) { <-p.gate }

func TestTaskStatusFollowsPublishedEvents(t *testing.T) {
	pub := gatedPublisher{gate: make(chan struct{})}
	o := NewOrchestrator(stubRunner{run: func(context.Context) pipeline.Outcome { return okOutcome() }}, &recordingStore{}, pub, nil)

	task, err := o.Submit(context.Background(), entity.RawDocument{})
	require.NoError(t, err)

	// the processing event is stuck in the publisher
	assert.Equal(t, constants.JobStatusQueued, task.Status())
	st, ok := o.Status(task.ID)
	require.True(t, ok)
	assert.Equal(t, constants.JobStatusQueued, st)

	close(pub.gate)
	<-task.Done()
	assert.Equal(t, constants.JobStatusCompleted, task.Status())

	require.Eventually(t, func() bool { return o.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	_, ok = o.Status(task.ID)
	assert.False(t, ok)
}
