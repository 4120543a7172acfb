// Package invoices manages stored invoices and announces changes on the event bus.
package invoices

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

const maxPerPage = 100

type Publisher interface {
	Publish(ev events.Event)
}

// Service handles invoice business logic.
type Service struct {
	repo       repository.InvoiceRepository
	normalizer *normalize.Normalizer
	pub        Publisher
	logger     *slog.Logger
}

func NewService(repo repository.InvoiceRepository, normalizer *normalize.Normalizer, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = normalize.New(logger)
	}
	return &Service{repo: repo, normalizer: normalizer, pub: pub, logger: logger}
}

// Page is one page of invoices.
type Page struct {
	Invoices []*entity.InvoiceRecord `json:"invoices"`
	Total    int                     `json:"total"`
	Page     int                     `json:"page"`
	PerPage  int                     `json:"per_page"`
}

func (s *Service) ListInvoices(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > maxPerPage {
		return nil, status.Errorf(codes.InvalidArgument, "per_page must be at most %d", maxPerPage)
	}

	recs, total, err := s.repo.ListOrders(ctx, page, perPage)
	if err != nil {
		s.logger.Error("failed to list invoices", "page", page, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("invoices listed", "page", page, "count", len(recs), "total", total)
	return &Page{Invoices: recs, Total: total, Page: page, PerPage: perPage}, nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (*entity.InvoiceRecord, error) {
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id must be positive")
	}
	rec, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return rec, nil
}

// UpdateRequest carries header changes; empty pointers are ignored.
type UpdateRequest struct {
	CustomerName    *string `validate:"omitempty,min=1,max=255"`
	CustomerEmail   *string `validate:"omitempty,email"`
	OrderDate       *string `validate:"omitempty,datetime=2006-01-02"`
	Status          *string
	TaxAmount       *string `validate:"omitempty,numeric"`
	TotalAmount     *string `validate:"omitempty,numeric"`
	ShippingAddress *string
	BillingAddress  *string
}

func (s *Service) UpdateInvoice(ctx context.Context, id int64, req UpdateRequest) (*entity.InvoiceRecord, error) {
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id must be positive")
	}
	req.CustomerName = trimmed(req.CustomerName)
	req.CustomerEmail = trimmed(req.CustomerEmail)
	if req.CustomerName != nil && *req.CustomerName == "" {
		name := normalize.DefaultCustomerName
		req.CustomerName = &name
	}
	if err := common.ValidateStruct(req); err != nil {
		s.logger.Error("invalid invoice update", "order_id", id, "error", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	upd := repository.OrderUpdate{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		OrderDate:       req.OrderDate,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	if req.Status != nil {
		st, ok := constants.CanonicalizeOrderStatus(*req.Status)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown status %q (want one of %s)",
				*req.Status, strings.Join(constants.OrderStatusStrings(), ", "))
		}
		upd.Status = &st
	}
	var err error
	if upd.TaxAmount, err = amount("tax_amount", req.TaxAmount); err != nil {
		return nil, err
	}
	if upd.TotalAmount, err = amount("total_amount", req.TotalAmount); err != nil {
		return nil, err
	}

	rec, err := s.repo.UpdateOrder(ctx, id, upd)
	if err != nil {
		s.logger.Error("failed to update invoice", "order_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	s.publishUpdated(rec)
	s.logger.Info("invoice updated", "order_id", id)
	return rec, nil
}

// ReplaceLineItems cleans the items with the normalizer, so missing line
// totals are derived, and stores them. The header total becomes sum + tax.
func (s *Service) ReplaceLineItems(ctx context.Context, id int64, items []map[string]any) (*entity.InvoiceRecord, error) {
	if id <= 0 {
		return nil, status.Error(codes.InvalidArgument, "order_id must be positive")
	}
	clean := s.normalizer.Clean(map[string]any{"line_items": items}).LineItems

	total, err := s.repo.ReplaceLineItems(ctx, id, clean)
	if err != nil {
		s.logger.Error("failed to replace line items", "order_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	rec, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	s.publishUpdated(rec)
	s.logger.Info("line items replaced", "order_id", id, "items", len(clean), "total", total.StringFixed(2))
	return rec, nil
}

func (s *Service) DeleteLineItem(ctx context.Context, id, itemID int64) (decimal.Decimal, error) {
	if id <= 0 || itemID <= 0 {
		return decimal.Zero, status.Error(codes.InvalidArgument, "order_id and detail_id must be positive")
	}
	total, err := s.repo.DeleteLineItem(ctx, id, itemID)
	if err != nil {
		return decimal.Zero, common.ToStatus(err)
	}
	if rec, err := s.repo.GetOrder(ctx, id); err == nil {
		s.publishUpdated(rec)
	}
	return total, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	if id <= 0 {
		return status.Error(codes.InvalidArgument, "order_id must be positive")
	}
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		s.logger.Error("failed to delete invoice", "order_id", id, "error", err)
		return common.ToStatus(err)
	}
	s.publish(events.Event{Type: events.TypeInvoiceDeleted, OrderID: id, Message: "invoice deleted"})
	s.logger.Info("invoice deleted", "order_id", id)
	return nil
}

func (s *Service) publishUpdated(rec *entity.InvoiceRecord) {
	s.publish(events.Event{Type: events.TypeInvoiceUpdated, OrderID: rec.ID, Data: rec, Message: "invoice updated"})
}

func (s *Service) publish(ev events.Event) {
	if s.pub == nil {
		return
	}
	ev.At = time.Now().UTC()
	s.pub.Publish(ev)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func amount(field string, p *string) (*decimal.Decimal, error) {
	if p == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*p))
	if err != nil || d.IsNegative() {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a non-negative amount", field)
	}
	d = d.Round(2)
	return &d, nil
}
