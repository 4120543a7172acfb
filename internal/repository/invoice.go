package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/entity"
)

// OrderUpdate is a partial header update; nil fields are left unchanged.
type OrderUpdate struct {
	CustomerName    *string
	CustomerEmail   *string
	OrderDate       *string
	Status          *constants.OrderStatus
	TaxAmount       *decimal.Decimal
	TotalAmount     *decimal.Decimal
	ShippingAddress *string
	BillingAddress  *string
}

type InvoiceRepository interface {
	CreateOrder(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error)
	GetOrder(ctx context.Context, id int64) (*entity.InvoiceRecord, error)
	ListOrders(ctx context.Context, page, perPage int) ([]*entity.InvoiceRecord, int, error)
	UpdateOrder(ctx context.Context, id int64, upd OrderUpdate) (*entity.InvoiceRecord, error)
	ReplaceLineItems(ctx context.Context, id int64, items []entity.LineItem) (decimal.Decimal, error)
	DeleteLineItem(ctx context.Context, id, itemID int64) (decimal.Decimal, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type invoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepository{db: db, logger: logger}
}

const headerColumns = `order_id, customer_name, customer_email, order_date, invoice_number,
	total_amount, tax_amount, shipping_address, billing_address, status, created_at, updated_at`

const detailColumns = `detail_id, product_name, product_code, description, quantity, unit_price, line_total`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *invoiceRepository) now() any {
	t := time.Now().UTC()
	if r.db.Dialect == SQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

// CreateOrder writes the header and its line items in one transaction and
// returns the stored record.
func (r *invoiceRepository) CreateOrder(ctx context.Context, rec *entity.InvoiceRecord) (*entity.InvoiceRecord, error) {
	if rec == nil {
		return nil, common.Persistence("create order", errors.New("nil record"))
	}
	var id int64
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		now := r.now()
		err := tx.QueryRowContext(ctx, `INSERT INTO sales_order_header
			(customer_name, customer_email, order_date, invoice_number, total_amount, tax_amount,
			 shipping_address, billing_address, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING order_id`,
			rec.CustomerName, rec.CustomerEmail, rec.OrderDate, rec.InvoiceNumber,
			rec.TotalAmount.StringFixed(2), rec.TaxAmount.StringFixed(2),
			rec.ShippingAddress, rec.BillingAddress, string(rec.Status), now, now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert header: %w", err)
		}
		return insertDetails(ctx, tx, id, rec.LineItems)
	})
	if err != nil {
		r.logger.Error("failed to create order", "invoice_number", rec.InvoiceNumber, "error", err)
		return nil, common.Persistence("create order", err)
	}
	r.logger.Info("order created", "order_id", id, "invoice_number", rec.InvoiceNumber, "items", len(rec.LineItems))
	return r.GetOrder(ctx, id)
}

func insertDetails(ctx context.Context, q queryer, orderID int64, items []entity.LineItem) error {
	for i, li := range items {
		_, err := q.ExecContext(ctx, `INSERT INTO sales_order_detail
			(order_id, product_name, product_code, description, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			orderID, li.ProductName, li.ProductCode, li.Description, li.Quantity,
			li.UnitPrice.StringFixed(2), li.LineTotal.StringFixed(2),
		)
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", i, err)
		}
	}
	return nil
}

func (r *invoiceRepository) GetOrder(ctx context.Context, id int64) (*entity.InvoiceRecord, error) {
	rec, err := getHeader(ctx, r.db, id)
	if err != nil {
		return nil, r.wrap("get order", id, err)
	}
	if rec.LineItems, err = listDetails(ctx, r.db, id); err != nil {
		return nil, r.wrap("get order", id, err)
	}
	return rec, nil
}

// ListOrders returns one page, newest first, and the total number of orders.
func (r *invoiceRepository) ListOrders(ctx context.Context, page, perPage int) ([]*entity.InvoiceRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales_order_header`).Scan(&total); err != nil {
		return nil, 0, common.Persistence("count orders", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+headerColumns+` FROM sales_order_header
		ORDER BY order_id DESC LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, common.Persistence("list orders", err)
	}
	var out []*entity.InvoiceRecord
	for rows.Next() {
		rec, err := scanHeader(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, common.Persistence("list orders", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, common.Persistence("list orders", err)
	}
	_ = rows.Close()

	// details are loaded after the header cursor is closed; sqlite runs on one connection
	for _, rec := range out {
		if rec.LineItems, err = listDetails(ctx, r.db, rec.ID); err != nil {
			return nil, 0, common.Persistence("list orders", err)
		}
	}
	return out, total, nil
}

func (r *invoiceRepository) UpdateOrder(ctx context.Context, id int64, upd OrderUpdate) (*entity.InvoiceRecord, error) {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := getHeader(ctx, tx, id)
		if err != nil {
			return err
		}
		if upd.CustomerName != nil {
			rec.CustomerName = *upd.CustomerName
		}
		if upd.CustomerEmail != nil {
			rec.CustomerEmail = *upd.CustomerEmail
		}
		if upd.OrderDate != nil {
			rec.OrderDate = *upd.OrderDate
		}
		if upd.Status != nil {
			rec.Status = *upd.Status
		}
		if upd.ShippingAddress != nil {
			rec.ShippingAddress = *upd.ShippingAddress
		}
		if upd.BillingAddress != nil {
			rec.BillingAddress = *upd.BillingAddress
		}
		switch {
		case upd.TotalAmount != nil:
			rec.TotalAmount = *upd.TotalAmount
			if upd.TaxAmount != nil {
				rec.TaxAmount = *upd.TaxAmount
			}
		case upd.TaxAmount != nil:
			rec.TaxAmount = *upd.TaxAmount
			items, err := listDetails(ctx, tx, id)
			if err != nil {
				return err
			}
			if len(items) > 0 {
				rec.LineItems = items
				rec.TotalAmount = rec.Subtotal().Add(rec.TaxAmount)
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE sales_order_header SET
			customer_name = $1, customer_email = $2, order_date = $3, status = $4,
			tax_amount = $5, total_amount = $6, shipping_address = $7, billing_address = $8,
			updated_at = $9
			WHERE order_id = $10`,
			rec.CustomerName, rec.CustomerEmail, rec.OrderDate, string(rec.Status),
			rec.TaxAmount.StringFixed(2), rec.TotalAmount.StringFixed(2),
			rec.ShippingAddress, rec.BillingAddress, r.now(), id,
		)
		return err
	})
	if err != nil {
		return nil, r.wrap("update order", id, err)
	}
	return r.GetOrder(ctx, id)
}

// ReplaceLineItems swaps all line items and stores total = sum(line totals) + tax.
func (r *invoiceRepository) ReplaceLineItems(ctx context.Context, id int64, items []entity.LineItem) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := getHeader(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sales_order_detail WHERE order_id = $1`, id); err != nil {
			return err
		}
		if err := insertDetails(ctx, tx, id, items); err != nil {
			return err
		}
		rec.LineItems = items
		total = rec.Subtotal().Add(rec.TaxAmount)
		return r.setTotal(ctx, tx, id, total)
	})
	if err != nil {
		return decimal.Zero, r.wrap("replace line items", id, err)
	}
	return total, nil
}

// DeleteLineItem removes one item and stores total = sum(remaining) + tax.
func (r *invoiceRepository) DeleteLineItem(ctx context.Context, id, itemID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := getHeader(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sales_order_detail WHERE order_id = $1 AND detail_id = $2`, id, itemID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrNotFound
		}
		if rec.LineItems, err = listDetails(ctx, tx, id); err != nil {
			return err
		}
		total = rec.Subtotal().Add(rec.TaxAmount)
		return r.setTotal(ctx, tx, id, total)
	})
	if err != nil {
		return decimal.Zero, r.wrap("delete line item", id, err)
	}
	return total, nil
}

// DeleteOrder removes the line items, then the header.
func (r *invoiceRepository) DeleteOrder(ctx context.Context, id int64) error {
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sales_order_detail WHERE order_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sales_order_header WHERE order_id = $1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return r.wrap("delete order", id, err)
	}
	r.logger.Info("order deleted", "order_id", id)
	return nil
}

func (r *invoiceRepository) setTotal(ctx context.Context, q queryer, id int64, total decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `UPDATE sales_order_header SET total_amount = $1, updated_at = $2 WHERE order_id = $3`,
		total.StringFixed(2), r.now(), id)
	return err
}

// wrap keeps not-found distinguishable and marks everything else as a persistence failure.
func (r *invoiceRepository) wrap(op string, id int64, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return common.NewAppError(common.CodeNotFound, fmt.Sprintf("%s: order %d", op, id), common.ErrNotFound)
	}
	r.logger.Error("order store failure", "op", op, "order_id", id, "error", err)
	return common.Persistence(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHeader(s rowScanner) (*entity.InvoiceRecord, error) {
	var (
		rec       entity.InvoiceRecord
		date      dateValue
		status    string
		createdAt timeValue
		updatedAt timeValue
	)
	err := s.Scan(&rec.ID, &rec.CustomerName, &rec.CustomerEmail, &date, &rec.InvoiceNumber,
		&rec.TotalAmount, &rec.TaxAmount, &rec.ShippingAddress, &rec.BillingAddress, &status,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.OrderDate = string(date)
	rec.Status, _ = constants.CanonicalizeOrderStatus(status)
	rec.CreatedAt = createdAt.t
	rec.UpdatedAt = updatedAt.t
	rec.LineItems = []entity.LineItem{}
	return &rec, nil
}

func getHeader(ctx context.Context, q queryer, id int64) (*entity.InvoiceRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+headerColumns+` FROM sales_order_header WHERE order_id = $1`, id)
	rec, err := scanHeader(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return rec, err
}

func listDetails(ctx context.Context, q queryer, orderID int64) ([]entity.LineItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+detailColumns+` FROM sales_order_detail
		WHERE order_id = $1 ORDER BY detail_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []entity.LineItem{}
	for rows.Next() {
		var li entity.LineItem
		if err := rows.Scan(&li.ID, &li.ProductName, &li.ProductCode, &li.Description,
			&li.Quantity, &li.UnitPrice, &li.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}
