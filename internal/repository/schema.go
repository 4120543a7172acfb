package repository

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sales_order_header (
		order_id         BIGSERIAL PRIMARY KEY,
		customer_name    TEXT NOT NULL,
		customer_email   TEXT NOT NULL DEFAULT '',
		order_date       DATE NOT NULL,
		invoice_number   TEXT NOT NULL UNIQUE,
		total_amount     NUMERIC(10,2) NOT NULL DEFAULT 0,
		tax_amount       NUMERIC(10,2) NOT NULL DEFAULT 0,
		shipping_address TEXT NOT NULL DEFAULT '',
		billing_address  TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sales_order_detail (
		detail_id    BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES sales_order_header(order_id) ON DELETE CASCADE,
		product_name TEXT NOT NULL,
		product_code TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		quantity     INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price   NUMERIC(10,2) NOT NULL DEFAULT 0,
		line_total   NUMERIC(10,2) NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_order_detail_order_id ON sales_order_detail(order_id)`,
}

// sqlite keeps amounts and dates as TEXT so decimals round-trip exactly.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sales_order_header (
		order_id         INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_name    TEXT NOT NULL,
		customer_email   TEXT NOT NULL DEFAULT '',
		order_date       TEXT NOT NULL,
		invoice_number   TEXT NOT NULL UNIQUE,
		total_amount     TEXT NOT NULL DEFAULT '0',
		tax_amount       TEXT NOT NULL DEFAULT '0',
		shipping_address TEXT NOT NULL DEFAULT '',
		billing_address  TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'pending',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales_order_detail (
		detail_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     INTEGER NOT NULL REFERENCES sales_order_header(order_id) ON DELETE CASCADE,
		product_name TEXT NOT NULL,
		product_code TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		quantity     INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price   TEXT NOT NULL DEFAULT '0',
		line_total   TEXT NOT NULL DEFAULT '0'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_order_detail_order_id ON sales_order_detail(order_id)`,
}

// EnsureSchema creates the invoice tables for the connected dialect.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := postgresSchema
	if d.Dialect == SQLite {
		stmts = sqliteSchema
	}
	for _, s := range stmts {
		if _, err := d.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	d.logger.Info("database schema ready", "dialect", d.Dialect)
	return nil
}
