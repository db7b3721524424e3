package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const saleColumns = `
    s.id, s.status, s.kind, s.table_id, s.customer_id, s.tab_name, s.attendant_id,
    s.subtotal, s.discount, s.total, s.payment_method, s.notes, s.has_kitchen, s.has_counter,
    s.created_at, s.updated_at, s.finalized_at, t.number`

// Writes run as a data-modifying CTE named s so the returned row carries
// the table number like every other sale read.
const saleJoin = ` LEFT JOIN dining_tables t ON t.id = s.table_id`

func scanSale(row interface{ Scan(...any) error }) (Sale, error) {
	var s Sale
	err := row.Scan(
		&s.ID, &s.Status, &s.Kind, &s.TableID, &s.CustomerID, &s.TabName, &s.AttendantID,
		dec(&s.Subtotal), dec(&s.Discount), dec(&s.Total), &s.PaymentMethod, &s.Notes,
		&s.HasKitchen, &s.HasCounter, &s.CreatedAt, &s.UpdatedAt, &s.FinalizedAt, &s.TableNumber,
	)
	return s, err
}

func collectSales(rows pgx.Rows, err error) ([]Sale, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type CreateSaleParams struct {
	Kind        string
	TableID     *int64
	CustomerID  *int64
	TabName     *string
	AttendantID int64
	Notes       *string
}

const createSale = `
WITH s AS (
    INSERT INTO sales (kind, table_id, customer_id, tab_name, attendant_id, notes)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING *
)
SELECT ` + saleColumns + ` FROM s` + saleJoin

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, createSale,
		arg.Kind, arg.TableID, arg.CustomerID, arg.TabName, arg.AttendantID, arg.Notes,
	))
}

const getSale = `SELECT ` + saleColumns + ` FROM sales s` + saleJoin + ` WHERE s.id = $1`

func (q *Queries) GetSale(ctx context.Context, id int64) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSale, id))
}

// Row lock that serializes every mutation of one sale across instances.
const getSaleForUpdate = getSale + ` FOR UPDATE OF s`

func (q *Queries) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, getSaleForUpdate, id))
}

const listOpenSales = `
SELECT ` + saleColumns + ` FROM sales s` + saleJoin + `
WHERE s.status = 'open'
ORDER BY s.created_at, s.id`

func (q *Queries) ListOpenSales(ctx context.Context) ([]Sale, error) {
	return collectSales(q.db.Query(ctx, listOpenSales))
}

type ListSalesParams struct {
	Status      *string
	AttendantID *int64
	CustomerID  *int64
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int32
	Offset      int32
}

// Optional filters are nullable parameters, never string-built predicates.
const listSales = `
SELECT ` + saleColumns + ` FROM sales s` + saleJoin + `
WHERE ($1::text IS NULL OR s.status = $1)
  AND ($2::bigint IS NULL OR s.attendant_id = $2)
  AND ($3::bigint IS NULL OR s.customer_id = $3)
  AND ($4::timestamptz IS NULL OR s.created_at >= $4)
  AND ($5::timestamptz IS NULL OR s.created_at < $5)
ORDER BY s.created_at DESC, s.id DESC
LIMIT $6 OFFSET $7`

func (q *Queries) ListSales(ctx context.Context, arg ListSalesParams) ([]Sale, error) {
	return collectSales(q.db.Query(ctx, listSales,
		arg.Status, arg.AttendantID, arg.CustomerID, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset,
	))
}

type UpdateSaleTotalsParams struct {
	ID       int64
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

const updateSaleTotals = `
WITH s AS (
    UPDATE sales
    SET subtotal = $2, discount = $3, total = $4, updated_at = now()
    WHERE id = $1 AND status = 'open'
    RETURNING *
)
SELECT ` + saleColumns + ` FROM s` + saleJoin

func (q *Queries) UpdateSaleTotals(ctx context.Context, arg UpdateSaleTotalsParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, updateSaleTotals,
		arg.ID, Numeric(arg.Subtotal), Numeric(arg.Discount), Numeric(arg.Total),
	))
}

type FinalizeSaleParams struct {
	ID            int64
	PaymentMethod string
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	FinalizedAt   time.Time
}

// The status predicate makes a second finalize a no-row update even if a
// caller skipped the row lock.
const finalizeSale = `
WITH s AS (
    UPDATE sales
    SET status = 'finalized', payment_method = $2, subtotal = $3, total = $4,
        finalized_at = $5, updated_at = now()
    WHERE id = $1 AND status = 'open'
    RETURNING *
)
SELECT ` + saleColumns + ` FROM s` + saleJoin

func (q *Queries) FinalizeSale(ctx context.Context, arg FinalizeSaleParams) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, finalizeSale,
		arg.ID, arg.PaymentMethod, Numeric(arg.Subtotal), Numeric(arg.Total), arg.FinalizedAt,
	))
}

const cancelSale = `
WITH s AS (
    UPDATE sales
    SET status = 'cancelled', finalized_at = now(), updated_at = now()
    WHERE id = $1 AND status = 'open'
    RETURNING *
)
SELECT ` + saleColumns + ` FROM s` + saleJoin

func (q *Queries) CancelSale(ctx context.Context, id int64) (Sale, error) {
	return scanSale(q.db.QueryRow(ctx, cancelSale, id))
}

type SetSaleRoutingFlagsParams struct {
	ID         int64
	HasKitchen bool
	HasCounter bool
}

// Flags only ever turn on.
const setSaleRoutingFlags = `
UPDATE sales
SET has_kitchen = has_kitchen OR $2, has_counter = has_counter OR $3
WHERE id = $1`

func (q *Queries) SetSaleRoutingFlags(ctx context.Context, arg SetSaleRoutingFlagsParams) error {
	_, err := q.db.Exec(ctx, setSaleRoutingFlags, arg.ID, arg.HasKitchen, arg.HasCounter)
	return err
}

type CreateSaleClosureParams struct {
	SaleID          int64
	ResponsibleName string
	AttendantName   string
	PaymentMethod   string
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	ClosedAt        time.Time
}

const closureColumns = `sale_id, responsible_name, attendant_name, payment_method, subtotal, discount, total, closed_at`

func scanClosure(row interface{ Scan(...any) error }) (SaleClosure, error) {
	var c SaleClosure
	err := row.Scan(
		&c.SaleID, &c.ResponsibleName, &c.AttendantName, &c.PaymentMethod,
		dec(&c.Subtotal), dec(&c.Discount), dec(&c.Total), &c.ClosedAt,
	)
	return c, err
}

const createSaleClosure = `
INSERT INTO sale_closures (` + closureColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + closureColumns

func (q *Queries) CreateSaleClosure(ctx context.Context, arg CreateSaleClosureParams) (SaleClosure, error) {
	return scanClosure(q.db.QueryRow(ctx, createSaleClosure,
		arg.SaleID, arg.ResponsibleName, arg.AttendantName, arg.PaymentMethod,
		Numeric(arg.Subtotal), Numeric(arg.Discount), Numeric(arg.Total), arg.ClosedAt,
	))
}

const getSaleClosure = `SELECT ` + closureColumns + ` FROM sale_closures WHERE sale_id = $1`

func (q *Queries) GetSaleClosure(ctx context.Context, saleID int64) (SaleClosure, error) {
	return scanClosure(q.db.QueryRow(ctx, getSaleClosure, saleID))
}
