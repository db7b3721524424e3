package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const saleItemColumns = `
    si.id, si.sale_id, si.product_id, si.product_name, si.quantity, si.unit_price, si.subtotal,
    si.status, si.origin, si.mergeable, si.notes, si.variation, si.prepared_at, si.prepared_by,
    si.created_at, si.updated_at`

func scanSaleItem(row interface{ Scan(...any) error }, extra ...any) (SaleItem, error) {
	var it SaleItem
	var variation []byte
	dest := []any{
		&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, dec(&it.UnitPrice), dec(&it.Subtotal),
		&it.Status, &it.Origin, &it.Mergeable, &it.Notes, &variation, &it.PreparedAt, &it.PreparedBy,
		&it.CreatedAt, &it.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return it, err
	}
	if len(variation) > 0 {
		var v Variation
		if err := json.Unmarshal(variation, &v); err != nil {
			return it, fmt.Errorf("decode variation of item %d: %w", it.ID, err)
		}
		it.Variation = &v
	}
	return it, nil
}

func collectSaleItems(rows pgx.Rows, err error) ([]SaleItem, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaleItem
	for rows.Next() {
		it, err := scanSaleItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func encodeVariation(v *Variation) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

const listSaleItems = `SELECT ` + saleItemColumns + ` FROM sale_items si WHERE si.sale_id = $1 ORDER BY si.created_at, si.id`

func (q *Queries) ListSaleItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return collectSaleItems(q.db.Query(ctx, listSaleItems, saleID))
}

type GetSaleItemParams struct {
	ID     int64
	SaleID int64
}

const getSaleItem = `SELECT ` + saleItemColumns + ` FROM sale_items si WHERE si.id = $1 AND si.sale_id = $2`

func (q *Queries) GetSaleItem(ctx context.Context, arg GetSaleItemParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, getSaleItem, arg.ID, arg.SaleID))
}

type GetProductLineParams struct {
	SaleID    int64
	ProductID int64
}

// The plain mergeable line for a product. Mergeable lines never carry a
// variation, so at most one exists per product.
const getMergeableItem = `
SELECT ` + saleItemColumns + `
FROM sale_items si
WHERE si.sale_id = $1 AND si.product_id = $2 AND si.mergeable AND si.variation IS NULL
ORDER BY si.id
LIMIT 1
FOR UPDATE`

func (q *Queries) GetMergeableItem(ctx context.Context, arg GetProductLineParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, getMergeableItem, arg.SaleID, arg.ProductID))
}

const getLatestItemForProduct = `
SELECT ` + saleItemColumns + `
FROM sale_items si
WHERE si.sale_id = $1 AND si.product_id = $2
ORDER BY si.created_at DESC, si.id DESC
LIMIT 1`

func (q *Queries) GetLatestItemForProduct(ctx context.Context, arg GetProductLineParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, getLatestItemForProduct, arg.SaleID, arg.ProductID))
}

type CreateSaleItemParams struct {
	SaleID      int64
	ProductID   int64
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	Origin      string
	Mergeable   bool
	Notes       *string
	Variation   *Variation
}

const createSaleItem = `
INSERT INTO sale_items AS si (sale_id, product_id, product_name, quantity, unit_price, subtotal, origin, mergeable, notes, variation)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + saleItemColumns

func (q *Queries) CreateSaleItem(ctx context.Context, arg CreateSaleItemParams) (SaleItem, error) {
	variation, err := encodeVariation(arg.Variation)
	if err != nil {
		return SaleItem{}, fmt.Errorf("encode variation: %w", err)
	}
	return scanSaleItem(q.db.QueryRow(ctx, createSaleItem,
		arg.SaleID, arg.ProductID, arg.ProductName, arg.Quantity, Numeric(arg.UnitPrice),
		Numeric(arg.UnitPrice.Mul(decimal.NewFromInt32(arg.Quantity))),
		arg.Origin, arg.Mergeable, arg.Notes, variation,
	))
}

type MergeSaleItemQuantityParams struct {
	ID    int64
	Delta int32
}

// Atomic increment; the line goes back to pending because the added units
// still need preparing.
const mergeSaleItemQuantity = `
UPDATE sale_items AS si
SET quantity = quantity + $2,
    subtotal = unit_price * (quantity + $2),
    status = 'pending',
    updated_at = now()
WHERE id = $1
RETURNING ` + saleItemColumns

func (q *Queries) MergeSaleItemQuantity(ctx context.Context, arg MergeSaleItemQuantityParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, mergeSaleItemQuantity, arg.ID, arg.Delta))
}

type UpdateSaleItemQuantityParams struct {
	ID          int64
	Quantity    int32
	ResetStatus bool
}

const updateSaleItemQuantity = `
UPDATE sale_items AS si
SET quantity = $2,
    subtotal = unit_price * $2,
    status = CASE WHEN $3::boolean THEN 'pending' ELSE status END,
    updated_at = now()
WHERE id = $1
RETURNING ` + saleItemColumns

func (q *Queries) UpdateSaleItemQuantity(ctx context.Context, arg UpdateSaleItemQuantityParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, updateSaleItemQuantity, arg.ID, arg.Quantity, arg.ResetStatus))
}

type UpdateSaleItemStatusParams struct {
	ID         int64
	Status     string
	PreparedBy *int64
	Now        time.Time
}

// prepared_at/prepared_by are stamped only the first time a line reaches ready.
const updateSaleItemStatus = `
UPDATE sale_items AS si
SET status = $2,
    prepared_at = CASE WHEN $2 = 'ready' AND prepared_at IS NULL THEN $4::timestamptz ELSE prepared_at END,
    prepared_by = CASE WHEN $2 = 'ready' AND prepared_at IS NULL THEN $3::bigint ELSE prepared_by END,
    updated_at = $4
WHERE id = $1
RETURNING ` + saleItemColumns

func (q *Queries) UpdateSaleItemStatus(ctx context.Context, arg UpdateSaleItemStatusParams) (SaleItem, error) {
	return scanSaleItem(q.db.QueryRow(ctx, updateSaleItemStatus, arg.ID, arg.Status, arg.PreparedBy, arg.Now))
}

func (q *Queries) DeleteSaleItem(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM sale_items WHERE id = $1`, id)
	return err
}

type SaleItemTotals struct {
	Count    int64
	Subtotal decimal.Decimal
}

const sumSaleItems = `SELECT count(*), COALESCE(sum(subtotal), 0) FROM sale_items WHERE sale_id = $1`

func (q *Queries) SumSaleItems(ctx context.Context, saleID int64) (SaleItemTotals, error) {
	var t SaleItemTotals
	err := q.db.QueryRow(ctx, sumSaleItems, saleID).Scan(&t.Count, dec(&t.Subtotal))
	return t, err
}

// SectorQueueItem is an undelivered line routed to one sector, with the
// order reference a kitchen display needs.
type SectorQueueItem struct {
	SaleItem
	TableNumber *int32  `json:"table_number"`
	TabName     *string `json:"tab_name"`
}

type ListSectorQueueParams struct {
	SectorID int64
	SaleID   *int64
}

// Lines of products linked to the sector, or of unlinked products when the
// sector is the active default one. Only open sales are listed.
const listSectorQueue = `
SELECT ` + saleItemColumns + `, t.number, s.tab_name
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
LEFT JOIN dining_tables t ON t.id = s.table_id
WHERE s.status = 'open'
  AND si.status <> 'delivered'
  AND ($2::bigint IS NULL OR si.sale_id = $2)
  AND (
    EXISTS (
      SELECT 1 FROM product_sectors ps
      JOIN dispatch_sectors ds ON ds.id = ps.sector_id
      WHERE ps.product_id = si.product_id AND ps.sector_id = $1 AND ds.active
    )
    OR (
      EXISTS (SELECT 1 FROM dispatch_sectors d WHERE d.id = $1 AND d.is_default AND d.active)
      AND NOT EXISTS (
        SELECT 1 FROM product_sectors ps
        JOIN dispatch_sectors ds ON ds.id = ps.sector_id
        WHERE ps.product_id = si.product_id AND ds.active
      )
    )
  )
ORDER BY si.created_at, si.id`

func (q *Queries) ListSectorQueue(ctx context.Context, arg ListSectorQueueParams) ([]SectorQueueItem, error) {
	rows, err := q.db.Query(ctx, listSectorQueue, arg.SectorID, arg.SaleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SectorQueueItem
	for rows.Next() {
		var qi SectorQueueItem
		it, err := scanSaleItem(rows, &qi.TableNumber, &qi.TabName)
		if err != nil {
			return nil, err
		}
		qi.SaleItem = it
		items = append(items, qi)
	}
	return items, rows.Err()
}
