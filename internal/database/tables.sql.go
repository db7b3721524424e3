package database

import (
	"context"
)

const tableColumns = `id, number, status, current_sale_id, responsible_employee_id, guests, opened_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (DiningTable, error) {
	var t DiningTable
	err := row.Scan(
		&t.ID, &t.Number, &t.Status, &t.CurrentSaleID, &t.ResponsibleEmployeeID,
		&t.Guests, &t.OpenedAt, &t.UpdatedAt,
	)
	return t, err
}

const getTable = `SELECT ` + tableColumns + ` FROM dining_tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id int64) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

const getTableForUpdate = `SELECT ` + tableColumns + ` FROM dining_tables WHERE id = $1 FOR UPDATE`

func (q *Queries) GetTableForUpdate(ctx context.Context, id int64) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdate, id))
}

const listTables = `SELECT ` + tableColumns + ` FROM dining_tables ORDER BY number`

func (q *Queries) ListTables(ctx context.Context) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DiningTable
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

type BindTableParams struct {
	ID                    int64
	SaleID                int64
	ResponsibleEmployeeID *int64
	Guests                int32
}

const bindTable = `
UPDATE dining_tables
SET status = 'occupied',
    current_sale_id = $2,
    responsible_employee_id = $3,
    guests = $4,
    opened_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

func (q *Queries) BindTable(ctx context.Context, arg BindTableParams) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, bindTable, arg.ID, arg.SaleID, arg.ResponsibleEmployeeID, arg.Guests))
}

type ReleaseTableForSaleParams struct {
	ID     int64
	SaleID int64
}

// Returns pgx.ErrNoRows when the table is not bound to the given sale.
const releaseTableForSale = `
UPDATE dining_tables
SET status = 'free',
    current_sale_id = NULL,
    responsible_employee_id = NULL,
    guests = 0,
    opened_at = NULL,
    updated_at = now()
WHERE id = $1 AND current_sale_id = $2
RETURNING ` + tableColumns

func (q *Queries) ReleaseTableForSale(ctx context.Context, arg ReleaseTableForSaleParams) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTableForSale, arg.ID, arg.SaleID))
}

const releaseTable = `
UPDATE dining_tables
SET status = 'free',
    current_sale_id = NULL,
    responsible_employee_id = NULL,
    guests = 0,
    opened_at = NULL,
    updated_at = now()
WHERE id = $1
RETURNING ` + tableColumns

func (q *Queries) ReleaseTable(ctx context.Context, id int64) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, releaseTable, id))
}
