package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const cashSessionColumns = `id, status, opened_by, opening_balance, total, total_cash, total_card, total_pix, opened_at, closed_at`

func scanCashSession(row interface{ Scan(...any) error }) (CashSession, error) {
	var c CashSession
	err := row.Scan(
		&c.ID, &c.Status, &c.OpenedBy, dec(&c.OpeningBalance), dec(&c.Total),
		dec(&c.TotalCash), dec(&c.TotalCard), dec(&c.TotalPix), &c.OpenedAt, &c.ClosedAt,
	)
	return c, err
}

const getOpenCashSession = `SELECT ` + cashSessionColumns + ` FROM cash_sessions WHERE status = 'open'`

func (q *Queries) GetOpenCashSession(ctx context.Context) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getOpenCashSession))
}

const getOpenCashSessionForUpdate = getOpenCashSession + ` FOR UPDATE`

func (q *Queries) GetOpenCashSessionForUpdate(ctx context.Context) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, getOpenCashSessionForUpdate))
}

// Returns pgx.ErrNoRows when another transaction already holds the open
// session; callers re-read it with GetOpenCashSessionForUpdate.
const createCashSession = `
INSERT INTO cash_sessions (status, opened_by, opening_balance)
VALUES ('open', $1, 0)
ON CONFLICT (status) WHERE status = 'open' DO NOTHING
RETURNING ` + cashSessionColumns

func (q *Queries) CreateCashSession(ctx context.Context, openedBy int64) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, createCashSession, openedBy))
}

type CreateCashEntryParams struct {
	SessionID int64
	SaleID    int64
	Amount    decimal.Decimal
	Method    string
	CreatedAt time.Time
}

const createCashEntry = `
INSERT INTO cash_entries (session_id, sale_id, amount, method, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, session_id, sale_id, amount, method, created_at`

func (q *Queries) CreateCashEntry(ctx context.Context, arg CreateCashEntryParams) (CashEntry, error) {
	var e CashEntry
	err := q.db.QueryRow(ctx, createCashEntry,
		arg.SessionID, arg.SaleID, Numeric(arg.Amount), arg.Method, arg.CreatedAt,
	).Scan(&e.ID, &e.SessionID, &e.SaleID, dec(&e.Amount), &e.Method, &e.CreatedAt)
	return e, err
}

type IncrementCashSessionParams struct {
	ID     int64
	Amount decimal.Decimal
	Method string
}

// Single-statement increment; only the bucket matching the method grows.
const incrementCashSession = `
UPDATE cash_sessions
SET total      = total + $2,
    total_cash = total_cash + CASE WHEN $3 = 'cash' THEN $2 ELSE 0 END,
    total_card = total_card + CASE WHEN $3 = 'card' THEN $2 ELSE 0 END,
    total_pix  = total_pix  + CASE WHEN $3 = 'pix'  THEN $2 ELSE 0 END
WHERE id = $1
RETURNING ` + cashSessionColumns

func (q *Queries) IncrementCashSession(ctx context.Context, arg IncrementCashSessionParams) (CashSession, error) {
	return scanCashSession(q.db.QueryRow(ctx, incrementCashSession, arg.ID, Numeric(arg.Amount), arg.Method))
}
