package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/jackc/pgx/v5"
)

// ledgerStore is what posting a finalized sale to the register needs.
// Satisfied by *database.Queries.
type ledgerStore interface {
	GetEmployee(ctx context.Context, id int64) (database.Employee, error)
	GetFirstActiveEmployee(ctx context.Context) (database.Employee, error)
	EnsureSystemEmployee(ctx context.Context, name string) (database.Employee, error)
	GetOpenCashSessionForUpdate(ctx context.Context) (database.CashSession, error)
	CreateCashSession(ctx context.Context, openedBy int64) (database.CashSession, error)
	CreateCashEntry(ctx context.Context, arg database.CreateCashEntryParams) (database.CashEntry, error)
	IncrementCashSession(ctx context.Context, arg database.IncrementCashSessionParams) (database.CashSession, error)
}

// reconcileLedger posts a finalized sale to the open register session,
// opening one when none exists. It runs inside the finalize transaction, so
// any error leaves the sale open.
func reconcileLedger(ctx context.Context, store ledgerStore, sale database.Sale, at time.Time) (database.CashEntry, error) {
	if sale.PaymentMethod == nil {
		return database.CashEntry{}, errors.New("reconcile ledger: sale has no payment method")
	}
	method := *sale.PaymentMethod

	session, err := openSession(ctx, store, sale.AttendantID)
	if err != nil {
		return database.CashEntry{}, err
	}

	entry, err := store.CreateCashEntry(ctx, database.CreateCashEntryParams{
		SessionID: session.ID,
		SaleID:    sale.ID,
		Amount:    sale.Total,
		Method:    method,
		CreatedAt: at,
	})
	if err != nil {
		if database.IsUniqueViolation(err, "cash_entries_sale_id_key") {
			return database.CashEntry{}, ErrSaleFinalized
		}
		return database.CashEntry{}, fmt.Errorf("create cash entry: %w", err)
	}

	_, err = store.IncrementCashSession(ctx, database.IncrementCashSessionParams{
		ID:     session.ID,
		Amount: sale.Total,
		Method: method,
	})
	if err != nil {
		return database.CashEntry{}, fmt.Errorf("increment cash session: %w", err)
	}
	return entry, nil
}

// openSession locks the open register session or creates it. Concurrent
// creators race on the partial unique index; the loser re-reads the winner.
func openSession(ctx context.Context, store ledgerStore, attendantID int64) (database.CashSession, error) {
	session, err := store.GetOpenCashSessionForUpdate(ctx)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.CashSession{}, fmt.Errorf("get open cash session: %w", err)
	}

	opener, err := sessionOpener(ctx, store, attendantID)
	if err != nil {
		return database.CashSession{}, err
	}

	session, err = store.CreateCashSession(ctx, opener)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.CashSession{}, fmt.Errorf("create cash session: %w", err)
	}

	session, err = store.GetOpenCashSessionForUpdate(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.CashSession{}, ErrNoOpenCashSession
	}
	if err != nil {
		return database.CashSession{}, fmt.Errorf("re-read open cash session: %w", err)
	}
	return session, nil
}

// sessionOpener is the sale attendant, else any active employee, else the
// administrator account.
func sessionOpener(ctx context.Context, store ledgerStore, attendantID int64) (int64, error) {
	emp, err := store.GetEmployee(ctx, attendantID)
	if err == nil && emp.Active {
		return emp.ID, nil
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("get attendant: %w", err)
	}

	emp, err = store.GetFirstActiveEmployee(ctx)
	if err == nil {
		return emp.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("get active employee: %w", err)
	}

	emp, err = store.EnsureSystemEmployee(ctx, enum.AdministratorName)
	if err != nil {
		return 0, fmt.Errorf("ensure system employee: %w", err)
	}
	return emp.ID, nil
}

// CashStore is the read side of the register. Satisfied by *database.Queries.
type CashStore interface {
	GetOpenCashSession(ctx context.Context) (database.CashSession, error)
}

// CashService exposes the current register session.
type CashService struct {
	store CashStore
}

func NewCashService(store CashStore) *CashService {
	return &CashService{store: store}
}

// Current returns the open register session.
func (s *CashService) Current(ctx context.Context) (database.CashSession, error) {
	session, err := s.store.GetOpenCashSession(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.CashSession{}, ErrNoOpenCashSession
	}
	if err != nil {
		return database.CashSession{}, fmt.Errorf("get open cash session: %w", err)
	}
	return session, nil
}
