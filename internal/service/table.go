package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// tableStore is the table access shared by sales and direct table closes.
// Satisfied by *database.Queries.
type tableStore interface {
	GetSale(ctx context.Context, id int64) (database.Sale, error)
	GetTable(ctx context.Context, id int64) (database.DiningTable, error)
	GetTableForUpdate(ctx context.Context, id int64) (database.DiningTable, error)
	ReleaseTableForSale(ctx context.Context, arg database.ReleaseTableForSaleParams) (database.DiningTable, error)
}

// TableStore defines the DB methods TableService needs.
type TableStore interface {
	tableStore
	ListTables(ctx context.Context) ([]database.DiningTable, error)
	ReleaseTable(ctx context.Context, id int64) (database.DiningTable, error)
}

// NewTableStore creates a TableStore from a DBTX (pool or tx).
type NewTableStore func(db database.DBTX) TableStore

// releaseTable frees the sale's table, but only while it is still bound to
// this sale.
func releaseTable(ctx context.Context, store tableStore, sale database.Sale) error {
	if sale.TableID == nil {
		return nil
	}
	_, err := store.ReleaseTableForSale(ctx, database.ReleaseTableForSaleParams{ID: *sale.TableID, SaleID: sale.ID})
	if errors.Is(err, pgx.ErrNoRows) {
		log.Warn().Int64("sale_id", sale.ID).Int64("table_id", *sale.TableID).Msg("table no longer bound to sale")
		return nil
	}
	if err != nil {
		return fmt.Errorf("release table: %w", err)
	}
	return nil
}

// TableService handles the floor: table listing and direct closes.
type TableService struct {
	pool     TxBeginner
	newStore NewTableStore
}

func NewTableService(pool TxBeginner, newStore NewTableStore) *TableService {
	return &TableService{pool: pool, newStore: newStore}
}

// Close frees a table. It is refused while the bound sale is still open.
func (s *TableService) Close(ctx context.Context, tableID int64) (database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, tableID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.DiningTable{}, ErrTableNotFound
	}
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("lock table: %w", err)
	}

	if table.CurrentSaleID != nil {
		sale, err := store.GetSale(ctx, *table.CurrentSaleID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return database.DiningTable{}, fmt.Errorf("get bound sale: %w", err)
		}
		if err == nil && sale.Status == enum.SaleStatusOpen {
			return database.DiningTable{}, ErrTableSaleOpen
		}
	}

	released, err := store.ReleaseTable(ctx, tableID)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("release table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.DiningTable{}, fmt.Errorf("commit tx: %w", err)
	}
	log.Info().Int64("table_id", tableID).Msg("table closed")
	return released, nil
}

func (s *TableService) Get(ctx context.Context, tableID int64) (database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	table, err := s.newStore(tx).GetTable(ctx, tableID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.DiningTable{}, ErrTableNotFound
	}
	if err != nil {
		return database.DiningTable{}, fmt.Errorf("get table: %w", err)
	}
	return table, nil
}

func (s *TableService) List(ctx context.Context) ([]database.DiningTable, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tables, err := s.newStore(tx).ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if tables == nil {
		tables = []database.DiningTable{}
	}
	return tables, nil
}
