// Package service holds the order lifecycle: the sale state machine, the
// register ledger posting done at finalize, and table binding.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/dispatch"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Change actions published for every committed mutation.
const (
	ActionOpened          = "opened"
	ActionItemAdded       = "item_added"
	ActionItemRemoved     = "item_removed"
	ActionQuantityChanged = "item_quantity_changed"
	ActionStatusChanged   = "item_status_changed"
	ActionDiscountApplied = "discount_applied"
	ActionFinalized       = "finalized"
	ActionCancelled       = "cancelled"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SaleStore defines the DB methods the sale service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type SaleStore interface {
	ledgerStore
	tableStore

	GetCustomer(ctx context.Context, id int64) (database.Customer, error)
	GetProduct(ctx context.Context, id int64) (database.Product, error)
	ListProductsByIDs(ctx context.Context, ids []int64) ([]database.Product, error)
	GetVariationType(ctx context.Context, id int64) (database.VariationType, error)
	GetSector(ctx context.Context, id int64) (database.DispatchSector, error)

	BindTable(ctx context.Context, arg database.BindTableParams) (database.DiningTable, error)

	CreateSale(ctx context.Context, arg database.CreateSaleParams) (database.Sale, error)
	GetSaleForUpdate(ctx context.Context, id int64) (database.Sale, error)
	ListOpenSales(ctx context.Context) ([]database.Sale, error)
	ListSales(ctx context.Context, arg database.ListSalesParams) ([]database.Sale, error)
	UpdateSaleTotals(ctx context.Context, arg database.UpdateSaleTotalsParams) (database.Sale, error)
	FinalizeSale(ctx context.Context, arg database.FinalizeSaleParams) (database.Sale, error)
	CancelSale(ctx context.Context, id int64) (database.Sale, error)
	CreateSaleClosure(ctx context.Context, arg database.CreateSaleClosureParams) (database.SaleClosure, error)
	GetSaleClosure(ctx context.Context, saleID int64) (database.SaleClosure, error)

	ListSaleItems(ctx context.Context, saleID int64) ([]database.SaleItem, error)
	GetSaleItem(ctx context.Context, arg database.GetSaleItemParams) (database.SaleItem, error)
	GetMergeableItem(ctx context.Context, arg database.GetProductLineParams) (database.SaleItem, error)
	GetLatestItemForProduct(ctx context.Context, arg database.GetProductLineParams) (database.SaleItem, error)
	CreateSaleItem(ctx context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error)
	MergeSaleItemQuantity(ctx context.Context, arg database.MergeSaleItemQuantityParams) (database.SaleItem, error)
	UpdateSaleItemQuantity(ctx context.Context, arg database.UpdateSaleItemQuantityParams) (database.SaleItem, error)
	UpdateSaleItemStatus(ctx context.Context, arg database.UpdateSaleItemStatusParams) (database.SaleItem, error)
	DeleteSaleItem(ctx context.Context, id int64) error
	SumSaleItems(ctx context.Context, saleID int64) (database.SaleItemTotals, error)
	ListSectorQueue(ctx context.Context, arg database.ListSectorQueueParams) ([]database.SectorQueueItem, error)
}

// NewSaleStore creates a SaleStore from a DBTX (pool or tx).
type NewSaleStore func(db database.DBTX) SaleStore

// Dispatcher routes newly added units to the preparation sectors.
// Satisfied by *dispatch.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, t dispatch.Ticket) []string
}

// Notifier fans out committed changes. Satisfied by *notify.Notifier.
type Notifier interface {
	SaleChanged(ctx context.Context, saleID int64, action string, payload any)
}

// Principal is the authenticated caller acting on a sale.
type Principal struct {
	EmployeeID int64
	System     bool
}

// OpenSaleRequest is the input for opening a sale.
type OpenSaleRequest struct {
	Principal             Principal
	Kind                  string
	TableID               *int64
	CustomerID            *int64
	TabName               *string
	Notes                 *string
	ResponsibleEmployeeID *int64
	Guests                int32
}

// VariationRequest picks option products of a variation type.
type VariationRequest struct {
	TypeID  int64
	Options []OptionRequest
}

type OptionRequest struct {
	ProductID int64
	Weight    *decimal.Decimal
}

type AddItemRequest struct {
	SaleID    int64
	ProductID int64
	Quantity  int32
	Policy    LinePolicy
	Notes     *string
	Variation *VariationRequest
}

// RemoveItemRequest targets either an explicit line or, when ItemID is nil,
// the line of ProductID chosen by Policy.
type RemoveItemRequest struct {
	SaleID    int64
	ItemID    *int64
	ProductID int64
	Policy    LinePolicy
}

type UpdateQuantityRequest struct {
	SaleID   int64
	ItemID   int64
	Quantity int32
}

type UpdateItemStatusRequest struct {
	SaleID     int64
	ItemID     int64
	Status     string
	PreparedBy *int64
}

type FinalizeRequest struct {
	SaleID        int64
	PaymentMethod string
}

// SaleFilter narrows List. Zero values mean "no filter".
type SaleFilter struct {
	Status      string
	AttendantID *int64
	CustomerID  *int64
	From        *time.Time
	To          *time.Time
	Limit       int32
	Offset      int32
}

// SaleView is a sale with its lines, its closure snapshot once finalized and
// any non-fatal warnings raised by the mutation that produced it.
type SaleView struct {
	database.Sale
	Items    []database.SaleItem   `json:"items"`
	Closure  *database.SaleClosure `json:"closure,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// SaleService handles the sale state machine.
type SaleService struct {
	pool       TxBeginner
	newStore   NewSaleStore
	dispatcher Dispatcher
	notifier   Notifier
	locks      *keyedMutex
	now        func() time.Time
}

// NewSaleService creates a new SaleService. dispatcher and notifier may be nil.
func NewSaleService(pool TxBeginner, newStore NewSaleStore, dispatcher Dispatcher, notifier Notifier) *SaleService {
	return &SaleService{
		pool:       pool,
		newStore:   newStore,
		dispatcher: dispatcher,
		notifier:   notifier,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// Open creates a sale for a table or a tab. Table sales bind the table.
func (s *SaleService) Open(ctx context.Context, req OpenSaleRequest) (*SaleView, error) {
	if req.Kind != enum.SaleKindTable && req.Kind != enum.SaleKindTab {
		return nil, ErrInvalidKind
	}
	if req.Kind == enum.SaleKindTable && req.TableID == nil {
		return nil, ErrTableRequired
	}
	if req.Kind == enum.SaleKindTab && req.TableID != nil {
		return nil, ErrTabWithTable
	}
	if req.Guests < 0 {
		return nil, ErrInvalidGuests
	}
	if !req.Principal.System && req.Principal.EmployeeID <= 0 {
		return nil, ErrAttendantRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	attendant, err := resolveAttendant(ctx, store, req.Principal)
	if err != nil {
		return nil, err
	}

	if req.CustomerID != nil {
		if _, err := store.GetCustomer(ctx, *req.CustomerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrCustomerNotFound
			}
			return nil, fmt.Errorf("get customer: %w", err)
		}
	}

	responsible := attendant.ID
	if req.ResponsibleEmployeeID != nil {
		emp, err := store.GetEmployee(ctx, *req.ResponsibleEmployeeID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get responsible employee: %w", err)
		}
		responsible = emp.ID
	}

	if req.TableID != nil {
		table, err := store.GetTableForUpdate(ctx, *req.TableID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("lock table: %w", err)
		}
		if table.Status == enum.TableStatusOccupied || table.CurrentSaleID != nil {
			return nil, ErrTableOccupied
		}
		if table.Status != enum.TableStatusFree && table.Status != enum.TableStatusReserved {
			return nil, ErrTableUnavailable
		}
	}

	sale, err := store.CreateSale(ctx, database.CreateSaleParams{
		Kind:        req.Kind,
		TableID:     req.TableID,
		CustomerID:  req.CustomerID,
		TabName:     trimmed(req.TabName),
		AttendantID: attendant.ID,
		Notes:       trimmed(req.Notes),
	})
	if err != nil {
		if database.IsUniqueViolation(err, "sales_open_table_key") {
			return nil, ErrTableOccupied
		}
		return nil, fmt.Errorf("create sale: %w", err)
	}

	if req.TableID != nil {
		_, err := store.BindTable(ctx, database.BindTableParams{
			ID:                    *req.TableID,
			SaleID:                sale.ID,
			ResponsibleEmployeeID: &responsible,
			Guests:                req.Guests,
		})
		if err != nil {
			return nil, fmt.Errorf("bind table: %w", err)
		}
	}

	view, err := loadView(ctx, store, sale.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	log.Info().Int64("sale_id", sale.ID).Str("kind", sale.Kind).Int64("attendant_id", attendant.ID).Msg("sale opened")
	unlock := s.locks.Lock(sale.ID)
	s.notify(context.WithoutCancel(ctx), view, ActionOpened)
	unlock()
	return view, nil
}

// AddItem appends a product to an open sale, merging into the existing plain
// line when the policy allows it.
func (s *SaleService) AddItem(ctx context.Context, req AddItemRequest) (*SaleView, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, req.SaleID, ActionItemAdded, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		product, err := store.GetProduct(ctx, req.ProductID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if !product.Active {
			return nil, ErrProductInactive
		}

		unitPrice := product.SalePrice
		var variation *database.Variation
		if req.Variation != nil {
			unitPrice, variation, err = resolveVariation(ctx, store, product, *req.Variation)
			if err != nil {
				return nil, err
			}
		}

		var item database.SaleItem
		merged := false
		if req.Policy == PolicyMergeable && variation == nil {
			line, err := store.GetMergeableItem(ctx, database.GetProductLineParams{SaleID: sale.ID, ProductID: product.ID})
			switch {
			case err == nil:
				item, err = store.MergeSaleItemQuantity(ctx, database.MergeSaleItemQuantityParams{ID: line.ID, Delta: req.Quantity})
				if err != nil {
					return nil, fmt.Errorf("merge sale item: %w", err)
				}
				merged = true
			case !errors.Is(err, pgx.ErrNoRows):
				return nil, fmt.Errorf("get mergeable item: %w", err)
			}
		}
		if !merged {
			item, err = store.CreateSaleItem(ctx, database.CreateSaleItemParams{
				SaleID:      sale.ID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    req.Quantity,
				UnitPrice:   unitPrice,
				Origin:      req.Policy.Origin(),
				Mergeable:   req.Policy == PolicyMergeable && variation == nil,
				Notes:       trimmed(req.Notes),
				Variation:   variation,
			})
			if err != nil {
				return nil, fmt.Errorf("create sale item: %w", err)
			}
		}

		if _, err := recalcTotals(ctx, store, sale.ID, sale.Discount); err != nil {
			return nil, err
		}

		note := trimmed(req.Notes)
		if note == nil {
			note = item.Notes
		}
		return []dispatch.Ticket{ticketFor(sale, item, req.Quantity, note)}, nil
	})
}

// RemoveItem deletes one line from an open sale.
func (s *SaleService) RemoveItem(ctx context.Context, req RemoveItemRequest) (*SaleView, error) {
	return s.mutate(ctx, req.SaleID, ActionItemRemoved, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		item, err := findLine(ctx, store, sale.ID, req)
		if err != nil {
			return nil, err
		}
		if err := store.DeleteSaleItem(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("delete sale item: %w", err)
		}
		if _, err := recalcTotals(ctx, store, sale.ID, sale.Discount); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

func findLine(ctx context.Context, store SaleStore, saleID int64, req RemoveItemRequest) (database.SaleItem, error) {
	var item database.SaleItem
	var err error
	switch {
	case req.ItemID != nil:
		item, err = store.GetSaleItem(ctx, database.GetSaleItemParams{ID: *req.ItemID, SaleID: saleID})
	case req.Policy == PolicyMergeable:
		item, err = store.GetMergeableItem(ctx, database.GetProductLineParams{SaleID: saleID, ProductID: req.ProductID})
		if errors.Is(err, pgx.ErrNoRows) {
			item, err = store.GetLatestItemForProduct(ctx, database.GetProductLineParams{SaleID: saleID, ProductID: req.ProductID})
		}
	default:
		item, err = store.GetLatestItemForProduct(ctx, database.GetProductLineParams{SaleID: saleID, ProductID: req.ProductID})
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return database.SaleItem{}, ErrItemNotFound
	}
	if err != nil {
		return database.SaleItem{}, fmt.Errorf("find sale item: %w", err)
	}
	return item, nil
}

// UpdateItemQuantity sets a line's quantity. Increases reset the line to
// pending and dispatch only the added units.
func (s *SaleService) UpdateItemQuantity(ctx context.Context, req UpdateQuantityRequest) (*SaleView, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, req.SaleID, ActionQuantityChanged, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		item, err := store.GetSaleItem(ctx, database.GetSaleItemParams{ID: req.ItemID, SaleID: sale.ID})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get sale item: %w", err)
		}

		delta := req.Quantity - item.Quantity
		updated, err := store.UpdateSaleItemQuantity(ctx, database.UpdateSaleItemQuantityParams{
			ID:          item.ID,
			Quantity:    req.Quantity,
			ResetStatus: delta > 0,
		})
		if err != nil {
			return nil, fmt.Errorf("update sale item quantity: %w", err)
		}
		if _, err := recalcTotals(ctx, store, sale.ID, sale.Discount); err != nil {
			return nil, err
		}

		if delta <= 0 {
			return nil, nil
		}
		return []dispatch.Ticket{ticketFor(sale, updated, delta, updated.Notes)}, nil
	})
}

// UpdateItemStatus moves a line through pending, ready and delivered.
func (s *SaleService) UpdateItemStatus(ctx context.Context, req UpdateItemStatusRequest) (*SaleView, error) {
	if !isValidItemStatus(req.Status) {
		return nil, ErrInvalidItemStatus
	}
	return s.mutate(ctx, req.SaleID, ActionStatusChanged, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		item, err := store.GetSaleItem(ctx, database.GetSaleItemParams{ID: req.ItemID, SaleID: sale.ID})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get sale item: %w", err)
		}
		if item.Status == req.Status {
			return nil, nil
		}
		if !canTransition(item.Status, req.Status) {
			return nil, ErrInvalidTransition
		}
		_, err = store.UpdateSaleItemStatus(ctx, database.UpdateSaleItemStatusParams{
			ID:         item.ID,
			Status:     req.Status,
			PreparedBy: req.PreparedBy,
			Now:        s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("update sale item status: %w", err)
		}
		return nil, nil
	})
}

func isValidItemStatus(status string) bool {
	switch status {
	case enum.ItemStatusPending, enum.ItemStatusReady, enum.ItemStatusDelivered:
		return true
	}
	return false
}

// canTransition: any line may go back to pending, only pending lines become
// ready, and pending or ready lines can be delivered.
func canTransition(from, to string) bool {
	switch to {
	case enum.ItemStatusPending:
		return true
	case enum.ItemStatusReady:
		return from == enum.ItemStatusPending
	case enum.ItemStatusDelivered:
		return from == enum.ItemStatusPending || from == enum.ItemStatusReady
	}
	return false
}

// ApplyDiscount replaces the sale discount. The total never goes below zero.
func (s *SaleService) ApplyDiscount(ctx context.Context, saleID int64, discount decimal.Decimal) (*SaleView, error) {
	if discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}
	return s.mutate(ctx, saleID, ActionDiscountApplied, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		_, err := recalcTotals(ctx, store, sale.ID, discount.Round(2))
		return nil, err
	})
}

// Finalize closes an open sale: totals, closure snapshot, ledger entry and
// table release all commit together or not at all.
func (s *SaleService) Finalize(ctx context.Context, req FinalizeRequest) (*SaleView, error) {
	return s.mutate(ctx, req.SaleID, ActionFinalized, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		sums, err := store.SumSaleItems(ctx, sale.ID)
		if err != nil {
			return nil, fmt.Errorf("sum sale items: %w", err)
		}
		if sums.Count == 0 {
			return nil, ErrNoItems
		}

		method := NormalizePaymentMethod(req.PaymentMethod)
		total := clampTotal(sums.Subtotal, sale.Discount)
		at := s.now()

		responsible, attendant, err := closureNames(ctx, store, sale)
		if err != nil {
			return nil, err
		}

		finalized, err := store.FinalizeSale(ctx, database.FinalizeSaleParams{
			ID:            sale.ID,
			PaymentMethod: method,
			Subtotal:      sums.Subtotal,
			Total:         total,
			FinalizedAt:   at,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleFinalized
		}
		if err != nil {
			return nil, fmt.Errorf("finalize sale: %w", err)
		}

		_, err = store.CreateSaleClosure(ctx, database.CreateSaleClosureParams{
			SaleID:          sale.ID,
			ResponsibleName: responsible,
			AttendantName:   attendant,
			PaymentMethod:   method,
			Subtotal:        sums.Subtotal,
			Discount:        sale.Discount,
			Total:           total,
			ClosedAt:        at,
		})
		if err != nil {
			if database.IsUniqueViolation(err, "sale_closures_pkey") {
				return nil, ErrSaleFinalized
			}
			return nil, fmt.Errorf("create sale closure: %w", err)
		}

		if _, err := reconcileLedger(ctx, store, finalized, at); err != nil {
			return nil, err
		}
		if err := releaseTable(ctx, store, sale); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

// Cancel abandons an open sale and frees its table. Nothing is posted to
// the register.
func (s *SaleService) Cancel(ctx context.Context, saleID int64) (*SaleView, error) {
	return s.mutate(ctx, saleID, ActionCancelled, func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error) {
		if _, err := store.CancelSale(ctx, sale.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrSaleCancelled
			}
			return nil, fmt.Errorf("cancel sale: %w", err)
		}
		return nil, releaseTable(ctx, store, sale)
	})
}

// Get returns a sale with its lines and closure.
func (s *SaleService) Get(ctx context.Context, saleID int64) (*SaleView, error) {
	var view *SaleView
	err := s.read(ctx, func(store SaleStore) error {
		var err error
		view, err = loadView(ctx, store, saleID)
		return err
	})
	return view, err
}

// ListOpen returns every open sale without lines.
func (s *SaleService) ListOpen(ctx context.Context) ([]database.Sale, error) {
	var sales []database.Sale
	err := s.read(ctx, func(store SaleStore) error {
		var err error
		sales, err = store.ListOpenSales(ctx)
		if err != nil {
			return fmt.Errorf("list open sales: %w", err)
		}
		return nil
	})
	return sales, err
}

// List returns sales matching f, newest first.
func (s *SaleService) List(ctx context.Context, f SaleFilter) ([]database.Sale, error) {
	params, err := listParams(f)
	if err != nil {
		return nil, err
	}
	var sales []database.Sale
	err = s.read(ctx, func(store SaleStore) error {
		var err error
		sales, err = store.ListSales(ctx, params)
		if err != nil {
			return fmt.Errorf("list sales: %w", err)
		}
		return nil
	})
	return sales, err
}

func listParams(f SaleFilter) (database.ListSalesParams, error) {
	p := database.ListSalesParams{
		AttendantID: f.AttendantID,
		CustomerID:  f.CustomerID,
		StartDate:   f.From,
		EndDate:     f.To,
		Limit:       f.Limit,
		Offset:      f.Offset,
	}
	if f.Status != "" {
		switch f.Status {
		case enum.SaleStatusOpen, enum.SaleStatusFinalized, enum.SaleStatusCancelled:
		default:
			return p, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
		}
		p.Status = &f.Status
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return p, fmt.Errorf("%w: start_date must be before end_date", ErrInvalidFilter)
	}
	if p.Offset < 0 {
		return p, fmt.Errorf("%w: offset must be >= 0", ErrInvalidFilter)
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultListLimit
	case p.Limit > maxListLimit:
		p.Limit = maxListLimit
	}
	return p, nil
}

// SectorQueue lists the undelivered lines of one sale routed to a sector.
func (s *SaleService) SectorQueue(ctx context.Context, saleID, sectorID int64) ([]database.SectorQueueItem, error) {
	var items []database.SectorQueueItem
	err := s.read(ctx, func(store SaleStore) error {
		if _, err := store.GetSale(ctx, saleID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSaleNotFound
			}
			return fmt.Errorf("get sale: %w", err)
		}
		var err error
		items, err = sectorQueue(ctx, store, sectorID, &saleID)
		return err
	})
	return items, err
}

// PendingBySector lists the undelivered lines of every open sale routed to
// a sector, oldest first.
func (s *SaleService) PendingBySector(ctx context.Context, sectorID int64) ([]database.SectorQueueItem, error) {
	var items []database.SectorQueueItem
	err := s.read(ctx, func(store SaleStore) error {
		var err error
		items, err = sectorQueue(ctx, store, sectorID, nil)
		return err
	})
	return items, err
}

func sectorQueue(ctx context.Context, store SaleStore, sectorID int64, saleID *int64) ([]database.SectorQueueItem, error) {
	if _, err := store.GetSector(ctx, sectorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSectorNotFound
		}
		return nil, fmt.Errorf("get sector: %w", err)
	}
	items, err := store.ListSectorQueue(ctx, database.ListSectorQueueParams{SectorID: sectorID, SaleID: saleID})
	if err != nil {
		return nil, fmt.Errorf("list sector queue: %w", err)
	}
	if items == nil {
		items = []database.SectorQueueItem{}
	}
	return items, nil
}

// mutate runs fn against an open, row-locked sale inside one transaction.
// Tickets returned by fn are dispatched after the commit.
func (s *SaleService) mutate(
	ctx context.Context,
	saleID int64,
	action string,
	fn func(ctx context.Context, store SaleStore, sale database.Sale) ([]dispatch.Ticket, error),
) (*SaleView, error) {
	unlock := s.locks.Lock(saleID)
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	sale, err := store.GetSaleForUpdate(ctx, saleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock sale: %w", err)
	}
	switch sale.Status {
	case enum.SaleStatusFinalized:
		return nil, ErrSaleFinalized
	case enum.SaleStatusCancelled:
		return nil, ErrSaleCancelled
	}

	tickets, err := fn(ctx, store, sale)
	if err != nil {
		return nil, err
	}

	view, err := loadView(ctx, store, saleID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	order := &dispatch.OrderSnapshot{Sale: view.Sale, Items: view.Items}
	for i := range tickets {
		tickets[i].Order = order
	}

	// The change is committed: a caller that went away must not stop its
	// tickets or its change event.
	after := context.WithoutCancel(ctx)
	if s.dispatcher != nil {
		for _, t := range tickets {
			view.Warnings = appendUnique(view.Warnings, s.dispatcher.Dispatch(after, t)...)
		}
	}
	s.notify(after, view, action)
	return view, nil
}

// read runs fn inside a transaction that is always rolled back.
func (s *SaleService) read(ctx context.Context, fn func(store SaleStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	return fn(s.newStore(tx))
}

func (s *SaleService) notify(ctx context.Context, view *SaleView, action string) {
	if s.notifier == nil {
		return
	}
	s.notifier.SaleChanged(ctx, view.ID, action, view)
}

func loadView(ctx context.Context, store SaleStore, saleID int64) (*SaleView, error) {
	sale, err := store.GetSale(ctx, saleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale: %w", err)
	}
	items, err := store.ListSaleItems(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	if items == nil {
		items = []database.SaleItem{}
	}
	view := &SaleView{Sale: sale, Items: items}
	if sale.Status == enum.SaleStatusFinalized {
		closure, err := store.GetSaleClosure(ctx, saleID)
		switch {
		case err == nil:
			view.Closure = &closure
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("get sale closure: %w", err)
		}
	}
	return view, nil
}

// recalcTotals recomputes subtotal from the stored lines and applies discount.
func recalcTotals(ctx context.Context, store SaleStore, saleID int64, discount decimal.Decimal) (database.Sale, error) {
	sums, err := store.SumSaleItems(ctx, saleID)
	if err != nil {
		return database.Sale{}, fmt.Errorf("sum sale items: %w", err)
	}
	sale, err := store.UpdateSaleTotals(ctx, database.UpdateSaleTotalsParams{
		ID:       saleID,
		Subtotal: sums.Subtotal,
		Discount: discount,
		Total:    clampTotal(sums.Subtotal, discount),
	})
	if err != nil {
		return database.Sale{}, fmt.Errorf("update sale totals: %w", err)
	}
	return sale, nil
}

func clampTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func resolveAttendant(ctx context.Context, store SaleStore, p Principal) (database.Employee, error) {
	if p.System {
		emp, err := store.EnsureSystemEmployee(ctx, enum.AdministratorName)
		if err != nil {
			return database.Employee{}, fmt.Errorf("ensure system employee: %w", err)
		}
		return emp, nil
	}
	emp, err := store.GetEmployee(ctx, p.EmployeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return database.Employee{}, ErrInvalidAttendant
	}
	if err != nil {
		return database.Employee{}, fmt.Errorf("get attendant: %w", err)
	}
	if !emp.Active {
		return database.Employee{}, ErrInvalidAttendant
	}
	return emp, nil
}

// closureNames picks the names frozen on the closure: the table's responsible
// employee, else the attendant, else the administrator.
func closureNames(ctx context.Context, store SaleStore, sale database.Sale) (responsible, attendant string, err error) {
	attendant, err = employeeName(ctx, store, &sale.AttendantID)
	if err != nil {
		return "", "", err
	}
	if sale.TableID != nil {
		table, err := store.GetTable(ctx, *sale.TableID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("get table: %w", err)
		}
		if err == nil && table.CurrentSaleID != nil && *table.CurrentSaleID == sale.ID {
			responsible, err = employeeName(ctx, store, table.ResponsibleEmployeeID)
			if err != nil {
				return "", "", err
			}
		}
	}
	if attendant == "" {
		attendant = enum.AdministratorName
	}
	if responsible == "" {
		responsible = attendant
	}
	return responsible, attendant, nil
}

func employeeName(ctx context.Context, store SaleStore, id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	emp, err := store.GetEmployee(ctx, *id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get employee: %w", err)
	}
	return strings.TrimSpace(emp.Name), nil
}

func ticketFor(sale database.Sale, item database.SaleItem, quantity int32, note *string) dispatch.Ticket {
	name := item.ProductName
	if item.Variation != nil && item.Variation.Label != "" {
		name = item.ProductName + " (" + item.Variation.Label + ")"
	}
	return dispatch.Ticket{
		SaleID:      sale.ID,
		TableNumber: sale.TableNumber,
		TabName:     sale.TabName,
		ProductID:   item.ProductID,
		ItemName:    name,
		Quantity:    quantity,
		Note:        note,
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func appendUnique(dst []string, src ...string) []string {
	for _, w := range src {
		dup := false
		for _, d := range dst {
			if d == w {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, w)
		}
	}
	return dst
}
