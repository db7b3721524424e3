package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- Mock transaction ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// --- In-memory store ---

// memStore implements SaleStore, TableStore and CashStore over maps. Every
// method holds one mutex, so concurrent callers see atomic statements the
// way they would against Postgres.
type memStore struct {
	mu sync.Mutex

	nextID int64

	employees  map[int64]database.Employee
	customers  map[int64]database.Customer
	products   map[int64]database.Product
	variations map[int64]database.VariationType
	sectors    map[int64]database.DispatchSector
	links      map[int64][]int64 // product -> sectors
	tables     map[int64]database.DiningTable
	sales      map[int64]database.Sale
	closures   map[int64]database.SaleClosure
	items      map[int64]database.SaleItem
	sessions   map[int64]database.CashSession
	entries    []database.CashEntry

	incrementErr error
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     1000,
		employees:  map[int64]database.Employee{},
		customers:  map[int64]database.Customer{},
		products:   map[int64]database.Product{},
		variations: map[int64]database.VariationType{},
		sectors:    map[int64]database.DispatchSector{},
		links:      map[int64][]int64{},
		tables:     map[int64]database.DiningTable{},
		sales:      map[int64]database.Sale{},
		closures:   map[int64]database.SaleClosure{},
		items:      map[int64]database.SaleItem{},
		sessions:   map[int64]database.CashSession{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (s *memStore) GetEmployee(_ context.Context, id int64) (database.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return database.Employee{}, pgx.ErrNoRows
	}
	return e, nil
}

func (s *memStore) EnsureSystemEmployee(_ context.Context, name string) (database.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.employees {
		if e.SystemAccount {
			return e, nil
		}
	}
	e := database.Employee{ID: s.id(), Name: name, Role: enum.EmployeeRoleAdmin, Active: true, SystemAccount: true}
	s.employees[e.ID] = e
	return e, nil
}

func (s *memStore) GetFirstActiveEmployee(_ context.Context) (database.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *database.Employee
	for _, e := range s.employees {
		if e.Active && (best == nil || e.ID < best.ID) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return database.Employee{}, pgx.ErrNoRows
	}
	return *best, nil
}

func (s *memStore) GetCustomer(_ context.Context, id int64) (database.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return database.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *memStore) GetProduct(_ context.Context, id int64) (database.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *memStore) ListProductsByIDs(_ context.Context, ids []int64) ([]database.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetVariationType(_ context.Context, id int64) (database.VariationType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variations[id]
	if !ok {
		return database.VariationType{}, pgx.ErrNoRows
	}
	return v, nil
}

func (s *memStore) GetSector(_ context.Context, id int64) (database.DispatchSector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.sectors[id]
	if !ok {
		return database.DispatchSector{}, pgx.ErrNoRows
	}
	return d, nil
}

func (s *memStore) GetTable(_ context.Context, id int64) (database.DiningTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *memStore) GetTableForUpdate(ctx context.Context, id int64) (database.DiningTable, error) {
	return s.GetTable(ctx, id)
}

func (s *memStore) ListTables(_ context.Context) ([]database.DiningTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.DiningTable
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *memStore) BindTable(_ context.Context, arg database.BindTableParams) (database.DiningTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[arg.ID]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	now := time.Now()
	t.Status = enum.TableStatusOccupied
	t.CurrentSaleID = &arg.SaleID
	t.ResponsibleEmployeeID = arg.ResponsibleEmployeeID
	t.Guests = arg.Guests
	t.OpenedAt = &now
	s.tables[t.ID] = t
	return t, nil
}

func freeTable(t database.DiningTable) database.DiningTable {
	t.Status = enum.TableStatusFree
	t.CurrentSaleID = nil
	t.ResponsibleEmployeeID = nil
	t.Guests = 0
	t.OpenedAt = nil
	return t
}

func (s *memStore) ReleaseTableForSale(_ context.Context, arg database.ReleaseTableForSaleParams) (database.DiningTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[arg.ID]
	if !ok || t.CurrentSaleID == nil || *t.CurrentSaleID != arg.SaleID {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	t = freeTable(t)
	s.tables[t.ID] = t
	return t, nil
}

func (s *memStore) ReleaseTable(_ context.Context, id int64) (database.DiningTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	t = freeTable(t)
	s.tables[t.ID] = t
	return t, nil
}

func (s *memStore) CreateSale(_ context.Context, arg database.CreateSaleParams) (database.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if arg.TableID != nil {
		for _, other := range s.sales {
			if other.Status == enum.SaleStatusOpen && other.TableID != nil && *other.TableID == *arg.TableID {
				return database.Sale{}, uniqueViolation("sales_open_table_key")
			}
		}
	}
	now := time.Now()
	sale := database.Sale{
		ID:          s.id(),
		Status:      enum.SaleStatusOpen,
		Kind:        arg.Kind,
		TableID:     arg.TableID,
		CustomerID:  arg.CustomerID,
		TabName:     arg.TabName,
		AttendantID: arg.AttendantID,
		Notes:       arg.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if arg.TableID != nil {
		n := s.tables[*arg.TableID].Number
		sale.TableNumber = &n
	}
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *memStore) GetSale(_ context.Context, id int64) (database.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return database.Sale{}, pgx.ErrNoRows
	}
	return sale, nil
}

func (s *memStore) GetSaleForUpdate(ctx context.Context, id int64) (database.Sale, error) {
	return s.GetSale(ctx, id)
}

func (s *memStore) ListOpenSales(_ context.Context) ([]database.Sale, error) {
	return s.ListSales(context.Background(), database.ListSalesParams{Status: ptr(enum.SaleStatusOpen), Limit: 1000})
}

func (s *memStore) ListSales(_ context.Context, arg database.ListSalesParams) ([]database.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Sale
	for _, sale := range s.sales {
		if arg.Status != nil && sale.Status != *arg.Status {
			continue
		}
		if arg.AttendantID != nil && sale.AttendantID != *arg.AttendantID {
			continue
		}
		if arg.CustomerID != nil && (sale.CustomerID == nil || *sale.CustomerID != *arg.CustomerID) {
			continue
		}
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if int(arg.Offset) >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *memStore) UpdateSaleTotals(_ context.Context, arg database.UpdateSaleTotalsParams) (database.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[arg.ID]
	if !ok || sale.Status != enum.SaleStatusOpen {
		return database.Sale{}, pgx.ErrNoRows
	}
	sale.Subtotal, sale.Discount, sale.Total = arg.Subtotal, arg.Discount, arg.Total
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *memStore) FinalizeSale(_ context.Context, arg database.FinalizeSaleParams) (database.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[arg.ID]
	if !ok || sale.Status != enum.SaleStatusOpen {
		return database.Sale{}, pgx.ErrNoRows
	}
	sale.Status = enum.SaleStatusFinalized
	sale.PaymentMethod = &arg.PaymentMethod
	sale.Subtotal, sale.Total = arg.Subtotal, arg.Total
	sale.FinalizedAt = &arg.FinalizedAt
	s.sales[sale.ID] = sale
	return sale, nil
}

func (s *memStore) CancelSale(_ context.Context, id int64) (database.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok || sale.Status != enum.SaleStatusOpen {
		return database.Sale{}, pgx.ErrNoRows
	}
	now := time.Now()
	sale.Status = enum.SaleStatusCancelled
	sale.FinalizedAt = &now
	s.sales[id] = sale
	return sale, nil
}

func (s *memStore) CreateSaleClosure(_ context.Context, arg database.CreateSaleClosureParams) (database.SaleClosure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.closures[arg.SaleID]; ok {
		return database.SaleClosure{}, uniqueViolation("sale_closures_pkey")
	}
	c := database.SaleClosure{
		SaleID:          arg.SaleID,
		ResponsibleName: arg.ResponsibleName,
		AttendantName:   arg.AttendantName,
		PaymentMethod:   arg.PaymentMethod,
		Subtotal:        arg.Subtotal,
		Discount:        arg.Discount,
		Total:           arg.Total,
		ClosedAt:        arg.ClosedAt,
	}
	s.closures[arg.SaleID] = c
	return c, nil
}

func (s *memStore) GetSaleClosure(_ context.Context, saleID int64) (database.SaleClosure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.closures[saleID]
	if !ok {
		return database.SaleClosure{}, pgx.ErrNoRows
	}
	return c, nil
}

// saleItems returns the lines of a sale in creation order. Callers hold mu.
func (s *memStore) saleItems(saleID int64) []database.SaleItem {
	var out []database.SaleItem
	for _, it := range s.items {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListSaleItems(_ context.Context, saleID int64) ([]database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saleItems(saleID), nil
}

func (s *memStore) GetSaleItem(_ context.Context, arg database.GetSaleItemParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[arg.ID]
	if !ok || it.SaleID != arg.SaleID {
		return database.SaleItem{}, pgx.ErrNoRows
	}
	return it, nil
}

func (s *memStore) GetMergeableItem(_ context.Context, arg database.GetProductLineParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.saleItems(arg.SaleID) {
		if it.ProductID == arg.ProductID && it.Mergeable && it.Variation == nil {
			return it, nil
		}
	}
	return database.SaleItem{}, pgx.ErrNoRows
}

func (s *memStore) GetLatestItemForProduct(_ context.Context, arg database.GetProductLineParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.saleItems(arg.SaleID)
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].ProductID == arg.ProductID {
			return items[i], nil
		}
	}
	return database.SaleItem{}, pgx.ErrNoRows
}

func (s *memStore) CreateSaleItem(_ context.Context, arg database.CreateSaleItemParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := database.SaleItem{
		ID:          s.id(),
		SaleID:      arg.SaleID,
		ProductID:   arg.ProductID,
		ProductName: arg.ProductName,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		Subtotal:    arg.UnitPrice.Mul(decimal.NewFromInt32(arg.Quantity)),
		Status:      enum.ItemStatusPending,
		Origin:      arg.Origin,
		Mergeable:   arg.Mergeable,
		Notes:       arg.Notes,
		Variation:   arg.Variation,
	}
	s.items[it.ID] = it
	return it, nil
}

func (s *memStore) MergeSaleItemQuantity(_ context.Context, arg database.MergeSaleItemQuantityParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[arg.ID]
	if !ok {
		return database.SaleItem{}, pgx.ErrNoRows
	}
	it.Quantity += arg.Delta
	it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt32(it.Quantity))
	it.Status = enum.ItemStatusPending
	s.items[it.ID] = it
	return it, nil
}

func (s *memStore) UpdateSaleItemQuantity(_ context.Context, arg database.UpdateSaleItemQuantityParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[arg.ID]
	if !ok {
		return database.SaleItem{}, pgx.ErrNoRows
	}
	it.Quantity = arg.Quantity
	it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt32(it.Quantity))
	if arg.ResetStatus {
		it.Status = enum.ItemStatusPending
	}
	s.items[it.ID] = it
	return it, nil
}

func (s *memStore) UpdateSaleItemStatus(_ context.Context, arg database.UpdateSaleItemStatusParams) (database.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[arg.ID]
	if !ok {
		return database.SaleItem{}, pgx.ErrNoRows
	}
	if arg.Status == enum.ItemStatusReady && it.PreparedAt == nil {
		now := arg.Now
		it.PreparedAt = &now
		it.PreparedBy = arg.PreparedBy
	}
	it.Status = arg.Status
	s.items[it.ID] = it
	return it, nil
}

func (s *memStore) DeleteSaleItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *memStore) SumSaleItems(_ context.Context, saleID int64) (database.SaleItemTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := database.SaleItemTotals{Subtotal: decimal.Zero}
	for _, it := range s.saleItems(saleID) {
		t.Count++
		t.Subtotal = t.Subtotal.Add(it.Subtotal)
	}
	return t, nil
}

func (s *memStore) ListSectorQueue(_ context.Context, arg database.ListSectorQueueParams) ([]database.SectorQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.SectorQueueItem
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		it := s.items[id]
		sale := s.sales[it.SaleID]
		if sale.Status != enum.SaleStatusOpen || it.Status == enum.ItemStatusDelivered {
			continue
		}
		if arg.SaleID != nil && it.SaleID != *arg.SaleID {
			continue
		}
		linked := false
		for _, sid := range s.links[it.ProductID] {
			if sid == arg.SectorID {
				linked = true
			}
		}
		if !linked {
			continue
		}
		out = append(out, database.SectorQueueItem{SaleItem: it, TableNumber: sale.TableNumber, TabName: sale.TabName})
	}
	return out, nil
}

func (s *memStore) getOpenSession() (database.CashSession, error) {
	for _, cs := range s.sessions {
		if cs.Status == enum.CashSessionOpen {
			return cs, nil
		}
	}
	return database.CashSession{}, pgx.ErrNoRows
}

func (s *memStore) GetOpenCashSession(_ context.Context) (database.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOpenSession()
}

func (s *memStore) GetOpenCashSessionForUpdate(ctx context.Context) (database.CashSession, error) {
	return s.GetOpenCashSession(ctx)
}

func (s *memStore) CreateCashSession(_ context.Context, openedBy int64) (database.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.getOpenSession(); err == nil {
		return database.CashSession{}, pgx.ErrNoRows
	}
	cs := database.CashSession{ID: s.id(), Status: enum.CashSessionOpen, OpenedBy: openedBy, OpenedAt: time.Now()}
	s.sessions[cs.ID] = cs
	return cs, nil
}

func (s *memStore) CreateCashEntry(_ context.Context, arg database.CreateCashEntryParams) (database.CashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.SaleID == arg.SaleID {
			return database.CashEntry{}, uniqueViolation("cash_entries_sale_id_key")
		}
	}
	e := database.CashEntry{ID: s.id(), SessionID: arg.SessionID, SaleID: arg.SaleID, Amount: arg.Amount, Method: arg.Method, CreatedAt: arg.CreatedAt}
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *memStore) IncrementCashSession(_ context.Context, arg database.IncrementCashSessionParams) (database.CashSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrementErr != nil {
		return database.CashSession{}, s.incrementErr
	}
	cs, ok := s.sessions[arg.ID]
	if !ok {
		return database.CashSession{}, pgx.ErrNoRows
	}
	cs.Total = cs.Total.Add(arg.Amount)
	switch arg.Method {
	case enum.PaymentMethodCash:
		cs.TotalCash = cs.TotalCash.Add(arg.Amount)
	case enum.PaymentMethodCard:
		cs.TotalCard = cs.TotalCard.Add(arg.Amount)
	case enum.PaymentMethodPix:
		cs.TotalPix = cs.TotalPix.Add(arg.Amount)
	}
	s.sessions[cs.ID] = cs
	return cs, nil
}

// --- Seeding helpers ---

func (s *memStore) addEmployee(name string, active bool) database.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := database.Employee{ID: s.id(), Name: name, Role: enum.EmployeeRoleWaiter, Active: active}
	s.employees[e.ID] = e
	return e
}

func (s *memStore) addProduct(name, price string) database.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := database.Product{ID: s.id(), Name: name, SalePrice: decimal.RequireFromString(price), Active: true}
	s.products[p.ID] = p
	return p
}

func (s *memStore) addProductIn(name, price string, categoryID *int64) database.Product {
	p := s.addProduct(name, price)
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CategoryID = categoryID
	s.products[p.ID] = p
	return p
}

func (s *memStore) addVariationTypeIn(name, rule string, maxOptions int32, categoryID *int64) database.VariationType {
	v := s.addVariationType(name, rule, maxOptions, "0")
	s.mu.Lock()
	defer s.mu.Unlock()
	v.CategoryID = categoryID
	s.variations[v.ID] = v
	return v
}

func (s *memStore) addTable(number int32, status string) database.DiningTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := database.DiningTable{ID: s.id(), Number: number, Status: status}
	s.tables[t.ID] = t
	return t
}

func (s *memStore) addVariationType(name, rule string, maxOptions int32, fixed string) database.VariationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := database.VariationType{
		ID: s.id(), Name: name, PricingRule: rule, MaxOptions: maxOptions,
		FixedPrice: decimal.RequireFromString(fixed), Active: true,
	}
	s.variations[v.ID] = v
	return v
}

func (s *memStore) addSector(name string, products ...int64) database.DispatchSector {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := database.DispatchSector{ID: s.id(), Name: name, DeliveryMode: enum.DeliveryModePrinter, Active: true}
	s.sectors[d.ID] = d
	for _, p := range products {
		s.links[p] = append(s.links[p], d.ID)
	}
	return d
}

func (s *memStore) table(id int64) database.DiningTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[id]
}

func (s *memStore) entriesFor(saleID int64) []database.CashEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.CashEntry
	for _, e := range s.entries {
		if e.SaleID == saleID {
			out = append(out, e)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
