package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketTime = time.Date(2026, 3, 14, 19, 5, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestRenderFragment_Golden(t *testing.T) {
	g := goldie.New(t)

	table := RenderFragment("Cozinha", Ticket{
		SaleID: 7, TableNumber: ptr(int32(12)), ItemName: "X-Burger", Quantity: 3, Note: ptr("no onions"),
	}, ticketTime)
	g.Assert(t, "fragment_table", []byte(table))

	tab := RenderFragment("Bar", Ticket{
		SaleID: 8, TabName: ptr("Ana"), ItemName: "Caipirinha", Quantity: 1, Note: ptr("  "),
	}, ticketTime)
	g.Assert(t, "fragment_tab", []byte(tab))
}

func TestRenderSummary_Golden(t *testing.T) {
	sale := database.Sale{
		ID:       15,
		TabName:  ptr("Ana"),
		Discount: decimal.RequireFromString("5.00"),
		Notes:    ptr("birthday"),
	}
	items := []database.SaleItem{
		{ProductName: "Caipirinha", Quantity: 2, UnitPrice: decimal.RequireFromString("18.00"), Subtotal: decimal.RequireFromString("36.00"), Notes: ptr("less sugar")},
		{ProductName: "Água", Quantity: 1, UnitPrice: decimal.RequireFromString("4.50"), Subtotal: decimal.RequireFromString("4.50")},
	}

	g := goldie.New(t)
	g.Assert(t, "summary", []byte(RenderSummary("Bar WhatsApp", sale, items, ticketTime)))
}

func TestOrderRef(t *testing.T) {
	assert.Equal(t, "Table 4", OrderRef(1, ptr(int32(4)), nil))
	assert.Equal(t, "Tab Bob", OrderRef(1, nil, ptr(" Bob ")))
	assert.Equal(t, "Order #9", OrderRef(9, nil, nil))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name             string
		kitchen, counter bool
	}{
		{"Kitchen", true, false},
		{"COZINHA quente", true, false},
		{"Comanda", true, false},
		{"Balcão", false, true},
		{"bar", false, true},
		{"Counter / Kitchen", true, true},
		{"Barbecue", false, false},
		{"Terrace", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, c := Classify(tt.name)
			assert.Equal(t, tt.kitchen, k)
			assert.Equal(t, tt.counter, c)
		})
	}
}

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu          sync.Mutex
	linked      map[int64][]database.DispatchSector
	def         *database.DispatchSector
	sale        database.Sale
	items       []database.SaleItem
	flags       []database.SetSaleRoutingFlagsParams
	printJobs   []database.CreatePrintJobParams
	msgJobs     []database.CreateMessageJobParams
	failedJobs  []database.MarkJobFailedParams
	routeErr    error
	printJobErr error
}

func (s *fakeStore) ListSectorsForProduct(ctx context.Context, productID int64) ([]database.DispatchSector, error) {
	if s.routeErr != nil {
		return nil, s.routeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.linked[productID], nil
}

func (s *fakeStore) GetDefaultSector(context.Context) (database.DispatchSector, error) {
	if s.def == nil {
		return database.DispatchSector{}, pgx.ErrNoRows
	}
	return *s.def, nil
}

func (s *fakeStore) SetSaleRoutingFlags(_ context.Context, arg database.SetSaleRoutingFlagsParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, arg)
	return nil
}

func (s *fakeStore) GetSale(context.Context, int64) (database.Sale, error) { return s.sale, nil }

func (s *fakeStore) ListSaleItems(context.Context, int64) ([]database.SaleItem, error) {
	return s.items, nil
}

func (s *fakeStore) CreatePrintJob(_ context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.printJobErr != nil {
		return database.PrintJob{}, s.printJobErr
	}
	s.printJobs = append(s.printJobs, arg)
	return database.PrintJob{ID: int64(len(s.printJobs)), SectorID: arg.SectorID, SaleID: arg.SaleID, Content: arg.Content}, nil
}

func (s *fakeStore) CreateMessageJob(_ context.Context, arg database.CreateMessageJobParams) (database.MessageJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgJobs = append(s.msgJobs, arg)
	return database.MessageJob{ID: int64(100 + len(s.msgJobs)), SectorID: arg.SectorID, SaleID: arg.SaleID}, nil
}

func (s *fakeStore) MarkPrintJobFailed(_ context.Context, arg database.MarkJobFailedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedJobs = append(s.failedJobs, arg)
	return nil
}

func (s *fakeStore) MarkMessageJobFailed(_ context.Context, arg database.MarkJobFailedParams) error {
	return s.MarkPrintJobFailed(context.Background(), arg)
}

type fakeSignaler struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeSignaler) Publish(_ context.Context, key string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.err
}

var (
	kitchen = database.DispatchSector{ID: 1, Name: "Cozinha", DeliveryMode: "printer", PrinterID: ptr(int64(10)), Active: true}
	bar     = database.DispatchSector{ID: 2, Name: "Bar", DeliveryMode: "messaging", Destination: ptr("+5511999999999"), Active: true}
)

// runRouter dispatches tickets and waits until every job is processed.
func runRouter(t *testing.T, store *fakeStore, opts Options, tickets ...Ticket) [][]string {
	t.Helper()
	r := NewRouter(store, opts)
	r.now = func() time.Time { return ticketTime }

	var warnings [][]string
	for _, tk := range tickets {
		warnings = append(warnings, r.Dispatch(context.Background(), tk))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Start(ctx)
	r.Wait()
	return warnings
}

func TestDispatch_PrinterAndMessagingSectors(t *testing.T) {
	store := &fakeStore{
		linked: map[int64][]database.DispatchSector{5: {kitchen, bar}},
		sale:   database.Sale{ID: 3, TableNumber: ptr(int32(4))},
		items:  []database.SaleItem{{ProductName: "Burger", Quantity: 5, UnitPrice: decimal.NewFromInt(20), Subtotal: decimal.NewFromInt(100)}},
	}
	sig := &fakeSignaler{}

	warnings := runRouter(t, store, Options{Workers: 2, QueueSize: 8, Signaler: sig},
		Ticket{SaleID: 3, TableNumber: ptr(int32(4)), ProductID: 5, ItemName: "Burger", Quantity: 3})

	assert.Empty(t, warnings[0])
	require.Len(t, store.printJobs, 1)
	assert.Equal(t, ptr(int64(10)), store.printJobs[0].PrinterID)
	// Only the added units are printed.
	assert.Contains(t, store.printJobs[0].Content, "3x Burger")
	assert.NotContains(t, store.printJobs[0].Content, "5x")

	require.Len(t, store.msgJobs, 1)
	assert.Equal(t, "+5511999999999", store.msgJobs[0].Destination)
	assert.Contains(t, store.msgJobs[0].Content, "Total: 100.00")

	assert.ElementsMatch(t, []string{"print.1", "message.2"}, sig.keys)
	require.Len(t, store.flags, 1)
	assert.True(t, store.flags[0].HasKitchen)
	assert.True(t, store.flags[0].HasCounter)
}

func TestDispatch_DefaultSectorFallback(t *testing.T) {
	def := kitchen
	def.IsDefault = true
	store := &fakeStore{def: &def}

	warnings := runRouter(t, store, Options{},
		Ticket{SaleID: 1, ProductID: 99, ItemName: "Soup", Quantity: 1})

	assert.Empty(t, warnings[0])
	require.Len(t, store.printJobs, 1)
	assert.Equal(t, int64(1), store.printJobs[0].SectorID)
}

func TestDispatch_NoSectorWarns(t *testing.T) {
	store := &fakeStore{}

	warnings := runRouter(t, store, Options{},
		Ticket{SaleID: 1, ProductID: 99, ItemName: "Soup", Quantity: 1})

	assert.Equal(t, []string{WarningNoSector}, warnings[0])
	assert.Empty(t, store.printJobs)
	assert.Empty(t, store.flags)
}

func TestDispatch_ZeroQuantityIsNoop(t *testing.T) {
	store := &fakeStore{linked: map[int64][]database.DispatchSector{5: {kitchen}}}

	runRouter(t, store, Options{}, Ticket{SaleID: 1, ProductID: 5, Quantity: 0})

	assert.Empty(t, store.printJobs)
}

func TestDispatch_RouteErrorReportsHook(t *testing.T) {
	store := &fakeStore{routeErr: errors.New("db down")}
	var failures []Failure

	warnings := runRouter(t, store, Options{OnFailure: func(f Failure) { failures = append(failures, f) }},
		Ticket{SaleID: 1, ProductID: 5, Quantity: 1})

	assert.Empty(t, warnings[0])
	require.Len(t, failures, 1)
	assert.Equal(t, int64(1), failures[0].SaleID)
	assert.ErrorContains(t, failures[0].Err, "db down")
}

func TestDispatch_CancelledContextIsReported(t *testing.T) {
	store := &fakeStore{linked: map[int64][]database.DispatchSector{5: {kitchen}}}
	var failures []Failure
	r := NewRouter(store, Options{OnFailure: func(f Failure) { failures = append(failures, f) }})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Dispatch(ctx, Ticket{SaleID: 2, ProductID: 5, Quantity: 1})

	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, context.Canceled)

	// Detached from the caller, the same ticket is routed.
	r.Dispatch(context.WithoutCancel(ctx), Ticket{SaleID: 2, ProductID: 5, Quantity: 1})
	done, stop := context.WithCancel(context.Background())
	stop()
	r.Start(done)
	r.Wait()
	assert.Len(t, store.printJobs, 1)
	assert.Len(t, failures, 1)
}

func TestDispatch_SummaryUsesCommittedSnapshot(t *testing.T) {
	// The store already holds a later state of the sale.
	store := &fakeStore{
		linked: map[int64][]database.DispatchSector{5: {bar}},
		sale:   database.Sale{ID: 3, Discount: decimal.NewFromInt(50)},
		items:  []database.SaleItem{{ProductName: "Burger", Quantity: 9, UnitPrice: decimal.NewFromInt(20), Subtotal: decimal.NewFromInt(180)}},
	}
	order := &OrderSnapshot{
		Sale:  database.Sale{ID: 3},
		Items: []database.SaleItem{{ProductName: "Burger", Quantity: 2, UnitPrice: decimal.NewFromInt(20), Subtotal: decimal.NewFromInt(40)}},
	}

	runRouter(t, store, Options{}, Ticket{SaleID: 3, ProductID: 5, ItemName: "Burger", Quantity: 2, Order: order})

	require.Len(t, store.msgJobs, 1)
	assert.Contains(t, store.msgJobs[0].Content, "2x Burger")
	assert.Contains(t, store.msgJobs[0].Content, "Total: 40.00")
	assert.NotContains(t, store.msgJobs[0].Content, "9x")
}

func TestDispatch_SignalFailureMarksJob(t *testing.T) {
	store := &fakeStore{linked: map[int64][]database.DispatchSector{5: {kitchen}}}
	sig := &fakeSignaler{err: errors.New("broker unreachable")}

	var mu sync.Mutex
	var failures []Failure
	hook := func(f Failure) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, f)
	}

	warnings := runRouter(t, store, Options{Signaler: sig, OnFailure: hook},
		Ticket{SaleID: 1, ProductID: 5, ItemName: "Fries", Quantity: 2})

	assert.Empty(t, warnings[0], "failures are never surfaced to the caller")
	require.Len(t, store.failedJobs, 1)
	assert.Equal(t, int64(1), store.failedJobs[0].ID)
	assert.True(t, strings.Contains(store.failedJobs[0].LastError, "broker unreachable"))
	require.Len(t, failures, 1)
	assert.Equal(t, int64(1), failures[0].JobID)
}

func TestDispatch_StoreFailureReportsHook(t *testing.T) {
	store := &fakeStore{
		linked:      map[int64][]database.DispatchSector{5: {kitchen}},
		printJobErr: errors.New("insert failed"),
	}
	var failures []Failure
	runRouter(t, store, Options{OnFailure: func(f Failure) { failures = append(failures, f) }},
		Ticket{SaleID: 1, ProductID: 5, Quantity: 1})

	require.Len(t, failures, 1)
	assert.Zero(t, failures[0].JobID)
	assert.Empty(t, store.failedJobs)
}

func TestDispatch_QueueFullReportsHook(t *testing.T) {
	store := &fakeStore{linked: map[int64][]database.DispatchSector{5: {kitchen}}}
	var failures []Failure

	r := NewRouter(store, Options{QueueSize: 1, OnFailure: func(f Failure) { failures = append(failures, f) }})
	r.Dispatch(context.Background(), Ticket{SaleID: 1, ProductID: 5, Quantity: 1})
	r.Dispatch(context.Background(), Ticket{SaleID: 1, ProductID: 5, Quantity: 1})

	require.Len(t, failures, 1)
	assert.EqualError(t, failures[0].Err, "dispatch queue full")
}
