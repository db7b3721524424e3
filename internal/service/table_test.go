package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTableService(store *memStore) *TableService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	return NewTableService(pool, func(db database.DBTX) TableStore { return store })
}

func TestTableClose_RefusedWhileSaleOpen(t *testing.T) {
	store := newMemStore()
	waiter := store.addEmployee("Bruno", true)
	table := store.addTable(4, enum.TableStatusFree)
	soda := store.addProduct("Soda", "5.00")
	sales, _, _, _ := newTestService(store)
	tables := newTestTableService(store)

	sale, err := sales.Open(context.Background(), OpenSaleRequest{Principal: Principal{EmployeeID: waiter.ID}, Kind: enum.SaleKindTable, TableID: &table.ID})
	require.NoError(t, err)

	_, err = tables.Close(context.Background(), table.ID)
	assert.ErrorIs(t, err, ErrTableSaleOpen)
	assert.Equal(t, enum.TableStatusOccupied, store.table(table.ID).Status)

	addItem(t, sales, sale.ID, soda.ID, 1, PolicyMergeable)
	_, err = sales.Finalize(context.Background(), FinalizeRequest{SaleID: sale.ID, PaymentMethod: "cash"})
	require.NoError(t, err)

	closed, err := tables.Close(context.Background(), table.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TableStatusFree, closed.Status)
}

func TestTableClose_ReleasesStaleBinding(t *testing.T) {
	store := newMemStore()
	waiter := store.addEmployee("Bruno", true)
	table := store.addTable(4, enum.TableStatusFree)
	sales, _, _, _ := newTestService(store)
	tables := newTestTableService(store)

	sale, err := sales.Open(context.Background(), OpenSaleRequest{Principal: Principal{EmployeeID: waiter.ID}, Kind: enum.SaleKindTable, TableID: &table.ID})
	require.NoError(t, err)

	// The sale ends without the table being released.
	store.mu.Lock()
	s := store.sales[sale.ID]
	s.Status = enum.SaleStatusCancelled
	store.sales[sale.ID] = s
	store.mu.Unlock()

	closed, err := tables.Close(context.Background(), table.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TableStatusFree, closed.Status)
	assert.Nil(t, closed.CurrentSaleID)
	assert.Zero(t, closed.Guests)
}

func TestTableClose_NotFound(t *testing.T) {
	_, err := newTestTableService(newMemStore()).Close(context.Background(), 1)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestTableGetAndList(t *testing.T) {
	store := newMemStore()
	store.addTable(2, enum.TableStatusFree)
	t1 := store.addTable(1, enum.TableStatusReserved)
	tables := newTestTableService(store)

	got, err := tables.Get(context.Background(), t1.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.TableStatusReserved, got.Status)

	_, err = tables.Get(context.Background(), 424242)
	assert.ErrorIs(t, err, ErrTableNotFound)

	all, err := tables.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int32(1), all[0].Number)
}

func TestTableList_BeginError(t *testing.T) {
	tables := NewTableService(&mockTxBeginner{err: errors.New("pool closed")}, func(database.DBTX) TableStore { return newMemStore() })
	_, err := tables.List(context.Background())
	assert.ErrorContains(t, err, "begin tx")
}

func TestCashService_NoSession(t *testing.T) {
	_, err := NewCashService(newMemStore()).Current(context.Background())
	assert.ErrorIs(t, err, ErrNoOpenCashSession)
}

func TestOpenSession_ConcurrentCreatorsConverge(t *testing.T) {
	store := newMemStore()
	waiter := store.addEmployee("Bruno", true)

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := openSession(context.Background(), store, waiter.ID)
			if assert.NoError(t, err) {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, store.sessions, 1)
}

func TestSessionOpener_Fallbacks(t *testing.T) {
	store := newMemStore()
	retired := store.addEmployee("Old", false)

	id, err := sessionOpener(context.Background(), store, retired.ID)
	require.NoError(t, err)
	admin, err := store.GetEmployee(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, admin.SystemAccount, "no active staff: the administrator opens the register")

	other := newMemStore()
	old := other.addEmployee("Old", false)
	eva := other.addEmployee("Eva", true)
	id, err = sessionOpener(context.Background(), other, old.ID)
	require.NoError(t, err)
	assert.Equal(t, eva.ID, id, "an inactive attendant falls back to any active employee")

	id, err = sessionOpener(context.Background(), other, eva.ID)
	require.NoError(t, err)
	assert.Equal(t, eva.ID, id)
}
