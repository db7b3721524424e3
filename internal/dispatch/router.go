// Package dispatch routes newly added items to kitchen and bar sectors and
// stores the print and message jobs that out-of-process workers deliver.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// Store is the data access Router needs. Satisfied by *database.Queries.
type Store interface {
	ListSectorsForProduct(ctx context.Context, productID int64) ([]database.DispatchSector, error)
	GetDefaultSector(ctx context.Context) (database.DispatchSector, error)
	SetSaleRoutingFlags(ctx context.Context, arg database.SetSaleRoutingFlagsParams) error
	GetSale(ctx context.Context, id int64) (database.Sale, error)
	ListSaleItems(ctx context.Context, saleID int64) ([]database.SaleItem, error)
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
	CreateMessageJob(ctx context.Context, arg database.CreateMessageJobParams) (database.MessageJob, error)
	MarkPrintJobFailed(ctx context.Context, arg database.MarkJobFailedParams) error
	MarkMessageJobFailed(ctx context.Context, arg database.MarkJobFailedParams) error
}

// Signaler wakes the delivery workers once a job row exists.
type Signaler interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// Failure describes a job that could not be queued or signalled.
type Failure struct {
	SaleID   int64
	SectorID int64
	Mode     string // printer or messaging
	JobID    int64  // zero when no row was stored
	Err      error
}

// FailureHook is called for every dispatch failure, from a worker goroutine.
type FailureHook func(Failure)

// JobSignal is the broker message announcing a stored job.
type JobSignal struct {
	JobID    int64  `json:"job_id"`
	Kind     string `json:"kind"`
	SectorID int64  `json:"sector_id"`
	SaleID   int64  `json:"sale_id"`
}

type job struct {
	ticket  Ticket
	sector  database.DispatchSector
	at      time.Time
	summary string // messaging content, rendered when the job was queued
}

type Options struct {
	Workers   int
	QueueSize int
	Signaler  Signaler    // optional
	OnFailure FailureHook // optional
}

// Router resolves sectors synchronously and stores jobs from a bounded
// worker pool, so callers never wait on delivery.
type Router struct {
	store    Store
	signaler Signaler
	hook     FailureHook
	workers  int
	queue    chan job
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewRouter(store Store, opts Options) *Router {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	return &Router{
		store:    store,
		signaler: opts.Signaler,
		hook:     opts.OnFailure,
		workers:  opts.Workers,
		queue:    make(chan job, opts.QueueSize),
		now:      time.Now,
	}
}

// Start launches the worker pool. Workers drain the queue and exit once
// ctx is done; Wait blocks until they have.
func (r *Router) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.runWorker(ctx, i)
	}
	log.Info().Int("workers", r.workers).Msg("dispatch: worker pool started")
}

func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) runWorker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case j := <-r.queue:
					r.process(context.Background(), j)
				default:
					log.Debug().Int("worker", id).Msg("dispatch: worker stopped")
					return
				}
			}
		case j := <-r.queue:
			r.process(ctx, j)
		}
	}
}

// Route resolves the active sectors of a product, falling back to the
// default sector.
func (r *Router) Route(ctx context.Context, productID int64) (Route, error) {
	sectors, err := r.store.ListSectorsForProduct(ctx, productID)
	if err != nil {
		return Route{}, fmt.Errorf("list sectors for product %d: %w", productID, err)
	}
	if len(sectors) > 0 {
		return newRoute(sectors, false), nil
	}
	def, err := r.store.GetDefaultSector(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		return newRoute(nil, false), nil
	}
	if err != nil {
		return Route{}, fmt.Errorf("get default sector: %w", err)
	}
	return newRoute([]database.DispatchSector{def}, true), nil
}

// Dispatch routes a ticket and queues one job per sector. It returns
// warnings for the caller; failures are logged and reported to the hook.
// Callers pass a context that outlives the request: the line is already
// committed when Dispatch runs.
func (r *Router) Dispatch(ctx context.Context, t Ticket) []string {
	if t.Quantity <= 0 {
		return nil
	}
	route, err := r.Route(ctx, t.ProductID)
	if err != nil {
		r.fail(Failure{SaleID: t.SaleID, Err: fmt.Errorf("route product %d: %w", t.ProductID, err)})
		return nil
	}
	if route.Warning != "" {
		log.Warn().Int64("sale_id", t.SaleID).Int64("product_id", t.ProductID).Msg("dispatch: " + route.Warning)
		return []string{route.Warning}
	}

	if route.Kitchen || route.Counter {
		err := r.store.SetSaleRoutingFlags(ctx, database.SetSaleRoutingFlagsParams{
			ID: t.SaleID, HasKitchen: route.Kitchen, HasCounter: route.Counter,
		})
		if err != nil {
			log.Error().Err(err).Int64("sale_id", t.SaleID).Msg("dispatch: set routing flags")
		}
	}

	at := r.now()
	order := t.Order
	for _, s := range route.Sectors {
		j := job{ticket: t, sector: s, at: at}
		if s.DeliveryMode == enum.DeliveryModeMessaging {
			if order == nil {
				if order, err = r.snapshot(ctx, t.SaleID); err != nil {
					r.fail(Failure{SaleID: t.SaleID, SectorID: s.ID, Mode: s.DeliveryMode, Err: err})
					continue
				}
			}
			j.summary = RenderSummary(s.Name, order.Sale, order.Items, at)
		}
		select {
		case r.queue <- j:
		default:
			r.fail(Failure{SaleID: t.SaleID, SectorID: s.ID, Mode: s.DeliveryMode, Err: errors.New("dispatch queue full")})
		}
	}
	return nil
}

func (r *Router) snapshot(ctx context.Context, saleID int64) (*OrderSnapshot, error) {
	sale, err := r.store.GetSale(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale: %w", err)
	}
	items, err := r.store.ListSaleItems(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	return &OrderSnapshot{Sale: sale, Items: items}, nil
}

func (r *Router) process(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch j.sector.DeliveryMode {
	case enum.DeliveryModePrinter:
		r.processPrint(ctx, j)
	case enum.DeliveryModeMessaging:
		r.processMessage(ctx, j)
	default:
		r.fail(Failure{SaleID: j.ticket.SaleID, SectorID: j.sector.ID, Mode: j.sector.DeliveryMode,
			Err: fmt.Errorf("unknown delivery mode %q", j.sector.DeliveryMode)})
	}
}

func (r *Router) processPrint(ctx context.Context, j job) {
	pj, err := r.store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		SectorID:  j.sector.ID,
		PrinterID: j.sector.PrinterID,
		SaleID:    j.ticket.SaleID,
		Content:   RenderFragment(j.sector.Name, j.ticket, j.at),
	})
	if err != nil {
		r.fail(Failure{SaleID: j.ticket.SaleID, SectorID: j.sector.ID, Mode: enum.DeliveryModePrinter, Err: fmt.Errorf("store print job: %w", err)})
		return
	}
	sig := JobSignal{JobID: pj.ID, Kind: "print", SectorID: j.sector.ID, SaleID: j.ticket.SaleID}
	if err := r.signal(ctx, fmt.Sprintf("print.%d", j.sector.ID), sig); err != nil {
		if mErr := r.store.MarkPrintJobFailed(ctx, database.MarkJobFailedParams{ID: pj.ID, LastError: err.Error()}); mErr != nil {
			log.Error().Err(mErr).Int64("job_id", pj.ID).Msg("dispatch: mark print job failed")
		}
		r.fail(Failure{SaleID: j.ticket.SaleID, SectorID: j.sector.ID, Mode: enum.DeliveryModePrinter, JobID: pj.ID, Err: err})
	}
}

func (r *Router) processMessage(ctx context.Context, j job) {
	fail := func(jobID int64, err error) {
		r.fail(Failure{SaleID: j.ticket.SaleID, SectorID: j.sector.ID, Mode: enum.DeliveryModeMessaging, JobID: jobID, Err: err})
	}
	if j.sector.Destination == nil || *j.sector.Destination == "" {
		fail(0, errors.New("messaging sector has no destination"))
		return
	}
	mj, err := r.store.CreateMessageJob(ctx, database.CreateMessageJobParams{
		SectorID:    j.sector.ID,
		Destination: *j.sector.Destination,
		SaleID:      j.ticket.SaleID,
		Content:     j.summary,
	})
	if err != nil {
		fail(0, fmt.Errorf("store message job: %w", err))
		return
	}
	sig := JobSignal{JobID: mj.ID, Kind: "message", SectorID: j.sector.ID, SaleID: j.ticket.SaleID}
	if err := r.signal(ctx, fmt.Sprintf("message.%d", j.sector.ID), sig); err != nil {
		if mErr := r.store.MarkMessageJobFailed(ctx, database.MarkJobFailedParams{ID: mj.ID, LastError: err.Error()}); mErr != nil {
			log.Error().Err(mErr).Int64("job_id", mj.ID).Msg("dispatch: mark message job failed")
		}
		fail(mj.ID, err)
	}
}

func (r *Router) signal(ctx context.Context, key string, sig JobSignal) error {
	if r.signaler == nil {
		return nil
	}
	return r.signaler.Publish(ctx, key, sig)
}

func (r *Router) fail(f Failure) {
	log.Error().Err(f.Err).
		Int64("sale_id", f.SaleID).
		Int64("sector_id", f.SectorID).
		Int64("job_id", f.JobID).
		Str("mode", f.Mode).
		Msg("dispatch: job failed")
	if r.hook != nil {
		r.hook(f)
	}
}
