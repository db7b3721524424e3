package notify

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Broadcaster pushes to live connections. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastSale(saleID int64, event ws.Event) bool
}

// Stream is the optional downstream event log. Satisfied by *KafkaStream.
type Stream interface {
	Publish(ev Event) bool
}

// Notifier records every change in the poll-since feed before returning,
// then hands it to one goroutine that pushes to live clients and the event
// stream. Only that push side drops on overflow.
type Notifier struct {
	feed    Feed
	hub     Broadcaster
	stream  Stream
	queue   chan Event
	dropped atomic.Int64
}

// NewNotifier builds a notifier; hub and stream may be nil.
func NewNotifier(feed Feed, hub Broadcaster, stream Stream, queueSize int) *Notifier {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Notifier{feed: feed, hub: hub, stream: stream, queue: make(chan Event, queueSize)}
}

// SaleChanged records that a sale changed. payload is the sale view.
// Callers hold the sale's lock, so feed order matches commit order.
func (n *Notifier) SaleChanged(ctx context.Context, saleID int64, action string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Int64("sale_id", saleID).Msg("notify: encode payload")
		return
	}
	ev := Event{
		ID:      uuid.NewString(),
		Type:    enum.EventOrderChanged,
		Action:  action,
		SaleID:  saleID,
		Payload: raw,
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	stored, err := n.feed.Append(ctx, ev)
	if err != nil {
		log.Error().Err(err).Int64("sale_id", saleID).Str("action", action).Msg("notify: append change feed")
		stored = ev
		stored.At = time.Now().UTC()
	}

	if n.hub == nil && n.stream == nil {
		return
	}
	select {
	case n.queue <- stored:
	default:
		n.dropped.Add(1)
		log.Warn().Int64("sale_id", saleID).Str("action", action).Msg("notify: push queue full, pollers still see the change")
	}
}

// Dropped reports how many changes were not pushed because the queue was full.
func (n *Notifier) Dropped() int64 { return n.dropped.Load() }

// Run pushes queued events until ctx is done, then drains the queue.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-n.queue:
					n.push(ev)
				default:
					return
				}
			}
		case ev := <-n.queue:
			n.push(ev)
		}
	}
}

func (n *Notifier) push(ev Event) {
	if n.hub != nil {
		msg, err := json.Marshal(ev)
		if err == nil {
			n.hub.BroadcastSale(ev.SaleID, ws.Event{Type: ev.Type, Payload: msg})
		}
	}
	if n.stream != nil {
		n.stream.Publish(ev)
	}
}

// Since reads the poll-since feed.
func (n *Notifier) Since(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	return n.feed.Since(ctx, since, limit)
}
