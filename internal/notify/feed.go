// Package notify fans "order changed" events out to pollers, push clients
// and the optional order event stream.
package notify

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Event is one change of one sale. At is unique and strictly increasing
// per feed, so clients can poll with the last value they saw.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Action  string          `json:"action"`
	SaleID  int64           `json:"sale_id"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Feed stores events for poll-since readers.
type Feed interface {
	Append(ctx context.Context, ev Event) (Event, error)
	// Since returns events with At strictly after since, oldest first.
	Since(ctx context.Context, since time.Time, limit int) ([]Event, error)
}

// MemoryFeed keeps events of a single instance in memory.
type MemoryFeed struct {
	mu        sync.Mutex
	events    []Event
	retention time.Duration
	last      time.Time
	now       func() time.Time
}

func NewMemoryFeed(retention time.Duration) *MemoryFeed {
	return &MemoryFeed{retention: retention, now: time.Now}
}

func (f *MemoryFeed) Append(_ context.Context, ev Event) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Microsecond precision matches the Redis feed's scores.
	at := f.now().UTC().Truncate(time.Microsecond)
	if !at.After(f.last) {
		at = f.last.Add(time.Microsecond)
	}
	f.last = at
	ev.At = at
	f.events = append(f.events, ev)

	if f.retention > 0 {
		cutoff := at.Add(-f.retention)
		i := sort.Search(len(f.events), func(i int) bool { return f.events[i].At.After(cutoff) })
		if i > 0 {
			f.events = append([]Event(nil), f.events[i:]...)
		}
	}
	return ev, nil
}

func (f *MemoryFeed) Since(_ context.Context, since time.Time, limit int) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := sort.Search(len(f.events), func(i int) bool { return f.events[i].At.After(since) })
	out := f.events[i:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]Event(nil), out...), nil
}
