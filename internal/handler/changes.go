package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/comanda-pos/api/internal/notify"
	"github.com/go-chi/chi/v5"
)

const (
	defaultChangesLimit = 100
	maxChangesLimit     = 500
)

// ChangeFeed is the poll-since side of the order change feed.
// Satisfied by notify.Feed implementations.
type ChangeFeed interface {
	Since(ctx context.Context, since time.Time, limit int) ([]notify.Event, error)
}

// ChangesHandler lets clients without a push channel poll for changes.
type ChangesHandler struct {
	feed ChangeFeed
}

func NewChangesHandler(feed ChangeFeed) *ChangesHandler {
	return &ChangesHandler{feed: feed}
}

// RegisterRoutes registers the feed. Expected to be mounted at /changes.
func (h *ChangesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Since)
}

type changesResponse struct {
	Events []notify.Event `json:"events"`
	// Next is the value to pass as since on the following poll.
	Next time.Time `json:"next"`
}

// Since returns events strictly after ?since= (RFC 3339), oldest first.
// Without since, every retained event is returned.
func (h *ChangesHandler) Since(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var since time.Time
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		since = t
	}

	limit := defaultChangesLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxChangesLimit)
	}

	events, err := h.feed.Since(r.Context(), since, limit)
	if err != nil {
		writeError(w, r, "poll changes", err, nil)
		return
	}
	if events == nil {
		events = []notify.Event{}
	}

	next := since
	if len(events) > 0 {
		next = events[len(events)-1].At
	}
	writeJSON(w, http.StatusOK, changesResponse{Events: events, Next: next})
}
