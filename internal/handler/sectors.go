package handler

import (
	"context"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
)

// SectorServicer lists the preparation queue of a dispatch sector.
// Satisfied by *service.SaleService.
type SectorServicer interface {
	PendingBySector(ctx context.Context, sectorID int64) ([]database.SectorQueueItem, error)
}

// SectorHandler serves kitchen and counter screens.
type SectorHandler struct {
	svc SectorServicer
}

func NewSectorHandler(svc SectorServicer) *SectorHandler {
	return &SectorHandler{svc: svc}
}

// RegisterRoutes registers sector endpoints. Expected to be mounted at /sectors.
func (h *SectorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{sid}/queue", h.Queue)
}

func (h *SectorHandler) Queue(w http.ResponseWriter, r *http.Request) {
	sectorID, ok := pathID(r, "sid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sector ID"})
		return
	}
	items, err := h.svc.PendingBySector(r.Context(), sectorID)
	if err != nil {
		writeError(w, r, "sector queue", err, nil)
		return
	}
	if items == nil {
		items = []database.SectorQueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}
