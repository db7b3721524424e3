package handler

import (
	"context"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
)

// TableServicer defines the service methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	Get(ctx context.Context, tableID int64) (database.DiningTable, error)
	List(ctx context.Context) ([]database.DiningTable, error)
	Close(ctx context.Context, tableID int64) (database.DiningTable, error)
}

// TableHandler handles the floor view.
type TableHandler struct {
	svc TableServicer
}

func NewTableHandler(svc TableServicer) *TableHandler {
	return &TableHandler{svc: svc}
}

// RegisterRoutes registers table endpoints. Expected to be mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/close", h.Close)
}

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, "list tables", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}
	table, err := h.svc.Get(r.Context(), tableID)
	if err != nil {
		writeError(w, r, "get table", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// Close frees a table directly, outside of any sale.
func (h *TableHandler) Close(w http.ResponseWriter, r *http.Request) {
	tableID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}
	table, err := h.svc.Close(r.Context(), tableID)
	if err != nil {
		writeError(w, r, "close table", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, table)
}
