package handler

import (
	"context"
	"net/http"

	"github.com/comanda-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
)

// CashServicer reads the register. Satisfied by *service.CashService.
type CashServicer interface {
	Current(ctx context.Context) (database.CashSession, error)
}

type CashHandler struct {
	svc CashServicer
}

func NewCashHandler(svc CashServicer) *CashHandler {
	return &CashHandler{svc: svc}
}

// RegisterRoutes registers cash endpoints. Expected to be mounted at /cash.
func (h *CashHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.Current)
}

func (h *CashHandler) Current(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Current(r.Context())
	if err != nil {
		writeError(w, r, "current cash session", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
