package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// SaleServicer defines the service methods needed by sale handlers.
// Satisfied by *service.SaleService; narrow interface for testability.
type SaleServicer interface {
	Open(ctx context.Context, req service.OpenSaleRequest) (*service.SaleView, error)
	AddItem(ctx context.Context, req service.AddItemRequest) (*service.SaleView, error)
	RemoveItem(ctx context.Context, req service.RemoveItemRequest) (*service.SaleView, error)
	UpdateItemQuantity(ctx context.Context, req service.UpdateQuantityRequest) (*service.SaleView, error)
	UpdateItemStatus(ctx context.Context, req service.UpdateItemStatusRequest) (*service.SaleView, error)
	ApplyDiscount(ctx context.Context, saleID int64, discount decimal.Decimal) (*service.SaleView, error)
	Finalize(ctx context.Context, req service.FinalizeRequest) (*service.SaleView, error)
	Cancel(ctx context.Context, saleID int64) (*service.SaleView, error)
	Get(ctx context.Context, saleID int64) (*service.SaleView, error)
	ListOpen(ctx context.Context) ([]database.Sale, error)
	List(ctx context.Context, f service.SaleFilter) ([]database.Sale, error)
	SectorQueue(ctx context.Context, saleID, sectorID int64) ([]database.SectorQueueItem, error)
}

// SaleHandler handles sale endpoints.
type SaleHandler struct {
	svc SaleServicer
}

// NewSaleHandler creates a new SaleHandler.
func NewSaleHandler(svc SaleServicer) *SaleHandler {
	return &SaleHandler{svc: svc}
}

// RegisterRoutes registers sale endpoints. Expected to be mounted at /sales.
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Get("/", h.List)
	r.Get("/open", h.ListOpen)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/items", h.AddItem)
		r.Delete("/items", h.RemoveProduct)
		r.Delete("/items/{itemID}", h.RemoveItem)
		r.Patch("/items/{itemID}", h.UpdateQuantity)
		r.Patch("/items/{itemID}/status", h.UpdateItemStatus)
		r.Put("/discount", h.ApplyDiscount)
		r.Post("/finalize", h.Finalize)
		r.Post("/cancel", h.Cancel)
		r.Get("/sectors/{sid}/queue", h.SectorQueue)
	})
}

// --- Request types ---

type openSaleRequest struct {
	Kind                  string  `json:"kind" validate:"required,oneof=table tab"`
	TableID               *int64  `json:"table_id" validate:"omitempty,gt=0"`
	CustomerID            *int64  `json:"customer_id" validate:"omitempty,gt=0"`
	TabName               *string `json:"tab_name" validate:"omitempty,max=80"`
	Notes                 *string `json:"notes" validate:"omitempty,max=500"`
	ResponsibleEmployeeID *int64  `json:"responsible_employee_id" validate:"omitempty,gt=0"`
	Guests                int32   `json:"guests" validate:"gte=0"`
}

type optionRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Weight    *decimal.Decimal `json:"weight"`
}

type variationRequest struct {
	TypeID  int64           `json:"type_id" validate:"required,gt=0"`
	Options []optionRequest `json:"options" validate:"required,min=1,dive"`
}

type addItemRequest struct {
	ProductID int64             `json:"product_id" validate:"required,gt=0"`
	Quantity  int32             `json:"quantity"`
	Origin    string            `json:"origin" validate:"omitempty,oneof=terminal seat"`
	Notes     *string           `json:"notes" validate:"omitempty,max=500"`
	Variation *variationRequest `json:"variation"`
}

type updateQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

type updateItemStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type discountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

type finalizeRequest struct {
	PaymentMethod string `json:"payment_method" validate:"max=40"`
}

// --- Handlers ---

func (h *SaleHandler) Open(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	var req openSaleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	view, err := h.svc.Open(r.Context(), service.OpenSaleRequest{
		Principal:             principal(claims),
		Kind:                  req.Kind,
		TableID:               req.TableID,
		CustomerID:            req.CustomerID,
		TabName:               req.TabName,
		Notes:                 req.Notes,
		ResponsibleEmployeeID: req.ResponsibleEmployeeID,
		Guests:                req.Guests,
	})
	if err != nil {
		writeError(w, r, "open sale", err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.SaleFilter{Status: q.Get("status")}

	var ok bool
	if f.AttendantID, ok = queryID(r, "attendant_id"); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid attendant_id"})
		return
	}
	if f.CustomerID, ok = queryID(r, "customer_id"); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer_id"})
		return
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &f.From}, {"end_date", &f.To}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		t, err := parseTime(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + p.name})
			return
		}
		*p.dst = &t
	}
	for _, p := range []struct {
		name string
		dst  *int32
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + p.name})
			return
		}
		*p.dst = int32(n)
	}

	sales, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, "list sales", err, nil)
		return
	}
	if sales == nil {
		sales = []database.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *SaleHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	sales, err := h.svc.ListOpen(r.Context())
	if err != nil {
		writeError(w, r, "list open sales", err, nil)
		return
	}
	if sales == nil {
		sales = []database.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	view, err := h.svc.Get(r.Context(), saleID)
	if err != nil {
		writeError(w, r, "get sale", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SaleHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	policy, err := service.PolicyForOrigin(req.Origin)
	if err != nil {
		writeError(w, r, "add item", err, nil)
		return
	}

	in := service.AddItemRequest{
		SaleID:    saleID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Policy:    policy,
		Notes:     req.Notes,
	}
	if req.Variation != nil {
		v := &service.VariationRequest{TypeID: req.Variation.TypeID}
		for _, o := range req.Variation.Options {
			v.Options = append(v.Options, service.OptionRequest{ProductID: o.ProductID, Weight: o.Weight})
		}
		in.Variation = v
	}

	view, err := h.svc.AddItem(r.Context(), in)
	h.respond(w, r, "add item", saleID, view, err)
}

// RemoveProduct removes one unit of product_id, picking the line the way the
// requesting device adds them.
func (h *SaleHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	productID, ok := queryID(r, "product_id")
	if !ok || productID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}
	policy, err := service.PolicyForOrigin(r.URL.Query().Get("origin"))
	if err != nil {
		writeError(w, r, "remove item", err, nil)
		return
	}

	view, err := h.svc.RemoveItem(r.Context(), service.RemoveItemRequest{SaleID: saleID, ProductID: *productID, Policy: policy})
	h.respond(w, r, "remove item", saleID, view, err)
}

func (h *SaleHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	saleID, itemID, ok := saleAndItem(w, r)
	if !ok {
		return
	}
	view, err := h.svc.RemoveItem(r.Context(), service.RemoveItemRequest{SaleID: saleID, ItemID: &itemID})
	h.respond(w, r, "remove item", saleID, view, err)
}

func (h *SaleHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	saleID, itemID, ok := saleAndItem(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.svc.UpdateItemQuantity(r.Context(), service.UpdateQuantityRequest{SaleID: saleID, ItemID: itemID, Quantity: req.Quantity})
	h.respond(w, r, "update item quantity", saleID, view, err)
}

func (h *SaleHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	saleID, itemID, ok := saleAndItem(w, r)
	if !ok {
		return
	}
	var req updateItemStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.UpdateItemStatusRequest{SaleID: saleID, ItemID: itemID, Status: req.Status}
	if req.Status == enum.ItemStatusReady && !claims.System {
		in.PreparedBy = &claims.EmployeeID
	}
	view, err := h.svc.UpdateItemStatus(r.Context(), in)
	h.respond(w, r, "update item status", saleID, view, err)
}

func (h *SaleHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	var req discountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := h.svc.ApplyDiscount(r.Context(), saleID, req.Discount)
	h.respond(w, r, "apply discount", saleID, view, err)
}

func (h *SaleHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	var req finalizeRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	view, err := h.svc.Finalize(r.Context(), service.FinalizeRequest{SaleID: saleID, PaymentMethod: req.PaymentMethod})
	h.respond(w, r, "finalize sale", saleID, view, err)
}

func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	view, err := h.svc.Cancel(r.Context(), saleID)
	h.respond(w, r, "cancel sale", saleID, view, err)
}

func (h *SaleHandler) SectorQueue(w http.ResponseWriter, r *http.Request) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return
	}
	sectorID, ok := pathID(r, "sid")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sector ID"})
		return
	}
	items, err := h.svc.SectorQueue(r.Context(), saleID, sectorID)
	if err != nil {
		writeError(w, r, "sector queue", err, nil)
		return
	}
	if items == nil {
		items = []database.SectorQueueItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// respond writes the result of a sale mutation. Rejected mutations carry the
// current sale so the client can resync.
func (h *SaleHandler) respond(w http.ResponseWriter, r *http.Request, op string, saleID int64, view *service.SaleView, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}
	var extra map[string]interface{}
	if s := statusFor(err); s == http.StatusBadRequest || s == http.StatusConflict {
		if current, getErr := h.svc.Get(r.Context(), saleID); getErr == nil {
			extra = map[string]interface{}{"sale": current}
		}
	}
	writeError(w, r, op, err, extra)
}

func saleAndItem(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	saleID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sale ID"})
		return 0, 0, false
	}
	itemID, ok := pathID(r, "itemID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return 0, 0, false
	}
	return saleID, itemID, true
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
