// Package handler exposes the order lifecycle over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Report json field names, and let numeric tags work on decimals.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// decodeBody decodes a JSON body and runs its validator tags. It writes the
// 400 response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request"
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt", "gte", "min":
		return fe.Field() + " must be at least " + minFor(fe)
	default:
		return fe.Field() + " is invalid"
	}
}

func minFor(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		n, _ := strconv.Atoi(fe.Param())
		return strconv.Itoa(n + 1)
	}
	return fe.Param()
}

// pathID parses a positive int64 URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive int64 query parameter.
func queryID(r *http.Request, name string) (*int64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

func principal(claims *auth.Claims) service.Principal {
	return service.Principal{EmployeeID: claims.EmployeeID, System: claims.System}
}

var validationErrors = []error{
	service.ErrAttendantRequired,
	service.ErrInvalidAttendant,
	service.ErrInvalidKind,
	service.ErrTableRequired,
	service.ErrTabWithTable,
	service.ErrInvalidQuantity,
	service.ErrInvalidDiscount,
	service.ErrProductInactive,
	service.ErrInvalidVariation,
	service.ErrInvalidItemStatus,
	service.ErrInvalidGuests,
	service.ErrInvalidFilter,
	service.ErrInvalidOrigin,
}

var conflictErrors = []error{
	service.ErrSaleFinalized,
	service.ErrSaleCancelled,
	service.ErrNoItems,
	service.ErrTableOccupied,
	service.ErrTableUnavailable,
	service.ErrTableSaleOpen,
	service.ErrInvalidTransition,
}

var notFoundErrors = []error{
	service.ErrSaleNotFound,
	service.ErrItemNotFound,
	service.ErrTableNotFound,
	service.ErrProductNotFound,
	service.ErrVariationTypeNotFound,
	service.ErrCustomerNotFound,
	service.ErrEmployeeNotFound,
	service.ErrSectorNotFound,
	service.ErrNoOpenCashSession,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps service errors to HTTP statuses; anything unknown is 500.
func statusFor(err error) int {
	switch {
	case isAny(err, validationErrors):
		return http.StatusBadRequest
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"error": msg}, with extra fields merged in for
// client errors. Internal errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error, extra map[string]interface{}) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("op", op).
			Msg("request failed")
		writeJSON(w, status, map[string]string{"error": "internal server error"})
		return
	}
	body := map[string]interface{}{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}
