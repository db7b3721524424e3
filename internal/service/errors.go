package service

import "errors"

// Validation errors: the request is malformed or names unusable data.
var (
	ErrAttendantRequired = errors.New("an identified attendant is required")
	ErrInvalidAttendant  = errors.New("attendant is not an active employee")
	ErrInvalidKind       = errors.New("kind must be table or tab")
	ErrTableRequired     = errors.New("table_id is required for table sales")
	ErrTabWithTable      = errors.New("tab sales cannot be bound to a table")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidDiscount   = errors.New("discount must be >= 0")
	ErrProductInactive   = errors.New("product is not active")
	ErrInvalidVariation  = errors.New("invalid variation")
	ErrInvalidItemStatus = errors.New("status must be pending, ready or delivered")
	ErrInvalidGuests     = errors.New("guests must be >= 0")
	ErrInvalidFilter     = errors.New("invalid sale filter")
	ErrInvalidOrigin     = errors.New("origin must be terminal or seat")
)

// Conflict errors: the request is valid but the current state forbids it.
var (
	ErrSaleFinalized     = errors.New("sale is already finalized")
	ErrSaleCancelled     = errors.New("sale is already cancelled")
	ErrNoItems           = errors.New("sale has no items")
	ErrTableOccupied     = errors.New("table already has an open sale")
	ErrTableUnavailable  = errors.New("table is not available")
	ErrTableSaleOpen     = errors.New("table's sale is still open; finalize or cancel it first")
	ErrInvalidTransition = errors.New("item status transition not allowed")
)

// Not-found errors.
var (
	ErrSaleNotFound          = errors.New("sale not found")
	ErrItemNotFound          = errors.New("sale item not found")
	ErrTableNotFound         = errors.New("table not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrVariationTypeNotFound = errors.New("variation type not found")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrEmployeeNotFound      = errors.New("employee not found")
	ErrSectorNotFound        = errors.New("dispatch sector not found")
	ErrNoOpenCashSession     = errors.New("no open register session")
)
