package database

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	SystemAccount bool      `json:"system_account"`
	CreatedAt     time.Time `json:"created_at"`
}

type Customer struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Phone  *string `json:"phone"`
	Active bool    `json:"active"`
}

type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	CategoryID *int64          `json:"category_id"`
	SalePrice  decimal.Decimal `json:"sale_price"`
	Active     bool            `json:"active"`
}

type VariationType struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	MaxOptions  int32           `json:"max_options"`
	CategoryID  *int64          `json:"category_id"`
	PricingRule string          `json:"pricing_rule"`
	FixedPrice  decimal.Decimal `json:"fixed_price"`
	Active      bool            `json:"active"`
}

type DispatchSector struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	DeliveryMode string  `json:"delivery_mode"`
	PrinterID    *int64  `json:"printer_id"`
	Destination  *string `json:"destination"`
	Active       bool    `json:"active"`
	IsDefault    bool    `json:"is_default"`
}

type DiningTable struct {
	ID                    int64      `json:"id"`
	Number                int32      `json:"number"`
	Status                string     `json:"status"`
	CurrentSaleID         *int64     `json:"current_sale_id"`
	ResponsibleEmployeeID *int64     `json:"responsible_employee_id"`
	Guests                int32      `json:"guests"`
	OpenedAt              *time.Time `json:"opened_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Sale is a sales row joined with the number of its table (if any).
type Sale struct {
	ID            int64           `json:"id"`
	Status        string          `json:"status"`
	Kind          string          `json:"kind"`
	TableID       *int64          `json:"table_id"`
	CustomerID    *int64          `json:"customer_id"`
	TabName       *string         `json:"tab_name"`
	AttendantID   int64           `json:"attendant_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod *string         `json:"payment_method"`
	Notes         *string         `json:"notes"`
	HasKitchen    bool            `json:"has_kitchen"`
	HasCounter    bool            `json:"has_counter"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	FinalizedAt   *time.Time      `json:"finalized_at"`
	TableNumber   *int32          `json:"table_number"`
}

// SaleClosure is the snapshot written once when a sale is finalized.
type SaleClosure struct {
	SaleID          int64           `json:"sale_id"`
	ResponsibleName string          `json:"responsible_name"`
	AttendantName   string          `json:"attendant_name"`
	PaymentMethod   string          `json:"payment_method"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	ClosedAt        time.Time       `json:"closed_at"`
}

// Variation is the descriptor stored in sale_items.variation (JSONB).
type Variation struct {
	VariationTypeID int64             `json:"variation_type_id"`
	Rule            string            `json:"rule"`
	Label           string            `json:"label"`
	Options         []VariationOption `json:"options"`
}

type VariationOption struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Weight    decimal.Decimal `json:"weight"`
}

type SaleItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Status      string          `json:"status"`
	Origin      string          `json:"origin"`
	Mergeable   bool            `json:"mergeable"`
	Notes       *string         `json:"notes"`
	Variation   *Variation      `json:"variation"`
	PreparedAt  *time.Time      `json:"prepared_at"`
	PreparedBy  *int64          `json:"prepared_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CashSession struct {
	ID             int64           `json:"id"`
	Status         string          `json:"status"`
	OpenedBy       int64           `json:"opened_by"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Total          decimal.Decimal `json:"total"`
	TotalCash      decimal.Decimal `json:"total_cash"`
	TotalCard      decimal.Decimal `json:"total_card"`
	TotalPix       decimal.Decimal `json:"total_pix"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at"`
}

type CashEntry struct {
	ID        int64           `json:"id"`
	SessionID int64           `json:"session_id"`
	SaleID    int64           `json:"sale_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	CreatedAt time.Time       `json:"created_at"`
}

type PrintJob struct {
	ID        int64     `json:"id"`
	SectorID  int64     `json:"sector_id"`
	PrinterID *int64    `json:"printer_id"`
	SaleID    int64     `json:"sale_id"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	LastError *string   `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageJob struct {
	ID          int64     `json:"id"`
	SectorID    int64     `json:"sector_id"`
	Destination string    `json:"destination"`
	SaleID      int64     `json:"sale_id"`
	Content     string    `json:"content"`
	Status      string    `json:"status"`
	LastError   *string   `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
