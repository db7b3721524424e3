package database

import (
	"context"

	"github.com/shopspring/decimal"
)

// Inserts for bootstrap data. Used by posctl seed and the integration tests.

type CreateEmployeeParams struct {
	Name   string
	Role   string
	Active bool
}

const createEmployee = `
INSERT INTO employees (name, role, active)
VALUES ($1, $2, $3)
RETURNING ` + employeeColumns

func (q *Queries) CreateEmployee(ctx context.Context, arg CreateEmployeeParams) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, createEmployee, arg.Name, arg.Role, arg.Active))
}

const createCustomer = `
INSERT INTO customers (name, phone)
VALUES ($1, $2)
RETURNING id, name, phone, active`

func (q *Queries) CreateCustomer(ctx context.Context, name string, phone *string) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, createCustomer, name, phone).Scan(&c.ID, &c.Name, &c.Phone, &c.Active)
	return c, err
}

const createCategory = `INSERT INTO categories (name) VALUES ($1) RETURNING id`

func (q *Queries) CreateCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createCategory, name).Scan(&id)
	return id, err
}

type CreateProductParams struct {
	Name       string
	CategoryID *int64
	SalePrice  decimal.Decimal
	Active     bool
}

const createProduct = `
INSERT INTO products (name, category_id, sale_price, active)
VALUES ($1, $2, $3, $4)
RETURNING id, name, category_id, sale_price, active`

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, createProduct, arg.Name, arg.CategoryID, Numeric(arg.SalePrice), arg.Active).Scan(
		&p.ID, &p.Name, &p.CategoryID, dec(&p.SalePrice), &p.Active,
	)
	return p, err
}

const createPrinter = `INSERT INTO printers (name, address) VALUES ($1, $2) RETURNING id`

func (q *Queries) CreatePrinter(ctx context.Context, name, address string) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, createPrinter, name, address).Scan(&id)
	return id, err
}

type CreateSectorParams struct {
	Name         string
	DeliveryMode string
	PrinterID    *int64
	Destination  *string
	IsDefault    bool
}

const createSector = `
INSERT INTO dispatch_sectors AS ds (name, delivery_mode, printer_id, destination, is_default)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + sectorColumns

func (q *Queries) CreateSector(ctx context.Context, arg CreateSectorParams) (DispatchSector, error) {
	return scanSector(q.db.QueryRow(ctx, createSector,
		arg.Name, arg.DeliveryMode, arg.PrinterID, arg.Destination, arg.IsDefault,
	))
}

const linkProductSector = `
INSERT INTO product_sectors (product_id, sector_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

func (q *Queries) LinkProductSector(ctx context.Context, productID, sectorID int64) error {
	_, err := q.db.Exec(ctx, linkProductSector, productID, sectorID)
	return err
}

type CreateVariationTypeParams struct {
	Name        string
	MaxOptions  int32
	CategoryID  *int64
	PricingRule string
	FixedPrice  decimal.Decimal
}

const createVariationType = `
INSERT INTO variation_types (name, max_options, category_id, pricing_rule, fixed_price)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, max_options, category_id, pricing_rule, fixed_price, active`

func (q *Queries) CreateVariationType(ctx context.Context, arg CreateVariationTypeParams) (VariationType, error) {
	var v VariationType
	err := q.db.QueryRow(ctx, createVariationType,
		arg.Name, arg.MaxOptions, arg.CategoryID, arg.PricingRule, Numeric(arg.FixedPrice),
	).Scan(&v.ID, &v.Name, &v.MaxOptions, &v.CategoryID, &v.PricingRule, dec(&v.FixedPrice), &v.Active)
	return v, err
}

const createTable = `
INSERT INTO dining_tables (number, status)
VALUES ($1, $2)
RETURNING ` + tableColumns

func (q *Queries) CreateTable(ctx context.Context, number int32, status string) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, number, status))
}
