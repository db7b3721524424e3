package database

import (
	"context"
)

// Read access to the master tables (employees, customers, products,
// variation types, dispatch sectors). Their CRUD lives outside this service.

const employeeColumns = `id, name, role, active, system_account, created_at`

func scanEmployee(row interface{ Scan(...any) error }) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Role, &e.Active, &e.SystemAccount, &e.CreatedAt)
	return e, err
}

const getEmployee = `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

func (q *Queries) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, getEmployee, id))
}

const getSystemEmployee = `SELECT ` + employeeColumns + ` FROM employees WHERE system_account`

func (q *Queries) GetSystemEmployee(ctx context.Context) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, getSystemEmployee))
}

// The no-op update makes RETURNING yield the existing row when another
// request created the record first.
const ensureSystemEmployee = `
INSERT INTO employees (name, role, active, system_account)
VALUES ($1, 'ADMIN', TRUE, TRUE)
ON CONFLICT (system_account) WHERE system_account
DO UPDATE SET name = employees.name
RETURNING ` + employeeColumns

func (q *Queries) EnsureSystemEmployee(ctx context.Context, name string) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, ensureSystemEmployee, name))
}

const getFirstActiveEmployee = `SELECT ` + employeeColumns + ` FROM employees WHERE active ORDER BY id LIMIT 1`

func (q *Queries) GetFirstActiveEmployee(ctx context.Context) (Employee, error) {
	return scanEmployee(q.db.QueryRow(ctx, getFirstActiveEmployee))
}

const getCustomer = `SELECT id, name, phone, active FROM customers WHERE id = $1`

func (q *Queries) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, getCustomer, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Active)
	return c, err
}

const productColumns = `id, name, category_id, sale_price, active`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, dec(&p.SalePrice), &p.Active)
	return p, err
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listProductsByIDs = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::bigint[]) ORDER BY id`

func (q *Queries) ListProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getVariationType = `
SELECT id, name, max_options, category_id, pricing_rule, fixed_price, active
FROM variation_types WHERE id = $1`

func (q *Queries) GetVariationType(ctx context.Context, id int64) (VariationType, error) {
	var v VariationType
	err := q.db.QueryRow(ctx, getVariationType, id).Scan(
		&v.ID, &v.Name, &v.MaxOptions, &v.CategoryID, &v.PricingRule, dec(&v.FixedPrice), &v.Active,
	)
	return v, err
}

const sectorColumns = `ds.id, ds.name, ds.delivery_mode, ds.printer_id, ds.destination, ds.active, ds.is_default`

func scanSector(row interface{ Scan(...any) error }) (DispatchSector, error) {
	var s DispatchSector
	err := row.Scan(&s.ID, &s.Name, &s.DeliveryMode, &s.PrinterID, &s.Destination, &s.Active, &s.IsDefault)
	return s, err
}

const listSectorsForProduct = `
SELECT ` + sectorColumns + `
FROM product_sectors ps
JOIN dispatch_sectors ds ON ds.id = ps.sector_id
WHERE ps.product_id = $1 AND ds.active
ORDER BY ds.id`

func (q *Queries) ListSectorsForProduct(ctx context.Context, productID int64) ([]DispatchSector, error) {
	rows, err := q.db.Query(ctx, listSectorsForProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DispatchSector
	for rows.Next() {
		s, err := scanSector(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getDefaultSector = `SELECT ` + sectorColumns + ` FROM dispatch_sectors ds WHERE ds.is_default AND ds.active`

func (q *Queries) GetDefaultSector(ctx context.Context) (DispatchSector, error) {
	return scanSector(q.db.QueryRow(ctx, getDefaultSector))
}

const getSector = `SELECT ` + sectorColumns + ` FROM dispatch_sectors ds WHERE ds.id = $1`

func (q *Queries) GetSector(ctx context.Context, id int64) (DispatchSector, error) {
	return scanSector(q.db.QueryRow(ctx, getSector, id))
}
