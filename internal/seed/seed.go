// Package seed loads bootstrap data (staff, floor, menu, dispatch sectors)
// from a YAML fixture.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/textfold"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML document. Entities reference each other by name.
type Fixture struct {
	Employees      []Employee      `yaml:"employees"`
	Customers      []Customer      `yaml:"customers"`
	Categories     []string        `yaml:"categories"`
	Printers       []Printer       `yaml:"printers"`
	Sectors        []Sector        `yaml:"sectors"`
	Products       []Product       `yaml:"products"`
	VariationTypes []VariationType `yaml:"variation_types"`
	Tables         Tables          `yaml:"tables"`
}

type Employee struct {
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Inactive bool   `yaml:"inactive"`
}

type Customer struct {
	Name  string  `yaml:"name"`
	Phone *string `yaml:"phone"`
}

type Printer struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type Sector struct {
	Name        string  `yaml:"name"`
	Mode        string  `yaml:"mode"`
	Printer     string  `yaml:"printer"`
	Destination *string `yaml:"destination"`
	Default     bool    `yaml:"default"`
}

type Product struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Price    string   `yaml:"price"`
	Sectors  []string `yaml:"sectors"`
	Inactive bool     `yaml:"inactive"`
}

type VariationType struct {
	Name       string `yaml:"name"`
	MaxOptions int32  `yaml:"max_options"`
	Category   string `yaml:"category"`
	Rule       string `yaml:"rule"`
	FixedPrice string `yaml:"fixed_price"`
}

// Tables creates tables numbered From..To, all free.
type Tables struct {
	From int32 `yaml:"from"`
	To   int32 `yaml:"to"`
}

var ErrInvalidFixture = errors.New("invalid seed fixture")

// Store is satisfied by *database.Queries.
type Store interface {
	CreateEmployee(ctx context.Context, arg database.CreateEmployeeParams) (database.Employee, error)
	CreateCustomer(ctx context.Context, name string, phone *string) (database.Customer, error)
	CreateCategory(ctx context.Context, name string) (int64, error)
	CreatePrinter(ctx context.Context, name, address string) (int64, error)
	CreateSector(ctx context.Context, arg database.CreateSectorParams) (database.DispatchSector, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	LinkProductSector(ctx context.Context, productID, sectorID int64) error
	CreateVariationType(ctx context.Context, arg database.CreateVariationTypeParams) (database.VariationType, error)
	CreateTable(ctx context.Context, number int32, status string) (database.DiningTable, error)
}

// Summary counts the rows created.
type Summary struct {
	Employees      int
	Customers      int
	Categories     int
	Printers       int
	Sectors        int
	Products       int
	VariationTypes int
	Tables         int
}

// Load decodes and checks a fixture. Unknown keys are rejected.
func Load(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references and enumerations before anything is written.
func (f *Fixture) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidFixture, fmt.Sprintf(format, args...))
	}

	for _, e := range f.Employees {
		switch e.Role {
		case enum.EmployeeRoleAdmin, enum.EmployeeRoleManager, enum.EmployeeRoleWaiter, enum.EmployeeRoleKitchen:
		default:
			return invalid("employee %q: unknown role %q", e.Name, e.Role)
		}
	}

	categories := names(f.Categories)
	printers := make(map[string]bool)
	for _, p := range f.Printers {
		printers[textfold.Fold(p.Name)] = true
	}

	sectors := make(map[string]bool)
	defaults := 0
	for _, s := range f.Sectors {
		switch s.Mode {
		case enum.DeliveryModePrinter:
			if !printers[textfold.Fold(s.Printer)] {
				return invalid("sector %q: unknown printer %q", s.Name, s.Printer)
			}
		case enum.DeliveryModeMessaging:
			if s.Destination == nil || *s.Destination == "" {
				return invalid("sector %q: messaging needs a destination", s.Name)
			}
		default:
			return invalid("sector %q: unknown mode %q", s.Name, s.Mode)
		}
		if s.Default {
			defaults++
		}
		sectors[textfold.Fold(s.Name)] = true
	}
	if defaults > 1 {
		return invalid("at most one default sector, got %d", defaults)
	}

	for _, p := range f.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil || price.IsNegative() {
			return invalid("product %q: bad price %q", p.Name, p.Price)
		}
		if p.Category != "" && !categories[textfold.Fold(p.Category)] {
			return invalid("product %q: unknown category %q", p.Name, p.Category)
		}
		for _, s := range p.Sectors {
			if !sectors[textfold.Fold(s)] {
				return invalid("product %q: unknown sector %q", p.Name, s)
			}
		}
	}

	for _, v := range f.VariationTypes {
		if v.MaxOptions < 1 {
			return invalid("variation type %q: max_options must be positive", v.Name)
		}
		switch v.Rule {
		case enum.PricingRuleHighest, enum.PricingRuleWeightedAverage, enum.PricingRuleFixed:
		default:
			return invalid("variation type %q: unknown rule %q", v.Name, v.Rule)
		}
		if v.FixedPrice != "" {
			if _, err := decimal.NewFromString(v.FixedPrice); err != nil {
				return invalid("variation type %q: bad fixed_price %q", v.Name, v.FixedPrice)
			}
		}
		if v.Category != "" && !categories[textfold.Fold(v.Category)] {
			return invalid("variation type %q: unknown category %q", v.Name, v.Category)
		}
	}

	if f.Tables.To < f.Tables.From || (f.Tables.To > 0 && f.Tables.From < 1) {
		return invalid("tables: bad range %d..%d", f.Tables.From, f.Tables.To)
	}
	return nil
}

// Apply writes the fixture through store. Callers run it inside a
// transaction so a failure leaves nothing behind.
func Apply(ctx context.Context, store Store, f *Fixture) (Summary, error) {
	var sum Summary

	for _, e := range f.Employees {
		if _, err := store.CreateEmployee(ctx, database.CreateEmployeeParams{Name: e.Name, Role: e.Role, Active: !e.Inactive}); err != nil {
			return sum, fmt.Errorf("create employee %q: %w", e.Name, err)
		}
		sum.Employees++
	}

	for _, c := range f.Customers {
		if _, err := store.CreateCustomer(ctx, c.Name, c.Phone); err != nil {
			return sum, fmt.Errorf("create customer %q: %w", c.Name, err)
		}
		sum.Customers++
	}

	categoryIDs := make(map[string]int64)
	for _, name := range f.Categories {
		id, err := store.CreateCategory(ctx, name)
		if err != nil {
			return sum, fmt.Errorf("create category %q: %w", name, err)
		}
		categoryIDs[textfold.Fold(name)] = id
		sum.Categories++
	}

	printerIDs := make(map[string]int64)
	for _, p := range f.Printers {
		id, err := store.CreatePrinter(ctx, p.Name, p.Address)
		if err != nil {
			return sum, fmt.Errorf("create printer %q: %w", p.Name, err)
		}
		printerIDs[textfold.Fold(p.Name)] = id
		sum.Printers++
	}

	sectorIDs := make(map[string]int64)
	for _, s := range f.Sectors {
		arg := database.CreateSectorParams{Name: s.Name, DeliveryMode: s.Mode, Destination: s.Destination, IsDefault: s.Default}
		if s.Mode == enum.DeliveryModePrinter {
			id := printerIDs[textfold.Fold(s.Printer)]
			arg.PrinterID = &id
		}
		sector, err := store.CreateSector(ctx, arg)
		if err != nil {
			return sum, fmt.Errorf("create sector %q: %w", s.Name, err)
		}
		sectorIDs[textfold.Fold(s.Name)] = sector.ID
		sum.Sectors++
	}

	for _, p := range f.Products {
		product, err := store.CreateProduct(ctx, database.CreateProductParams{
			Name:       p.Name,
			CategoryID: lookup(categoryIDs, p.Category),
			SalePrice:  decimal.RequireFromString(p.Price),
			Active:     !p.Inactive,
		})
		if err != nil {
			return sum, fmt.Errorf("create product %q: %w", p.Name, err)
		}
		for _, s := range p.Sectors {
			if err := store.LinkProductSector(ctx, product.ID, sectorIDs[textfold.Fold(s)]); err != nil {
				return sum, fmt.Errorf("link product %q to %q: %w", p.Name, s, err)
			}
		}
		sum.Products++
	}

	for _, v := range f.VariationTypes {
		fixed := decimal.Zero
		if v.FixedPrice != "" {
			fixed = decimal.RequireFromString(v.FixedPrice)
		}
		if _, err := store.CreateVariationType(ctx, database.CreateVariationTypeParams{
			Name:        v.Name,
			MaxOptions:  v.MaxOptions,
			CategoryID:  lookup(categoryIDs, v.Category),
			PricingRule: v.Rule,
			FixedPrice:  fixed,
		}); err != nil {
			return sum, fmt.Errorf("create variation type %q: %w", v.Name, err)
		}
		sum.VariationTypes++
	}

	if f.Tables.To > 0 {
		for n := f.Tables.From; n <= f.Tables.To; n++ {
			if _, err := store.CreateTable(ctx, n, enum.TableStatusFree); err != nil {
				return sum, fmt.Errorf("create table %d: %w", n, err)
			}
			sum.Tables++
		}
	}

	return sum, nil
}

func names(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[textfold.Fold(s)] = true
	}
	return m
}

func lookup(ids map[string]int64, name string) *int64 {
	if name == "" {
		return nil
	}
	id := ids[textfold.Fold(name)]
	return &id
}
