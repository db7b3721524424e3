package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/pricing"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// resolveVariation prices a variation-bearing line and builds the descriptor
// stored with it.
func resolveVariation(ctx context.Context, store SaleStore, product database.Product, req VariationRequest) (decimal.Decimal, *database.Variation, error) {
	vt, err := store.GetVariationType(ctx, req.TypeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil, ErrVariationTypeNotFound
	}
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("get variation type: %w", err)
	}
	if !vt.Active {
		return decimal.Zero, nil, fmt.Errorf("%w: variation type %d is inactive", ErrInvalidVariation, vt.ID)
	}
	if !inCategory(vt, product) {
		return decimal.Zero, nil, fmt.Errorf("%w: variation type %d does not apply to product %d", ErrInvalidVariation, vt.ID, product.ID)
	}
	if len(req.Options) == 0 {
		return decimal.Zero, nil, fmt.Errorf("%w: %v", ErrInvalidVariation, pricing.ErrNoOptions)
	}

	ids := make([]int64, 0, len(req.Options))
	for _, o := range req.Options {
		ids = append(ids, o.ProductID)
	}
	products, err := store.ListProductsByIDs(ctx, ids)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("list option products: %w", err)
	}
	byID := make(map[int64]database.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	opts := make([]pricing.Option, 0, len(req.Options))
	for _, o := range req.Options {
		p, ok := byID[o.ProductID]
		if !ok {
			return decimal.Zero, nil, fmt.Errorf("%w: option product %d not found", ErrInvalidVariation, o.ProductID)
		}
		if !p.Active {
			return decimal.Zero, nil, fmt.Errorf("%w: option product %d is inactive", ErrInvalidVariation, o.ProductID)
		}
		if !inCategory(vt, p) {
			return decimal.Zero, nil, fmt.Errorf("%w: option product %d is outside the variation's category", ErrInvalidVariation, o.ProductID)
		}
		opts = append(opts, pricing.Option{ProductID: p.ID, Name: p.Name, Price: p.SalePrice, Weight: o.Weight})
	}

	in := pricing.Input{
		Rule:       vt.PricingRule,
		BasePrice:  product.SalePrice,
		FixedPrice: vt.FixedPrice,
		MaxOptions: int(vt.MaxOptions),
		Options:    opts,
	}
	if err := pricing.Validate(in); err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: %v", ErrInvalidVariation, err)
	}
	price, err := pricing.Evaluate(in)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: %v", ErrInvalidVariation, err)
	}

	weights := pricing.Weights(in)
	v := &database.Variation{
		VariationTypeID: vt.ID,
		Rule:            vt.PricingRule,
		Label:           pricing.Label(vt.Name, opts),
		Options:         make([]database.VariationOption, len(opts)),
	}
	for i, o := range opts {
		v.Options[i] = database.VariationOption{ProductID: o.ProductID, Name: o.Name, Price: o.Price, Weight: weights[i]}
	}
	return price, v, nil
}

// inCategory applies the variation type's category filter. A type without
// a category applies to every product.
func inCategory(vt database.VariationType, p database.Product) bool {
	if vt.CategoryID == nil {
		return true
	}
	return p.CategoryID != nil && *p.CategoryID == *vt.CategoryID
}
