// Package pricing resolves the unit price of a line item that carries a
// variation (a choice of option products such as pizza flavors).
package pricing

import (
	"errors"
	"strings"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

var (
	ErrNoOptions      = errors.New("at least one variation option is required")
	ErrTooManyOptions = errors.New("too many variation options selected")
	ErrInvalidWeights = errors.New("variation option weights must sum to 1")
	ErrNegativeWeight = errors.New("variation option weight must be positive")
	ErrNegativePrice  = errors.New("variation option price must not be negative")
	ErrUnknownRule    = errors.New("unknown pricing rule")
	weightTolerance   = decimal.RequireFromString("0.01")
	one               = decimal.NewFromInt(1)
)

// Option is one chosen option product. Weight is the fraction of the line the
// option covers; nil means "use the default share" (1 / max options).
type Option struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Weight    *decimal.Decimal
}

// Input is everything the evaluator needs to price one line.
type Input struct {
	Rule       string
	BasePrice  decimal.Decimal
	FixedPrice decimal.Decimal
	MaxOptions int
	Options    []Option
}

// IsValidRule reports whether rule is one of the supported pricing rules.
func IsValidRule(rule string) bool {
	switch rule {
	case enum.PricingRuleHighest, enum.PricingRuleWeightedAverage, enum.PricingRuleFixed:
		return true
	}
	return false
}

// Validate performs the checks callers run before Evaluate: the option count
// must be within 1..MaxOptions, and explicitly supplied weights must cover the
// whole line for the weighted-average rule.
func Validate(in Input) error {
	if !IsValidRule(in.Rule) {
		return ErrUnknownRule
	}
	if len(in.Options) == 0 {
		return ErrNoOptions
	}
	if in.MaxOptions > 0 && len(in.Options) > in.MaxOptions {
		return ErrTooManyOptions
	}

	explicit := 0
	sum := decimal.Zero
	for _, o := range in.Options {
		if o.Price.IsNegative() {
			return ErrNegativePrice
		}
		if o.Weight == nil {
			continue
		}
		if !o.Weight.IsPositive() || o.Weight.GreaterThan(one) {
			return ErrNegativeWeight
		}
		explicit++
		sum = sum.Add(*o.Weight)
	}

	if in.Rule == enum.PricingRuleWeightedAverage && explicit > 0 {
		if explicit != len(in.Options) {
			return ErrInvalidWeights
		}
		if sum.Sub(one).Abs().GreaterThan(weightTolerance) {
			return ErrInvalidWeights
		}
	}
	return nil
}

// Evaluate returns the unit price for in, rounded to cents.
func Evaluate(in Input) (decimal.Decimal, error) {
	switch in.Rule {
	case enum.PricingRuleFixed:
		if in.FixedPrice.IsPositive() {
			return in.FixedPrice.Round(2), nil
		}
		return in.BasePrice.Round(2), nil

	case enum.PricingRuleHighest:
		if len(in.Options) == 0 {
			return decimal.Zero, ErrNoOptions
		}
		max := in.Options[0].Price
		for _, o := range in.Options[1:] {
			if o.Price.GreaterThan(max) {
				max = o.Price
			}
		}
		return max.Round(2), nil

	case enum.PricingRuleWeightedAverage:
		if len(in.Options) == 0 {
			return decimal.Zero, ErrNoOptions
		}
		weights := Weights(in)
		num := decimal.Zero
		den := decimal.Zero
		for i, o := range in.Options {
			num = num.Add(o.Price.Mul(weights[i]))
			den = den.Add(weights[i])
		}
		if !den.IsPositive() {
			return mean(in.Options).Round(2), nil
		}
		return num.Div(den).Round(2), nil
	}
	return decimal.Zero, ErrUnknownRule
}

// Weights returns the effective weight of every option, filling unspecified
// ones with 1 / MaxOptions (or 1 / len(Options) when no maximum is set).
func Weights(in Input) []decimal.Decimal {
	n := in.MaxOptions
	if n <= 0 {
		n = len(in.Options)
	}
	def := decimal.Zero
	if n > 0 {
		def = one.Div(decimal.NewFromInt(int64(n)))
	}
	out := make([]decimal.Decimal, len(in.Options))
	for i, o := range in.Options {
		if o.Weight != nil {
			out[i] = *o.Weight
		} else {
			out[i] = def
		}
	}
	return out
}

func mean(opts []Option) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range opts {
		sum = sum.Add(o.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(opts))))
}

// Label renders the human-readable description stored on the line, e.g.
// "Pizza 2 flavors: Calabresa / Margherita".
func Label(typeName string, opts []Option) string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		if n := strings.TrimSpace(o.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return typeName
	}
	if typeName == "" {
		return strings.Join(names, " / ")
	}
	return typeName + ": " + strings.Join(names, " / ")
}
