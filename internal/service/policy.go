package service

import (
	"fmt"
	"strings"

	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/textfold"
)

// LinePolicy decides whether repeated additions of a product share a line.
type LinePolicy int

const (
	// PolicyMergeable adds repeated plain products to the existing line.
	PolicyMergeable LinePolicy = iota
	// PolicyIndependent gives every addition its own line, so per-seat
	// bills stay separable.
	PolicyIndependent
)

func (p LinePolicy) String() string {
	if p == PolicyIndependent {
		return "independent"
	}
	return "mergeable"
}

// Origin is the device class stored on lines created under p.
func (p LinePolicy) Origin() string {
	if p == PolicyIndependent {
		return enum.OriginSeat
	}
	return enum.OriginTerminal
}

// PolicyForOrigin maps the ordering device class to its line policy.
// An empty origin is a shared terminal.
func PolicyForOrigin(origin string) (LinePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(origin)) {
	case "", enum.OriginTerminal:
		return PolicyMergeable, nil
	case enum.OriginSeat:
		return PolicyIndependent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrigin, origin)
	}
}

// NormalizePaymentMethod folds case and accents and maps aliases onto
// cash, card or pix. Anything unrecognized is cash.
func NormalizePaymentMethod(method string) string {
	switch textfold.Fold(method) {
	case "card", "cartao", "credit", "credito", "debit", "debito", "credit card", "debit card":
		return enum.PaymentMethodCard
	case "pix":
		return enum.PaymentMethodPix
	default:
		return enum.PaymentMethodCash
	}
}
