package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// discountPerStop is deducted once per stop position from the route origin.
var discountPerStop = decimal.NewFromInt(150)

// FeeBreakdown records how a paid fee was derived.
type FeeBreakdown struct {
	BaseFee  decimal.Decimal `json:"base_fee"`
	Position int             `json:"position"`
	Discount decimal.Decimal `json:"discount"`
	PaidFee  decimal.Decimal `json:"paid_fee"`
}

// ComputeFee returns max(base - 150*position, 0). A position of 0 means the
// stop is unknown and no discount applies.
func ComputeFee(base decimal.Decimal, position int) FeeBreakdown {
	discount := decimal.Zero
	if position > 0 {
		discount = discountPerStop.Mul(decimal.NewFromInt(int64(position)))
	}
	paid := base.Sub(discount)
	if paid.IsNegative() {
		paid = decimal.Zero
	}
	return FeeBreakdown{BaseFee: base, Position: position, Discount: discount, PaidFee: paid}
}

// SeatNumber formats the n-th allocated seat of a route, e.g. S-001.
func SeatNumber(n int) string {
	return fmt.Sprintf("S-%03d", n)
}
