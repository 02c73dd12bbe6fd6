// Package money implements overflow checked arithmetic on uint64 amounts.
//
// Balances, transfer amounts and swap quantities are plain uint64 values.
// Every operation that could wrap returns domain.ErrOverflow instead; the
// engines never carry a wrapped amount into a balance.
package money

import (
	"fmt"
	"math/bits"

	"github.com/tallystack/treasury/internal/domain"
)

// Add returns a+b, or domain.ErrOverflow when the sum wraps.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", domain.ErrOverflow, a, b)
	}

	return sum, nil
}

// Sub returns a-b, or domain.ErrInsufficientBalance when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", domain.ErrInsufficientBalance, a, b)
	}

	return diff, nil
}

// Sum accumulates amounts with carry checking. A batch whose true total
// exceeds uint64 fails here before any of it is applied.
func Sum(amounts []uint64) (uint64, error) {
	var total uint64

	for _, amount := range amounts {
		var err error

		total, err = Add(total, amount)
		if err != nil {
			return 0, err
		}
	}

	return total, nil
}

// MulDiv returns (a*b)/div using a full 128 bit intermediate product, so
// a*b may exceed uint64 as long as the quotient fits. Division truncates
// toward zero. Returns domain.ErrOverflow when the quotient does not fit
// and domain.ErrInvalidInput for a zero divisor.
func MulDiv(a, b, div uint64) (uint64, error) {
	if div == 0 {
		return 0, fmt.Errorf("%w: division by zero", domain.ErrInvalidInput)
	}

	hi, lo := bits.Mul64(a, b)
	if hi >= div {
		return 0, fmt.Errorf("%w: %d * %d / %d", domain.ErrOverflow, a, b, div)
	}

	quo, _ := bits.Div64(hi, lo, div)

	return quo, nil
}
