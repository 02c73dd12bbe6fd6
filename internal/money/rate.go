package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/tallystack/treasury/internal/domain"
)

// ParseRate converts a human decimal exchange rate such as "1.25" into
// the engine's fixed point form (scale 1e18). The conversion is exact:
// rates with more than 18 fractional digits are rejected rather than
// rounded, as are rates of zero or below and rates too large for uint64.
func ParseRate(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: rate %q is not a decimal", domain.ErrInvalidInput, s)
	}

	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: rate must be positive", domain.ErrInvalidInput)
	}

	scaled := d.Shift(18)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: rate %q has more than 18 fractional digits", domain.ErrInvalidInput, s)
	}

	i := scaled.BigInt()
	if !i.IsUint64() {
		return 0, fmt.Errorf("%w: rate %q", domain.ErrOverflow, s)
	}

	return i.Uint64(), nil
}

// FormatRate renders a fixed point rate back to its decimal form.
func FormatRate(rate uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(rate), -18).String()
}
