package postgres

import (
	"fmt"
	"strconv"

	"github.com/tallystack/treasury/internal/domain"
)

// Balances and amounts are uint64 in Go but NUMERIC(20,0) in the
// database, which pgx has no native mapping for. Values cross the wire
// as decimal text in both directions.

func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseNumeric(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: numeric %q out of uint64 range", domain.ErrOverflow, s)
	}

	return v, nil
}
