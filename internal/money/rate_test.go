package money

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallystack/treasury/internal/domain"
)

func TestParseRate(t *testing.T) {
	t.Run("parses exact decimals", func(t *testing.T) {
		for rate, want := range map[string]uint64{
			"1":                    domain.RateScale,
			"1.0":                  domain.RateScale,
			"0.5":                  domain.RateScale / 2,
			"2.5":                  2*domain.RateScale + domain.RateScale/2,
			"0.000000000000000001": 1,
		} {
			got, err := ParseRate(rate)
			require.NoError(t, err, "rate %q", rate)
			require.Equal(t, want, got, "rate %q", rate)
		}
	})

	t.Run("rejects zero and negative rates", func(t *testing.T) {
		for _, rate := range []string{"0", "-1", "-0.25"} {
			_, err := ParseRate(rate)
			require.ErrorIs(t, err, domain.ErrInvalidInput, "rate %q", rate)
		}
	})

	t.Run("rejects sub scale precision", func(t *testing.T) {
		_, err := ParseRate("0.0000000000000000001")
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects rates beyond uint64", func(t *testing.T) {
		_, err := ParseRate("20000000000000000000")
		require.ErrorIs(t, err, domain.ErrOverflow)
	})

	t.Run("rejects junk", func(t *testing.T) {
		_, err := ParseRate("1.2.3")
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestFormatRate(t *testing.T) {
	require.Equal(t, "1", FormatRate(domain.RateScale))
	require.Equal(t, "0.5", FormatRate(domain.RateScale/2))
	require.Equal(t, "0.000000000000000001", FormatRate(1))
}
