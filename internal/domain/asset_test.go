package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAssetCode(t *testing.T) {
	t.Run("accepts common codes", func(t *testing.T) {
		for _, code := range []string{"USDC", "EUR", "TOK1", "CREDITS"} {
			parsed, err := ParseAssetCode(code)
			require.NoError(t, err)
			require.Equal(t, AssetCode(code), parsed)
		}
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		for _, code := range []string{"", "usdc", "1USD", "U", "TOOLONGASSETCODE1", "US-D"} {
			_, err := ParseAssetCode(code)
			require.ErrorIs(t, err, ErrInvalidInput, "code %q", code)
		}
	})
}

func TestParseTag(t *testing.T) {
	t.Run("accepts opaque labels", func(t *testing.T) {
		tag, err := ParseTag("operating")
		require.NoError(t, err)
		require.Equal(t, Tag("operating"), tag)
	})

	t.Run("rejects empty tag", func(t *testing.T) {
		_, err := ParseTag("")
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects oversized tag", func(t *testing.T) {
		_, err := ParseTag(strings.Repeat("a", MaxTagLen+1))
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestErrorTaxonomy(t *testing.T) {
	require.ErrorIs(t, ErrInvalidAmount, ErrInvalidInput)
	require.ErrorIs(t, ErrLengthMismatch, ErrInvalidInput)
	require.NotErrorIs(t, ErrOverflow, ErrInvalidInput)
}
