package memory

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallystack/treasury/internal/domain"
)

func TestTreasuryStore_Create(t *testing.T) {
	ctx := context.Background()
	org := domain.RandomAddress()

	t.Run("create new treasury", func(t *testing.T) {
		s := NewTreasuryStore()

		require.NoError(t, s.Create(ctx, org, "USDC"))

		exists, err := s.Exists(ctx, org, "USDC")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("duplicate treasury returns error", func(t *testing.T) {
		s := NewTreasuryStore()

		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.ErrorIs(t, s.Create(ctx, org, "USDC"), domain.ErrAlreadyExists)
	})

	t.Run("same org different asset is distinct", func(t *testing.T) {
		s := NewTreasuryStore()

		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.NoError(t, s.Create(ctx, org, "EUR"))
	})
}

func TestTreasuryStore_CreditDebit(t *testing.T) {
	ctx := context.Background()
	org := domain.RandomAddress()

	t.Run("credit creates the tag lazily", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))

		require.NoError(t, s.Credit(ctx, org, "USDC", "operating", 100))

		balance, err := s.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(100), balance)
	})

	t.Run("credit unknown treasury fails", func(t *testing.T) {
		s := NewTreasuryStore()

		require.ErrorIs(t, s.Credit(ctx, org, "USDC", "operating", 100), domain.ErrNotFound)
	})

	t.Run("credit overflow rejected", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.NoError(t, s.Credit(ctx, org, "USDC", "operating", math.MaxUint64))

		require.ErrorIs(t, s.Credit(ctx, org, "USDC", "operating", 1), domain.ErrOverflow)

		// The failed credit must not have moved the balance.
		balance, err := s.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(math.MaxUint64), balance)
	})

	t.Run("debit missing tag is insufficient balance", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))

		require.ErrorIs(t, s.Debit(ctx, org, "USDC", "ghost", 1), domain.ErrInsufficientBalance)
	})

	t.Run("debit below zero rejected", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.NoError(t, s.Credit(ctx, org, "USDC", "operating", 10))

		require.ErrorIs(t, s.Debit(ctx, org, "USDC", "operating", 11), domain.ErrInsufficientBalance)

		balance, err := s.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(10), balance)
	})
}

func TestTreasuryStore_Move(t *testing.T) {
	ctx := context.Background()
	org := domain.RandomAddress()

	t.Run("moves between tags", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.NoError(t, s.Credit(ctx, org, "USDC", "operating", 100))

		require.NoError(t, s.Move(ctx, org, "USDC", "operating", "payroll", 40))

		balances, err := s.Balances(ctx, org, "USDC")
		require.NoError(t, err)
		require.Equal(t, map[domain.Tag]uint64{"operating": 60, "payroll": 40}, balances)
	})

	t.Run("same tag rejected", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))

		require.ErrorIs(t, s.Move(ctx, org, "USDC", "a", "a", 1), domain.ErrInvalidInput)
	})

	t.Run("insufficient source leaves both tags untouched", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.NoError(t, s.Credit(ctx, org, "USDC", "operating", 5))

		require.ErrorIs(t, s.Move(ctx, org, "USDC", "operating", "payroll", 6), domain.ErrInsufficientBalance)

		balances, err := s.Balances(ctx, org, "USDC")
		require.NoError(t, err)
		require.Equal(t, map[domain.Tag]uint64{"operating": 5}, balances)
	})
}

func TestTreasuryStore_Balances(t *testing.T) {
	ctx := context.Background()
	org := domain.RandomAddress()

	t.Run("unknown treasury fails", func(t *testing.T) {
		s := NewTreasuryStore()

		_, err := s.Balances(ctx, org, "USDC")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("returned map is a copy", func(t *testing.T) {
		s := NewTreasuryStore()
		require.NoError(t, s.Create(ctx, org, "USDC"))
		require.NoError(t, s.Credit(ctx, org, "USDC", "operating", 10))

		balances, err := s.Balances(ctx, org, "USDC")
		require.NoError(t, err)

		balances["operating"] = 999

		balance, err := s.Balance(ctx, org, "USDC", "operating")
		require.NoError(t, err)
		require.Equal(t, uint64(10), balance)
	})
}
