package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/store/memory"
)

type swapFixture struct {
	engine   *SwapEngine
	fees     *memory.FeeStore
	vault    *custody.MemoryVault
	recorder *captureRecorder
	owner    domain.Address
	escrow   domain.Address
	user     domain.Address
	now      time.Time
}

// newSwapFixture builds an engine at 25 basis points with a user holding
// 10_000 USDC and the owner holding 10_000 EUR of settlement liquidity.
func newSwapFixture(t *testing.T) *swapFixture {
	t.Helper()

	f := &swapFixture{
		fees:     memory.NewFeeStore(),
		vault:    custody.NewMemoryVault(),
		recorder: &captureRecorder{},
		owner:    domain.RandomAddress(),
		escrow:   domain.RandomAddress(),
		user:     domain.RandomAddress(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, f.fees.Init(context.Background(), &domain.FeeConfig{
		Owner:       f.owner,
		BasisPoints: 25,
		UpdatedAt:   f.now,
	}))

	f.engine = NewSwapEngine(memory.NewSwapStore(), f.fees, f.vault, f.escrow, f.recorder).
		WithClock(fixedClock(f.now))

	require.NoError(t, f.vault.Mint(f.user, "USDC", 10_000))
	require.NoError(t, f.vault.Mint(f.owner, "EUR", 10_000))
	f.vault.Register(f.user, "EUR")
	f.vault.Register(f.escrow, "USDC")
	f.vault.Register(f.escrow, "EUR")

	return f
}

func (f *swapFixture) balance(t *testing.T, account domain.Address, asset domain.AssetCode) uint64 {
	t.Helper()

	balance, err := f.vault.Balance(context.Background(), account, asset)
	require.NoError(t, err)

	return balance
}

func TestSwapEngine_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("escrows the input and freezes the quote", func(t *testing.T) {
		f := newSwapFixture(t)

		ticket, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 0, domain.RateScale)
		require.NoError(t, err)

		require.Equal(t, uint64(1), ticket.ID)
		require.Equal(t, f.user, ticket.Requester)
		require.Equal(t, uint64(1_000), ticket.AmountIn)
		require.Equal(t, uint64(998), ticket.AmountOut)
		require.Equal(t, uint64(2), ticket.Fee)
		require.Equal(t, uint64(domain.RateScale), ticket.Rate)
		require.Equal(t, f.now, ticket.CreatedAt)

		require.Equal(t, uint64(9_000), f.balance(t, f.user, "USDC"))
		require.Equal(t, uint64(1_000), f.balance(t, f.escrow, "USDC"))
	})

	t.Run("quote truncates toward the ledger", func(t *testing.T) {
		f := newSwapFixture(t)

		// 333 * 1.5 = 499.5 truncates to 499; fee 499 * 25bps = 1.2475
		// truncates to 1.
		rate := uint64(domain.RateScale / 2 * 3)

		ticket, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 333, 0, rate)
		require.NoError(t, err)
		require.Equal(t, uint64(498), ticket.AmountOut)
		require.Equal(t, uint64(1), ticket.Fee)
	})

	t.Run("slippage guard escrows nothing", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 999, domain.RateScale)
		require.ErrorIs(t, err, domain.ErrSlippage)

		require.Equal(t, uint64(10_000), f.balance(t, f.user, "USDC"))

		pending, err := f.engine.Pending(ctx)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("zero amount and zero rate rejected", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 0, 0, domain.RateScale)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)

		_, err = f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 0, 0)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("same asset rejected", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.engine.Request(ctx, f.user, "USDC", "USDC", 1_000, 0, domain.RateScale)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("insufficient input balance opens no ticket", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 10_001, 0, domain.RateScale)
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)

		pending, err := f.engine.Pending(ctx)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("emits a transfer into escrow", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 0, domain.RateScale)
		require.NoError(t, err)

		transfers := f.recorder.byKind(audit.KindTransfer)
		require.Len(t, transfers, 1)
		require.Equal(t, f.user, transfers[0].Sender)
		require.Equal(t, f.escrow, transfers[0].Recipient)
		require.Equal(t, uint64(1_000), transfers[0].Amount)
	})

	t.Run("ticket ids ascend from one", func(t *testing.T) {
		f := newSwapFixture(t)

		for i := 0; i < 3; i++ {
			_, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 100, 0, domain.RateScale)
			require.NoError(t, err)
		}

		pending, err := f.engine.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		for i, ticket := range pending {
			require.Equal(t, uint64(i+1), ticket.ID)
		}
	})
}

func TestSwapEngine_Execute(t *testing.T) {
	ctx := context.Background()

	request := func(t *testing.T, f *swapFixture) *domain.SwapTicket {
		t.Helper()

		ticket, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 0, domain.RateScale)
		require.NoError(t, err)

		return ticket
	}

	t.Run("delivers the quote and banks the fee", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket := request(t, f)

		executed, err := f.engine.Execute(ctx, f.owner, ticket.ID)
		require.NoError(t, err)
		require.Equal(t, ticket.ID, executed.ID)

		require.Equal(t, uint64(998), f.balance(t, f.user, "EUR"))
		require.Equal(t, uint64(2), f.balance(t, f.escrow, "EUR"))
		require.Equal(t, uint64(9_000), f.balance(t, f.owner, "EUR"))

		// The escrowed input stays with the engine account.
		require.Equal(t, uint64(1_000), f.balance(t, f.escrow, "USDC"))

		_, err = f.engine.Get(ctx, ticket.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("second execute of the same ticket fails", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket := request(t, f)

		_, err := f.engine.Execute(ctx, f.owner, ticket.ID)
		require.NoError(t, err)

		_, err = f.engine.Execute(ctx, f.owner, ticket.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)

		// Balances unchanged by the failed attempt.
		require.Equal(t, uint64(998), f.balance(t, f.user, "EUR"))
		require.Equal(t, uint64(9_000), f.balance(t, f.owner, "EUR"))
	})

	t.Run("non-owner rejected, ticket stays pending", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket := request(t, f)

		_, err := f.engine.Execute(ctx, f.user, ticket.ID)
		require.ErrorIs(t, err, domain.ErrNotAuthorized)

		_, err = f.engine.Get(ctx, ticket.ID)
		require.NoError(t, err)
	})

	t.Run("unknown ticket fails", func(t *testing.T) {
		f := newSwapFixture(t)

		_, err := f.engine.Execute(ctx, f.owner, 42)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("insufficient liquidity leaves the ticket open", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 10_000, 0, 2*domain.RateScale)
		require.NoError(t, err)
		require.Equal(t, uint64(19_950), ticket.AmountOut) // 20_000 less 50 fee

		_, err = f.engine.Execute(ctx, f.owner, ticket.ID)
		require.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

		_, err = f.engine.Get(ctx, ticket.ID)
		require.NoError(t, err)
		require.Equal(t, uint64(10_000), f.balance(t, f.owner, "EUR"))
		require.Equal(t, uint64(0), f.balance(t, f.user, "EUR"))
	})

	t.Run("requester unregistered for the output fails cleanly", func(t *testing.T) {
		f := newSwapFixture(t)

		stranger := domain.RandomAddress()
		require.NoError(t, f.vault.Mint(stranger, "USDC", 1_000))

		ticket, err := f.engine.Request(ctx, stranger, "USDC", "EUR", 1_000, 0, domain.RateScale)
		require.NoError(t, err)

		_, err = f.engine.Execute(ctx, f.owner, ticket.ID)
		require.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = f.engine.Get(ctx, ticket.ID)
		require.NoError(t, err)
	})

	t.Run("fee stays frozen across a fee change", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket := request(t, f)

		require.NoError(t, f.engine.SetFeeBasisPoints(ctx, f.owner, 100))

		executed, err := f.engine.Execute(ctx, f.owner, ticket.ID)
		require.NoError(t, err)
		require.Equal(t, uint64(998), executed.AmountOut)
		require.Equal(t, uint64(2), executed.Fee)
		require.Equal(t, uint64(998), f.balance(t, f.user, "EUR"))

		// A fresh request quotes with the new fee.
		next, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 0, domain.RateScale)
		require.NoError(t, err)
		require.Equal(t, uint64(10), next.Fee)
		require.Equal(t, uint64(990), next.AmountOut)
	})

	t.Run("zero fee skips the fee transfer", func(t *testing.T) {
		f := newSwapFixture(t)
		require.NoError(t, f.engine.SetFeeBasisPoints(ctx, f.owner, 0))

		ticket, err := f.engine.Request(ctx, f.user, "USDC", "EUR", 1_000, 0, domain.RateScale)
		require.NoError(t, err)
		require.Equal(t, uint64(1_000), ticket.AmountOut)
		require.Equal(t, uint64(0), ticket.Fee)

		_, err = f.engine.Execute(ctx, f.owner, ticket.ID)
		require.NoError(t, err)

		swaps := f.recorder.byKind(audit.KindSwap)
		require.Len(t, swaps, 1)
		require.Equal(t, uint64(0), swaps[0].Fee)

		// Escrow transfer from the request plus the payout, nothing else.
		transfers := f.recorder.byKind(audit.KindTransfer)
		require.Len(t, transfers, 2)
	})

	t.Run("emits the swap event with the frozen quote", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket := request(t, f)

		_, err := f.engine.Execute(ctx, f.owner, ticket.ID)
		require.NoError(t, err)

		swaps := f.recorder.byKind(audit.KindSwap)
		require.Len(t, swaps, 1)
		require.Equal(t, f.user, swaps[0].User)
		require.Equal(t, domain.AssetCode("USDC"), swaps[0].InAsset)
		require.Equal(t, domain.AssetCode("EUR"), swaps[0].OutAsset)
		require.Equal(t, uint64(1_000), swaps[0].AmountIn)
		require.Equal(t, uint64(998), swaps[0].AmountOut)
		require.Equal(t, uint64(2), swaps[0].Fee)

		transfers := f.recorder.byKind(audit.KindTransfer)
		require.Len(t, transfers, 3) // escrow in, payout, fee
	})

	t.Run("value is conserved per asset", func(t *testing.T) {
		f := newSwapFixture(t)
		ticket := request(t, f)

		_, err := f.engine.Execute(ctx, f.owner, ticket.ID)
		require.NoError(t, err)

		usdc := f.balance(t, f.user, "USDC") + f.balance(t, f.escrow, "USDC") + f.balance(t, f.owner, "USDC")
		require.Equal(t, uint64(10_000), usdc)

		eur := f.balance(t, f.user, "EUR") + f.balance(t, f.escrow, "EUR") + f.balance(t, f.owner, "EUR")
		require.Equal(t, uint64(10_000), eur)
	})
}

func TestSwapEngine_SetFeeBasisPoints(t *testing.T) {
	ctx := context.Background()

	t.Run("owner updates the fee", func(t *testing.T) {
		f := newSwapFixture(t)

		require.NoError(t, f.engine.SetFeeBasisPoints(ctx, f.owner, 50))

		cfg, err := f.engine.Fee(ctx)
		require.NoError(t, err)
		require.Equal(t, uint32(50), cfg.BasisPoints)
		require.Equal(t, f.now, cfg.UpdatedAt)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		f := newSwapFixture(t)

		err := f.engine.SetFeeBasisPoints(ctx, f.user, 50)
		require.ErrorIs(t, err, domain.ErrNotAuthorized)
	})

	t.Run("maximum is inclusive", func(t *testing.T) {
		f := newSwapFixture(t)

		require.NoError(t, f.engine.SetFeeBasisPoints(ctx, f.owner, domain.MaxFeeBasisPoints))
		require.ErrorIs(t, f.engine.SetFeeBasisPoints(ctx, f.owner, domain.MaxFeeBasisPoints+1), domain.ErrInvalidInput)
	})
}
