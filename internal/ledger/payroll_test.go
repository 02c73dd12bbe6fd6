package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
)

type payrollFixture struct {
	runner     *PayrollRunner
	vault      *custody.MemoryVault
	recorder   *captureRecorder
	employer   domain.Address
	recipients []domain.Address
	now        time.Time
}

// newPayrollFixture builds a runner with an employer holding 10_000 USDC
// and three registered recipients.
func newPayrollFixture(t *testing.T) *payrollFixture {
	t.Helper()

	f := &payrollFixture{
		vault:    custody.NewMemoryVault(),
		recorder: &captureRecorder{},
		employer: domain.RandomAddress(),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	f.runner = NewPayrollRunner(f.vault, f.recorder).WithClock(fixedClock(f.now))

	require.NoError(t, f.vault.Mint(f.employer, "USDC", 10_000))

	for i := 0; i < 3; i++ {
		r := domain.RandomAddress()
		f.vault.Register(r, "USDC")
		f.recipients = append(f.recipients, r)
	}

	return f
}

func (f *payrollFixture) balance(t *testing.T, account domain.Address) uint64 {
	t.Helper()

	balance, err := f.vault.Balance(context.Background(), account, "USDC")
	require.NoError(t, err)

	return balance
}

func TestPayrollRunner_BatchPay(t *testing.T) {
	ctx := context.Background()

	t.Run("pays every recipient and returns the total", func(t *testing.T) {
		f := newPayrollFixture(t)

		total, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients, []uint64{100, 200, 300}, "june salaries")
		require.NoError(t, err)
		require.Equal(t, uint64(600), total)

		require.Equal(t, uint64(9_400), f.balance(t, f.employer))
		require.Equal(t, uint64(100), f.balance(t, f.recipients[0]))
		require.Equal(t, uint64(200), f.balance(t, f.recipients[1]))
		require.Equal(t, uint64(300), f.balance(t, f.recipients[2]))
	})

	t.Run("events share timestamp and memo, one per payment", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients, []uint64{100, 200, 300}, "june salaries")
		require.NoError(t, err)

		events := f.recorder.byKind(audit.KindPayroll)
		require.Len(t, events, 3)
		require.Equal(t, 3, f.recorder.count()) // no transfer events alongside

		for i, ev := range events {
			require.Equal(t, f.employer, ev.Employer)
			require.Equal(t, f.recipients[i], ev.Employee)
			require.Equal(t, "june salaries", ev.Memo)
			require.Equal(t, f.now, ev.Timestamp)
		}
	})

	t.Run("length mismatch rejected", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients, []uint64{100}, "")
		require.ErrorIs(t, err, domain.ErrLengthMismatch)
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("empty batch rejected", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", nil, nil, "")
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("zero amount names the offending index", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients, []uint64{100, 0, 300}, "")
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
		require.Contains(t, err.Error(), "payment 1")
	})

	t.Run("oversized memo rejected", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients[:1], []uint64{100}, strings.Repeat("x", MaxMemoLen+1))
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("overflowing batch total rejected before any payment", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients[:2], []uint64{1 << 63, 1 << 63}, "")
		require.ErrorIs(t, err, domain.ErrOverflow)

		require.Equal(t, uint64(10_000), f.balance(t, f.employer))
		require.Equal(t, uint64(0), f.balance(t, f.recipients[0]))
		require.Equal(t, 0, f.recorder.count())
	})

	t.Run("unregistered recipient aborts the whole batch", func(t *testing.T) {
		f := newPayrollFixture(t)
		recipients := []domain.Address{f.recipients[0], domain.RandomAddress()}

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", recipients, []uint64{100, 100}, "")
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		require.Contains(t, err.Error(), "recipient 1")

		require.Equal(t, uint64(10_000), f.balance(t, f.employer))
		require.Equal(t, uint64(0), f.balance(t, f.recipients[0]))
	})

	t.Run("insufficient employer balance moves nothing", func(t *testing.T) {
		f := newPayrollFixture(t)

		_, err := f.runner.BatchPay(ctx, f.employer, "USDC", f.recipients, []uint64{5_000, 5_000, 1}, "")
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)

		require.Equal(t, uint64(10_000), f.balance(t, f.employer))
		require.Equal(t, 0, f.recorder.count())
	})

	t.Run("duplicate recipient is paid per entry", func(t *testing.T) {
		f := newPayrollFixture(t)
		recipients := []domain.Address{f.recipients[0], f.recipients[0]}

		total, err := f.runner.BatchPay(ctx, f.employer, "USDC", recipients, []uint64{100, 250}, "")
		require.NoError(t, err)
		require.Equal(t, uint64(350), total)
		require.Equal(t, uint64(350), f.balance(t, f.recipients[0]))
	})

	t.Run("mid-batch deposit failure unwinds completed payments", func(t *testing.T) {
		f := newPayrollFixture(t)

		stub := &stubVault{inner: f.vault}
		stub.depositFunc = func(ctx context.Context, account domain.Address, funds custody.Funds) error {
			if account == f.recipients[1] {
				return errors.New("custody unavailable")
			}
			return f.vault.Deposit(ctx, account, funds)
		}

		runner := NewPayrollRunner(stub, f.recorder)

		_, err := runner.BatchPay(ctx, f.employer, "USDC", f.recipients, []uint64{100, 200, 300}, "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "payment 1")

		// First payment clawed back, employer whole, zero events.
		require.Equal(t, uint64(10_000), f.balance(t, f.employer))
		require.Equal(t, uint64(0), f.balance(t, f.recipients[0]))
		require.Equal(t, uint64(0), f.balance(t, f.recipients[1]))
		require.Equal(t, 0, f.recorder.count())
	})
}
