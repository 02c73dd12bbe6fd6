package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/money"
	"github.com/tallystack/treasury/internal/telemetry"
)

// MaxMemoLen bounds the payroll memo in bytes.
const MaxMemoLen = 256

// PayrollRunner settles payroll batches. A batch is all-or-nothing:
// every failure mode is checked before any value moves, so either all
// payments settle in input order or none do.
type PayrollRunner struct {
	vault    custody.Vault
	recorder audit.Recorder
	clock    func() time.Time
}

// NewPayrollRunner creates a runner over the vault.
func NewPayrollRunner(vault custody.Vault, recorder audit.Recorder) *PayrollRunner {
	return &PayrollRunner{
		vault:    vault,
		recorder: recorder,
		clock:    time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (p *PayrollRunner) WithClock(clock func() time.Time) *PayrollRunner {
	p.clock = clock
	return p
}

// BatchPay pays amounts[i] to recipients[i] from the employer's custody
// account and returns the batch total. Duplicate recipients are paid
// once per entry. All payments in a batch share one timestamp and carry
// the same memo in their audit events.
func (p *PayrollRunner) BatchPay(ctx context.Context, employer domain.Address, asset domain.AssetCode, recipients []domain.Address, amounts []uint64, memo string) (uint64, error) {
	if len(recipients) != len(amounts) {
		return 0, fmt.Errorf("%w: %d recipients, %d amounts", domain.ErrLengthMismatch, len(recipients), len(amounts))
	}
	if len(recipients) == 0 {
		return 0, fmt.Errorf("%w: empty batch", domain.ErrInvalidInput)
	}
	if len(memo) > MaxMemoLen {
		return 0, fmt.Errorf("%w: memo exceeds %d bytes", domain.ErrInvalidInput, MaxMemoLen)
	}

	for i, amount := range amounts {
		if amount == 0 {
			return 0, fmt.Errorf("%w: payment %d is zero", domain.ErrInvalidAmount, i)
		}
	}

	total, err := money.Sum(amounts)
	if err != nil {
		return 0, fmt.Errorf("batch total: %w", err)
	}

	// Pre-flight. Nothing has moved yet, so any failure here aborts the
	// batch with every balance untouched.
	for i, recipient := range recipients {
		ok, err := p.vault.IsRegistered(ctx, recipient, asset)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: recipient %d (%s) is not registered for %s", domain.ErrInvalidInput, i, recipient, asset)
		}
	}

	balance, err := p.vault.Balance(ctx, employer, asset)
	if err != nil {
		return 0, err
	}
	if balance < total {
		return 0, fmt.Errorf("%w: batch total %d exceeds employer balance %d", domain.ErrInsufficientBalance, total, balance)
	}

	for i := range recipients {
		if err := p.pay(ctx, employer, recipients[i], asset, amounts[i]); err != nil {
			p.unwind(ctx, employer, asset, recipients[:i], amounts[:i])
			return 0, fmt.Errorf("payment %d: %w", i, err)
		}
	}

	// Events only once the whole batch has settled.
	now := p.clock()
	for i := range recipients {
		emit(ctx, p.recorder, audit.NewPayroll(employer, recipients[i], asset, amounts[i], memo, now))
	}

	m := telemetry.GetMetrics()
	m.PayrollBatchesTotal.Add(ctx, 1)
	m.PayrollPaymentsTotal.Add(ctx, int64(len(recipients)))

	log.Info().
		Str("employer", employer.String()).
		Str("asset", asset.String()).
		Int("payments", len(recipients)).
		Uint64("total", total).
		Msg("Payroll batch settled")

	return total, nil
}

func (p *PayrollRunner) pay(ctx context.Context, from, to domain.Address, asset domain.AssetCode, amount uint64) error {
	funds, err := p.vault.Withdraw(ctx, from, asset, amount)
	if err != nil {
		return err
	}

	if err := p.vault.Deposit(ctx, to, funds); err != nil {
		// Put the in-flight withdrawal back before failing.
		if derr := p.vault.Deposit(ctx, from, funds); derr != nil {
			log.Error().
				Err(derr).
				Str("employer", from.String()).
				Uint64("amount", amount).
				Msg("Refund after failed payment failed, funds stranded")
		}
		return err
	}

	return nil
}

// unwind claws completed payments back after a mid-batch failure. The
// pre-flight checks make this unreachable for a conforming vault; if a
// claw-back itself fails the remainder is logged for operator
// intervention rather than abandoned silently.
func (p *PayrollRunner) unwind(ctx context.Context, employer domain.Address, asset domain.AssetCode, recipients []domain.Address, amounts []uint64) {
	for i := len(recipients) - 1; i >= 0; i-- {
		funds, err := p.vault.Withdraw(ctx, recipients[i], asset, amounts[i])
		if err != nil {
			log.Error().
				Err(err).
				Str("recipient", recipients[i].String()).
				Uint64("amount", amounts[i]).
				Msg("Payroll unwind withdraw failed")
			continue
		}

		if err := p.vault.Deposit(ctx, employer, funds); err != nil {
			log.Error().
				Err(err).
				Str("employer", employer.String()).
				Uint64("amount", amounts[i]).
				Msg("Payroll unwind deposit failed, funds stranded")
		}
	}
}
