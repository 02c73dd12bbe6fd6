package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/money"
	"github.com/tallystack/treasury/internal/store"
	"github.com/tallystack/treasury/internal/telemetry"
)

// SwapEngine settles asset swaps in two phases. Request escrows the
// user's input and freezes the quote; Execute delivers the output from
// the owner's liquidity and releases the ticket. The single mutex
// serialises both phases, so the pending table plus the escrow balance
// always account for every open obligation.
type SwapEngine struct {
	mu       sync.Mutex
	swaps    store.SwapStore
	fees     store.FeeStore
	vault    custody.Vault
	recorder audit.Recorder
	escrow   domain.Address
	clock    func() time.Time
}

// NewSwapEngine creates an engine escrowing into the given address. The
// escrow account must be registered for every asset users swap in or
// out of.
func NewSwapEngine(swaps store.SwapStore, fees store.FeeStore, vault custody.Vault, escrow domain.Address, recorder audit.Recorder) *SwapEngine {
	return &SwapEngine{
		swaps:    swaps,
		fees:     fees,
		vault:    vault,
		recorder: recorder,
		escrow:   escrow,
		clock:    time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (e *SwapEngine) WithClock(clock func() time.Time) *SwapEngine {
	e.clock = clock
	return e
}

// Escrow returns the account holding escrowed swap inputs.
func (e *SwapEngine) Escrow() domain.Address {
	return e.escrow
}

// Request escrows amountIn of inAsset from the user and opens a ticket
// quoting amountOut of outAsset. The quote and fee are computed from the
// rate and the fee basis points in force now; later fee changes never
// touch the ticket. Fails with domain.ErrSlippage when the quote after
// fees falls below minOut, with nothing escrowed.
func (e *SwapEngine) Request(ctx context.Context, user domain.Address, inAsset, outAsset domain.AssetCode, amountIn, minOut, rate uint64) (*domain.SwapTicket, error) {
	if amountIn == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	if rate == 0 {
		return nil, fmt.Errorf("%w: rate must be positive", domain.ErrInvalidAmount)
	}
	if inAsset == outAsset {
		return nil, fmt.Errorf("%w: cannot swap %s for itself", domain.ErrInvalidInput, inAsset)
	}

	cfg, err := e.fees.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fee config: %w", err)
	}

	rawOut, err := money.MulDiv(amountIn, rate, domain.RateScale)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	fee, err := money.MulDiv(rawOut, uint64(cfg.BasisPoints), domain.MaxFeeBasisPoints)
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}

	// fee <= rawOut because BasisPoints is capped at MaxFeeBasisPoints.
	amountOut := rawOut - fee

	if amountOut < minOut {
		return nil, fmt.Errorf("%w: quote %d below minimum %d", domain.ErrSlippage, amountOut, minOut)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	funds, err := e.vault.Withdraw(ctx, user, inAsset, amountIn)
	if err != nil {
		return nil, fmt.Errorf("escrow withdraw: %w", err)
	}

	if err := e.vault.Deposit(ctx, e.escrow, funds); err != nil {
		e.refund(ctx, user, funds)
		return nil, fmt.Errorf("escrow deposit: %w", err)
	}

	ticket := &domain.SwapTicket{
		Requester: user,
		InAsset:   inAsset,
		OutAsset:  outAsset,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Fee:       fee,
		Rate:      rate,
		CreatedAt: e.clock(),
	}

	if _, err := e.swaps.Insert(ctx, ticket); err != nil {
		// No ticket means no obligation; send the escrowed input back.
		back, werr := e.vault.Withdraw(ctx, e.escrow, inAsset, amountIn)
		if werr != nil {
			log.Error().
				Err(werr).
				Str("user", user.String()).
				Str("asset", inAsset.String()).
				Uint64("amount", amountIn).
				Msg("Escrow release after failed insert failed, funds stranded in escrow")
		} else {
			e.refund(ctx, user, back)
		}
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	emit(ctx, e.recorder, audit.NewTransfer(user, e.escrow, inAsset, amountIn, ticket.CreatedAt))

	telemetry.GetMetrics().SwapsRequestedTotal.Add(ctx, 1)

	log.Info().
		Uint64("ticket", ticket.ID).
		Str("user", user.String()).
		Str("in_asset", inAsset.String()).
		Str("out_asset", outAsset.String()).
		Uint64("amount_in", amountIn).
		Uint64("amount_out", amountOut).
		Uint64("fee", fee).
		Msg("Swap requested")

	return ticket, nil
}

// Execute settles ticket id: the requester receives the quoted output
// from the caller's balance and the fee lands in escrow alongside the
// already held input. Only the fee owner may call it. The ticket leaves
// the pending table exactly once; a second Execute of the same id fails
// with domain.ErrNotFound.
func (e *SwapEngine) Execute(ctx context.Context, caller domain.Address, id uint64) (*domain.SwapTicket, error) {
	cfg, err := e.fees.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fee config: %w", err)
	}
	if caller != cfg.Owner {
		return nil, fmt.Errorf("%w: %s is not the swap owner", domain.ErrNotAuthorized, caller)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ticket, err := e.swaps.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := e.vault.IsRegistered(ctx, ticket.Requester, ticket.OutAsset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: requester %s is not registered for %s", domain.ErrInvalidInput, ticket.Requester, ticket.OutAsset)
	}

	ok, err = e.vault.IsRegistered(ctx, e.escrow, ticket.OutAsset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: escrow %s is not registered for %s", domain.ErrInvalidInput, e.escrow, ticket.OutAsset)
	}

	total, err := money.Add(ticket.AmountOut, ticket.Fee)
	if err != nil {
		return nil, fmt.Errorf("settlement total: %w", err)
	}

	balance, err := e.vault.Balance(ctx, caller, ticket.OutAsset)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, fmt.Errorf("%w: settlement needs %d %s, owner holds %d", domain.ErrInsufficientLiquidity, total, ticket.OutAsset, balance)
	}

	funds, err := e.vault.Withdraw(ctx, caller, ticket.OutAsset, total)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, fmt.Errorf("%w: settlement needs %d %s", domain.ErrInsufficientLiquidity, total, ticket.OutAsset)
		}
		return nil, fmt.Errorf("withdraw settlement: %w", err)
	}

	payout, feeCut, err := funds.Split(ticket.AmountOut)
	if err != nil {
		e.refund(ctx, caller, funds)
		return nil, fmt.Errorf("split settlement: %w", err)
	}

	if err := e.vault.Deposit(ctx, ticket.Requester, payout); err != nil {
		e.refund(ctx, caller, funds)
		return nil, fmt.Errorf("deposit payout: %w", err)
	}

	if err := e.vault.Deposit(ctx, e.escrow, feeCut); err != nil {
		e.clawBack(ctx, ticket.Requester, caller, ticket.OutAsset, ticket.AmountOut)
		e.refund(ctx, caller, feeCut)
		return nil, fmt.Errorf("deposit fee: %w", err)
	}

	// Removal is the commit point. If it fails the ticket is still open,
	// so every settlement leg has to come back.
	if err := e.swaps.Remove(ctx, id); err != nil {
		e.clawBack(ctx, ticket.Requester, caller, ticket.OutAsset, ticket.AmountOut)
		e.clawBack(ctx, e.escrow, caller, ticket.OutAsset, ticket.Fee)
		return nil, fmt.Errorf("remove ticket: %w", err)
	}

	now := e.clock()
	emit(ctx, e.recorder, audit.NewSwap(ticket.Requester, ticket.InAsset, ticket.OutAsset, ticket.AmountIn, ticket.AmountOut, ticket.Rate, ticket.Fee, now))
	emit(ctx, e.recorder, audit.NewTransfer(caller, ticket.Requester, ticket.OutAsset, ticket.AmountOut, now))
	if ticket.Fee > 0 {
		emit(ctx, e.recorder, audit.NewTransfer(caller, e.escrow, ticket.OutAsset, ticket.Fee, now))
	}

	m := telemetry.GetMetrics()
	m.SwapsExecutedTotal.Add(ctx, 1)
	m.SwapSettlementDuration.Record(ctx, float64(now.Sub(ticket.CreatedAt))/float64(time.Millisecond))

	log.Info().
		Uint64("ticket", ticket.ID).
		Str("requester", ticket.Requester.String()).
		Str("out_asset", ticket.OutAsset.String()).
		Uint64("amount_out", ticket.AmountOut).
		Uint64("fee", ticket.Fee).
		Msg("Swap executed")

	return ticket, nil
}

// SetFeeBasisPoints updates the fee applied to future quotes. Pending
// tickets keep the fee frozen at their request time.
func (e *SwapEngine) SetFeeBasisPoints(ctx context.Context, caller domain.Address, bps uint32) error {
	cfg, err := e.fees.Get(ctx)
	if err != nil {
		return fmt.Errorf("load fee config: %w", err)
	}
	if caller != cfg.Owner {
		return fmt.Errorf("%w: %s is not the swap owner", domain.ErrNotAuthorized, caller)
	}
	if bps > domain.MaxFeeBasisPoints {
		return fmt.Errorf("%w: %d basis points exceeds maximum %d", domain.ErrInvalidInput, bps, domain.MaxFeeBasisPoints)
	}

	if err := e.fees.SetBasisPoints(ctx, bps, e.clock()); err != nil {
		return err
	}

	log.Info().
		Uint32("basis_points", bps).
		Msg("Swap fee updated")

	return nil
}

// Pending lists open tickets in ascending id order.
func (e *SwapEngine) Pending(ctx context.Context) ([]*domain.SwapTicket, error) {
	return e.swaps.Pending(ctx)
}

// Get returns a pending ticket by id.
func (e *SwapEngine) Get(ctx context.Context, id uint64) (*domain.SwapTicket, error) {
	return e.swaps.Get(ctx, id)
}

// Fee returns the fee configuration in force for new requests.
func (e *SwapEngine) Fee(ctx context.Context) (*domain.FeeConfig, error) {
	return e.fees.Get(ctx)
}

func (e *SwapEngine) refund(ctx context.Context, to domain.Address, funds custody.Funds) {
	if err := e.vault.Deposit(ctx, to, funds); err != nil {
		log.Error().
			Err(err).
			Str("account", to.String()).
			Str("asset", funds.Asset.String()).
			Uint64("amount", funds.Amount).
			Msg("Refund deposit failed, funds stranded")
	}
}

// clawBack reverses a settlement leg after a later one failed, pulling
// amount out of from and returning it to to. Double failures are logged
// for operator intervention.
func (e *SwapEngine) clawBack(ctx context.Context, from, to domain.Address, asset domain.AssetCode, amount uint64) {
	if amount == 0 {
		return
	}

	funds, err := e.vault.Withdraw(ctx, from, asset, amount)
	if err != nil {
		log.Error().
			Err(err).
			Str("from", from.String()).
			Str("asset", asset.String()).
			Uint64("amount", amount).
			Msg("Settlement claw-back withdraw failed")
		return
	}

	e.refund(ctx, to, funds)
}
