package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/store"
	"github.com/tallystack/treasury/internal/telemetry"
)

// TreasuryLedger manages organizations and their tagged treasuries. A
// treasury's tag balances always sum to the value the org's custody
// account acquired through Fund minus what left through Withdraw; the
// per-treasury lock keeps custody legs and tag bookkeeping from
// interleaving.
type TreasuryLedger struct {
	orgs       store.OrganizationStore
	treasuries store.TreasuryStore
	vault      custody.Vault
	recorder   audit.Recorder
	clock      func() time.Time
	locks      *keyedMutex
}

// NewTreasuryLedger creates a ledger over the given stores and vault.
func NewTreasuryLedger(orgs store.OrganizationStore, treasuries store.TreasuryStore, vault custody.Vault, recorder audit.Recorder) *TreasuryLedger {
	return &TreasuryLedger{
		orgs:       orgs,
		treasuries: treasuries,
		vault:      vault,
		recorder:   recorder,
		clock:      time.Now,
		locks:      newKeyedMutex(),
	}
}

// WithClock overrides the time source, for deterministic tests.
func (l *TreasuryLedger) WithClock(clock func() time.Time) *TreasuryLedger {
	l.clock = clock
	return l
}

// CreateOrganization registers a tenant. The admin address is fixed for
// the life of the organization.
func (l *TreasuryLedger) CreateOrganization(ctx context.Context, org, admin domain.Address) (*domain.Organization, error) {
	if !org.Valid() {
		return nil, fmt.Errorf("%w: org address %q", domain.ErrInvalidInput, string(org))
	}
	if !admin.Valid() {
		return nil, fmt.Errorf("%w: admin address %q", domain.ErrInvalidInput, string(admin))
	}

	o := &domain.Organization{
		Address:   org,
		Admin:     admin,
		CreatedAt: l.clock(),
	}

	if err := l.orgs.Create(ctx, o); err != nil {
		return nil, err
	}

	log.Info().
		Str("org", org.String()).
		Str("admin", admin.String()).
		Msg("Organization created")

	return o, nil
}

// Organization returns the stored record for addr.
func (l *TreasuryLedger) Organization(ctx context.Context, addr domain.Address) (*domain.Organization, error) {
	return l.orgs.Get(ctx, addr)
}

// CreateTreasury opens an empty treasury for the asset. Either the org
// account or its admin may create treasuries.
func (l *TreasuryLedger) CreateTreasury(ctx context.Context, caller, org domain.Address, asset domain.AssetCode) error {
	o, err := l.orgs.Get(ctx, org)
	if err != nil {
		return err
	}

	if caller != o.Address && caller != o.Admin {
		return fmt.Errorf("%w: %s cannot create treasuries for %s", domain.ErrNotAuthorized, caller, org)
	}

	if err := l.treasuries.Create(ctx, org, asset); err != nil {
		return err
	}

	log.Info().
		Str("org", org.String()).
		Str("asset", asset.String()).
		Msg("Treasury created")

	return nil
}

// Fund moves amount from the funder's custody account into org's
// treasury under tag. The custody pull happens first; a tag credit
// failure afterwards returns the pulled funds to the funder.
func (l *TreasuryLedger) Fund(ctx context.Context, funder, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	unlock := l.locks.lock(org, asset)
	defer unlock()

	ok, err := l.treasuries.Exists(ctx, org, asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: treasury %s/%s", domain.ErrNotFound, org, asset)
	}

	funds, err := l.vault.Withdraw(ctx, funder, asset, amount)
	if err != nil {
		return fmt.Errorf("withdraw from funder: %w", err)
	}

	if err := l.vault.Deposit(ctx, org, funds); err != nil {
		l.refund(ctx, funder, funds)
		return fmt.Errorf("deposit to org: %w", err)
	}

	if err := l.treasuries.Credit(ctx, org, asset, tag, amount); err != nil {
		// Pull the funds back out of org custody and return them.
		back, werr := l.vault.Withdraw(ctx, org, asset, amount)
		if werr != nil {
			log.Error().
				Err(werr).
				Str("org", org.String()).
				Str("asset", asset.String()).
				Uint64("amount", amount).
				Msg("Fund compensation failed, custody and ledger diverged")
		} else {
			l.refund(ctx, funder, back)
		}
		return fmt.Errorf("credit treasury: %w", err)
	}

	now := l.clock()
	emit(ctx, l.recorder, audit.NewTransfer(funder, org, asset, amount, now))
	emit(ctx, l.recorder, audit.NewTreasury(org, "", tag, asset, amount, now))

	telemetry.GetMetrics().DepositsTotal.Add(ctx, 1)

	log.Info().
		Str("funder", funder.String()).
		Str("org", org.String()).
		Str("asset", asset.String()).
		Str("tag", tag.String()).
		Uint64("amount", amount).
		Msg("Treasury funded")

	return nil
}

// InternalTransfer moves amount between two tags of the same treasury.
// Only the org's admin may call it. The destination tag springs into
// existence when absent.
func (l *TreasuryLedger) InternalTransfer(ctx context.Context, caller, org domain.Address, asset domain.AssetCode, from, to domain.Tag, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	if from == to {
		return fmt.Errorf("%w: from and to tags are equal", domain.ErrInvalidInput)
	}

	o, err := l.orgs.Get(ctx, org)
	if err != nil {
		return err
	}
	if caller != o.Admin {
		return fmt.Errorf("%w: %s is not the admin of %s", domain.ErrNotAuthorized, caller, org)
	}

	unlock := l.locks.lock(org, asset)
	defer unlock()

	if err := l.treasuries.Move(ctx, org, asset, from, to, amount); err != nil {
		return err
	}

	emit(ctx, l.recorder, audit.NewTreasury(org, from, to, asset, amount, l.clock()))

	telemetry.GetMetrics().InternalMovesTotal.Add(ctx, 1)

	log.Info().
		Str("org", org.String()).
		Str("asset", asset.String()).
		Str("from_tag", from.String()).
		Str("to_tag", to.String()).
		Uint64("amount", amount).
		Msg("Internal transfer")

	return nil
}

// Withdraw debits amount from org's tag and pushes it to the recipient's
// custody account. org is the authenticated caller: withdrawal rights
// rest with the org account itself.
func (l *TreasuryLedger) Withdraw(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, to domain.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	ok, err := l.vault.IsRegistered(ctx, to, asset)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: recipient %s is not registered for %s", domain.ErrInvalidInput, to, asset)
	}

	unlock := l.locks.lock(org, asset)
	defer unlock()

	// Debit before the custody legs so an insufficient tag fails cleanly
	// with nothing to unwind.
	if err := l.treasuries.Debit(ctx, org, asset, tag, amount); err != nil {
		return err
	}

	funds, err := l.vault.Withdraw(ctx, org, asset, amount)
	if err != nil {
		l.recredit(ctx, org, asset, tag, amount)
		return fmt.Errorf("withdraw from org custody: %w", err)
	}

	if err := l.vault.Deposit(ctx, to, funds); err != nil {
		l.refund(ctx, org, funds)
		l.recredit(ctx, org, asset, tag, amount)
		return fmt.Errorf("deposit to recipient: %w", err)
	}

	now := l.clock()
	emit(ctx, l.recorder, audit.NewTreasury(org, tag, "", asset, amount, now))
	emit(ctx, l.recorder, audit.NewTransfer(org, to, asset, amount, now))

	telemetry.GetMetrics().WithdrawalsTotal.Add(ctx, 1)

	log.Info().
		Str("org", org.String()).
		Str("asset", asset.String()).
		Str("tag", tag.String()).
		Str("to", to.String()).
		Uint64("amount", amount).
		Msg("Treasury withdrawal")

	return nil
}

// Balances returns every tag of the treasury with its balance.
func (l *TreasuryLedger) Balances(ctx context.Context, org domain.Address, asset domain.AssetCode) (map[domain.Tag]uint64, error) {
	return l.treasuries.Balances(ctx, org, asset)
}

// Balance returns one tag's balance, zero for a tag never credited.
func (l *TreasuryLedger) Balance(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag) (uint64, error) {
	return l.treasuries.Balance(ctx, org, asset, tag)
}

// refund returns in-flight funds to an account, logging when even that
// fails. A failed refund means the funds are stranded in no account and
// need operator intervention.
func (l *TreasuryLedger) refund(ctx context.Context, to domain.Address, funds custody.Funds) {
	if err := l.vault.Deposit(ctx, to, funds); err != nil {
		log.Error().
			Err(err).
			Str("account", to.String()).
			Str("asset", funds.Asset.String()).
			Uint64("amount", funds.Amount).
			Msg("Refund deposit failed, funds stranded")
	}
}

func (l *TreasuryLedger) recredit(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) {
	if err := l.treasuries.Credit(ctx, org, asset, tag, amount); err != nil {
		log.Error().
			Err(err).
			Str("org", org.String()).
			Str("asset", asset.String()).
			Str("tag", tag.String()).
			Uint64("amount", amount).
			Msg("Re-credit after failed withdrawal failed, ledger diverged")
	}
}
