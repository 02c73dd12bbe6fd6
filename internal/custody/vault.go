// Package custody defines the boundary to the platform's value transfer
// service. The ledger engines never mutate account balances directly;
// every movement of real value goes through a Vault, and every credited
// amount traces back to an equal prior withdrawal.
package custody

import (
	"context"
	"fmt"

	"github.com/tallystack/treasury/internal/domain"
)

// Funds is value in flight between a withdrawal and a deposit. The
// engines obtain Funds only from Vault.Withdraw or Split, never by
// construction, which keeps debits and credits paired.
type Funds struct {
	Asset  domain.AssetCode
	Amount uint64
}

// Split divides funds into a part of exactly n and the remainder.
// Returns domain.ErrInsufficientBalance when n exceeds the amount held.
func (f Funds) Split(n uint64) (part, rest Funds, err error) {
	if n > f.Amount {
		return Funds{}, Funds{}, fmt.Errorf("%w: split %d of %d %s", domain.ErrInsufficientBalance, n, f.Amount, f.Asset)
	}

	part = Funds{Asset: f.Asset, Amount: n}
	rest = Funds{Asset: f.Asset, Amount: f.Amount - n}

	return part, rest, nil
}

// Vault moves value between custody accounts.
//
// Implementations must make each call atomic: a withdrawal either debits
// the full amount or nothing. The engines sequence their own composite
// operations above this interface.
type Vault interface {
	// Withdraw debits amount from the account and returns it as Funds.
	// Fails with domain.ErrInsufficientBalance or, for an account not
	// registered for the asset, domain.ErrInvalidInput.
	Withdraw(ctx context.Context, account domain.Address, asset domain.AssetCode, amount uint64) (Funds, error)

	// Deposit credits funds to the account. Fails with
	// domain.ErrInvalidInput when the account is not registered for the
	// asset and domain.ErrOverflow when the credit would wrap.
	Deposit(ctx context.Context, account domain.Address, funds Funds) error

	// IsRegistered reports whether the account can hold the asset.
	IsRegistered(ctx context.Context, account domain.Address, asset domain.AssetCode) (bool, error)

	// Balance returns the account's custody balance for the asset.
	Balance(ctx context.Context, account domain.Address, asset domain.AssetCode) (uint64, error)
}
