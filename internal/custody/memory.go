package custody

import (
	"context"
	"fmt"
	"sync"

	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/money"
)

type accountKey struct {
	account domain.Address
	asset   domain.AssetCode
}

// MemoryVault is an in-process Vault used by tests, development and the
// default server mode. Accounts hold an asset only after explicit
// registration, mirroring the production custody service.
type MemoryVault struct {
	mu       sync.RWMutex
	balances map[accountKey]uint64
}

// NewMemoryVault returns an empty vault with no registered accounts.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		balances: make(map[accountKey]uint64),
	}
}

// Register opens the (account, asset) pair with a zero balance.
// Registering twice is harmless.
func (v *MemoryVault) Register(account domain.Address, asset domain.AssetCode) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := accountKey{account: account, asset: asset}
	if _, ok := v.balances[key]; !ok {
		v.balances[key] = 0
	}
}

// Mint registers the account if needed and credits it out of thin air.
// Development and test seeding only.
func (v *MemoryVault) Mint(account domain.Address, asset domain.AssetCode, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := accountKey{account: account, asset: asset}

	next, err := money.Add(v.balances[key], amount)
	if err != nil {
		return err
	}

	v.balances[key] = next

	return nil
}

func (v *MemoryVault) Withdraw(_ context.Context, account domain.Address, asset domain.AssetCode, amount uint64) (Funds, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := accountKey{account: account, asset: asset}

	balance, ok := v.balances[key]
	if !ok {
		return Funds{}, fmt.Errorf("%w: account %s is not registered for %s", domain.ErrInvalidInput, account, asset)
	}

	next, err := money.Sub(balance, amount)
	if err != nil {
		return Funds{}, fmt.Errorf("withdraw %d %s from %s: %w", amount, asset, account, err)
	}

	v.balances[key] = next

	return Funds{Asset: asset, Amount: amount}, nil
}

func (v *MemoryVault) Deposit(_ context.Context, account domain.Address, funds Funds) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := accountKey{account: account, asset: funds.Asset}

	balance, ok := v.balances[key]
	if !ok {
		return fmt.Errorf("%w: account %s is not registered for %s", domain.ErrInvalidInput, account, funds.Asset)
	}

	next, err := money.Add(balance, funds.Amount)
	if err != nil {
		return err
	}

	v.balances[key] = next

	return nil
}

func (v *MemoryVault) IsRegistered(_ context.Context, account domain.Address, asset domain.AssetCode) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, ok := v.balances[accountKey{account: account, asset: asset}]

	return ok, nil
}

func (v *MemoryVault) Balance(_ context.Context, account domain.Address, asset domain.AssetCode) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.balances[accountKey{account: account, asset: asset}], nil
}
