package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/custody"
	"github.com/tallystack/treasury/internal/domain"
)

// captureRecorder collects emitted audit events for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *captureRecorder) Record(_ context.Context, ev audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)

	return nil
}

func (r *captureRecorder) byKind(kind audit.Kind) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []audit.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}

	return out
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

// stubVault delegates to a real MemoryVault unless a func field forces
// a specific failure.
type stubVault struct {
	inner        *custody.MemoryVault
	withdrawFunc func(ctx context.Context, account domain.Address, asset domain.AssetCode, amount uint64) (custody.Funds, error)
	depositFunc  func(ctx context.Context, account domain.Address, funds custody.Funds) error
}

func (v *stubVault) Withdraw(ctx context.Context, account domain.Address, asset domain.AssetCode, amount uint64) (custody.Funds, error) {
	if v.withdrawFunc != nil {
		return v.withdrawFunc(ctx, account, asset, amount)
	}

	return v.inner.Withdraw(ctx, account, asset, amount)
}

func (v *stubVault) Deposit(ctx context.Context, account domain.Address, funds custody.Funds) error {
	if v.depositFunc != nil {
		return v.depositFunc(ctx, account, funds)
	}

	return v.inner.Deposit(ctx, account, funds)
}

func (v *stubVault) IsRegistered(ctx context.Context, account domain.Address, asset domain.AssetCode) (bool, error) {
	return v.inner.IsRegistered(ctx, account, asset)
}

func (v *stubVault) Balance(ctx context.Context, account domain.Address, asset domain.AssetCode) (uint64, error) {
	return v.inner.Balance(ctx, account, asset)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
