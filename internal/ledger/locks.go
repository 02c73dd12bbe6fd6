package ledger

import (
	"sync"

	"github.com/tallystack/treasury/internal/domain"
)

// keyedMutex serialises composite operations per treasury. Entries are
// created on first use and kept; the key space is bounded by the
// (org, asset) pairs a deployment actually touches.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// lock acquires the mutex for (org, asset) and returns its unlock.
func (k *keyedMutex) lock(org domain.Address, asset domain.AssetCode) func() {
	key := string(org) + "/" + string(asset)

	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
