package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/money"
)

type treasuryKey struct {
	org   domain.Address
	asset domain.AssetCode
}

// TreasuryStore implements store.TreasuryStore in memory. Each exported
// method is atomic under the store mutex; tags are created lazily by the
// first credit and behave as zero when absent.
type TreasuryStore struct {
	mu sync.RWMutex

	treasuries map[treasuryKey]map[domain.Tag]uint64
}

// NewTreasuryStore creates an empty in-memory treasury store.
func NewTreasuryStore() *TreasuryStore {
	return &TreasuryStore{
		treasuries: make(map[treasuryKey]map[domain.Tag]uint64),
	}
}

func (s *TreasuryStore) Create(_ context.Context, org domain.Address, asset domain.AssetCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := treasuryKey{org: org, asset: asset}
	if _, exists := s.treasuries[key]; exists {
		return fmt.Errorf("%w: treasury %s/%s", domain.ErrAlreadyExists, org, asset)
	}

	s.treasuries[key] = make(map[domain.Tag]uint64)

	return nil
}

func (s *TreasuryStore) Exists(_ context.Context, org domain.Address, asset domain.AssetCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.treasuries[treasuryKey{org: org, asset: asset}]

	return exists, nil
}

func (s *TreasuryStore) Credit(_ context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, exists := s.treasuries[treasuryKey{org: org, asset: asset}]
	if !exists {
		return fmt.Errorf("%w: treasury %s/%s", domain.ErrNotFound, org, asset)
	}

	next, err := money.Add(tags[tag], amount)
	if err != nil {
		return fmt.Errorf("credit %s/%s tag %s: %w", org, asset, tag, err)
	}

	tags[tag] = next

	return nil
}

func (s *TreasuryStore) Debit(_ context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.debitLocked(org, asset, tag, amount)
}

func (s *TreasuryStore) debitLocked(org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error {
	tags, exists := s.treasuries[treasuryKey{org: org, asset: asset}]
	if !exists {
		return fmt.Errorf("%w: treasury %s/%s", domain.ErrNotFound, org, asset)
	}

	next, err := money.Sub(tags[tag], amount)
	if err != nil {
		return fmt.Errorf("debit %s/%s tag %s: %w", org, asset, tag, err)
	}

	tags[tag] = next

	return nil
}

func (s *TreasuryStore) Move(_ context.Context, org domain.Address, asset domain.AssetCode, from, to domain.Tag, amount uint64) error {
	if from == to {
		return fmt.Errorf("%w: move within tag %s", domain.ErrInvalidInput, from)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.debitLocked(org, asset, from, amount); err != nil {
		return err
	}

	tags := s.treasuries[treasuryKey{org: org, asset: asset}]

	next, err := money.Add(tags[to], amount)
	if err != nil {
		// Roll the debit back so the move stays atomic.
		tags[from] += amount
		return fmt.Errorf("move %s/%s %s -> %s: %w", org, asset, from, to, err)
	}

	tags[to] = next

	return nil
}

func (s *TreasuryStore) Balance(_ context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.treasuries[treasuryKey{org: org, asset: asset}][tag], nil
}

func (s *TreasuryStore) Balances(_ context.Context, org domain.Address, asset domain.AssetCode) (map[domain.Tag]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags, exists := s.treasuries[treasuryKey{org: org, asset: asset}]
	if !exists {
		return nil, fmt.Errorf("%w: treasury %s/%s", domain.ErrNotFound, org, asset)
	}

	// Copy so callers cannot reach the live map.
	out := make(map[domain.Tag]uint64, len(tags))
	for tag, balance := range tags {
		out[tag] = balance
	}

	return out, nil
}
