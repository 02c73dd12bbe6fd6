package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tallystack/treasury/internal/domain"
)

// FeeStore implements store.FeeStore in memory.
type FeeStore struct {
	mu sync.RWMutex

	cfg *domain.FeeConfig
}

// NewFeeStore creates an uninitialised in-memory fee store.
func NewFeeStore() *FeeStore {
	return &FeeStore{}
}

func (s *FeeStore) Init(_ context.Context, cfg *domain.FeeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil {
		return fmt.Errorf("%w: fee config", domain.ErrAlreadyExists)
	}

	clone := *cfg
	s.cfg = &clone

	return nil
}

func (s *FeeStore) Get(_ context.Context) (*domain.FeeConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, fmt.Errorf("%w: fee config", domain.ErrNotFound)
	}

	clone := *s.cfg

	return &clone, nil
}

func (s *FeeStore) SetBasisPoints(_ context.Context, bps uint32, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg == nil {
		return fmt.Errorf("%w: fee config", domain.ErrNotFound)
	}

	s.cfg.BasisPoints = bps
	s.cfg.UpdatedAt = at

	return nil
}
