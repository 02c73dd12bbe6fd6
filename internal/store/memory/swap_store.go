package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tallystack/treasury/internal/domain"
)

// SwapStore implements store.SwapStore in memory. Ticket ids count up
// from 1 and are never handed out twice, including after removal.
type SwapStore struct {
	mu sync.RWMutex

	nextID  uint64
	pending map[uint64]*domain.SwapTicket
}

// NewSwapStore creates an empty in-memory swap store.
func NewSwapStore() *SwapStore {
	return &SwapStore{
		nextID:  1,
		pending: make(map[uint64]*domain.SwapTicket),
	}
}

func (s *SwapStore) Insert(_ context.Context, ticket *domain.SwapTicket) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket.ID = s.nextID
	s.nextID++

	clone := *ticket
	s.pending[clone.ID] = &clone

	return clone.ID, nil
}

func (s *SwapStore) Get(_ context.Context, id uint64) (*domain.SwapTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, exists := s.pending[id]
	if !exists {
		return nil, fmt.Errorf("%w: swap %d", domain.ErrNotFound, id)
	}

	clone := *ticket

	return &clone, nil
}

func (s *SwapStore) Remove(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[id]; !exists {
		return fmt.Errorf("%w: swap %d", domain.ErrNotFound, id)
	}

	delete(s.pending, id)

	return nil
}

func (s *SwapStore) Pending(_ context.Context) ([]*domain.SwapTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.SwapTicket, 0, len(s.pending))
	for _, ticket := range s.pending {
		clone := *ticket
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}
