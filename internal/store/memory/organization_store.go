// Package memory implements the store interfaces with in-process maps.
// Used by tests, development and single node deployments; data is lost
// on restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tallystack/treasury/internal/domain"
)

// OrganizationStore implements store.OrganizationStore in memory.
type OrganizationStore struct {
	mu sync.RWMutex

	orgs map[domain.Address]*domain.Organization
}

// NewOrganizationStore creates an empty in-memory organization store.
func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{
		orgs: make(map[domain.Address]*domain.Organization),
	}
}

func (s *OrganizationStore) Create(_ context.Context, org *domain.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orgs[org.Address]; exists {
		return fmt.Errorf("%w: organization %s", domain.ErrAlreadyExists, org.Address)
	}

	// Clone to avoid external modifications
	clone := *org
	s.orgs[org.Address] = &clone

	return nil
}

func (s *OrganizationStore) Get(_ context.Context, addr domain.Address) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.orgs[addr]
	if !exists {
		return nil, fmt.Errorf("%w: organization %s", domain.ErrNotFound, addr)
	}

	clone := *org

	return &clone, nil
}
