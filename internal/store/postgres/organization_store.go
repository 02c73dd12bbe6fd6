package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/domain"
)

// OrganizationStore implements store.OrganizationStore on PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

// NewOrganizationStore creates a PostgreSQL-backed organization store
// sharing the given pool.
func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{
		pool: pool,
	}
}

// Create inserts a new organization.
func (s *OrganizationStore) Create(ctx context.Context, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (
			address, admin, created_at
		) VALUES (
			$1, $2, $3
		)
	`

	_, err := s.pool.Exec(ctx, query,
		org.Address.String(),
		org.Admin.String(),
		org.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create organization: %w", mapError(err))
	}

	log.Debug().
		Str("org", org.Address.String()).
		Str("admin", org.Admin.String()).
		Msg("Created organization")

	return nil
}

// Get retrieves an organization by address.
func (s *OrganizationStore) Get(ctx context.Context, addr domain.Address) (*domain.Organization, error) {
	query := `
		SELECT address, admin, created_at
		FROM organizations
		WHERE address = $1
	`

	var (
		org            domain.Organization
		address, admin string
	)

	err := s.pool.QueryRow(ctx, query, addr.String()).Scan(
		&address,
		&admin,
		&org.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", mapError(err))
	}

	org.Address = domain.Address(address)
	org.Admin = domain.Address(admin)

	return &org, nil
}
