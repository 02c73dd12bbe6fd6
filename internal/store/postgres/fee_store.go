package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/domain"
)

// FeeStore implements store.FeeStore on PostgreSQL. The configuration
// is a single row pinned to id 1.
type FeeStore struct {
	pool *pgxpool.Pool
}

// NewFeeStore creates a PostgreSQL-backed fee store sharing the given
// pool.
func NewFeeStore(pool *pgxpool.Pool) *FeeStore {
	return &FeeStore{
		pool: pool,
	}
}

// Init stores the owner and initial basis points once.
func (s *FeeStore) Init(ctx context.Context, cfg *domain.FeeConfig) error {
	query := `
		INSERT INTO fee_config (id, owner, basis_points, updated_at)
		VALUES (1, $1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, cfg.Owner.String(), int32(cfg.BasisPoints), cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to init fee config: %w", mapError(err))
	}

	log.Info().
		Str("owner", cfg.Owner.String()).
		Uint32("basis_points", cfg.BasisPoints).
		Msg("Initialised fee config")

	return nil
}

// Get returns the fee configuration.
func (s *FeeStore) Get(ctx context.Context) (*domain.FeeConfig, error) {
	query := `
		SELECT owner, basis_points, updated_at
		FROM fee_config
		WHERE id = 1
	`

	var (
		cfg   domain.FeeConfig
		owner string
		bps   int32
	)

	if err := s.pool.QueryRow(ctx, query).Scan(&owner, &bps, &cfg.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to get fee config: %w", mapError(err))
	}

	cfg.Owner = domain.Address(owner)
	cfg.BasisPoints = uint32(bps)

	return &cfg, nil
}

// SetBasisPoints updates the fee and its timestamp.
func (s *FeeStore) SetBasisPoints(ctx context.Context, bps uint32, at time.Time) error {
	query := `
		UPDATE fee_config
		SET basis_points = $1, updated_at = $2
		WHERE id = 1
	`

	result, err := s.pool.Exec(ctx, query, int32(bps), at)
	if err != nil {
		return fmt.Errorf("failed to update fee config: %w", mapError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: fee config not initialised", domain.ErrNotFound)
	}

	return nil
}
