package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/domain"
)

// TreasuryStore implements store.TreasuryStore on PostgreSQL. Every
// mutation is a single guarded statement: the balance check, the
// arithmetic and the write happen inside one atomic UPDATE or INSERT,
// so two concurrent debits can never both pass the same funds check.
type TreasuryStore struct {
	pool *pgxpool.Pool
}

// NewTreasuryStore creates a PostgreSQL-backed treasury store sharing
// the given pool.
func NewTreasuryStore(pool *pgxpool.Pool) *TreasuryStore {
	return &TreasuryStore{
		pool: pool,
	}
}

// Create registers an empty treasury for the (org, asset) pair.
func (s *TreasuryStore) Create(ctx context.Context, org domain.Address, asset domain.AssetCode) error {
	query := `
		INSERT INTO treasuries (org_address, asset) VALUES ($1, $2)
	`

	_, err := s.pool.Exec(ctx, query, org.String(), asset.String())
	if err != nil {
		return fmt.Errorf("failed to create treasury: %w", mapError(err))
	}

	log.Debug().
		Str("org", org.String()).
		Str("asset", asset.String()).
		Msg("Created treasury")

	return nil
}

// Exists reports whether the treasury has been created.
func (s *TreasuryStore) Exists(ctx context.Context, org domain.Address, asset domain.AssetCode) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM treasuries WHERE org_address = $1 AND asset = $2
		)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, org.String(), asset.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check treasury: %w", mapError(err))
	}

	return exists, nil
}

// Credit adds amount to a tag, creating the tag row on first credit. A
// missing treasury fails the foreign key and maps to ErrNotFound; a sum
// past the uint64 range fails the balance check and maps to ErrOverflow.
func (s *TreasuryStore) Credit(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error {
	query := `
		INSERT INTO treasury_balances (org_address, asset, tag, balance)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (org_address, asset, tag)
		DO UPDATE SET balance = treasury_balances.balance + EXCLUDED.balance
	`

	_, err := s.pool.Exec(ctx, query, org.String(), asset.String(), tag.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("failed to credit tag: %w", mapError(err))
	}

	return nil
}

// Debit removes amount from a tag. The balance guard is part of the
// statement, so a tag that is missing or too small updates zero rows.
func (s *TreasuryStore) Debit(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error {
	query := `
		UPDATE treasury_balances
		SET balance = balance - $4::numeric
		WHERE org_address = $1 AND asset = $2 AND tag = $3 AND balance >= $4::numeric
	`

	result, err := s.pool.Exec(ctx, query, org.String(), asset.String(), tag.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("failed to debit tag: %w", mapError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: tag %s", domain.ErrInsufficientBalance, tag)
	}

	return nil
}

// Move debits from and credits to in one statement. The credit only
// runs when the guarded debit touched a row, which keeps the two legs
// atomic without an explicit transaction.
func (s *TreasuryStore) Move(ctx context.Context, org domain.Address, asset domain.AssetCode, from, to domain.Tag, amount uint64) error {
	if from == to {
		return fmt.Errorf("%w: source and destination tag are both %s", domain.ErrInvalidInput, from)
	}

	query := `
		WITH debited AS (
			UPDATE treasury_balances
			SET balance = balance - $5::numeric
			WHERE org_address = $1 AND asset = $2 AND tag = $3 AND balance >= $5::numeric
			RETURNING org_address
		)
		INSERT INTO treasury_balances (org_address, asset, tag, balance)
		SELECT $1, $2, $4, $5::numeric FROM debited
		ON CONFLICT (org_address, asset, tag)
		DO UPDATE SET balance = treasury_balances.balance + EXCLUDED.balance
	`

	result, err := s.pool.Exec(ctx, query, org.String(), asset.String(), from.String(), to.String(), numeric(amount))
	if err != nil {
		return fmt.Errorf("failed to move between tags: %w", mapError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: tag %s", domain.ErrInsufficientBalance, from)
	}

	return nil
}

// Balance returns the tag balance, zero for a tag never credited.
func (s *TreasuryStore) Balance(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag) (uint64, error) {
	query := `
		SELECT balance::text
		FROM treasury_balances
		WHERE org_address = $1 AND asset = $2 AND tag = $3
	`

	var raw string
	err := s.pool.QueryRow(ctx, query, org.String(), asset.String(), tag.String()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get tag balance: %w", mapError(err))
	}

	return parseNumeric(raw)
}

// Balances returns every tag with its balance.
func (s *TreasuryStore) Balances(ctx context.Context, org domain.Address, asset domain.AssetCode) (map[domain.Tag]uint64, error) {
	exists, err := s.Exists(ctx, org, asset)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: treasury %s/%s", domain.ErrNotFound, org, asset)
	}

	query := `
		SELECT tag, balance::text
		FROM treasury_balances
		WHERE org_address = $1 AND asset = $2
	`

	rows, err := s.pool.Query(ctx, query, org.String(), asset.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list tag balances: %w", mapError(err))
	}
	defer rows.Close()

	balances := make(map[domain.Tag]uint64)
	for rows.Next() {
		var (
			tag string
			raw string
		)
		if err := rows.Scan(&tag, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan tag balance: %w", err)
		}

		balance, err := parseNumeric(raw)
		if err != nil {
			return nil, err
		}

		balances[domain.Tag(tag)] = balance
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag balances: %w", err)
	}

	return balances, nil
}
