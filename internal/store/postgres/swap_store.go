package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/domain"
)

// SwapStore implements store.SwapStore on PostgreSQL. Ticket ids come
// from the table's identity sequence, which is monotonic and survives
// both deletion and restart.
type SwapStore struct {
	pool *pgxpool.Pool
}

// NewSwapStore creates a PostgreSQL-backed swap store sharing the given
// pool.
func NewSwapStore(pool *pgxpool.Pool) *SwapStore {
	return &SwapStore{
		pool: pool,
	}
}

// Insert stores a pending ticket and writes the assigned id back.
func (s *SwapStore) Insert(ctx context.Context, ticket *domain.SwapTicket) (uint64, error) {
	query := `
		INSERT INTO swap_tickets (
			requester, in_asset, out_asset,
			amount_in, amount_out, fee, rate, created_at
		) VALUES (
			$1, $2, $3,
			$4::numeric, $5::numeric, $6::numeric, $7::numeric, $8
		)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		ticket.Requester.String(),
		ticket.InAsset.String(),
		ticket.OutAsset.String(),
		numeric(ticket.AmountIn),
		numeric(ticket.AmountOut),
		numeric(ticket.Fee),
		numeric(ticket.Rate),
		ticket.CreatedAt,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert swap ticket: %w", mapError(err))
	}

	ticket.ID = uint64(id)

	log.Debug().
		Uint64("ticket_id", ticket.ID).
		Str("requester", ticket.Requester.String()).
		Msg("Inserted swap ticket")

	return ticket.ID, nil
}

// Get returns a pending ticket by id.
func (s *SwapStore) Get(ctx context.Context, id uint64) (*domain.SwapTicket, error) {
	query := `
		SELECT id, requester, in_asset, out_asset,
		       amount_in::text, amount_out::text, fee::text, rate::text,
		       created_at
		FROM swap_tickets
		WHERE id = $1
	`

	return scanTicket(s.pool.QueryRow(ctx, query, int64(id)))
}

// Remove deletes a pending ticket. Exactly one caller observes the
// delete; any other gets ErrNotFound.
func (s *SwapStore) Remove(ctx context.Context, id uint64) error {
	query := `DELETE FROM swap_tickets WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, int64(id))
	if err != nil {
		return fmt.Errorf("failed to remove swap ticket: %w", mapError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: swap ticket %d", domain.ErrNotFound, id)
	}

	return nil
}

// Pending lists open tickets in ascending id order.
func (s *SwapStore) Pending(ctx context.Context) ([]*domain.SwapTicket, error) {
	query := `
		SELECT id, requester, in_asset, out_asset,
		       amount_in::text, amount_out::text, fee::text, rate::text,
		       created_at
		FROM swap_tickets
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list swap tickets: %w", mapError(err))
	}
	defer rows.Close()

	var tickets []*domain.SwapTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swap tickets: %w", err)
	}

	return tickets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.SwapTicket, error) {
	var (
		id        int64
		requester string
		inAsset   string
		outAsset  string
		amountIn  string
		amountOut string
		fee       string
		rate      string
		ticket    domain.SwapTicket
	)

	err := row.Scan(
		&id,
		&requester,
		&inAsset,
		&outAsset,
		&amountIn,
		&amountOut,
		&fee,
		&rate,
		&ticket.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan swap ticket: %w", mapError(err))
	}

	ticket.ID = uint64(id)
	ticket.Requester = domain.Address(requester)
	ticket.InAsset = domain.AssetCode(inAsset)
	ticket.OutAsset = domain.AssetCode(outAsset)

	if ticket.AmountIn, err = parseNumeric(amountIn); err != nil {
		return nil, err
	}
	if ticket.AmountOut, err = parseNumeric(amountOut); err != nil {
		return nil, err
	}
	if ticket.Fee, err = parseNumeric(fee); err != nil {
		return nil, err
	}
	if ticket.Rate, err = parseNumeric(rate); err != nil {
		return nil, err
	}

	return &ticket, nil
}
