// Package store defines the persistence interfaces behind the ledger
// engines. Implementations live in store/memory and store/postgres; each
// method is individually atomic, and the engines layer their own mutual
// exclusion over composite sequences.
package store

import (
	"context"
	"time"

	"github.com/tallystack/treasury/internal/domain"
)

// OrganizationStore persists tenant records.
type OrganizationStore interface {
	// Create inserts an organization. Fails with domain.ErrAlreadyExists
	// when the address is taken.
	Create(ctx context.Context, org *domain.Organization) error

	// Get returns the organization or domain.ErrNotFound.
	Get(ctx context.Context, addr domain.Address) (*domain.Organization, error)
}

// TreasuryStore persists tagged treasury balances. A treasury is the
// (org, asset) pair; tags inside it spring into existence on first
// credit and behave as zero when absent.
type TreasuryStore interface {
	// Create registers an empty treasury. Fails with
	// domain.ErrAlreadyExists when the (org, asset) pair exists.
	Create(ctx context.Context, org domain.Address, asset domain.AssetCode) error

	// Exists reports whether the treasury has been created.
	Exists(ctx context.Context, org domain.Address, asset domain.AssetCode) (bool, error)

	// Credit adds amount to the tag, creating it when absent. Fails with
	// domain.ErrNotFound when the treasury does not exist and
	// domain.ErrOverflow when the balance would wrap.
	Credit(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error

	// Debit removes amount from the tag. A missing tag is a zero
	// balance, so debiting it fails with domain.ErrInsufficientBalance.
	Debit(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag, amount uint64) error

	// Move debits from and credits to in one atomic step. Same errors
	// as Debit plus domain.ErrInvalidInput when from == to.
	Move(ctx context.Context, org domain.Address, asset domain.AssetCode, from, to domain.Tag, amount uint64) error

	// Balance returns the tag balance, zero for a tag never credited.
	Balance(ctx context.Context, org domain.Address, asset domain.AssetCode, tag domain.Tag) (uint64, error)

	// Balances returns every tag with its balance. Fails with
	// domain.ErrNotFound when the treasury does not exist.
	Balances(ctx context.Context, org domain.Address, asset domain.AssetCode) (map[domain.Tag]uint64, error)
}

// SwapStore persists pending swap tickets. Removal is the execution
// commit point, so the table always equals the set of open obligations.
type SwapStore interface {
	// Insert assigns the next ticket id (monotonic from 1, never
	// reused) and stores the ticket. The assigned id is written back to
	// the ticket and returned.
	Insert(ctx context.Context, ticket *domain.SwapTicket) (uint64, error)

	// Get returns a pending ticket or domain.ErrNotFound.
	Get(ctx context.Context, id uint64) (*domain.SwapTicket, error)

	// Remove deletes a pending ticket, returning domain.ErrNotFound when
	// it is absent. Exactly one caller can remove a given id.
	Remove(ctx context.Context, id uint64) error

	// Pending lists open tickets in ascending id order.
	Pending(ctx context.Context) ([]*domain.SwapTicket, error)
}

// FeeStore persists the swap fee configuration for the deployment.
type FeeStore interface {
	// Init stores the owner and initial basis points once. Calling Init
	// on an initialised store fails with domain.ErrAlreadyExists.
	Init(ctx context.Context, cfg *domain.FeeConfig) error

	// Get returns the configuration or domain.ErrNotFound before Init.
	Get(ctx context.Context) (*domain.FeeConfig, error)

	// SetBasisPoints updates the fee basis points and the update
	// timestamp. Fails with domain.ErrNotFound before Init.
	SetBasisPoints(ctx context.Context, bps uint32, at time.Time) error
}
