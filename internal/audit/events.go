// Package audit produces the append-only event stream consumed by
// off-chain observers. The ledger engines only ever append; no engine
// decision reads an event back, so recorders are free to trade latency
// for durability however a deployment needs.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallystack/treasury/internal/domain"
)

// Kind discriminates the four audit event kinds.
type Kind string

const (
	// KindTransfer is a single custody movement between two accounts.
	KindTransfer Kind = "transfer"
	// KindPayroll is one payment within a payroll batch.
	KindPayroll Kind = "payroll"
	// KindTreasury is a tag-level credit, debit or move inside a treasury.
	KindTreasury Kind = "treasury"
	// KindSwap is a settled swap with its frozen quote.
	KindSwap Kind = "swap"
)

// Event is one audit record. All kinds share a single flat shape so the
// journal encoding and downstream consumers stay simple; fields a kind
// does not use are left empty and omitted from JSON.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Transfer
	Sender    domain.Address `json:"sender,omitempty"`
	Recipient domain.Address `json:"recipient,omitempty"`

	// Payroll
	Employer domain.Address `json:"employer,omitempty"`
	Employee domain.Address `json:"employee,omitempty"`
	Memo     string         `json:"memo,omitempty"`

	// Treasury. An empty FromTag means funds entered from outside the
	// treasury; an empty ToTag means they left it.
	Org     domain.Address `json:"org,omitempty"`
	FromTag domain.Tag     `json:"from_tag,omitempty"`
	ToTag   domain.Tag     `json:"to_tag,omitempty"`

	// Swap
	User      domain.Address   `json:"user,omitempty"`
	InAsset   domain.AssetCode `json:"in_asset,omitempty"`
	OutAsset  domain.AssetCode `json:"out_asset,omitempty"`
	AmountIn  uint64           `json:"amount_in,omitempty"`
	AmountOut uint64           `json:"amount_out,omitempty"`
	Rate      uint64           `json:"rate,omitempty"`
	Fee       uint64           `json:"fee,omitempty"`

	// Shared by transfer, payroll and treasury kinds.
	Asset  domain.AssetCode `json:"asset,omitempty"`
	Amount uint64           `json:"amount,omitempty"`
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewTransfer records one custody movement of amount from sender to
// recipient.
func NewTransfer(sender, recipient domain.Address, asset domain.AssetCode, amount uint64, at time.Time) Event {
	return Event{
		ID:        newID(),
		Kind:      KindTransfer,
		Timestamp: at,
		Sender:    sender,
		Recipient: recipient,
		Asset:     asset,
		Amount:    amount,
	}
}

// NewPayroll records one payment of a payroll batch.
func NewPayroll(employer, employee domain.Address, asset domain.AssetCode, amount uint64, memo string, at time.Time) Event {
	return Event{
		ID:        newID(),
		Kind:      KindPayroll,
		Timestamp: at,
		Employer:  employer,
		Employee:  employee,
		Asset:     asset,
		Amount:    amount,
		Memo:      memo,
	}
}

// NewTreasury records a tag-level balance movement inside org's treasury.
func NewTreasury(org domain.Address, fromTag, toTag domain.Tag, asset domain.AssetCode, amount uint64, at time.Time) Event {
	return Event{
		ID:        newID(),
		Kind:      KindTreasury,
		Timestamp: at,
		Org:       org,
		FromTag:   fromTag,
		ToTag:     toTag,
		Asset:     asset,
		Amount:    amount,
	}
}

// NewSwap records a settled swap together with the quote frozen at
// request time.
func NewSwap(user domain.Address, inAsset, outAsset domain.AssetCode, amountIn, amountOut, rate, fee uint64, at time.Time) Event {
	return Event{
		ID:        newID(),
		Kind:      KindSwap,
		Timestamp: at,
		User:      user,
		InAsset:   inAsset,
		OutAsset:  outAsset,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Rate:      rate,
		Fee:       fee,
	}
}
