package domain

import (
	"time"
)

// RateScale is the fixed point scale of swap exchange rates. A rate of
// 1.0 is stored as 1e18.
const RateScale = 1_000_000_000_000_000_000

// MaxFeeBasisPoints is the inclusive upper bound for the swap fee.
const MaxFeeBasisPoints = 10_000

// SwapTicket is a pending asset swap. AmountOut and Fee are fixed at
// request time; later fee changes never touch a pending ticket. Tickets
// leave the pending table when executed, so the table is also the full
// set of open obligations.
type SwapTicket struct {
	ID        uint64
	Requester Address
	InAsset   AssetCode
	OutAsset  AssetCode
	AmountIn  uint64
	AmountOut uint64
	Fee       uint64
	Rate      uint64 // fixed point, RateScale
	CreatedAt time.Time
}

// FeeConfig is the per-deployment swap fee configuration. Owner settles
// swaps and is the only address allowed to change the fee.
type FeeConfig struct {
	Owner       Address
	BasisPoints uint32
	UpdatedAt   time.Time
}
