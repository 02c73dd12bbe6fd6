package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/money"
)

// Amount carries a uint64 as a JSON decimal string. JSON numbers lose
// precision above 2^53 and real balances exceed that.
type Amount uint64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(a), 10))), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: amount must be a decimal string", domain.ErrInvalidInput)
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: amount %q", domain.ErrInvalidInput, s)
	}

	*a = Amount(v)

	return nil
}

type createOrganizationRequest struct {
	Address string `json:"address"`
	Admin   string `json:"admin"`
}

type organizationResponse struct {
	Address   string    `json:"address"`
	Admin     string    `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

func newOrganizationResponse(org *domain.Organization) organizationResponse {
	return organizationResponse{
		Address:   org.Address.String(),
		Admin:     org.Admin.String(),
		CreatedAt: org.CreatedAt,
	}
}

type createTreasuryRequest struct {
	Asset string `json:"asset"`
}

type treasuryResponse struct {
	Org   string `json:"org"`
	Asset string `json:"asset"`
}

type balancesResponse struct {
	Org      string            `json:"org"`
	Asset    string            `json:"asset"`
	Balances map[string]Amount `json:"balances"`
}

type fundRequest struct {
	Tag    string `json:"tag"`
	Amount Amount `json:"amount"`
}

type transferRequest struct {
	FromTag string `json:"from_tag"`
	ToTag   string `json:"to_tag"`
	Amount  Amount `json:"amount"`
}

type withdrawRequest struct {
	Tag    string `json:"tag"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
}

type operationResponse struct {
	Status string `json:"status"`
}

type payrollRequest struct {
	Asset      string   `json:"asset"`
	Recipients []string `json:"recipients"`
	Amounts    []Amount `json:"amounts"`
	Memo       string   `json:"memo"`
}

type payrollResponse struct {
	Payments int    `json:"payments"`
	Total    Amount `json:"total"`
}

type swapRequest struct {
	InAsset  string `json:"in_asset"`
	OutAsset string `json:"out_asset"`
	AmountIn Amount `json:"amount_in"`
	MinOut   Amount `json:"min_out"`
	Rate     string `json:"rate"`
}

type swapTicketResponse struct {
	ID        uint64    `json:"id"`
	Requester string    `json:"requester"`
	InAsset   string    `json:"in_asset"`
	OutAsset  string    `json:"out_asset"`
	AmountIn  Amount    `json:"amount_in"`
	AmountOut Amount    `json:"amount_out"`
	Fee       Amount    `json:"fee"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
}

func newSwapTicketResponse(t *domain.SwapTicket) swapTicketResponse {
	return swapTicketResponse{
		ID:        t.ID,
		Requester: t.Requester.String(),
		InAsset:   t.InAsset.String(),
		OutAsset:  t.OutAsset.String(),
		AmountIn:  Amount(t.AmountIn),
		AmountOut: Amount(t.AmountOut),
		Fee:       Amount(t.Fee),
		Rate:      money.FormatRate(t.Rate),
		CreatedAt: t.CreatedAt,
	}
}

type feeResponse struct {
	Owner       string    `json:"owner"`
	BasisPoints uint32    `json:"basis_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newFeeResponse(cfg *domain.FeeConfig) feeResponse {
	return feeResponse{
		Owner:       cfg.Owner.String(),
		BasisPoints: cfg.BasisPoints,
		UpdatedAt:   cfg.UpdatedAt,
	}
}

type feeUpdateRequest struct {
	BasisPoints uint32 `json:"basis_points"`
}
