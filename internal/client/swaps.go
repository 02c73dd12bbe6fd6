package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// SwapTicket is the API view of a swap, pending or settled.
type SwapTicket struct {
	ID        uint64    `json:"id"`
	Requester string    `json:"requester"`
	InAsset   string    `json:"in_asset"`
	OutAsset  string    `json:"out_asset"`
	AmountIn  string    `json:"amount_in"`
	AmountOut string    `json:"amount_out"`
	Fee       string    `json:"fee"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
}

// FeeConfig is the API view of the swap fee configuration.
type FeeConfig struct {
	Owner       string    `json:"owner"`
	BasisPoints uint32    `json:"basis_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type swapRequest struct {
	InAsset  string `json:"in_asset"`
	OutAsset string `json:"out_asset"`
	AmountIn string `json:"amount_in"`
	MinOut   string `json:"min_out"`
	Rate     string `json:"rate"`
}

type feeUpdateRequest struct {
	BasisPoints uint32 `json:"basis_points"`
}

// RequestSwap escrows the caller's input funds and opens a swap ticket
// with the quote frozen at the current fee.
func (c *Client) RequestSwap(ctx context.Context, inAsset, outAsset, amountIn, minOut, rate, idempotencyKey string) (*SwapTicket, error) {
	var out SwapTicket
	req := swapRequest{InAsset: inAsset, OutAsset: outAsset, AmountIn: amountIn, MinOut: minOut, Rate: rate}
	if err := c.do(ctx, http.MethodPost, "/v1/swaps", idempotencyKey, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ExecuteSwap settles one pending ticket. The caller must be the fee
// owner.
func (c *Client) ExecuteSwap(ctx context.Context, id uint64, idempotencyKey string) (*SwapTicket, error) {
	var out SwapTicket
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/swaps/%d/execute", id), idempotencyKey, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// PendingSwaps lists open tickets oldest first.
func (c *Client) PendingSwaps(ctx context.Context) ([]SwapTicket, error) {
	var out []SwapTicket
	if err := c.do(ctx, http.MethodGet, "/v1/swaps", "", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// Swap fetches one pending ticket.
func (c *Client) Swap(ctx context.Context, id uint64) (*SwapTicket, error) {
	var out SwapTicket
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/swaps/%d", id), "", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Fee fetches the swap fee configuration.
func (c *Client) Fee(ctx context.Context) (*FeeConfig, error) {
	var out FeeConfig
	if err := c.do(ctx, http.MethodGet, "/v1/config/fee", "", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SetFee updates the swap fee. The caller must be the fee owner.
func (c *Client) SetFee(ctx context.Context, basisPoints uint32) (*FeeConfig, error) {
	var out FeeConfig
	if err := c.do(ctx, http.MethodPut, "/v1/config/fee", "", feeUpdateRequest{BasisPoints: basisPoints}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
