package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Organization is the API view of an organization.
type Organization struct {
	Address   string    `json:"address"`
	Admin     string    `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Treasury is the API view of one asset treasury.
type Treasury struct {
	Org   string `json:"org"`
	Asset string `json:"asset"`
}

// Balances holds the per-tag balances of one treasury as decimal strings.
type Balances struct {
	Org      string            `json:"org"`
	Asset    string            `json:"asset"`
	Balances map[string]string `json:"balances"`
}

// PayrollResult summarises an accepted payroll batch.
type PayrollResult struct {
	Payments int    `json:"payments"`
	Total    string `json:"total"`
}

type createOrganizationRequest struct {
	Address string `json:"address"`
	Admin   string `json:"admin"`
}

type createTreasuryRequest struct {
	Asset string `json:"asset"`
}

type fundRequest struct {
	Tag    string `json:"tag"`
	Amount string `json:"amount"`
}

type transferRequest struct {
	FromTag string `json:"from_tag"`
	ToTag   string `json:"to_tag"`
	Amount  string `json:"amount"`
}

type withdrawRequest struct {
	Tag    string `json:"tag"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type payrollRequest struct {
	Asset      string   `json:"asset"`
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
	Memo       string   `json:"memo"`
}

// CreateOrganization registers an organization with its admin address.
func (c *Client) CreateOrganization(ctx context.Context, org, admin string) (*Organization, error) {
	var out Organization
	if err := c.do(ctx, http.MethodPost, "/v1/organizations", "", createOrganizationRequest{Address: org, Admin: admin}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Organization fetches one organization.
func (c *Client) Organization(ctx context.Context, org string) (*Organization, error) {
	var out Organization
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/organizations/%s", org), "", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateTreasury opens a treasury for asset under org. The caller must be
// the organization admin.
func (c *Client) CreateTreasury(ctx context.Context, org, asset string) (*Treasury, error) {
	var out Treasury
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/organizations/%s/treasuries", org), "", createTreasuryRequest{Asset: asset}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Balances fetches the per-tag balances of one treasury.
func (c *Client) Balances(ctx context.Context, org, asset string) (*Balances, error) {
	var out Balances
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/organizations/%s/treasuries/%s", org, asset), "", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Fund deposits amount into one tag of the org treasury, drawn from the
// caller's custody funds.
func (c *Client) Fund(ctx context.Context, org, asset, tag, amount, idempotencyKey string) error {
	path := fmt.Sprintf("/v1/organizations/%s/treasuries/%s/fund", org, asset)
	return c.do(ctx, http.MethodPost, path, idempotencyKey, fundRequest{Tag: tag, Amount: amount}, nil)
}

// Transfer moves amount between two tags of the org treasury. The caller
// must be the organization admin.
func (c *Client) Transfer(ctx context.Context, org, asset, fromTag, toTag, amount, idempotencyKey string) error {
	path := fmt.Sprintf("/v1/organizations/%s/treasuries/%s/transfer", org, asset)
	return c.do(ctx, http.MethodPost, path, idempotencyKey, transferRequest{FromTag: fromTag, ToTag: toTag, Amount: amount}, nil)
}

// Withdraw pays amount out of one tag of the org treasury to a registered
// recipient. The caller must be the organization itself.
func (c *Client) Withdraw(ctx context.Context, org, asset, tag, to, amount, idempotencyKey string) error {
	path := fmt.Sprintf("/v1/organizations/%s/treasuries/%s/withdraw", org, asset)
	return c.do(ctx, http.MethodPost, path, idempotencyKey, withdrawRequest{Tag: tag, To: to, Amount: amount}, nil)
}

// Payroll pays amounts[i] to recipients[i] from the caller's custody
// funds. The batch is atomic: it is rejected outright unless every
// payment can be made.
func (c *Client) Payroll(ctx context.Context, asset string, recipients, amounts []string, memo, idempotencyKey string) (*PayrollResult, error) {
	var out PayrollResult
	req := payrollRequest{Asset: asset, Recipients: recipients, Amounts: amounts, Memo: memo}
	if err := c.do(ctx, http.MethodPost, "/v1/payroll", idempotencyKey, req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
