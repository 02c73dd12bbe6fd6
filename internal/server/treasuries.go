package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/domain"
)

func (s *Server) handleCreateOrganization(c *fiber.Ctx) error {
	var req createOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	org, err := domain.ParseAddress(req.Address)
	if err != nil {
		return err
	}

	admin, err := domain.ParseAddress(req.Admin)
	if err != nil {
		return err
	}

	created, err := s.treasury.CreateOrganization(c.UserContext(), org, admin)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(newOrganizationResponse(created))
}

func (s *Server) handleGetOrganization(c *fiber.Ctx) error {
	org, err := domain.ParseAddress(c.Params("org"))
	if err != nil {
		return err
	}

	found, err := s.treasury.Organization(c.UserContext(), org)
	if err != nil {
		return err
	}

	return c.JSON(newOrganizationResponse(found))
}

func (s *Server) handleCreateTreasury(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	org, err := domain.ParseAddress(c.Params("org"))
	if err != nil {
		return err
	}

	var req createTreasuryRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	asset, err := domain.ParseAssetCode(req.Asset)
	if err != nil {
		return err
	}

	if err := s.treasury.CreateTreasury(c.UserContext(), caller, org, asset); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(treasuryResponse{
		Org:   org.String(),
		Asset: asset.String(),
	})
}

func (s *Server) handleBalances(c *fiber.Ctx) error {
	org, err := domain.ParseAddress(c.Params("org"))
	if err != nil {
		return err
	}

	asset, err := domain.ParseAssetCode(c.Params("asset"))
	if err != nil {
		return err
	}

	balances, err := s.treasury.Balances(c.UserContext(), org, asset)
	if err != nil {
		return err
	}

	out := make(map[string]Amount, len(balances))
	for tag, amount := range balances {
		out[tag.String()] = Amount(amount)
	}

	return c.JSON(balancesResponse{
		Org:      org.String(),
		Asset:    asset.String(),
		Balances: out,
	})
}

// handleFund credits a treasury tag from the caller's custody balance.
// The funder is always the authenticated caller; the API offers no way
// to spend someone else's funds.
func (s *Server) handleFund(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	org, err := domain.ParseAddress(c.Params("org"))
	if err != nil {
		return err
	}

	asset, err := domain.ParseAssetCode(c.Params("asset"))
	if err != nil {
		return err
	}

	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	tag, err := domain.ParseTag(req.Tag)
	if err != nil {
		return err
	}

	if err := s.treasury.Fund(c.UserContext(), caller, org, asset, tag, uint64(req.Amount)); err != nil {
		return err
	}

	return c.JSON(operationResponse{Status: "completed"})
}

func (s *Server) handleInternalTransfer(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	org, err := domain.ParseAddress(c.Params("org"))
	if err != nil {
		return err
	}

	asset, err := domain.ParseAssetCode(c.Params("asset"))
	if err != nil {
		return err
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	from, err := domain.ParseTag(req.FromTag)
	if err != nil {
		return err
	}

	to, err := domain.ParseTag(req.ToTag)
	if err != nil {
		return err
	}

	if err := s.treasury.InternalTransfer(c.UserContext(), caller, org, asset, from, to, uint64(req.Amount)); err != nil {
		return err
	}

	return c.JSON(operationResponse{Status: "completed"})
}

// handleWithdraw pays out of a treasury tag to an external account. Only
// the organization account itself may withdraw; admins move funds
// between tags but cannot take them out.
func (s *Server) handleWithdraw(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	org, err := domain.ParseAddress(c.Params("org"))
	if err != nil {
		return err
	}

	if caller != org {
		return fmt.Errorf("%w: %s cannot withdraw from %s", domain.ErrNotAuthorized, caller, org)
	}

	asset, err := domain.ParseAssetCode(c.Params("asset"))
	if err != nil {
		return err
	}

	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	tag, err := domain.ParseTag(req.Tag)
	if err != nil {
		return err
	}

	to, err := domain.ParseAddress(req.To)
	if err != nil {
		return err
	}

	if err := s.treasury.Withdraw(c.UserContext(), org, asset, tag, to, uint64(req.Amount)); err != nil {
		return err
	}

	return c.JSON(operationResponse{Status: "completed"})
}
