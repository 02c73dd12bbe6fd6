package server

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/domain"
	"github.com/tallystack/treasury/internal/money"
)

// handleSwapRequest escrows the caller's input funds and opens a ticket.
func (s *Server) handleSwapRequest(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	var req swapRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	inAsset, err := domain.ParseAssetCode(req.InAsset)
	if err != nil {
		return err
	}

	outAsset, err := domain.ParseAssetCode(req.OutAsset)
	if err != nil {
		return err
	}

	rate, err := money.ParseRate(req.Rate)
	if err != nil {
		return err
	}

	ticket, err := s.swaps.Request(c.UserContext(), caller, inAsset, outAsset, uint64(req.AmountIn), uint64(req.MinOut), rate)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(newSwapTicketResponse(ticket))
}

func (s *Server) handleSwapsPending(c *fiber.Ctx) error {
	tickets, err := s.swaps.Pending(c.UserContext())
	if err != nil {
		return err
	}

	out := make([]swapTicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, newSwapTicketResponse(t))
	}

	return c.JSON(out)
}

func (s *Server) handleSwapGet(c *fiber.Ctx) error {
	id, err := swapID(c)
	if err != nil {
		return err
	}

	ticket, err := s.swaps.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(newSwapTicketResponse(ticket))
}

func (s *Server) handleSwapExecute(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	id, err := swapID(c)
	if err != nil {
		return err
	}

	ticket, err := s.swaps.Execute(c.UserContext(), caller, id)
	if err != nil {
		return err
	}

	return c.JSON(newSwapTicketResponse(ticket))
}

// handleFeeGet is cacheable for a short window. The authoritative fee is
// applied server side when a swap is requested, so a slightly stale read
// here never changes a settlement.
func (s *Server) handleFeeGet(c *fiber.Ctx) error {
	cfg, err := s.swaps.Fee(c.UserContext())
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderCacheControl, "public, max-age=10")

	return c.JSON(newFeeResponse(cfg))
}

func (s *Server) handleFeeSet(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	var req feeUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	if err := s.swaps.SetFeeBasisPoints(c.UserContext(), caller, req.BasisPoints); err != nil {
		return err
	}

	cfg, err := s.swaps.Fee(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(newFeeResponse(cfg))
}

func swapID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: swap id %q", domain.ErrInvalidInput, c.Params("id"))
	}

	return id, nil
}
