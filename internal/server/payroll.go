package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/domain"
)

// handlePayroll runs a batch payment from the caller's custody balance.
// The employer is always the authenticated caller.
func (s *Server) handlePayroll(c *fiber.Ctx) error {
	caller, err := auth.Caller(c)
	if err != nil {
		return err
	}

	var req payrollRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	asset, err := domain.ParseAssetCode(req.Asset)
	if err != nil {
		return err
	}

	recipients := make([]domain.Address, len(req.Recipients))
	for i, r := range req.Recipients {
		recipients[i], err = domain.ParseAddress(r)
		if err != nil {
			return fmt.Errorf("recipient %d: %w", i, err)
		}
	}

	amounts := make([]uint64, len(req.Amounts))
	for i, a := range req.Amounts {
		amounts[i] = uint64(a)
	}

	total, err := s.payroll.BatchPay(c.UserContext(), caller, asset, recipients, amounts, req.Memo)
	if err != nil {
		return err
	}

	return c.JSON(payrollResponse{
		Payments: len(recipients),
		Total:    Amount(total),
	})
}
