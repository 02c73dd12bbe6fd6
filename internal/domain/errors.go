package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the ledger engines, the stores and the API
// layer. Callers match with errors.Is; the HTTP layer maps them to status
// codes in one place.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrOverflow              = errors.New("amount overflow")
	ErrSlippage              = errors.New("slippage limit exceeded")

	// ErrInvalidAmount and ErrLengthMismatch are specialisations of
	// ErrInvalidInput, so errors.Is(err, ErrInvalidInput) holds for both.
	ErrInvalidAmount  = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrLengthMismatch = fmt.Errorf("%w: length mismatch", ErrInvalidInput)
)
