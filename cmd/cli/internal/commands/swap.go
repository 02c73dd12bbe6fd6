package commands

import (
	"context"
	"fmt"

	"github.com/tallystack/treasury/internal/client"
)

type SwapCmd struct {
	Request SwapRequestCmd `cmd:"" help:"Request a swap"`
	Execute SwapExecuteCmd `cmd:"" help:"Execute a pending swap (fee owner only)"`
	Pending SwapPendingCmd `cmd:"" help:"List pending swaps"`
	Get     SwapGetCmd     `cmd:"" help:"Show one pending swap"`
}

type SwapRequestCmd struct {
	ClientFlags
	In             string `help:"Input asset code" required:""`
	Out            string `help:"Output asset code" required:""`
	Amount         string `help:"Input amount in base units" required:""`
	MinOut         string `help:"Minimum acceptable output amount" default:"0"`
	Rate           string `help:"Exchange rate, output units per input unit (e.g. 0.92)" required:""`
	IdempotencyKey string `help:"Idempotency key for safe retries"`
}

func (s *SwapRequestCmd) Run(ctx context.Context) error {
	if err := validateAmount(s.Amount); err != nil {
		return err
	}
	if err := validateAmount(s.MinOut); err != nil {
		return err
	}

	ticket, err := s.client().RequestSwap(ctx, s.In, s.Out, s.Amount, s.MinOut, s.Rate, s.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to request swap: %w", err)
	}

	fmt.Printf("Swap ticket %d opened\n", ticket.ID)
	printTicket(ticket)
	return nil
}

type SwapExecuteCmd struct {
	ClientFlags
	ID             uint64 `arg:"" help:"Ticket ID"`
	IdempotencyKey string `help:"Idempotency key for safe retries"`
}

func (s *SwapExecuteCmd) Run(ctx context.Context) error {
	ticket, err := s.client().ExecuteSwap(ctx, s.ID, s.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to execute swap: %w", err)
	}

	fmt.Printf("Swap ticket %d settled\n", ticket.ID)
	printTicket(ticket)
	return nil
}

type SwapPendingCmd struct {
	ClientFlags
}

func (s *SwapPendingCmd) Run(ctx context.Context) error {
	tickets, err := s.client().PendingSwaps(ctx)
	if err != nil {
		return fmt.Errorf("failed to list swaps: %w", err)
	}

	fmt.Printf("%-6s %-34s %-6s %-6s %-22s %-22s %-20s\n",
		"ID", "Requester", "In", "Out", "Amount In", "Amount Out", "Created At")

	for _, ticket := range tickets {
		fmt.Printf("%-6d %-34s %-6s %-6s %-22s %-22s %-20s\n",
			ticket.ID,
			ticket.Requester,
			ticket.InAsset,
			ticket.OutAsset,
			ticket.AmountIn,
			ticket.AmountOut,
			ticket.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("\nTotal pending: %d\n", len(tickets))
	return nil
}

type SwapGetCmd struct {
	ClientFlags
	ID uint64 `arg:"" help:"Ticket ID"`
}

func (s *SwapGetCmd) Run(ctx context.Context) error {
	ticket, err := s.client().Swap(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch swap: %w", err)
	}

	printTicket(ticket)
	return nil
}

func printTicket(t *client.SwapTicket) {
	fmt.Printf("ID:         %d\n", t.ID)
	fmt.Printf("Requester:  %s\n", t.Requester)
	fmt.Printf("Pair:       %s -> %s\n", t.InAsset, t.OutAsset)
	fmt.Printf("Amount In:  %s %s\n", t.AmountIn, t.InAsset)
	fmt.Printf("Amount Out: %s %s\n", t.AmountOut, t.OutAsset)
	fmt.Printf("Fee:        %s %s\n", t.Fee, t.OutAsset)
	fmt.Printf("Rate:       %s\n", t.Rate)
	fmt.Printf("Created At: %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
}
