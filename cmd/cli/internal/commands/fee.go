package commands

import (
	"context"
	"fmt"
)

type FeeCmd struct {
	Get FeeGetCmd `cmd:"" help:"Show the swap fee"`
	Set FeeSetCmd `cmd:"" help:"Set the swap fee (fee owner only)"`
}

type FeeGetCmd struct {
	ClientFlags
}

func (f *FeeGetCmd) Run(ctx context.Context) error {
	fee, err := f.client().Fee(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch fee: %w", err)
	}

	fmt.Printf("Fee:        %d bps\n", fee.BasisPoints)
	fmt.Printf("Owner:      %s\n", fee.Owner)
	fmt.Printf("Updated At: %s\n", fee.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

type FeeSetCmd struct {
	ClientFlags
	BasisPoints uint32 `arg:"" help:"Fee in basis points (max 10000)"`
}

func (f *FeeSetCmd) Run(ctx context.Context) error {
	fee, err := f.client().SetFee(ctx, f.BasisPoints)
	if err != nil {
		return fmt.Errorf("failed to set fee: %w", err)
	}

	fmt.Printf("Fee set to %d bps\n", fee.BasisPoints)
	return nil
}
