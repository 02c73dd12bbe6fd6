package commands

import (
	"context"
	"fmt"
	"sort"
)

type TreasuryCmd struct {
	Create   TreasuryCreateCmd   `cmd:"" help:"Create a treasury for an asset"`
	Fund     TreasuryFundCmd     `cmd:"" help:"Fund a treasury tag from your custody funds"`
	Transfer TreasuryTransferCmd `cmd:"" help:"Move funds between tags"`
	Withdraw TreasuryWithdrawCmd `cmd:"" help:"Withdraw from a tag to a recipient"`
	Balances TreasuryBalancesCmd `cmd:"" help:"Show per-tag balances"`
}

type TreasuryCreateCmd struct {
	ClientFlags
	Org   string `arg:"" help:"Organization address"`
	Asset string `arg:"" help:"Asset code"`
}

func (t *TreasuryCreateCmd) Run(ctx context.Context) error {
	treasury, err := t.client().CreateTreasury(ctx, t.Org, t.Asset)
	if err != nil {
		return fmt.Errorf("failed to create treasury: %w", err)
	}

	fmt.Printf("Created %s treasury for %s\n", treasury.Asset, treasury.Org)
	return nil
}

type TreasuryFundCmd struct {
	ClientFlags
	Org            string `arg:"" help:"Organization address"`
	Asset          string `arg:"" help:"Asset code"`
	Amount         string `arg:"" help:"Amount in base units"`
	Tag            string `help:"Destination tag" required:""`
	IdempotencyKey string `help:"Idempotency key for safe retries"`
}

func (t *TreasuryFundCmd) Run(ctx context.Context) error {
	if err := validateAmount(t.Amount); err != nil {
		return err
	}

	if err := t.client().Fund(ctx, t.Org, t.Asset, t.Tag, t.Amount, t.IdempotencyKey); err != nil {
		return fmt.Errorf("failed to fund treasury: %w", err)
	}

	fmt.Printf("Funded %s/%s tag %q with %s\n", t.Org, t.Asset, t.Tag, t.Amount)
	return nil
}

type TreasuryTransferCmd struct {
	ClientFlags
	Org            string `arg:"" help:"Organization address"`
	Asset          string `arg:"" help:"Asset code"`
	Amount         string `arg:"" help:"Amount in base units"`
	From           string `help:"Source tag" required:""`
	To             string `help:"Destination tag" required:""`
	IdempotencyKey string `help:"Idempotency key for safe retries"`
}

func (t *TreasuryTransferCmd) Run(ctx context.Context) error {
	if err := validateAmount(t.Amount); err != nil {
		return err
	}

	if err := t.client().Transfer(ctx, t.Org, t.Asset, t.From, t.To, t.Amount, t.IdempotencyKey); err != nil {
		return fmt.Errorf("failed to transfer: %w", err)
	}

	fmt.Printf("Moved %s from %q to %q in %s/%s\n", t.Amount, t.From, t.To, t.Org, t.Asset)
	return nil
}

type TreasuryWithdrawCmd struct {
	ClientFlags
	Org            string `arg:"" help:"Organization address"`
	Asset          string `arg:"" help:"Asset code"`
	Amount         string `arg:"" help:"Amount in base units"`
	Tag            string `help:"Source tag" required:""`
	To             string `help:"Recipient address" required:""`
	IdempotencyKey string `help:"Idempotency key for safe retries"`
}

func (t *TreasuryWithdrawCmd) Run(ctx context.Context) error {
	if err := validateAmount(t.Amount); err != nil {
		return err
	}

	if err := t.client().Withdraw(ctx, t.Org, t.Asset, t.Tag, t.To, t.Amount, t.IdempotencyKey); err != nil {
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	fmt.Printf("Withdrew %s from %s/%s tag %q to %s\n", t.Amount, t.Org, t.Asset, t.Tag, t.To)
	return nil
}

type TreasuryBalancesCmd struct {
	ClientFlags
	Org   string `arg:"" help:"Organization address"`
	Asset string `arg:"" help:"Asset code"`
}

func (t *TreasuryBalancesCmd) Run(ctx context.Context) error {
	balances, err := t.client().Balances(ctx, t.Org, t.Asset)
	if err != nil {
		return fmt.Errorf("failed to fetch balances: %w", err)
	}

	fmt.Printf("Balances for %s %s:\n", balances.Org, balances.Asset)

	if len(balances.Balances) == 0 {
		fmt.Println("(no tags funded yet)")
		return nil
	}

	tags := make([]string, 0, len(balances.Balances))
	for tag := range balances.Balances {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Printf("%-24s %s\n", "Tag", "Balance")
	for _, tag := range tags {
		fmt.Printf("%-24s %s\n", tag, balances.Balances[tag])
	}

	return nil
}
