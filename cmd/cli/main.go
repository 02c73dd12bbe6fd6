package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/tallystack/treasury/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Address  commands.AddressCmd  `cmd:"" help:"Generate addresses"`
		Org      commands.OrgCmd      `cmd:"" help:"Manage organizations"`
		Treasury commands.TreasuryCmd `cmd:"" help:"Manage treasuries and balances"`
		Payroll  commands.PayrollCmd  `cmd:"" help:"Run payroll batches"`
		Swap     commands.SwapCmd     `cmd:"" help:"Request and settle swaps"`
		Fee      commands.FeeCmd      `cmd:"" help:"Inspect and set the swap fee"`
		Token    commands.TokenCmd    `cmd:"" help:"Generate an access token"`
		Audit    commands.AuditCmd    `cmd:"" help:"Inspect audit journals"`
		Debug    bool                 `help:"Enable debug mode."`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
