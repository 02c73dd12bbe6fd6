package commands

import (
	"context"
	"fmt"
)

type OrgCmd struct {
	Create OrgCreateCmd `cmd:"" help:"Create an organization"`
	Get    OrgGetCmd    `cmd:"" help:"Show an organization"`
}

type OrgCreateCmd struct {
	ClientFlags
	Org   string `arg:"" help:"Organization address"`
	Admin string `help:"Admin address" required:""`
}

func (o *OrgCreateCmd) Run(ctx context.Context) error {
	org, err := o.client().CreateOrganization(ctx, o.Org, o.Admin)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	fmt.Printf("Created organization %s with admin %s\n", org.Address, org.Admin)
	return nil
}

type OrgGetCmd struct {
	ClientFlags
	Org string `arg:"" help:"Organization address"`
}

func (o *OrgGetCmd) Run(ctx context.Context) error {
	org, err := o.client().Organization(ctx, o.Org)
	if err != nil {
		return fmt.Errorf("failed to fetch organization: %w", err)
	}

	fmt.Printf("Address:    %s\n", org.Address)
	fmt.Printf("Admin:      %s\n", org.Admin)
	fmt.Printf("Created At: %s\n", org.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
