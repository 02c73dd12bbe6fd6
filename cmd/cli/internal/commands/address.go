package commands

import (
	"context"
	"fmt"

	"github.com/tallystack/treasury/internal/domain"
)

type AddressCmd struct {
	Count int `help:"Number of addresses to generate" default:"1"`
}

func (a *AddressCmd) Run(ctx context.Context) error {
	for i := 0; i < a.Count; i++ {
		fmt.Println(domain.RandomAddress().String())
	}

	return nil
}
