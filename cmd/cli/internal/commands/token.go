package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/tallystack/treasury/internal/auth"
	"github.com/tallystack/treasury/internal/domain"
)

type TokenCmd struct {
	Subject    string        `help:"Subject address the token identifies" required:""`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"HMAC signing key" required:"" env:"TREASURY_AUTH_SECRET"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	subject, err := domain.ParseAddress(t.Subject)
	if err != nil {
		return err
	}

	signer, err := auth.NewSigner([]byte(t.SigningKey))
	if err != nil {
		return err
	}

	token, err := signer.Issue(subject, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
