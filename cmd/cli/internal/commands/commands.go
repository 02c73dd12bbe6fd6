package commands

import (
	"fmt"
	"strconv"

	"github.com/tallystack/treasury/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
}

// ClientFlags are the connection settings shared by commands that call
// the treasury API.
type ClientFlags struct {
	Server   string `help:"Server URL" default:"http://localhost:8080" env:"TREASURY_SERVER"`
	Token    string `help:"Bearer token" default:"" env:"TREASURY_TOKEN"`
	Caller   string `help:"Caller address for servers running with --no-auth" default:"" env:"TREASURY_CALLER"`
	CacheDir string `help:"Directory for the HTTP response cache" default:"" env:"TREASURY_CACHE_DIR"`
}

func (f *ClientFlags) client() *client.Client {
	cfg := client.DefaultConfig()
	cfg.ServerURL = f.Server
	cfg.Token = f.Token
	cfg.Caller = f.Caller
	cfg.CacheDir = f.CacheDir

	return client.New(cfg)
}

// validateAmount rejects malformed amounts before they reach the server,
// so typos fail fast with a local error.
func validateAmount(s string) error {
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return fmt.Errorf("invalid amount %q, expected base units as a decimal integer", s)
	}

	return nil
}
