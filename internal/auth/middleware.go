package auth

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tallystack/treasury/internal/domain"
)

// callerKey is the fiber locals key holding the authenticated address.
const callerKey = "auth.caller"

// HeaderCaller carries the caller address when token auth is disabled.
const HeaderCaller = "X-Caller"

// Middleware authenticates the bearer token and stores the caller
// address for handlers to read via Caller.
func Middleware(signer *Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
		}

		caller, err := signer.Verify(token)
		if err != nil {
			return err
		}

		c.Locals(callerKey, caller)

		return c.Next()
	}
}

// HeaderIdentity trusts the X-Caller header as the caller address.
// Development mode only; never expose a deployment running it.
func HeaderIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := domain.ParseAddress(c.Get(HeaderCaller))
		if err != nil {
			return fmt.Errorf("%w: missing or invalid %s header", ErrUnauthenticated, HeaderCaller)
		}

		c.Locals(callerKey, caller)

		return c.Next()
	}
}

// Caller returns the address the auth middleware placed on the request.
func Caller(c *fiber.Ctx) (domain.Address, error) {
	caller, ok := c.Locals(callerKey).(domain.Address)
	if !ok {
		return "", fmt.Errorf("%w: no caller on request", ErrUnauthenticated)
	}

	return caller, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "

	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	return header[len(prefix):], true
}
