package domain

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLen is the decoded payload length of an account address.
const AddressLen = 20

// Address identifies an account on the payments platform. The canonical
// form is the base58 encoding of a 20 byte payload.
type Address string

// ParseAddress validates the canonical form of an address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidInput)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: address %q is not base58", ErrInvalidInput, s)
	}

	if len(raw) != AddressLen {
		return "", fmt.Errorf("%w: address payload must be %d bytes, got %d", ErrInvalidInput, AddressLen, len(raw))
	}

	return Address(s), nil
}

// NewAddress derives an address from a raw 20 byte payload.
func NewAddress(raw []byte) (Address, error) {
	if len(raw) != AddressLen {
		return "", fmt.Errorf("%w: address payload must be %d bytes, got %d", ErrInvalidInput, AddressLen, len(raw))
	}

	return Address(base58.Encode(raw)), nil
}

// RandomAddress mints a fresh address, used by the CLI and tests.
func RandomAddress() Address {
	raw := make([]byte, AddressLen)
	_, _ = rand.Read(raw)

	return Address(base58.Encode(raw))
}

// Valid reports whether the address round trips through ParseAddress.
func (a Address) Valid() bool {
	_, err := ParseAddress(string(a))
	return err == nil
}

func (a Address) String() string { return string(a) }
