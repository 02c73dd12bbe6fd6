package domain

import (
	"fmt"
	"regexp"
)

// MaxTagLen bounds the byte length of a treasury tag.
const MaxTagLen = 128

var assetCodeRE = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,15}$`)

// AssetCode labels an asset type held in custody, for example "USDC".
type AssetCode string

// ParseAssetCode validates an asset code label.
func ParseAssetCode(s string) (AssetCode, error) {
	if !assetCodeRE.MatchString(s) {
		return "", fmt.Errorf("%w: asset code %q must match %s", ErrInvalidInput, s, assetCodeRE)
	}

	return AssetCode(s), nil
}

func (a AssetCode) String() string { return string(a) }

// Tag is an opaque label partitioning an organization treasury into
// sub-accounts, for example "operating" or "escrow". Tags are created
// lazily by the first credit; a tag that was never credited behaves as a
// zero balance.
type Tag string

// ParseTag validates a treasury tag.
func ParseTag(s string) (Tag, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty tag", ErrInvalidInput)
	}

	if len(s) > MaxTagLen {
		return "", fmt.Errorf("%w: tag exceeds %d bytes", ErrInvalidInput, MaxTagLen)
	}

	return Tag(s), nil
}

func (t Tag) String() string { return string(t) }
