package ledger

import (
	"fmt"

	"github.com/roach88/ubi/internal/asset"
)

// MaxNameLength is the longest identity name accepted.
const MaxNameLength = 12

// Name identifies an account on the host chain.
type Name string

// String implements fmt.Stringer.
func (n Name) String() string {
	return string(n)
}

// ParseName validates s as an account name: 1-12 characters drawn from
// a-z, 1-5 and '.', not ending in '.'.
func ParseName(s string) (Name, error) {
	if len(s) == 0 || len(s) > MaxNameLength {
		return "", newError(CodeInvalidName, fmt.Sprintf("invalid account name %q: length must be 1-%d", s, MaxNameLength))
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '1' && r <= '5', r == '.':
		default:
			return "", newError(CodeInvalidName, fmt.Sprintf("invalid account name %q: character %q not allowed", s, r))
		}
	}
	if s[len(s)-1] == '.' {
		return "", newError(CodeInvalidName, fmt.Sprintf("invalid account name %q: trailing dot", s))
	}
	return Name(s), nil
}

// MustName is ParseName for constants and tests; it panics on error.
func MustName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// ParseQuantity reads an action's quantity argument. Malformed input is an
// INVALID_QUANTITY rejection rather than a decode failure.
func ParseQuantity(s string) (asset.Quantity, error) {
	q, err := asset.Parse(s)
	if err != nil {
		return asset.Quantity{}, newErrorf(CodeInvalidQuantity, map[string]string{"quantity": s},
			"invalid quantity %q: %v", s, err)
	}
	return q, nil
}
