// Package address normalizes principal identities. Every depositor, borrower,
// operator, and treasury is an EVM-style 20-byte hex address, stored in its
// EIP-55 checksummed form.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalid = errors.New("address: invalid address")
	ErrZero    = errors.New("address: zero address")
)

// Normalize validates s and returns its checksummed form.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	a := common.HexToAddress(s)
	if a == (common.Address{}) {
		return "", ErrZero
	}
	return a.Hex(), nil
}

// Valid reports whether s is a non-zero hex address.
func Valid(s string) bool {
	_, err := Normalize(s)
	return err == nil
}

// Equal compares two identities case-insensitively; invalid input never matches.
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}
