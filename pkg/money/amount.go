// Package money holds the fixed-point integer types used for every ledger
// balance. Amounts are unsigned 256-bit integers; all arithmetic is checked and
// division always rounds toward zero unless a Ceil variant is used.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow  = errors.New("money: arithmetic overflow")
	ErrUnderflow = errors.New("money: arithmetic underflow")
	ErrDivByZero = errors.New("money: division by zero")
	ErrInvalid   = errors.New("money: invalid amount")
)

// Amount is an unsigned 256-bit integer quantity of the pool asset (or of
// shares). The zero value is 0.
type Amount struct{ v uint256.Int }

func Zero() Amount { return Amount{} }

func FromUint64(x uint64) Amount {
	var a Amount
	a.v.SetUint64(x)
	return a
}

// Parse reads a base-10 unsigned integer string.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return Amount{v: *u}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) IsZero() bool { return a.v.IsZero() }
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }
func (a Amount) Gt(b Amount) bool { return a.v.Gt(&b.v) }
func (a Amount) Eq(b Amount) bool { return a.v.Eq(&b.v) }
func (a Amount) String() string { return a.v.Dec() }
func (a Amount) IsUint64() bool { return a.v.IsUint64() }
func (a Amount) Uint64() uint64 { return a.v.Uint64() }

// Float64 is a lossy conversion for metrics only.
func (a Amount) Float64() float64 {
	f, _ := strconv.ParseFloat(a.String(), 64)
	return f
}

func (a Amount) Max(b Amount) Amount { return pick(a.Gt(b), a, b) }
func (a Amount) Min(b Amount) Amount { return pick(a.Lt(b), a, b) }

func pick(c bool, x, y Amount) Amount {
	if c {
		return x
	}
	return y
}

func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return out, nil
}

func (a Amount) Mul(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.MulOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// MulDiv returns floor(x*y/d) computed with a 512-bit intermediate, so only a
// result wider than 256 bits overflows.
func MulDiv(x, y, d Amount) (Amount, error) {
	if d.IsZero() {
		return Amount{}, ErrDivByZero
	}
	var out Amount
	if _, overflow := out.v.MulDivOverflow(&x.v, &y.v, &d.v); overflow {
		return Amount{}, ErrOverflow
	}
	return out, nil
}

// MulDivCeil returns ceil(x*y/d).
func MulDivCeil(x, y, d Amount) (Amount, error) {
	q, err := MulDiv(x, y, d)
	if err != nil {
		return Amount{}, err
	}
	var rem uint256.Int
	if rem.MulMod(&x.v, &y.v, &d.v).IsZero() {
		return q, nil
	}
	return q.Add(FromUint64(1))
}

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores amounts as decimal text so every driver keeps full precision.
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.scanString(v)
	case []byte:
		return a.scanString(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: %d", ErrInvalid, v)
		}
		*a = FromUint64(uint64(v))
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
}

func (a *Amount) scanString(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
