// Package asset implements fixed-point token quantities.
//
// Quantities are int64 counts of the smallest unit; a Symbol carries the code
// and the number of fractional digits. Floats never appear: "100.0000 UBI" is
// stored as 1000000 with precision 4.
package asset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxAmount bounds the absolute value of any valid quantity.
// Keeping amounts below 2^62 leaves headroom so a single Add of two valid
// quantities cannot wrap int64.
const MaxAmount int64 = 1<<62 - 1

// MaxPrecision is the largest supported number of fractional digits.
const MaxPrecision = 18

var (
	// ErrOverflow is returned when arithmetic leaves the valid range.
	ErrOverflow = errors.New("asset: quantity out of range")

	// ErrSymbolMismatch is returned when combining quantities of different symbols.
	ErrSymbolMismatch = errors.New("asset: symbol mismatch")
)

// Symbol identifies a currency unit and its precision.
type Symbol struct {
	Code      string
	Precision uint8
}

// UBI is the unit every issuer currency is denominated in.
var UBI = Symbol{Code: "UBI", Precision: 4}

// IsValid reports whether the code is 1-7 upper-case letters and the
// precision is supported.
func (s Symbol) IsValid() bool {
	if len(s.Code) == 0 || len(s.Code) > 7 {
		return false
	}
	for _, r := range s.Code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s.Precision <= MaxPrecision
}

// String renders the symbol as "4,UBI".
func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// Quantity is an amount of some symbol expressed in smallest units.
type Quantity struct {
	Amount int64
	Symbol Symbol
}

// Units returns a quantity of n smallest units of sym.
func Units(n int64, sym Symbol) Quantity {
	return Quantity{Amount: n, Symbol: sym}
}

// IsValid reports whether the amount is in range and the symbol is valid.
func (q Quantity) IsValid() bool {
	return q.Amount >= -MaxAmount && q.Amount <= MaxAmount && q.Symbol.IsValid()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (q Quantity) IsPositive() bool {
	return q.Amount > 0
}

// Add returns q + o.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	if q.Symbol != o.Symbol {
		return Quantity{}, ErrSymbolMismatch
	}
	sum := q.Amount + o.Amount
	if sum > MaxAmount || sum < -MaxAmount {
		return Quantity{}, ErrOverflow
	}
	return Quantity{Amount: sum, Symbol: q.Symbol}, nil
}

// Sub returns q - o.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	if q.Symbol != o.Symbol {
		return Quantity{}, ErrSymbolMismatch
	}
	diff := q.Amount - o.Amount
	if diff > MaxAmount || diff < -MaxAmount {
		return Quantity{}, ErrOverflow
	}
	return Quantity{Amount: diff, Symbol: q.Symbol}, nil
}

// Percent returns floor(q * pct / 100) for non-negative q.
func (q Quantity) Percent(pct int64) Quantity {
	if pct == 0 || q.Amount == 0 {
		return Quantity{Amount: 0, Symbol: q.Symbol}
	}
	if q.Amount > math.MaxInt64/pct {
		// Divide first; loses at most pct-1 units of rounding on huge amounts.
		return Quantity{Amount: q.Amount / 100 * pct, Symbol: q.Symbol}
	}
	return Quantity{Amount: q.Amount * pct / 100, Symbol: q.Symbol}
}

// String renders the quantity as "123.4567 UBI".
func (q Quantity) String() string {
	amount := q.Amount
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	p := int(q.Symbol.Precision)
	if p > 0 {
		if len(digits) <= p {
			digits = strings.Repeat("0", p-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-p] + "." + digits[len(digits)-p:]
	}
	if neg {
		digits = "-" + digits
	}
	return digits + " " + q.Symbol.Code
}

// Parse reads a quantity written as "<digits>[.<fraction>] <CODE>".
// The number of fractional digits sets the precision.
func Parse(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	num, code, ok := strings.Cut(s, " ")
	if !ok {
		return Quantity{}, fmt.Errorf("asset: %q: missing symbol", s)
	}
	code = strings.TrimSpace(code)

	neg := strings.HasPrefix(num, "-")
	if neg {
		num = num[1:]
	}
	whole, frac, hasFrac := strings.Cut(num, ".")
	if whole == "" || (hasFrac && frac == "") {
		return Quantity{}, fmt.Errorf("asset: %q: malformed amount", s)
	}
	if len(frac) > MaxPrecision {
		return Quantity{}, fmt.Errorf("asset: %q: too many fractional digits", s)
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return Quantity{}, fmt.Errorf("asset: %q: malformed amount", s)
		}
	}

	amount, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil || amount > MaxAmount {
		return Quantity{}, fmt.Errorf("asset: %q: %w", s, ErrOverflow)
	}
	if neg {
		amount = -amount
	}

	q := Quantity{Amount: amount, Symbol: Symbol{Code: code, Precision: uint8(len(frac))}}
	if !q.Symbol.IsValid() {
		return Quantity{}, fmt.Errorf("asset: %q: invalid symbol", s)
	}
	return q, nil
}

// MustParse is Parse for constants and tests; it panics on error.
func MustParse(s string) Quantity {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}
