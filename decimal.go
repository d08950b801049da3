package trino

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimal is an arbitrary-precision decimal value with an explicit sign,
// used to represent Trino's decimal(p,s) columns without the silent
// precision loss a float64 would introduce. It preserves negative zero
// (-0.x), which a plain big.Int/scale pair would otherwise normalize
// away.
type Decimal struct {
	unscaled *big.Int // magnitude, always non-negative
	scale    int32
	negative bool // true for -0 as well as any negative value
}

// ParseDecimal parses a decimal literal as returned by the coordinator,
// e.g. "123456789000.1234005" or "-0.5".
func ParseDecimal(s string) (Decimal, error) {
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	digits := intPart + fracPart
	if digits == "" {
		return Decimal{}, fmt.Errorf("trino: invalid decimal literal %q", s)
	}
	unscaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("trino: invalid decimal literal %q", s)
	}
	scale := int32(0)
	if hasFrac {
		scale = int32(len(fracPart))
	}
	return Decimal{unscaled: unscaled, scale: scale, negative: negative}, nil
}

// NewDecimal builds a Decimal from an unscaled magnitude and a scale
// (value = unscaled * 10^-scale).
func NewDecimal(unscaled *big.Int, scale int32, negative bool) Decimal {
	return Decimal{unscaled: new(big.Int).Abs(unscaled), scale: scale, negative: negative}
}

// Scale returns the number of digits after the decimal point.
func (d Decimal) Scale() int32 { return d.scale }

// Negative reports whether the value's sign bit is set, including for a
// -0 magnitude.
func (d Decimal) Negative() bool { return d.negative }

// String renders the canonical textual form, preserving sign (including
// -0.x) and trailing zeros implied by scale.
func (d Decimal) String() string {
	if d.unscaled == nil {
		return "0"
	}
	digits := d.unscaled.String()
	sign := ""
	if d.negative {
		sign = "-"
	}
	if d.scale <= 0 {
		return sign + digits + strings.Repeat("0", int(-d.scale))
	}
	for int32(len(digits)) <= d.scale {
		digits = "0" + digits
	}
	intLen := int32(len(digits)) - d.scale
	return sign + digits[:intLen] + "." + digits[intLen:]
}

// Rat returns an exact big.Rat representation.
func (d Decimal) Rat() *big.Rat {
	r := new(big.Rat).SetInt(d.unscaled)
	if d.scale > 0 {
		denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.scale)), nil)
		r.Quo(r, new(big.Rat).SetInt(denom))
	} else if d.scale < 0 {
		mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-d.scale)), nil)
		r.Mul(r, new(big.Rat).SetInt(mul))
	}
	if d.negative {
		r.Neg(r)
	}
	return r
}

// Float64 returns the nearest float64, per the ecosystem convention that
// this is a lossy convenience conversion, not the canonical value.
func (d Decimal) Float64() float64 {
	f, _ := d.Rat().Float64()
	return f
}
