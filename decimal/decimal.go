// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package decimal

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// FractionDigits is the scale used for dimensionless ratios and ratings.
const FractionDigits = 18

var big0 = new(big.Int)

// Dec is an immutable fixed-point decimal backed by an arbitrary-precision
// integer of smallest units. A Dec with nil units presents a zero value, so
// the zero struct is usable without initialization.
//
// Division always truncates toward zero. Values of different precision never
// mix implicitly; the few cross-precision operations (MulFrac, MulQuo) state
// their contract explicitly.
type Dec struct {
	units  *big.Int
	digits uint8
}

// Zero returns the zero value at the given precision.
func Zero(digits uint8) Dec {
	return Dec{digits: digits}
}

// FromUnits creates a Dec holding the given count of smallest units.
func FromUnits(units *big.Int, digits uint8) Dec {
	if units.Sign() == 0 {
		return Dec{digits: digits}
	}
	return Dec{units: new(big.Int).Set(units), digits: digits}
}

// FromUnits64 creates a Dec holding the given count of smallest units.
func FromUnits64(units int64, digits uint8) Dec {
	return FromUnits(big.NewInt(units), digits)
}

// One returns the value 1 at the given precision.
func One(digits uint8) Dec {
	return FromUnits(pow10(digits), digits)
}

// Parse parses a decimal string at the given precision.
// Digits beyond the precision are truncated, never rounded.
func Parse(s string, digits uint8) (Dec, error) {
	str := s
	neg := false
	if strings.HasPrefix(str, "-") {
		neg = true
		str = str[1:]
	} else if strings.HasPrefix(str, "+") {
		str = str[1:]
	}
	if str == "" {
		return Dec{}, errors.New("empty decimal string")
	}

	intPart, fracPart := str, ""
	if i := strings.IndexByte(str, '.'); i >= 0 {
		intPart, fracPart = str[:i], str[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return Dec{}, errors.Errorf("invalid decimal string %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return Dec{}, errors.Errorf("invalid decimal string %q", s)
	}
	if len(fracPart) > int(digits) {
		fracPart = fracPart[:digits]
	}
	fracPart += strings.Repeat("0", int(digits)-len(fracPart))

	units, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return Dec{}, errors.Errorf("invalid decimal string %q", s)
	}
	if neg {
		units.Neg(units)
	}
	return FromUnits(units, digits), nil
}

// MustParse parses a decimal string, panic on error.
func MustParse(s string, digits uint8) Dec {
	d, err := Parse(s, digits)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseFraction parses a dimensionless ratio at FractionDigits precision.
func ParseFraction(s string) (Dec, error) {
	return Parse(s, FractionDigits)
}

// Digits returns the precision of the value.
func (d Dec) Digits() uint8 { return d.digits }

// Units returns the count of smallest units.
func (d Dec) Units() *big.Int {
	if d.units == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(d.units)
}

// IsZero returns true if d presents a zero value.
func (d Dec) IsZero() bool {
	return d.units == nil || d.units.Sign() == 0
}

// Sign returns -1, 0 or +1 depending on the sign of d.
func (d Dec) Sign() int {
	if d.units == nil {
		return 0
	}
	return d.units.Sign()
}

// Cmp compares with another Dec of the same precision.
// Returns:
//
//	-1 if d <  other
//	 0 if d == other
//	+1 if d >  other
func (d Dec) Cmp(other Dec) int {
	d.mustMatch(other)
	if d.units == nil {
		if other.units == nil {
			return 0
		}
		return -other.units.Sign()
	}
	if other.units == nil {
		return d.units.Sign()
	}
	return d.units.Cmp(other.units)
}

// Add returns d + other. Both operands must share the same precision.
func (d Dec) Add(other Dec) Dec {
	d.mustMatch(other)
	return FromUnits(new(big.Int).Add(d.Units(), other.Units()), d.digits)
}

// Sub returns d - other. Both operands must share the same precision.
func (d Dec) Sub(other Dec) Dec {
	d.mustMatch(other)
	return FromUnits(new(big.Int).Sub(d.Units(), other.Units()), d.digits)
}

// Mul returns d × other truncated to d's precision.
// The other operand may carry a different precision.
func (d Dec) Mul(other Dec) Dec {
	if d.IsZero() || other.IsZero() {
		return Zero(d.digits)
	}
	units := new(big.Int).Mul(d.units, other.units)
	units.Quo(units, pow10(other.digits))
	return FromUnits(units, d.digits)
}

// MulFrac returns d scaled by a FractionDigits ratio, truncated.
func (d Dec) MulFrac(frac Dec) Dec {
	if frac.digits != FractionDigits {
		panic("decimal: frac must carry fraction precision")
	}
	return d.Mul(frac)
}

// MulBig returns d × bi.
func (d Dec) MulBig(bi *big.Int) Dec {
	if d.IsZero() || bi.Sign() == 0 {
		return Zero(d.digits)
	}
	return FromUnits(new(big.Int).Mul(d.units, bi), d.digits)
}

// MulQuo returns d × mul ÷ div truncated to d's precision. The mul and div
// operands must share a precision with each other, so their scales cancel.
// A zero divisor yields zero, not an error; callers distributing by weight
// rely on this.
func (d Dec) MulQuo(mul, div Dec) Dec {
	mul.mustMatch(div)
	if d.IsZero() || mul.IsZero() || div.IsZero() {
		return Zero(d.digits)
	}
	units := new(big.Int).Mul(d.units, mul.units)
	units.Quo(units, div.units)
	return FromUnits(units, d.digits)
}

// QuoInt64 returns d ÷ n truncated. A zero divisor yields zero.
func (d Dec) QuoInt64(n int64) Dec {
	if d.IsZero() || n == 0 {
		return Zero(d.digits)
	}
	return FromUnits(new(big.Int).Quo(d.units, big.NewInt(n)), d.digits)
}

// Floor returns d, or zero if d is negative. Multiplier formulas use it to
// keep ratings non-negative.
func (d Dec) Floor() Dec {
	if d.Sign() < 0 {
		return Zero(d.digits)
	}
	return d
}

// String renders the canonical decimal string, trailing fraction zeros trimmed.
func (d Dec) String() string {
	units := d.units
	if units == nil {
		units = big0
	}
	s := new(big.Int).Abs(units).String()
	if int(d.digits) >= len(s) {
		s = strings.Repeat("0", int(d.digits)-len(s)+1) + s
	}
	intPart := s[:len(s)-int(d.digits)]
	fracPart := strings.TrimRight(s[len(s)-int(d.digits):], "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if units.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// MarshalText implements the encoding.TextMarshaler interface.
func (d Dec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Dec) mustMatch(other Dec) {
	if d.digits != other.digits {
		panic("decimal: mismatched precision")
	}
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(digits uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
}
