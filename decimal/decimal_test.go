// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package decimal

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func M(a ...any) []any {
	return a
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		digits   uint8
		expected string
	}{
		{"0", 18, "0"},
		{"1", 18, "1"},
		{"0.65", 18, "0.65"},
		{"0.650000", 18, "0.65"},
		{"123.456", 2, "123.45"}, // truncated, not rounded
		{"123.999", 0, "123"},
		{".5", 18, "0.5"},
		{"-1.5", 18, "-1.5"},
		{"0.000000000000000123", 18, "0.000000000000000123"},
	}

	for _, tt := range tests {
		d, err := Parse(tt.input, tt.digits)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, d.String(), tt.input)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", ".", "1e5", "0x10", "1.2.3", "abc", "1 "} {
		_, err := Parse(input, 18)
		assert.Error(t, err, input)
	}
}

func TestZeroValueUsable(t *testing.T) {
	var d Dec
	assert.True(t, d.IsZero())
	assert.Equal(t, "0", d.String())
	assert.Equal(t, 0, d.Sign())
	assert.Equal(t, big.NewInt(0), d.Units())
}

func TestArithmetic(t *testing.T) {
	a := MustParse("1.5", 18)
	b := MustParse("0.25", 18)

	tests := []struct {
		ret      any
		expected any
	}{
		{M(a.Add(b).String()), M("1.75")},
		{M(a.Sub(b).String()), M("1.25")},
		{M(a.Mul(b).String()), M("0.375")},
		{M(b.Sub(a).Sign()), M(-1)},
		{M(a.Cmp(b)), M(1)},
		{M(b.Cmp(a)), M(-1)},
		{M(a.Cmp(a)), M(0)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}
}

func TestMulTruncates(t *testing.T) {
	// 1 unit at 18 digits times 0.4 truncates to zero.
	a := FromUnits64(1, 18)
	assert.True(t, a.MulFrac(MustParse("0.4", FractionDigits)).IsZero())

	// integer precision: 5 × 0.5 truncates to 2
	b := FromUnits64(5, 0)
	assert.Equal(t, "2", b.MulFrac(MustParse("0.5", FractionDigits)).String())
}

func TestMulQuo(t *testing.T) {
	emission := FromUnits64(1000, 0)
	rating := FromUnits64(1, 18)
	total := FromUnits64(3, 18)

	assert.Equal(t, "333", emission.MulQuo(rating, total).String())

	// zero total weight yields zero, not an error
	assert.True(t, emission.MulQuo(rating, Zero(18)).IsZero())
}

func TestMulQuoMismatchedPrecisionPanics(t *testing.T) {
	assert.Panics(t, func() {
		FromUnits64(1, 0).MulQuo(FromUnits64(1, 18), FromUnits64(1, 0))
	})
	assert.Panics(t, func() {
		FromUnits64(1, 18).Add(FromUnits64(1, 0))
	})
}

func TestQuoInt64(t *testing.T) {
	d := FromUnits64(123000, 18)
	assert.Equal(t, "0.000000000000000123", d.QuoInt64(1000).String())
	assert.True(t, d.QuoInt64(0).IsZero())
}

func TestFloor(t *testing.T) {
	assert.Equal(t, "0", MustParse("-3", 18).Floor().String())
	assert.Equal(t, "3", MustParse("3", 18).Floor().String())
}

func TestMulBig(t *testing.T) {
	offset := MustParse("0.01", FractionDigits)
	assert.Equal(t, "0.04", offset.MulBig(big.NewInt(4)).String())
}

func TestMarshalText(t *testing.T) {
	text, err := MustParse("0.65", 18).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0.65", string(text))
}
