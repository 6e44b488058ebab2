// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0xf077b491b355e64048ce21e3a6fc4751eeea77fa")
	require.NoError(t, err)
	assert.Equal(t, "0xf077b491b355e64048ce21e3a6fc4751eeea77fa", addr.String())

	// prefix is optional
	bare, err := ParseAddress("f077b491b355e64048ce21e3a6fc4751eeea77fa")
	require.NoError(t, err)
	assert.Equal(t, addr, bare)

	_, err = ParseAddress("0x123")
	assert.EqualError(t, err, "invalid length")
	_, err = ParseAddress("zz77b491b355e64048ce21e3a6fc4751eeea77fa")
	assert.Error(t, err)

	assert.True(t, Address{}.IsZero())
	assert.False(t, addr.IsZero())
}

func TestParseFingerprint(t *testing.T) {
	fp, err := ParseFingerprint("AAAABBBBCCCCDDDDEEEEFFFF0000111122223333")
	require.NoError(t, err)
	assert.Equal(t, "AAAABBBBCCCCDDDDEEEEFFFF0000111122223333", fp.String())

	_, err = ParseFingerprint("aaaabbbbccccddddeeeeffff0000111122223333")
	assert.EqualError(t, err, "has to be upper case")
	_, err = ParseFingerprint("AAAA")
	assert.EqualError(t, err, "invalid length")
}

func TestAddressTextRoundTrip(t *testing.T) {
	addr := MustParseAddress("0xf077b491b355e64048ce21e3a6fc4751eeea77fa")
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var back Address
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, addr, back)
}
