// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package relay

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const (
	// FingerprintLength length of relay fingerprint in bytes.
	FingerprintLength = 20
)

// Fingerprint identifies a relay by its RSA identity digest.
// The canonical text form is 40 upper-case hex characters without prefix.
type Fingerprint [FingerprintLength]byte

// String implements the stringer interface.
func (f Fingerprint) String() string {
	return strings.ToUpper(hex.EncodeToString(f[:]))
}

// Bytes returns byte slice form of fingerprint.
func (f Fingerprint) Bytes() []byte {
	return f[:]
}

// IsZero returns true if the fingerprint is all zero bytes.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint converts a string presented fingerprint into Fingerprint type.
func ParseFingerprint(s string) (Fingerprint, error) {
	if len(s) != FingerprintLength*2 {
		return Fingerprint{}, errors.New("invalid length")
	}
	if s != strings.ToUpper(s) {
		return Fingerprint{}, errors.New("has to be upper case")
	}

	var fp Fingerprint
	if _, err := hex.Decode(fp[:], []byte(s)); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

// MustParseFingerprint converts a string presented fingerprint into Fingerprint type, panic on error.
func MustParseFingerprint(s string) Fingerprint {
	fp, err := ParseFingerprint(s)
	if err != nil {
		panic(err)
	}
	return fp
}

// MarshalText implements the encoding.TextMarshaler interface.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
