// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/decimal"
	"github.com/relaynet/rewards/relay"
)

// Modifier controls one weighted reward factor. Share is the factor's slice
// of the per-round emission; Offset and Power parameterize size-based
// multipliers (Family, Location).
type Modifier struct {
	Enabled bool
	Offset  decimal.Dec
	Power   decimal.Dec
	Share   decimal.Dec
}

// Modifiers groups all reward factors.
type Modifiers struct {
	Network   Modifier
	Hardware  Modifier
	Uptime    Modifier
	ExitBonus Modifier
	Family    Modifier
	Location  Modifier
}

// Requirements holds eligibility thresholds.
type Requirements struct {
	// Running is the minimum uptime fraction for a score to count in a round.
	Running decimal.Dec
}

// UptimeTier maps an uptime streak, in days, to a rating multiplier.
// Tiers are kept sorted by Days ascending; the highest tier at or below the
// entity's streak applies.
type UptimeTier struct {
	Days       uint64
	Multiplier decimal.Dec
}

// Delegate is a fixed split of an operator's reward to another address.
type Delegate struct {
	Address relay.Address
	Share   decimal.Dec
}

// SharePolicy bounds user-settable operator shares (staking variant).
type SharePolicy struct {
	Enabled bool
	Min     decimal.Dec
	Max     decimal.Dec
	Default decimal.Dec
}

// Config is the engine configuration. It is a value type; Apply never
// mutates the receiver, so a half-validated update can be discarded whole.
type Config struct {
	// TokensPerSecond is the emission rate in smallest token units per second.
	TokensPerSecond decimal.Dec
	Requirements    Requirements
	Modifiers       Modifiers
	UptimeTiers     []UptimeTier
	Delegates       map[string]Delegate
	Shares          SharePolicy
}

func frac(s string) decimal.Dec {
	return decimal.MustParse(s, decimal.FractionDigits)
}

// modifier builds a Modifier with every numeric field at fraction precision,
// so share sums and multiplier math never mix precisions.
func modifier(enabled bool, offset, power, share string) Modifier {
	return Modifier{
		Enabled: enabled,
		Offset:  frac(offset),
		Power:   frac(power),
		Share:   frac(share),
	}
}

// DefaultRelay returns the default configuration of the relay variant.
func DefaultRelay() Config {
	return Config{
		TokensPerSecond: decimal.Zero(decimal.FractionDigits),
		Requirements:    Requirements{Running: frac("0.5")},
		Modifiers: Modifiers{
			Network:   modifier(true, "0", "0", "0.65"),
			Hardware:  modifier(true, "0", "0", "0.2"),
			Uptime:    modifier(true, "0", "0", "0.1"),
			ExitBonus: modifier(true, "0", "0", "0.05"),
			Family:    modifier(true, "0.01", "1", "0"),
			Location:  modifier(true, "0.003", "2", "0"),
		},
		UptimeTiers: []UptimeTier{
			{Days: 3, Multiplier: frac("1")},
			{Days: 14, Multiplier: frac("1.2")},
			{Days: 90, Multiplier: frac("1.35")},
		},
		Delegates: map[string]Delegate{},
		Shares: SharePolicy{
			Min:     frac("0"),
			Max:     frac("1"),
			Default: frac("0.1"),
		},
	}
}

// DefaultStaking returns the default configuration of the staking variant.
// Stake weight is a single factor taking the full emission.
func DefaultStaking() Config {
	return Config{
		TokensPerSecond: decimal.Zero(0),
		Requirements:    Requirements{Running: frac("0.5")},
		Modifiers: Modifiers{
			Network:   modifier(true, "0", "0", "1"),
			Hardware:  modifier(false, "0", "0", "0"),
			Uptime:    modifier(false, "0", "0", "0"),
			ExitBonus: modifier(false, "0", "0", "0"),
			Family:    modifier(false, "0", "0", "0"),
			Location:  modifier(false, "0", "0", "0"),
		},
		Delegates: map[string]Delegate{},
		Shares: SharePolicy{
			Enabled: true,
			Min:     frac("0"),
			Max:     frac("1"),
			Default: frac("0.1"),
		},
	}
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.UptimeTiers = append([]UptimeTier(nil), c.UptimeTiers...)
	out.Delegates = make(map[string]Delegate, len(c.Delegates))
	for k, v := range c.Delegates {
		out.Delegates[k] = v
	}
	return out
}

// ShareSum returns the sum of all enabled factor shares.
func (c Config) ShareSum() decimal.Dec {
	sum := decimal.Zero(decimal.FractionDigits)
	for _, m := range []Modifier{
		c.Modifiers.Network, c.Modifiers.Hardware, c.Modifiers.Uptime,
		c.Modifiers.ExitBonus, c.Modifiers.Family, c.Modifiers.Location,
	} {
		if m.Enabled {
			sum = sum.Add(m.Share)
		}
	}
	return sum
}

// TierMultiplier returns the uptime multiplier for a streak of the given
// length, or 1 when no tier applies.
func (c Config) TierMultiplier(streakDays uint64) decimal.Dec {
	mult := decimal.One(decimal.FractionDigits)
	for _, tier := range c.UptimeTiers {
		if streakDays < tier.Days {
			break
		}
		mult = tier.Multiplier
	}
	return mult
}

// PowerExponent converts a validated Power value into an integer exponent.
func PowerExponent(power decimal.Dec) uint64 {
	units := power.Units()
	return new(big.Int).Quo(units, new(big.Int).Exp(big.NewInt(10), big.NewInt(decimal.FractionDigits), nil)).Uint64()
}

const maxPower = 8

func parseFraction(path, s string) (decimal.Dec, error) {
	d, err := decimal.ParseFraction(s)
	if err != nil {
		return decimal.Dec{}, errors.Errorf("%s has to be a decimal number", path)
	}
	if d.Sign() < 0 {
		return decimal.Dec{}, errors.Errorf("%s has to be >= 0", path)
	}
	if d.Cmp(decimal.One(decimal.FractionDigits)) > 0 {
		return decimal.Dec{}, errors.Errorf("%s has to be <= 1", path)
	}
	return d, nil
}

func parsePower(path, s string) (decimal.Dec, error) {
	d, err := decimal.ParseFraction(s)
	if err != nil || d.Sign() < 0 {
		return decimal.Dec{}, errors.Errorf("%s has to be a non-negative integer", path)
	}
	units := d.Units()
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimal.FractionDigits), nil)
	if new(big.Int).Rem(units, scale).Sign() != 0 {
		return decimal.Dec{}, errors.Errorf("%s has to be a non-negative integer", path)
	}
	if new(big.Int).Quo(units, scale).Cmp(big.NewInt(maxPower)) > 0 {
		return decimal.Dec{}, errors.Errorf("%s has to be <= %d", path, maxPower)
	}
	return d, nil
}

func parseMultiplier(path, s string) (decimal.Dec, error) {
	d, err := decimal.ParseFraction(s)
	if err != nil || d.Sign() < 0 {
		return decimal.Dec{}, errors.Errorf("%s has to be a non-negative decimal number", path)
	}
	return d, nil
}
