// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scoring

import (
	"encoding/json"
	"math/big"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
)

// hardware bonus blend: 65% network rating, 35% uptime-derived rating
var (
	hardwareNetworkWeight = decimal.MustParse("0.65", decimal.FractionDigits)
	hardwareUptimeWeight  = decimal.MustParse("0.35", decimal.FractionDigits)
)

type performanceFormula struct{}

func (performanceFormula) Kind() Kind {
	return Performance
}

func (performanceFormula) RatingDigits() uint8 {
	return decimal.FractionDigits
}

type performanceScoreJSON struct {
	Network      *string `json:"Network,omitempty"`
	IsHardware   *bool   `json:"IsHardware,omitempty"`
	UptimeStreak *uint64 `json:"UptimeStreak,omitempty"`
	FamilySize   *uint64 `json:"FamilySize,omitempty"`
	LocationSize *uint64 `json:"LocationSize,omitempty"`
	Exit         *bool   `json:"Exit,omitempty"`
	Running      *string `json:"Running,omitempty"`
}

func (performanceFormula) ParseScore(raw json.RawMessage, dst *Score) error {
	var sj performanceScoreJSON
	if err := decodeStrict(raw, &sj); err != nil {
		return errors.WithMessage(err, "malformed score")
	}

	if sj.Network != nil {
		network, err := decimal.ParseFraction(*sj.Network)
		if err != nil || network.Sign() < 0 {
			return errors.New("Network has to be >= 0")
		}
		dst.Network = network
	}
	if sj.IsHardware != nil {
		dst.IsHardware = *sj.IsHardware
	}
	if sj.UptimeStreak != nil {
		dst.UptimeStreak = *sj.UptimeStreak
	}
	if sj.FamilySize != nil {
		dst.FamilySize = *sj.FamilySize
	}
	if sj.LocationSize != nil {
		dst.LocationSize = *sj.LocationSize
	}
	if sj.Exit != nil {
		dst.Exit = *sj.Exit
	}
	if sj.Running != nil {
		running, err := parseRunning(*sj.Running)
		if err != nil {
			return err
		}
		dst.Running = running
	}
	return nil
}

// Rate computes the performance-weighted rating:
//
//	network   = Network × familyMult × locationMult
//	uptime    = tierMultiplier(UptimeStreak) × Network
//	hardware  = 0.65 × network + 0.35 × uptime   (hardware relays only)
//	exitBonus = network                           (exit relays only)
//
// Size multipliers follow 1 + Offset × size^Power, floored at zero. Relays
// below the running requirement rate zero across all factors.
func (f performanceFormula) Rate(sc Score, cfg *config.Config, _ decimal.Dec) Rating {
	rating := Rating{
		Network:   decimal.Zero(decimal.FractionDigits),
		Hardware:  decimal.Zero(decimal.FractionDigits),
		Uptime:    decimal.Zero(decimal.FractionDigits),
		ExitBonus: decimal.Zero(decimal.FractionDigits),
		Total:     decimal.Zero(decimal.FractionDigits),
	}
	if !cfg.Requirements.Running.IsZero() && sc.Running.Cmp(cfg.Requirements.Running) < 0 {
		return rating
	}
	rating.Eligible = true

	network := sc.Network
	network = network.MulFrac(sizeMultiplier(cfg.Modifiers.Family, sc.FamilySize))
	network = network.MulFrac(sizeMultiplier(cfg.Modifiers.Location, sc.LocationSize))
	rating.Network = network

	if cfg.Modifiers.Uptime.Enabled {
		rating.Uptime = sc.Network.MulFrac(cfg.TierMultiplier(sc.UptimeStreak))
	}
	if cfg.Modifiers.Hardware.Enabled && sc.IsHardware {
		rating.Hardware = rating.Network.MulFrac(hardwareNetworkWeight).
			Add(rating.Uptime.MulFrac(hardwareUptimeWeight))
	}
	if cfg.Modifiers.ExitBonus.Enabled && sc.Exit {
		rating.ExitBonus = rating.Network
	}

	rating.Total = rating.Network.Add(rating.Hardware).Add(rating.Uptime).Add(rating.ExitBonus)
	return rating
}

// sizeMultiplier evaluates 1 + Offset × size^Power for an enabled modifier,
// floored at a non-negative result. Disabled modifiers are neutral.
func sizeMultiplier(m config.Modifier, size uint64) decimal.Dec {
	one := decimal.One(decimal.FractionDigits)
	if !m.Enabled || size == 0 {
		return one
	}
	pow := new(big.Int).Exp(
		new(big.Int).SetUint64(size),
		new(big.Int).SetUint64(config.PowerExponent(m.Power)),
		nil,
	)
	return one.Add(m.Offset.MulBig(pow)).Floor()
}
