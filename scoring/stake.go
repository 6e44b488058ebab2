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

type stakeWeightFormula struct{}

func (stakeWeightFormula) Kind() Kind {
	return StakeWeight
}

func (stakeWeightFormula) RatingDigits() uint8 {
	return 0
}

type stakeScoreJSON struct {
	Staked  *string `json:"Staked,omitempty"`
	Running *string `json:"Running,omitempty"`
	Share   *string `json:"Share,omitempty"`
}

func (stakeWeightFormula) ParseScore(raw json.RawMessage, dst *Score) error {
	var sj stakeScoreJSON
	if err := decodeStrict(raw, &sj); err != nil {
		return errors.WithMessage(err, "malformed score")
	}

	if sj.Staked != nil {
		units, ok := new(big.Int).SetString(*sj.Staked, 10)
		if !ok || units.Sign() < 0 {
			return errors.New("Staked has to be a non-negative integer")
		}
		dst.Staked = decimal.FromUnits(units, 0)
	}
	if sj.Running != nil {
		running, err := parseRunning(*sj.Running)
		if err != nil {
			return err
		}
		dst.Running = running
	}
	if sj.Share != nil {
		share, err := decimal.ParseFraction(*sj.Share)
		if err != nil || share.Sign() < 0 || share.Cmp(decimal.One(decimal.FractionDigits)) > 0 {
			return errors.New("Share has to be within [0, 1]")
		}
		dst.Share = &share
	}
	return nil
}

// Rate computes the stake-weighted rating: staked amount plus the restaked
// (unclaimed) rewards carried forward by the ledger. Operators below the
// running requirement rate zero for the round; their stake persists and
// counts again once they recover.
func (f stakeWeightFormula) Rate(sc Score, cfg *config.Config, restaked decimal.Dec) Rating {
	rating := Rating{
		Network:   decimal.Zero(0),
		Hardware:  decimal.Zero(0),
		Uptime:    decimal.Zero(0),
		ExitBonus: decimal.Zero(0),
		Total:     decimal.Zero(0),
	}
	if !cfg.Requirements.Running.IsZero() && sc.Running.Cmp(cfg.Requirements.Running) < 0 {
		return rating
	}
	rating.Eligible = true

	weight := sc.Staked.Add(restaked)
	rating.Network = weight
	rating.Total = weight
	return rating
}

// EffectiveShare resolves the fraction of an entity's reward routed to its
// delegate under the staking share policy: the submitted share when present,
// otherwise the policy default, clamped to [Min, Max]. With the policy
// disabled the submitted and default shares are ignored and the operator
// keeps everything.
func EffectiveShare(sc Score, policy config.SharePolicy) decimal.Dec {
	if !policy.Enabled {
		return decimal.Zero(decimal.FractionDigits)
	}
	share := policy.Default
	if sc.Share != nil {
		share = *sc.Share
	}
	if share.Cmp(policy.Min) < 0 {
		return policy.Min
	}
	if share.Cmp(policy.Max) > 0 {
		return policy.Max
	}
	return share
}
