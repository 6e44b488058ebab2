// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/decimal"
	"github.com/relaynet/rewards/relay"
)

// Update is a partial configuration change. Absent fields leave the prior
// value unchanged. All numeric fields arrive as decimal strings.
type Update struct {
	TokensPerSecond *string                    `json:"TokensPerSecond,omitempty"`
	Requirements    *RequirementsUpdate        `json:"Requirements,omitempty"`
	Modifiers       *ModifiersUpdate           `json:"Modifiers,omitempty"`
	UptimeTiers     []UptimeTierUpdate         `json:"UptimeTiers,omitempty"`
	Delegates       map[string]*DelegateUpdate `json:"Delegates,omitempty"`
	Shares          *SharePolicyUpdate         `json:"Shares,omitempty"`
}

// RequirementsUpdate is the partial form of Requirements.
type RequirementsUpdate struct {
	Running *string `json:"Running,omitempty"`
}

// ModifierUpdate is the partial form of Modifier.
type ModifierUpdate struct {
	Enabled *bool   `json:"Enabled,omitempty"`
	Offset  *string `json:"Offset,omitempty"`
	Power   *string `json:"Power,omitempty"`
	Share   *string `json:"Share,omitempty"`
}

// ModifiersUpdate is the partial form of Modifiers.
type ModifiersUpdate struct {
	Network   *ModifierUpdate `json:"Network,omitempty"`
	Hardware  *ModifierUpdate `json:"Hardware,omitempty"`
	Uptime    *ModifierUpdate `json:"Uptime,omitempty"`
	ExitBonus *ModifierUpdate `json:"ExitBonus,omitempty"`
	Family    *ModifierUpdate `json:"Family,omitempty"`
	Location  *ModifierUpdate `json:"Location,omitempty"`
}

// UptimeTierUpdate replaces the whole tier table when present.
type UptimeTierUpdate struct {
	Days       uint64 `json:"Days"`
	Multiplier string `json:"Multiplier"`
}

// DelegateUpdate sets or, when null, removes a delegate entry.
type DelegateUpdate struct {
	Address string `json:"Address"`
	Share   string `json:"Share"`
}

// SharePolicyUpdate is the partial form of SharePolicy.
type SharePolicyUpdate struct {
	Enabled *bool   `json:"Enabled,omitempty"`
	Min     *string `json:"Min,omitempty"`
	Max     *string `json:"Max,omitempty"`
	Default *string `json:"Default,omitempty"`
}

// EntityIDCheck validates an entity identifier key, returning a descriptive
// error for invalid ones. The engine supplies the variant's format.
type EntityIDCheck func(id string) error

// Apply merges an update into a copy of the configuration, validating every
// present field. It returns the merged configuration or a field-qualified
// error; the receiver is never modified, so a failed update applies nothing.
func (c Config) Apply(upd Update, checkID EntityIDCheck) (Config, error) {
	out := c.Clone()

	if upd.TokensPerSecond != nil {
		units, ok := new(big.Int).SetString(*upd.TokensPerSecond, 10)
		if !ok || units.Sign() < 0 {
			return Config{}, errors.New("TokensPerSecond has to be a non-negative integer")
		}
		out.TokensPerSecond = decimal.FromUnits(units, c.TokensPerSecond.Digits())
	}

	if upd.Requirements != nil && upd.Requirements.Running != nil {
		running, err := parseFraction("Requirements.Running", *upd.Requirements.Running)
		if err != nil {
			return Config{}, err
		}
		out.Requirements.Running = running
	}

	if upd.Modifiers != nil {
		for _, m := range []struct {
			path string
			upd  *ModifierUpdate
			dst  *Modifier
		}{
			{"Modifiers.Network", upd.Modifiers.Network, &out.Modifiers.Network},
			{"Modifiers.Hardware", upd.Modifiers.Hardware, &out.Modifiers.Hardware},
			{"Modifiers.Uptime", upd.Modifiers.Uptime, &out.Modifiers.Uptime},
			{"Modifiers.ExitBonus", upd.Modifiers.ExitBonus, &out.Modifiers.ExitBonus},
			{"Modifiers.Family", upd.Modifiers.Family, &out.Modifiers.Family},
			{"Modifiers.Location", upd.Modifiers.Location, &out.Modifiers.Location},
		} {
			if m.upd == nil {
				continue
			}
			if err := applyModifier(m.path, m.upd, m.dst); err != nil {
				return Config{}, err
			}
		}
	}

	if upd.UptimeTiers != nil {
		tiers := make([]UptimeTier, 0, len(upd.UptimeTiers))
		for _, t := range upd.UptimeTiers {
			mult, err := parseMultiplier("UptimeTiers.Multiplier", t.Multiplier)
			if err != nil {
				return Config{}, err
			}
			tiers = append(tiers, UptimeTier{Days: t.Days, Multiplier: mult})
		}
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].Days < tiers[j].Days })
		for i := 1; i < len(tiers); i++ {
			if tiers[i].Days == tiers[i-1].Days {
				return Config{}, errors.Errorf("UptimeTiers.Days %d has to be unique", tiers[i].Days)
			}
		}
		out.UptimeTiers = tiers
	}

	for key, del := range upd.Delegates {
		if err := checkID(key); err != nil {
			return Config{}, errors.Errorf("Delegates.%s %s", key, err.Error())
		}
		if del == nil {
			delete(out.Delegates, key)
			continue
		}
		addr, err := relay.ParseAddress(del.Address)
		if err != nil {
			return Config{}, errors.Errorf("Delegates.%s.Address %s", key, err.Error())
		}
		share, err := parseFraction("Delegates."+key+".Share", del.Share)
		if err != nil {
			return Config{}, err
		}
		out.Delegates[key] = Delegate{Address: addr, Share: share}
	}

	if upd.Shares != nil {
		if upd.Shares.Enabled != nil {
			out.Shares.Enabled = *upd.Shares.Enabled
		}
		for _, f := range []struct {
			path string
			upd  *string
			dst  *decimal.Dec
		}{
			{"Shares.Min", upd.Shares.Min, &out.Shares.Min},
			{"Shares.Max", upd.Shares.Max, &out.Shares.Max},
			{"Shares.Default", upd.Shares.Default, &out.Shares.Default},
		} {
			if f.upd == nil {
				continue
			}
			share, err := parseFraction(f.path, *f.upd)
			if err != nil {
				return Config{}, err
			}
			*f.dst = share
		}
		if out.Shares.Min.Cmp(out.Shares.Max) > 0 {
			return Config{}, errors.New("Shares.Min has to be <= Shares.Max")
		}
		if out.Shares.Default.Cmp(out.Shares.Min) < 0 || out.Shares.Default.Cmp(out.Shares.Max) > 0 {
			return Config{}, errors.New("Shares.Default has to be within [Shares.Min, Shares.Max]")
		}
	}

	if out.ShareSum().Cmp(decimal.One(decimal.FractionDigits)) > 0 {
		return Config{}, errors.New("Modifiers share sum has to be <= 1")
	}
	return out, nil
}

func applyModifier(path string, upd *ModifierUpdate, dst *Modifier) error {
	if upd.Enabled != nil {
		dst.Enabled = *upd.Enabled
	}
	if upd.Offset != nil {
		offset, err := parseFraction(path+".Offset", *upd.Offset)
		if err != nil {
			return err
		}
		dst.Offset = offset
	}
	if upd.Power != nil {
		power, err := parsePower(path+".Power", *upd.Power)
		if err != nil {
			return err
		}
		dst.Power = power
	}
	if upd.Share != nil {
		share, err := parseFraction(path+".Share", *upd.Share)
		if err != nil {
			return err
		}
		dst.Share = share
	}
	return nil
}
