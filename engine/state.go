// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
	"github.com/relaynet/rewards/relay"
	"github.com/relaynet/rewards/round"
	"github.com/relaynet/rewards/scoring"
)

// Serialized state. Every numeric field is a decimal string; View and Init
// round-trip the previous round and configuration exactly.

type stateJSON struct {
	Variant       string                       `json:"Variant"`
	Configuration configJSON                   `json:"Configuration"`
	Pending       []pendingJSON                `json:"Pending"`
	Previous        *completedJSON               `json:"Previous,omitempty"`
	PreviousClaimed map[string]map[string]string `json:"PreviousClaimed,omitempty"`
	Rewarded        map[string]map[string]string `json:"Rewarded"`
	Claimed         map[string]map[string]string `json:"Claimed"`
}

type configJSON struct {
	TokensPerSecond string                  `json:"TokensPerSecond"`
	Requirements    requirementsJSON        `json:"Requirements"`
	Modifiers       modifiersJSON           `json:"Modifiers"`
	UptimeTiers     []tierJSON              `json:"UptimeTiers"`
	Delegates       map[string]delegateJSON `json:"Delegates"`
	Shares          sharesJSON              `json:"Shares"`
}

type requirementsJSON struct {
	Running string `json:"Running"`
}

type modifierJSON struct {
	Enabled bool   `json:"Enabled"`
	Offset  string `json:"Offset"`
	Power   string `json:"Power"`
	Share   string `json:"Share"`
}

type modifiersJSON struct {
	Network   modifierJSON `json:"Network"`
	Hardware  modifierJSON `json:"Hardware"`
	Uptime    modifierJSON `json:"Uptime"`
	ExitBonus modifierJSON `json:"ExitBonus"`
	Family    modifierJSON `json:"Family"`
	Location  modifierJSON `json:"Location"`
}

type tierJSON struct {
	Days       uint64 `json:"Days"`
	Multiplier string `json:"Multiplier"`
}

type delegateJSON struct {
	Address string `json:"Address"`
	Share   string `json:"Share"`
}

type sharesJSON struct {
	Enabled bool   `json:"Enabled"`
	Min     string `json:"Min"`
	Max     string `json:"Max"`
	Default string `json:"Default"`
}

type pendingJSON struct {
	Timestamp uint64               `json:"Timestamp"`
	Scores    map[string]scoreJSON `json:"Scores"`
}

type scoreJSON struct {
	Network      string  `json:"Network,omitempty"`
	IsHardware   bool    `json:"IsHardware,omitempty"`
	UptimeStreak uint64  `json:"UptimeStreak,omitempty"`
	FamilySize   uint64  `json:"FamilySize,omitempty"`
	LocationSize uint64  `json:"LocationSize,omitempty"`
	Exit         bool    `json:"Exit,omitempty"`
	Staked       string  `json:"Staked,omitempty"`
	Share        *string `json:"Share,omitempty"`
	Running      string  `json:"Running"`
}

type ratingJSON struct {
	Network   string `json:"Network"`
	Hardware  string `json:"Hardware"`
	Uptime    string `json:"Uptime"`
	ExitBonus string `json:"ExitBonus"`
	Total     string `json:"Total"`
	Eligible  bool   `json:"Eligible"`
}

type rewardJSON struct {
	Network       string `json:"Network"`
	Hardware      string `json:"Hardware"`
	Uptime        string `json:"Uptime"`
	ExitBonus     string `json:"ExitBonus"`
	Total         string `json:"Total"`
	OperatorTotal string `json:"OperatorTotal"`
	DelegateTotal string `json:"DelegateTotal"`
	Delegate      string `json:"Delegate,omitempty"`
}

type detailJSON struct {
	Score  scoreJSON  `json:"Score"`
	Rating ratingJSON `json:"Rating"`
	Reward rewardJSON `json:"Reward"`
}

type summaryJSON struct {
	Entities int    `json:"Entities"`
	Ratings  string `json:"Ratings"`
	Rewards  string `json:"Rewards"`
}

type completedJSON struct {
	Timestamp     uint64                `json:"Timestamp"`
	Period        uint64                `json:"Period"`
	Configuration configJSON            `json:"Configuration"`
	Summary       summaryJSON           `json:"Summary"`
	Details       map[string]detailJSON `json:"Details"`
}

// ViewConfiguration serializes the live configuration.
func (e *Engine) ViewConfiguration() (json.RawMessage, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return json.Marshal(encodeConfig(e.cfg))
}

// View serializes the full engine state. Read-only; the output feeds Init
// for migration and the snapshot persistence of the daemon.
func (e *Engine) View() (json.RawMessage, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := stateJSON{
		Variant:       e.variant.String(),
		Configuration: encodeConfig(e.cfg),
		Pending:       []pendingJSON{},
	}
	for _, ts := range e.rounds.Timestamps() {
		p, err := e.rounds.Get(ts)
		if err != nil {
			return nil, err
		}
		state.Pending = append(state.Pending, encodePending(p, e.variant.Kind()))
	}
	if e.prev != nil {
		prev := encodeCompleted(e.prev, e.variant.Kind())
		state.Previous = &prev
		state.PreviousClaimed = encodeTable(e.prevClaimed)
	}
	rewarded, claimed := e.ledger.Snapshot()
	state.Rewarded = encodeTable(rewarded)
	state.Claimed = encodeTable(claimed)

	return json.Marshal(state)
}

// Init replaces the whole engine state from a serialized snapshot. The
// snapshot is validated in full before anything is applied; a failed Init
// leaves the prior state untouched.
func (e *Engine) Init(caller relay.Address, raw json.RawMessage) error {
	if !e.auth.Authorize(caller, ActionInit) {
		countCommand(ActionInit, "denied")
		return errPermission(caller, ActionInit)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var state stateJSON
	if err := decodeStrict(raw, &state); err != nil {
		countCommand(ActionInit, "error")
		return errors.WithMessage(err, "malformed state")
	}
	if state.Variant != e.variant.String() {
		countCommand(ActionInit, "error")
		return errors.Errorf("Variant has to be %q", e.variant)
	}

	kind := e.variant.Kind()
	tokenDigits := e.variant.TokenDigits()
	ratingDigits := e.formula.RatingDigits()

	cfg, err := decodeConfig(state.Configuration, tokenDigits)
	if err != nil {
		countCommand(ActionInit, "error")
		return err
	}
	pending := make(map[uint64]*round.Pending, len(state.Pending))
	for _, pj := range state.Pending {
		p, err := decodePending(pj, kind)
		if err != nil {
			countCommand(ActionInit, "error")
			return err
		}
		pending[p.Timestamp] = p
	}
	var prev *round.Completed
	var prevClaimed map[string]map[string]decimal.Dec
	if state.Previous != nil {
		prev, err = decodeCompleted(*state.Previous, kind, tokenDigits, ratingDigits)
		if err != nil {
			countCommand(ActionInit, "error")
			return err
		}
		prevClaimed, err = decodeTable("PreviousClaimed", state.PreviousClaimed, tokenDigits)
		if err != nil {
			countCommand(ActionInit, "error")
			return err
		}
	}
	rewarded, err := decodeTable("Rewarded", state.Rewarded, tokenDigits)
	if err != nil {
		countCommand(ActionInit, "error")
		return err
	}
	claimed, err := decodeTable("Claimed", state.Claimed, tokenDigits)
	if err != nil {
		countCommand(ActionInit, "error")
		return err
	}

	e.cfg = cfg
	e.rounds.Restore(pending)
	e.prev = prev
	e.prevClaimed = prevClaimed
	e.ledger.Restore(rewarded, claimed)

	countCommand(ActionInit, "ok")
	metricPendingRounds().Set(int64(e.rounds.Len()))
	logger.Info("state imported", "caller", caller, "pending", len(pending))
	return nil
}

func encodeConfig(cfg config.Config) configJSON {
	out := configJSON{
		TokensPerSecond: cfg.TokensPerSecond.String(),
		Requirements:    requirementsJSON{Running: cfg.Requirements.Running.String()},
		Modifiers: modifiersJSON{
			Network:   encodeModifier(cfg.Modifiers.Network),
			Hardware:  encodeModifier(cfg.Modifiers.Hardware),
			Uptime:    encodeModifier(cfg.Modifiers.Uptime),
			ExitBonus: encodeModifier(cfg.Modifiers.ExitBonus),
			Family:    encodeModifier(cfg.Modifiers.Family),
			Location:  encodeModifier(cfg.Modifiers.Location),
		},
		UptimeTiers: []tierJSON{},
		Delegates:   make(map[string]delegateJSON, len(cfg.Delegates)),
		Shares: sharesJSON{
			Enabled: cfg.Shares.Enabled,
			Min:     cfg.Shares.Min.String(),
			Max:     cfg.Shares.Max.String(),
			Default: cfg.Shares.Default.String(),
		},
	}
	for _, tier := range cfg.UptimeTiers {
		out.UptimeTiers = append(out.UptimeTiers, tierJSON{Days: tier.Days, Multiplier: tier.Multiplier.String()})
	}
	for id, del := range cfg.Delegates {
		out.Delegates[id] = delegateJSON{Address: del.Address.String(), Share: del.Share.String()}
	}
	return out
}

func decodeConfig(cj configJSON, tokenDigits uint8) (config.Config, error) {
	cfg := config.Config{
		UptimeTiers: []config.UptimeTier{},
		Delegates:   make(map[string]config.Delegate, len(cj.Delegates)),
	}
	var err error
	if cfg.TokensPerSecond, err = parseDec("Configuration.TokensPerSecond", cj.TokensPerSecond, tokenDigits); err != nil {
		return config.Config{}, err
	}
	if cfg.Requirements.Running, err = parseFrac("Configuration.Requirements.Running", cj.Requirements.Running); err != nil {
		return config.Config{}, err
	}
	for _, m := range []struct {
		path string
		src  modifierJSON
		dst  *config.Modifier
	}{
		{"Network", cj.Modifiers.Network, &cfg.Modifiers.Network},
		{"Hardware", cj.Modifiers.Hardware, &cfg.Modifiers.Hardware},
		{"Uptime", cj.Modifiers.Uptime, &cfg.Modifiers.Uptime},
		{"ExitBonus", cj.Modifiers.ExitBonus, &cfg.Modifiers.ExitBonus},
		{"Family", cj.Modifiers.Family, &cfg.Modifiers.Family},
		{"Location", cj.Modifiers.Location, &cfg.Modifiers.Location},
	} {
		if *m.dst, err = decodeModifier("Configuration.Modifiers."+m.path, m.src); err != nil {
			return config.Config{}, err
		}
	}
	for _, tj := range cj.UptimeTiers {
		mult, err := parseFrac("Configuration.UptimeTiers.Multiplier", tj.Multiplier)
		if err != nil {
			return config.Config{}, err
		}
		cfg.UptimeTiers = append(cfg.UptimeTiers, config.UptimeTier{Days: tj.Days, Multiplier: mult})
	}
	sort.Slice(cfg.UptimeTiers, func(i, j int) bool { return cfg.UptimeTiers[i].Days < cfg.UptimeTiers[j].Days })
	for id, dj := range cj.Delegates {
		addr, err := relay.ParseAddress(dj.Address)
		if err != nil {
			return config.Config{}, errors.Errorf("Configuration.Delegates.%s.Address %s", id, err.Error())
		}
		share, err := parseFrac("Configuration.Delegates."+id+".Share", dj.Share)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Delegates[id] = config.Delegate{Address: addr, Share: share}
	}
	cfg.Shares.Enabled = cj.Shares.Enabled
	if cfg.Shares.Min, err = parseFrac("Configuration.Shares.Min", cj.Shares.Min); err != nil {
		return config.Config{}, err
	}
	if cfg.Shares.Max, err = parseFrac("Configuration.Shares.Max", cj.Shares.Max); err != nil {
		return config.Config{}, err
	}
	if cfg.Shares.Default, err = parseFrac("Configuration.Shares.Default", cj.Shares.Default); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func encodeModifier(m config.Modifier) modifierJSON {
	return modifierJSON{
		Enabled: m.Enabled,
		Offset:  m.Offset.String(),
		Power:   m.Power.String(),
		Share:   m.Share.String(),
	}
}

func decodeModifier(path string, mj modifierJSON) (config.Modifier, error) {
	m := config.Modifier{Enabled: mj.Enabled}
	var err error
	if m.Offset, err = parseFrac(path+".Offset", mj.Offset); err != nil {
		return config.Modifier{}, err
	}
	if m.Power, err = parseFrac(path+".Power", mj.Power); err != nil {
		return config.Modifier{}, err
	}
	if m.Share, err = parseFrac(path+".Share", mj.Share); err != nil {
		return config.Modifier{}, err
	}
	return m, nil
}

func encodePending(p *round.Pending, kind scoring.Kind) pendingJSON {
	out := pendingJSON{
		Timestamp: p.Timestamp,
		Scores:    make(map[string]scoreJSON, len(p.Scores)),
	}
	for id, sc := range p.Scores {
		out.Scores[id] = encodeScore(sc, kind)
	}
	return out
}

func decodePending(pj pendingJSON, kind scoring.Kind) (*round.Pending, error) {
	p := &round.Pending{
		Timestamp: pj.Timestamp,
		Scores:    make(map[string]scoring.Score, len(pj.Scores)),
	}
	for id, sj := range pj.Scores {
		sc, err := decodeScore("Pending.Scores."+id, sj, kind)
		if err != nil {
			return nil, err
		}
		p.Scores[id] = sc
	}
	return p, nil
}

func encodeScore(sc scoring.Score, kind scoring.Kind) scoreJSON {
	out := scoreJSON{Running: sc.Running.String()}
	if kind == scoring.StakeWeight {
		out.Staked = sc.Staked.String()
		if sc.Share != nil {
			share := sc.Share.String()
			out.Share = &share
		}
		return out
	}
	out.Network = sc.Network.String()
	out.IsHardware = sc.IsHardware
	out.UptimeStreak = sc.UptimeStreak
	out.FamilySize = sc.FamilySize
	out.LocationSize = sc.LocationSize
	out.Exit = sc.Exit
	return out
}

func decodeScore(path string, sj scoreJSON, kind scoring.Kind) (scoring.Score, error) {
	sc := scoring.NewScore()
	var err error
	if sc.Running, err = parseFrac(path+".Running", sj.Running); err != nil {
		return scoring.Score{}, err
	}
	if kind == scoring.StakeWeight {
		if sj.Staked != "" {
			if sc.Staked, err = parseDec(path+".Staked", sj.Staked, 0); err != nil {
				return scoring.Score{}, err
			}
		}
		if sj.Share != nil {
			share, err := parseFrac(path+".Share", *sj.Share)
			if err != nil {
				return scoring.Score{}, err
			}
			sc.Share = &share
		}
		return sc, nil
	}
	if sj.Network != "" {
		if sc.Network, err = parseFrac(path+".Network", sj.Network); err != nil {
			return scoring.Score{}, err
		}
	}
	sc.IsHardware = sj.IsHardware
	sc.UptimeStreak = sj.UptimeStreak
	sc.FamilySize = sj.FamilySize
	sc.LocationSize = sj.LocationSize
	sc.Exit = sj.Exit
	return sc, nil
}

func encodeCompleted(c *round.Completed, kind scoring.Kind) completedJSON {
	out := completedJSON{
		Timestamp:     c.Timestamp,
		Period:        c.Period,
		Configuration: encodeConfig(c.Configuration),
		Summary: summaryJSON{
			Entities: c.Summary.Entities,
			Ratings:  c.Summary.Ratings.String(),
			Rewards:  c.Summary.Rewards.String(),
		},
		Details: make(map[string]detailJSON, len(c.Details)),
	}
	for id, detail := range c.Details {
		out.Details[id] = detailJSON{
			Score: encodeScore(detail.Score, kind),
			Rating: ratingJSON{
				Network:   detail.Rating.Network.String(),
				Hardware:  detail.Rating.Hardware.String(),
				Uptime:    detail.Rating.Uptime.String(),
				ExitBonus: detail.Rating.ExitBonus.String(),
				Total:     detail.Rating.Total.String(),
				Eligible:  detail.Rating.Eligible,
			},
			Reward: rewardJSON{
				Network:       detail.Reward.Network.String(),
				Hardware:      detail.Reward.Hardware.String(),
				Uptime:        detail.Reward.Uptime.String(),
				ExitBonus:     detail.Reward.ExitBonus.String(),
				Total:         detail.Reward.Total.String(),
				OperatorTotal: detail.Reward.OperatorTotal.String(),
				DelegateTotal: detail.Reward.DelegateTotal.String(),
				Delegate:      detail.Reward.Delegate,
			},
		}
	}
	return out
}

func decodeCompleted(cj completedJSON, kind scoring.Kind, tokenDigits, ratingDigits uint8) (*round.Completed, error) {
	cfg, err := decodeConfig(cj.Configuration, tokenDigits)
	if err != nil {
		return nil, err
	}
	out := &round.Completed{
		Timestamp:     cj.Timestamp,
		Period:        cj.Period,
		Configuration: cfg,
		Summary:       round.Summary{Entities: cj.Summary.Entities},
		Details:       make(map[string]round.Detail, len(cj.Details)),
	}
	if out.Summary.Ratings, err = parseDec("Previous.Summary.Ratings", cj.Summary.Ratings, ratingDigits); err != nil {
		return nil, err
	}
	if out.Summary.Rewards, err = parseDec("Previous.Summary.Rewards", cj.Summary.Rewards, tokenDigits); err != nil {
		return nil, err
	}
	for id, dj := range cj.Details {
		path := "Previous.Details." + id
		sc, err := decodeScore(path+".Score", dj.Score, kind)
		if err != nil {
			return nil, err
		}
		rating := scoring.Rating{Eligible: dj.Rating.Eligible}
		for _, f := range []struct {
			path string
			src  string
			dst  *decimal.Dec
		}{
			{".Rating.Network", dj.Rating.Network, &rating.Network},
			{".Rating.Hardware", dj.Rating.Hardware, &rating.Hardware},
			{".Rating.Uptime", dj.Rating.Uptime, &rating.Uptime},
			{".Rating.ExitBonus", dj.Rating.ExitBonus, &rating.ExitBonus},
			{".Rating.Total", dj.Rating.Total, &rating.Total},
		} {
			if *f.dst, err = parseDec(path+f.path, f.src, ratingDigits); err != nil {
				return nil, err
			}
		}
		reward := round.RewardBreakdown{Delegate: dj.Reward.Delegate}
		for _, f := range []struct {
			path string
			src  string
			dst  *decimal.Dec
		}{
			{".Reward.Network", dj.Reward.Network, &reward.Network},
			{".Reward.Hardware", dj.Reward.Hardware, &reward.Hardware},
			{".Reward.Uptime", dj.Reward.Uptime, &reward.Uptime},
			{".Reward.ExitBonus", dj.Reward.ExitBonus, &reward.ExitBonus},
			{".Reward.Total", dj.Reward.Total, &reward.Total},
			{".Reward.OperatorTotal", dj.Reward.OperatorTotal, &reward.OperatorTotal},
			{".Reward.DelegateTotal", dj.Reward.DelegateTotal, &reward.DelegateTotal},
		} {
			if *f.dst, err = parseDec(path+f.path, f.src, tokenDigits); err != nil {
				return nil, err
			}
		}
		out.Details[id] = round.Detail{Score: sc, Rating: rating, Reward: reward}
	}
	return out, nil
}

func encodeTable(table map[string]map[string]decimal.Dec) map[string]map[string]string {
	out := make(map[string]map[string]string, len(table))
	for beneficiary, row := range table {
		outRow := make(map[string]string, len(row))
		for counterparty, amount := range row {
			outRow[counterparty] = amount.String()
		}
		out[beneficiary] = outRow
	}
	return out
}

func decodeTable(path string, table map[string]map[string]string, digits uint8) (map[string]map[string]decimal.Dec, error) {
	out := make(map[string]map[string]decimal.Dec, len(table))
	for beneficiary, row := range table {
		outRow := make(map[string]decimal.Dec, len(row))
		for counterparty, s := range row {
			amount, err := parseDec(path+"."+beneficiary+"."+counterparty, s, digits)
			if err != nil {
				return nil, err
			}
			outRow[counterparty] = amount
		}
		out[beneficiary] = outRow
	}
	return out, nil
}

func parseDec(path, s string, digits uint8) (decimal.Dec, error) {
	d, err := decimal.Parse(s, digits)
	if err != nil {
		return decimal.Dec{}, errors.Errorf("%s has to be a decimal number", path)
	}
	return d, nil
}

func parseFrac(path, s string) (decimal.Dec, error) {
	return parseDec(path, s, decimal.FractionDigits)
}
