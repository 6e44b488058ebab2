// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package round

import (
	"math/big"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
	"github.com/relaynet/rewards/scoring"
)

// RewardBreakdown is an entity's reward for one round, split by factor and
// by beneficiary. Total = OperatorTotal + DelegateTotal always holds.
type RewardBreakdown struct {
	Network   decimal.Dec
	Hardware  decimal.Dec
	Uptime    decimal.Dec
	ExitBonus decimal.Dec
	Total     decimal.Dec

	OperatorTotal decimal.Dec
	DelegateTotal decimal.Dec
	Delegate      string
}

// Detail is the archived per-entity record of a completed round.
type Detail struct {
	Score  scoring.Score
	Rating scoring.Rating
	Reward RewardBreakdown
}

// Summary aggregates a completed round.
type Summary struct {
	Entities int
	Ratings  decimal.Dec
	Rewards  decimal.Dec
}

// Completed is the archived result of a completed round: the configuration
// as it was used, aggregate totals and the per-entity breakdown. It is
// written once at completion and read-only afterwards.
type Completed struct {
	Timestamp     uint64
	Period        uint64
	Configuration config.Config
	Summary       Summary
	Details       map[string]Detail
}

// Credit is one ledger increment produced by a round completion.
type Credit struct {
	Beneficiary  string
	Counterparty string
	Amount       decimal.Dec
}

// RestakeFunc returns the restaked weight an entity carries into the round.
type RestakeFunc func(id string) decimal.Dec

// Complete scores and distributes a pending round.
//
// Total emission is TokensPerSecond × Period (period in milliseconds).
// Each enabled factor takes its configured share of the emission, split
// across entities in proportion to their factor ratings; truncation dust
// stays undistributed. Per-entity totals are then split between operator
// and delegate. The returned credits are applied to the ledger by the
// caller, making the whole completion atomic from its perspective.
func Complete(
	p *Pending,
	period uint64,
	cfg config.Config,
	formula scoring.Formula,
	restake RestakeFunc,
	tokenDigits uint8,
) (*Completed, []Credit) {
	emission := cfg.TokensPerSecond.
		MulBig(new(big.Int).SetUint64(period)).
		QuoInt64(1000)

	entities := p.Entities()
	ratingDigits := formula.RatingDigits()

	ratings := make(map[string]scoring.Rating, len(entities))
	for _, id := range entities {
		ratings[id] = formula.Rate(p.Scores[id], &cfg, restake(id))
	}

	factors := []struct {
		modifier config.Modifier
		rating   func(scoring.Rating) decimal.Dec
		reward   func(*RewardBreakdown) *decimal.Dec
	}{
		{cfg.Modifiers.Network, func(r scoring.Rating) decimal.Dec { return r.Network }, func(b *RewardBreakdown) *decimal.Dec { return &b.Network }},
		{cfg.Modifiers.Hardware, func(r scoring.Rating) decimal.Dec { return r.Hardware }, func(b *RewardBreakdown) *decimal.Dec { return &b.Hardware }},
		{cfg.Modifiers.Uptime, func(r scoring.Rating) decimal.Dec { return r.Uptime }, func(b *RewardBreakdown) *decimal.Dec { return &b.Uptime }},
		{cfg.Modifiers.ExitBonus, func(r scoring.Rating) decimal.Dec { return r.ExitBonus }, func(b *RewardBreakdown) *decimal.Dec { return &b.ExitBonus }},
	}

	breakdowns := make(map[string]*RewardBreakdown, len(entities))
	for _, id := range entities {
		breakdowns[id] = &RewardBreakdown{
			Network:       decimal.Zero(tokenDigits),
			Hardware:      decimal.Zero(tokenDigits),
			Uptime:        decimal.Zero(tokenDigits),
			ExitBonus:     decimal.Zero(tokenDigits),
			Total:         decimal.Zero(tokenDigits),
			OperatorTotal: decimal.Zero(tokenDigits),
			DelegateTotal: decimal.Zero(tokenDigits),
		}
	}

	for _, factor := range factors {
		if !factor.modifier.Enabled || factor.modifier.Share.IsZero() {
			continue
		}
		total := decimal.Zero(ratingDigits)
		for _, id := range entities {
			total = total.Add(factor.rating(ratings[id]))
		}
		if total.IsZero() {
			continue
		}
		portion := emission.MulFrac(factor.modifier.Share)
		for _, id := range entities {
			amount := portion.MulQuo(factor.rating(ratings[id]), total)
			*factor.reward(breakdowns[id]) = amount
		}
	}

	var credits []Credit
	summary := Summary{
		Entities: len(entities),
		Ratings:  decimal.Zero(ratingDigits),
		Rewards:  decimal.Zero(tokenDigits),
	}
	details := make(map[string]Detail, len(entities))

	for _, id := range entities {
		b := breakdowns[id]
		b.Total = b.Network.Add(b.Hardware).Add(b.Uptime).Add(b.ExitBonus)
		splitReward(id, p.Scores[id], cfg, formula.Kind(), b)

		summary.Ratings = summary.Ratings.Add(ratings[id].Total)
		summary.Rewards = summary.Rewards.Add(b.Total)

		if b.DelegateTotal.Sign() > 0 {
			credits = append(credits, Credit{Beneficiary: b.Delegate, Counterparty: id, Amount: b.DelegateTotal})
		}
		if b.OperatorTotal.Sign() > 0 {
			credits = append(credits, Credit{Beneficiary: id, Counterparty: id, Amount: b.OperatorTotal})
		}

		details[id] = Detail{
			Score:  p.Scores[id],
			Rating: ratings[id],
			Reward: *b,
		}
	}

	return &Completed{
		Timestamp:     p.Timestamp,
		Period:        period,
		Configuration: cfg.Clone(),
		Summary:       summary,
		Details:       details,
	}, credits
}

// splitReward routes an entity's total between operator and delegate. With
// no delegate configured the operator takes everything.
func splitReward(id string, sc scoring.Score, cfg config.Config, kind scoring.Kind, b *RewardBreakdown) {
	delegate, ok := cfg.Delegates[id]
	if !ok {
		b.OperatorTotal = b.Total
		return
	}

	share := delegate.Share
	if kind == scoring.StakeWeight {
		share = scoring.EffectiveShare(sc, cfg.Shares)
	}

	b.Delegate = delegate.Address.String()
	b.DelegateTotal = b.Total.MulFrac(share)
	b.OperatorTotal = b.Total.Sub(b.DelegateTotal)
}
