// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package round

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
	"github.com/relaynet/rewards/relay"
	"github.com/relaynet/rewards/scoring"
)

func noRestake(digits uint8) RestakeFunc {
	return func(string) decimal.Dec { return decimal.Zero(digits) }
}

func pendingStake(t *testing.T, ts uint64, raw map[string]string) *Pending {
	s := NewSet(0)
	require.NoError(t, s.AddScores(ts, scores(raw), scoring.NewFormula(scoring.StakeWeight), noCheck))
	p, err := s.Get(ts)
	require.NoError(t, err)
	return p
}

func pendingPerf(t *testing.T, ts uint64, raw map[string]string) *Pending {
	s := NewSet(0)
	require.NoError(t, s.AddScores(ts, scores(raw), scoring.NewFormula(scoring.Performance), noCheck))
	p, err := s.Get(ts)
	require.NoError(t, err)
	return p
}

func stakingConfig(t *testing.T, tokensPerSecond int64) config.Config {
	cfg := config.DefaultStaking()
	cfg.TokensPerSecond = decimal.FromUnits64(tokensPerSecond, 0)
	return cfg
}

func TestCompleteProportionalSplit(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{
		"op1": `{"Staked":"750","Running":"1"}`,
		"op2": `{"Staked":"250","Running":"1"}`,
	})
	cfg := stakingConfig(t, 100)

	completed, credits := Complete(p, 10_000, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)

	// emission = 100 tokens/s × 10s = 1000
	assert.Equal(t, "750", completed.Details["op1"].Reward.Total.String())
	assert.Equal(t, "250", completed.Details["op2"].Reward.Total.String())
	assert.Equal(t, "1000", completed.Summary.Rewards.String())
	assert.Equal(t, 2, completed.Summary.Entities)

	require.Len(t, credits, 2)
	for _, c := range credits {
		assert.Equal(t, c.Beneficiary, c.Counterparty) // no delegates configured
	}
}

func TestCompleteConservation(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{
		"op1": `{"Staked":"1","Running":"1"}`,
		"op2": `{"Staked":"1","Running":"1"}`,
		"op3": `{"Staked":"1","Running":"1"}`,
	})
	cfg := stakingConfig(t, 100)

	completed, credits := Complete(p, 10_000, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)

	// 1000 does not divide by 3; each entity gets 333 and 1 unit of dust
	// stays undistributed
	distributed := decimal.Zero(0)
	for _, c := range credits {
		distributed = distributed.Add(c.Amount)
	}
	assert.Equal(t, "999", distributed.String())
	assert.True(t, distributed.Cmp(decimal.FromUnits64(1000, 0)) <= 0)
	assert.Equal(t, "999", completed.Summary.Rewards.String())
}

func TestCompleteZeroTotalWeight(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{
		"op1": `{"Staked":"0","Running":"1"}`,
	})
	cfg := stakingConfig(t, 100)

	completed, credits := Complete(p, 10_000, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)

	// zero total weight yields zero rewards, not an error
	assert.Empty(t, credits)
	assert.True(t, completed.Summary.Rewards.IsZero())
	assert.Contains(t, completed.Details, "op1")
}

func TestCompleteIneligibleEntityInDetails(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{
		"op1": `{"Staked":"1000","Running":"1"}`,
		"op2": `{"Staked":"1000","Running":"0.1"}`,
	})
	cfg := stakingConfig(t, 100)

	completed, _ := Complete(p, 10_000, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)

	require.Contains(t, completed.Details, "op2")
	assert.False(t, completed.Details["op2"].Rating.Eligible)
	assert.True(t, completed.Details["op2"].Reward.Total.IsZero())
	// the eligible entity takes the full emission
	assert.Equal(t, "1000", completed.Details["op1"].Reward.Total.String())
}

func TestCompleteDelegateSplitStaking(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{
		"op1": `{"Staked":"1000","Running":"0.6","Share":"0.333333333333333333"}`,
	})
	cfg := stakingConfig(t, 1000)
	delegate := relay.MustParseAddress("0xf077b491b355e64048ce21e3a6fc4751eeea77fa")
	cfg.Delegates["op1"] = config.Delegate{Address: delegate, Share: decimal.MustParse("1", decimal.FractionDigits)}

	completed, credits := Complete(p, 5000, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)

	// emission 5000, delegate share 1/3 truncates to 1666
	detail := completed.Details["op1"]
	assert.Equal(t, "5000", detail.Reward.Total.String())
	assert.Equal(t, "1666", detail.Reward.DelegateTotal.String())
	assert.Equal(t, "3334", detail.Reward.OperatorTotal.String())
	assert.Equal(t, delegate.String(), detail.Reward.Delegate)

	require.Len(t, credits, 2)
	byBeneficiary := map[string]string{}
	for _, c := range credits {
		byBeneficiary[c.Beneficiary] = c.Amount.String()
		assert.Equal(t, "op1", c.Counterparty)
	}
	assert.Equal(t, "1666", byBeneficiary[delegate.String()])
	assert.Equal(t, "3334", byBeneficiary["op1"])
}

func TestCompleteDelegateSplitRelay(t *testing.T) {
	p := pendingPerf(t, 1000, map[string]string{
		"AAAABBBBCCCCDDDDEEEEFFFF0000111122223333": `{"Network":"1","Running":"1"}`,
	})
	cfg := config.DefaultRelay()
	cfg.TokensPerSecond = decimal.FromUnits64(1_000_000, decimal.FractionDigits)
	// single factor keeps the arithmetic obvious
	cfg.Modifiers.Hardware.Enabled = false
	cfg.Modifiers.Uptime.Enabled = false
	cfg.Modifiers.ExitBonus.Enabled = false
	cfg.Modifiers.Network.Share = decimal.MustParse("1", decimal.FractionDigits)

	delegate := relay.MustParseAddress("0xf077b491b355e64048ce21e3a6fc4751eeea77fa")
	cfg.Delegates["AAAABBBBCCCCDDDDEEEEFFFF0000111122223333"] = config.Delegate{
		Address: delegate,
		Share:   decimal.MustParse("0.25", decimal.FractionDigits),
	}

	_, credits := Complete(p, 1000, cfg, scoring.NewFormula(scoring.Performance), noRestake(decimal.FractionDigits), decimal.FractionDigits)

	require.Len(t, credits, 2)
	total := decimal.Zero(decimal.FractionDigits)
	for _, c := range credits {
		total = total.Add(c.Amount)
	}
	// emission = 1e6 units over 1s
	assert.Equal(t, 0, total.Cmp(decimal.FromUnits64(1_000_000, decimal.FractionDigits)))
}

func TestCompleteEmissionScenario(t *testing.T) {
	// TokensPerSecond=123, one entity with the full network share, two
	// rounds of 1000ms each.
	cfg := config.DefaultRelay()
	cfg.TokensPerSecond = decimal.FromUnits(big.NewInt(123), decimal.FractionDigits)
	cfg.Modifiers.Hardware.Enabled = false
	cfg.Modifiers.Uptime.Enabled = false
	cfg.Modifiers.ExitBonus.Enabled = false
	cfg.Modifiers.Family.Enabled = false
	cfg.Modifiers.Location.Enabled = false
	cfg.Modifiers.Network.Share = decimal.MustParse("1", decimal.FractionDigits)

	raw := map[string]string{
		"AAAABBBBCCCCDDDDEEEEFFFF0000111122223333": `{"Network":"1","Running":"1"}`,
	}
	f := scoring.NewFormula(scoring.Performance)

	p := pendingPerf(t, 1000, raw)
	completed, credits := Complete(p, 1000, cfg, f, noRestake(decimal.FractionDigits), decimal.FractionDigits)

	require.Len(t, credits, 1)
	assert.Equal(t, "0.000000000000000123", credits[0].Amount.String())
	assert.Equal(t, "0.000000000000000123", completed.Summary.Rewards.String())

	p2 := pendingPerf(t, 2000, raw)
	_, credits2 := Complete(p2, 1000, cfg, f, noRestake(decimal.FractionDigits), decimal.FractionDigits)
	require.Len(t, credits2, 1)
	assert.Equal(t, "0.000000000000000123", credits2[0].Amount.String())
}

func TestCompleteZeroPeriod(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{
		"op1": `{"Staked":"1000","Running":"1"}`,
	})
	cfg := stakingConfig(t, 100)

	completed, credits := Complete(p, 0, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)
	assert.Empty(t, credits)
	assert.True(t, completed.Summary.Rewards.IsZero())
}

func TestCompleteArchivesConfigurationSnapshot(t *testing.T) {
	p := pendingStake(t, 1000, map[string]string{"op1": `{"Staked":"1","Running":"1"}`})
	cfg := stakingConfig(t, 100)

	completed, _ := Complete(p, 1000, cfg, scoring.NewFormula(scoring.StakeWeight), noRestake(0), 0)

	// later mutation of the live config must not change the archive
	cfg.Delegates["op1"] = config.Delegate{}
	assert.NotContains(t, completed.Configuration.Delegates, "op1")
}

func TestCompleteRestakeCarryover(t *testing.T) {
	raw := map[string]string{
		"op1": `{"Staked":"1000","Running":"1"}`,
		"op2": `{"Staked":"1000","Running":"1"}`,
	}
	cfg := stakingConfig(t, 100)
	f := scoring.NewFormula(scoring.StakeWeight)

	p := pendingStake(t, 1000, raw)
	completed, _ := Complete(p, 10_000, cfg, f, func(id string) decimal.Dec {
		// op1 carries 1000 unclaimed from an earlier round
		if id == "op1" {
			return decimal.FromUnits64(1000, 0)
		}
		return decimal.Zero(0)
	}, 0)

	// op1 weighs 2000 of 3000 total
	assert.Equal(t, "666", completed.Details["op1"].Reward.Total.String())
	assert.Equal(t, "333", completed.Details["op2"].Reward.Total.String())
}
