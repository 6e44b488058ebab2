// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
)

func frac(t *testing.T, s string) decimal.Dec {
	d, err := decimal.ParseFraction(s)
	require.NoError(t, err)
	return d
}

func parsePerf(t *testing.T, raw string) Score {
	var sc Score
	require.NoError(t, NewFormula(Performance).ParseScore(json.RawMessage(raw), &sc))
	return sc
}

func parseStake(t *testing.T, raw string) Score {
	var sc Score
	require.NoError(t, NewFormula(StakeWeight).ParseScore(json.RawMessage(raw), &sc))
	return sc
}

func TestParsePerformanceScore(t *testing.T) {
	sc := parsePerf(t, `{"Network":"0.95","IsHardware":true,"UptimeStreak":20,"FamilySize":2,"LocationSize":5,"Exit":true,"Running":"0.99"}`)
	assert.Equal(t, "0.95", sc.Network.String())
	assert.True(t, sc.IsHardware)
	assert.Equal(t, uint64(20), sc.UptimeStreak)
	assert.True(t, sc.Exit)
}

func TestParseScoreMergeLastWriteWins(t *testing.T) {
	var sc Score
	f := NewFormula(Performance)
	require.NoError(t, f.ParseScore(json.RawMessage(`{"Network":"0.5","UptimeStreak":3}`), &sc))
	require.NoError(t, f.ParseScore(json.RawMessage(`{"Network":"0.7"}`), &sc))

	assert.Equal(t, "0.7", sc.Network.String())
	assert.Equal(t, uint64(3), sc.UptimeStreak)
}

func TestParseScoreRejectsUnknownShape(t *testing.T) {
	var sc Score
	err := NewFormula(Performance).ParseScore(json.RawMessage(`{"Staked":"1000"}`), &sc)
	require.Error(t, err)

	err = NewFormula(StakeWeight).ParseScore(json.RawMessage(`{"Network":"0.5"}`), &sc)
	require.Error(t, err)
}

func TestParseScoreFieldErrors(t *testing.T) {
	var sc Score
	assert.EqualError(t, NewFormula(Performance).ParseScore(json.RawMessage(`{"Network":"-1"}`), &sc), "Network has to be >= 0")
	assert.EqualError(t, NewFormula(Performance).ParseScore(json.RawMessage(`{"Running":"1.2"}`), &sc), "Running has to be within [0, 1]")
	assert.EqualError(t, NewFormula(StakeWeight).ParseScore(json.RawMessage(`{"Staked":"12.5"}`), &sc), "Staked has to be a non-negative integer")
	assert.EqualError(t, NewFormula(StakeWeight).ParseScore(json.RawMessage(`{"Share":"2"}`), &sc), "Share has to be within [0, 1]")
}

func TestPerformanceRateBase(t *testing.T) {
	cfg := config.DefaultRelay()
	cfg.Modifiers.Family.Enabled = false
	cfg.Modifiers.Location.Enabled = false

	sc := parsePerf(t, `{"Network":"1","Running":"1","UptimeStreak":14}`)
	rating := NewFormula(Performance).Rate(sc, &cfg, decimal.Zero(decimal.FractionDigits))

	assert.True(t, rating.Eligible)
	assert.Equal(t, "1", rating.Network.String())
	assert.Equal(t, "1.2", rating.Uptime.String()) // 14-day tier multiplier
	assert.True(t, rating.Hardware.IsZero())       // not a hardware relay
	assert.True(t, rating.ExitBonus.IsZero())
	assert.Equal(t, "2.2", rating.Total.String())
}

func TestPerformanceRateHardwareBlend(t *testing.T) {
	cfg := config.DefaultRelay()
	cfg.Modifiers.Family.Enabled = false
	cfg.Modifiers.Location.Enabled = false

	sc := parsePerf(t, `{"Network":"1","Running":"1","UptimeStreak":14,"IsHardware":true}`)
	rating := NewFormula(Performance).Rate(sc, &cfg, decimal.Zero(decimal.FractionDigits))

	// 0.65 × 1 + 0.35 × 1.2
	assert.Equal(t, "1.07", rating.Hardware.String())
}

func TestPerformanceRateSizeMultipliers(t *testing.T) {
	cfg := config.DefaultRelay()

	sc := parsePerf(t, `{"Network":"1","Running":"1","FamilySize":4,"LocationSize":3}`)
	rating := NewFormula(Performance).Rate(sc, &cfg, decimal.Zero(decimal.FractionDigits))

	// family: 1 + 0.01×4 = 1.04; location: 1 + 0.003×3² = 1.027
	assert.Equal(t, "1.06808", rating.Network.String())
}

func TestPerformanceRateExitBonus(t *testing.T) {
	cfg := config.DefaultRelay()
	cfg.Modifiers.Family.Enabled = false
	cfg.Modifiers.Location.Enabled = false

	sc := parsePerf(t, `{"Network":"0.8","Running":"1","Exit":true}`)
	rating := NewFormula(Performance).Rate(sc, &cfg, decimal.Zero(decimal.FractionDigits))
	assert.Equal(t, "0.8", rating.ExitBonus.String())
}

func TestPerformanceRateBelowRunningRequirement(t *testing.T) {
	cfg := config.DefaultRelay() // requires 0.5 running
	sc := parsePerf(t, `{"Network":"1","Running":"0.4"}`)
	rating := NewFormula(Performance).Rate(sc, &cfg, decimal.Zero(decimal.FractionDigits))

	assert.False(t, rating.Eligible)
	assert.True(t, rating.Total.IsZero())
}

func TestStakeWeightRate(t *testing.T) {
	cfg := config.DefaultStaking()
	sc := parseStake(t, `{"Staked":"1000","Running":"0.6"}`)

	rating := NewFormula(StakeWeight).Rate(sc, &cfg, decimal.FromUnits64(250, 0))
	assert.True(t, rating.Eligible)
	assert.Equal(t, "1250", rating.Total.String())
}

func TestStakeWeightRateBelowRunningRequirement(t *testing.T) {
	cfg := config.DefaultStaking()
	sc := parseStake(t, `{"Staked":"1000","Running":"0.4"}`)

	rating := NewFormula(StakeWeight).Rate(sc, &cfg, decimal.Zero(0))
	assert.False(t, rating.Eligible)
	assert.True(t, rating.Total.IsZero())
}

func TestEffectiveShare(t *testing.T) {
	policy := config.DefaultStaking().Shares // min 0, max 1, default 0.1

	assert.Equal(t, "0.1", EffectiveShare(Score{}, policy).String())

	submitted := frac(t, "0.3")
	assert.Equal(t, "0.3", EffectiveShare(Score{Share: &submitted}, policy).String())

	policy.Max = frac(t, "0.2")
	assert.Equal(t, "0.2", EffectiveShare(Score{Share: &submitted}, policy).String())

	policy.Enabled = false
	assert.True(t, EffectiveShare(Score{Share: &submitted}, policy).IsZero())
}
