// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package round

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaynet/rewards/scoring"
)

func noCheck(string) error { return nil }

func scores(raw map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(raw))
	for id, s := range raw {
		out[id] = json.RawMessage(s)
	}
	return out
}

func TestAddScoresCreatesAndMerges(t *testing.T) {
	s := NewSet(0)
	f := scoring.NewFormula(scoring.StakeWeight)

	require.NoError(t, s.AddScores(1000, scores(map[string]string{
		"op1": `{"Staked":"100","Running":"1"}`,
	}), f, noCheck))
	require.NoError(t, s.AddScores(1000, scores(map[string]string{
		"op1": `{"Staked":"250"}`,
		"op2": `{"Staked":"50","Running":"1"}`,
	}), f, noCheck))

	p, err := s.Get(1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"op1", "op2"}, p.Entities())

	// merged per entity, last write wins per field
	assert.Equal(t, "250", p.Scores["op1"].Staked.String())
	assert.Equal(t, "1", p.Scores["op1"].Running.String())
}

func TestAddScoresValidatesBeforeMutating(t *testing.T) {
	s := NewSet(0)
	f := scoring.NewFormula(scoring.StakeWeight)

	require.NoError(t, s.AddScores(1000, scores(map[string]string{
		"op1": `{"Staked":"100","Running":"1"}`,
	}), f, noCheck))

	err := s.AddScores(1000, scores(map[string]string{
		"op1": `{"Staked":"999"}`,
		"op2": `{"Staked":"-5"}`,
	}), f, noCheck)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Scores.op2")

	// failed submission applied nothing
	p, _ := s.Get(1000)
	assert.Equal(t, "100", p.Scores["op1"].Staked.String())
}

func TestAddScoresBoundsOpenRounds(t *testing.T) {
	s := NewSet(2)
	f := scoring.NewFormula(scoring.StakeWeight)
	sub := scores(map[string]string{"op1": `{"Staked":"1"}`})

	require.NoError(t, s.AddScores(1, sub, f, noCheck))
	require.NoError(t, s.AddScores(2, sub, f, noCheck))
	assert.EqualError(t, s.AddScores(3, sub, f, noCheck), "too many pending rounds, at most 2 allowed")

	// existing rounds still accept scores
	require.NoError(t, s.AddScores(2, sub, f, noCheck))
}

func TestCancel(t *testing.T) {
	s := NewSet(0)
	f := scoring.NewFormula(scoring.StakeWeight)
	require.NoError(t, s.AddScores(1000, scores(map[string]string{"op1": `{"Staked":"1"}`}), f, noCheck))

	require.NoError(t, s.Cancel(1000))
	assert.EqualError(t, s.Cancel(1000), "No pending round for 1000")

	_, err := s.Get(1000)
	assert.EqualError(t, err, "No pending round for 1000")
}

func TestNoPendingErrorIsNotFound(t *testing.T) {
	s := NewSet(0)
	_, err := s.Get(42)
	var nf interface{ NotFound() bool }
	require.ErrorAs(t, err, &nf)
	assert.True(t, nf.NotFound())
}

func TestTimestampsSorted(t *testing.T) {
	s := NewSet(0)
	f := scoring.NewFormula(scoring.StakeWeight)
	sub := scores(map[string]string{"op1": `{"Staked":"1"}`})
	for _, ts := range []uint64{300, 100, 200} {
		require.NoError(t, s.AddScores(ts, sub, f, noCheck))
	}
	assert.Equal(t, []uint64{100, 200, 300}, s.Timestamps())
	assert.Equal(t, 3, s.Len())
}

func TestSnapshotRestore(t *testing.T) {
	s := NewSet(0)
	f := scoring.NewFormula(scoring.StakeWeight)
	require.NoError(t, s.AddScores(1000, scores(map[string]string{"op1": `{"Staked":"7","Running":"1"}`}), f, noCheck))

	restored := NewSet(0)
	restored.Restore(s.Snapshot())

	p, err := restored.Get(1000)
	require.NoError(t, err)
	assert.Equal(t, "7", p.Scores["op1"].Staked.String())

	// deep copy, later mutation does not leak
	s.Remove(1000)
	_, err = restored.Get(1000)
	assert.NoError(t, err)
}
