// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package scoring

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
)

// Kind selects the active formula family.
type Kind int

const (
	// Performance weights relays by measured network performance,
	// hardware, uptime and exit bonuses.
	Performance Kind = iota
	// StakeWeight weights operators by staked amount plus restaked
	// (unclaimed) rewards.
	StakeWeight
)

func (k Kind) String() string {
	switch k {
	case Performance:
		return "performance"
	case StakeWeight:
		return "stake-weight"
	default:
		return "unknown"
	}
}

// Score is the validated internal form of one entity's raw measurement for
// a round. Which fields are meaningful depends on the formula kind; raw
// submissions are checked against the variant's shape at ingestion and
// never re-validated downstream.
type Score struct {
	// performance variant
	Network      decimal.Dec
	IsHardware   bool
	UptimeStreak uint64
	FamilySize   uint64
	LocationSize uint64
	Exit         bool

	// stake-weight variant
	Staked decimal.Dec
	Share  *decimal.Dec

	// both variants
	Running decimal.Dec
}

// NewScore returns a Score with every numeric field at its canonical
// precision. Merged submissions must start from it; the plain zero struct
// carries zero-precision decimals that cannot mix with rated values.
func NewScore() Score {
	return Score{
		Network: decimal.Zero(decimal.FractionDigits),
		Staked:  decimal.Zero(0),
		Running: decimal.Zero(decimal.FractionDigits),
	}
}

// Rating is the per-factor weight of an entity for one round. Factor fields
// all carry the formula's rating precision; Total is their sum. Entities
// failing the running requirement get a zero rating with Eligible false but
// still appear in round details.
type Rating struct {
	Network   decimal.Dec
	Hardware  decimal.Dec
	Uptime    decimal.Dec
	ExitBonus decimal.Dec
	Total     decimal.Dec
	Eligible  bool
}

// Formula converts a raw score into a rating. Implementations are pure:
// the restaked input is the only ledger state they may depend on.
type Formula interface {
	Kind() Kind

	// RatingDigits is the precision all ratings of this formula carry.
	RatingDigits() uint8

	// ParseScore validates a raw score submission and merges present
	// fields onto dst, last write wins per field.
	ParseScore(raw json.RawMessage, dst *Score) error

	// Rate computes the rating of one entity. The restaked amount is the
	// entity's unclaimed cumulative reward carried forward by the ledger.
	Rate(sc Score, cfg *config.Config, restaked decimal.Dec) Rating
}

// NewFormula returns the formula implementation for the given kind.
func NewFormula(kind Kind) Formula {
	switch kind {
	case Performance:
		return performanceFormula{}
	case StakeWeight:
		return stakeWeightFormula{}
	default:
		panic("scoring: unknown formula kind")
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func parseRunning(s string) (decimal.Dec, error) {
	running, err := decimal.ParseFraction(s)
	if err != nil || running.Sign() < 0 || running.Cmp(decimal.One(decimal.FractionDigits)) > 0 {
		return decimal.Dec{}, errors.New("Running has to be within [0, 1]")
	}
	return running, nil
}
