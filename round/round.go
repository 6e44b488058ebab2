// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package round

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/scoring"
)

// DefaultMaxPending bounds the number of concurrently open rounds.
const DefaultMaxPending = 8

// Pending is a mutable round accumulating raw scores until it is completed
// or cancelled.
type Pending struct {
	Timestamp uint64
	Scores    map[string]scoring.Score
}

// Entities lists the round's entity identifiers, sorted.
func (p *Pending) Entities() []string {
	out := make([]string, 0, len(p.Scores))
	for id := range p.Scores {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type noPendingError struct {
	msg string
}

func (e *noPendingError) Error() string { return e.msg }

// NotFound marks the error as a state error referencing a missing round.
func (e *noPendingError) NotFound() bool { return true }

func errNoPending(timestamp uint64) error {
	return &noPendingError{msg: errors.Errorf("No pending round for %d", timestamp).Error()}
}

// Set holds all pending rounds keyed by timestamp. A round at a given
// timestamp is either absent or pending here; completed and cancelled
// rounds are removed immediately.
type Set struct {
	limit   int
	pending map[uint64]*Pending
}

// NewSet creates an empty pending set bounded to limit open rounds.
func NewSet(limit int) *Set {
	if limit <= 0 {
		limit = DefaultMaxPending
	}
	return &Set{
		limit:   limit,
		pending: make(map[uint64]*Pending),
	}
}

// AddScores merges raw score submissions into the round at the given
// timestamp, creating the round if absent. Repeated submissions merge
// per entity, last write wins per field.
func (s *Set) AddScores(timestamp uint64, raw map[string]json.RawMessage, formula scoring.Formula, checkID func(string) error) error {
	p, ok := s.pending[timestamp]
	if !ok {
		if len(s.pending) >= s.limit {
			return errors.Errorf("too many pending rounds, at most %d allowed", s.limit)
		}
		p = &Pending{
			Timestamp: timestamp,
			Scores:    make(map[string]scoring.Score),
		}
	}

	// validate the whole submission before touching the stored round
	merged := make(map[string]scoring.Score, len(raw))
	for id, rawScore := range raw {
		if err := checkID(id); err != nil {
			return errors.Errorf("Scores.%s %s", id, err.Error())
		}
		sc, ok := p.Scores[id]
		if !ok {
			sc = scoring.NewScore()
		}
		if err := formula.ParseScore(rawScore, &sc); err != nil {
			return errors.Errorf("Scores.%s %s", id, err.Error())
		}
		merged[id] = sc
	}

	for id, sc := range merged {
		p.Scores[id] = sc
	}
	s.pending[timestamp] = p
	return nil
}

// Get returns the pending round at the timestamp, or a no-pending-round
// error.
func (s *Set) Get(timestamp uint64) (*Pending, error) {
	p, ok := s.pending[timestamp]
	if !ok {
		return nil, errNoPending(timestamp)
	}
	return p, nil
}

// Cancel removes the pending round at the timestamp without scoring it.
func (s *Set) Cancel(timestamp uint64) error {
	if _, ok := s.pending[timestamp]; !ok {
		return errNoPending(timestamp)
	}
	delete(s.pending, timestamp)
	return nil
}

// Remove drops a round after successful completion.
func (s *Set) Remove(timestamp uint64) {
	delete(s.pending, timestamp)
}

// Timestamps lists open round timestamps, sorted ascending.
func (s *Set) Timestamps() []uint64 {
	out := make([]uint64, 0, len(s.pending))
	for ts := range s.pending {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of open rounds.
func (s *Set) Len() int {
	return len(s.pending)
}

// Restore replaces the set content from deserialized rounds.
func (s *Set) Restore(rounds map[uint64]*Pending) {
	s.pending = make(map[uint64]*Pending, len(rounds))
	for ts, p := range rounds {
		scores := make(map[string]scoring.Score, len(p.Scores))
		for id, sc := range p.Scores {
			scores[id] = sc
		}
		s.pending[ts] = &Pending{Timestamp: ts, Scores: scores}
	}
}

// Snapshot returns a deep copy of all pending rounds for serialization.
func (s *Set) Snapshot() map[uint64]*Pending {
	out := make(map[uint64]*Pending, len(s.pending))
	for ts, p := range s.pending {
		scores := make(map[string]scoring.Score, len(p.Scores))
		for id, sc := range p.Scores {
			scores[id] = sc
		}
		out[ts] = &Pending{Timestamp: ts, Scores: scores}
	}
	return out
}
