// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package engine ties configuration, scoring, rounds and the reward ledger
// into one serialized command processor. Every command either fully applies
// or leaves state untouched.
package engine

import (
	"bytes"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/config"
	"github.com/relaynet/rewards/decimal"
	"github.com/relaynet/rewards/ledger"
	"github.com/relaynet/rewards/log"
	"github.com/relaynet/rewards/metrics"
	"github.com/relaynet/rewards/relay"
	"github.com/relaynet/rewards/round"
	"github.com/relaynet/rewards/scoring"
)

var logger = log.WithContext("pkg", "engine")

var (
	metricCommandCount = metrics.LazyLoad(func() metrics.CountVecMeter {
		return metrics.CounterVec("command_count", []string{"action", "status"})
	})
	metricPendingRounds = metrics.LazyLoad(func() metrics.GaugeMeter {
		return metrics.Gauge("pending_rounds_count")
	})
	metricCompleteDuration = metrics.LazyLoad(func() metrics.HistogramMeter {
		return metrics.Histogram("round_complete_duration_ms", metrics.BucketMillis)
	})
)

// Command actions, as carried on the wire and granted as capabilities.
const (
	ActionUpdateConfiguration = "Update-Configuration"
	ActionAddScores           = "Add-Scores"
	ActionCompleteRound       = "Complete-Round"
	ActionCancelRound         = "Cancel-Round"
	ActionClaimRewards        = "Claim-Rewards"
	ActionInit                = "Init"
)

// Variant selects which reward formula a deployment runs.
type Variant int

const (
	// Relay rewards relays by measured network performance. Entities are
	// relay fingerprints and token amounts carry 18 fractional digits.
	Relay Variant = iota
	// Staking rewards operators by staked weight. Entities are operator
	// addresses and token amounts are whole units.
	Staking
)

func (v Variant) String() string {
	switch v {
	case Relay:
		return "relay"
	case Staking:
		return "staking"
	default:
		return "unknown"
	}
}

// ParseVariant converts the textual variant name back into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "relay":
		return Relay, nil
	case "staking":
		return Staking, nil
	default:
		return 0, errors.Errorf("unknown variant %q", s)
	}
}

// TokenDigits returns the precision token amounts carry in this variant.
func (v Variant) TokenDigits() uint8 {
	if v == Staking {
		return 0
	}
	return decimal.FractionDigits
}

// Kind returns the scoring formula family of the variant.
func (v Variant) Kind() scoring.Kind {
	if v == Staking {
		return scoring.StakeWeight
	}
	return scoring.Performance
}

// DefaultConfig returns the variant's initial configuration.
func (v Variant) DefaultConfig() config.Config {
	if v == Staking {
		return config.DefaultStaking()
	}
	return config.DefaultRelay()
}

// Authorizer is the external capability check injected into the engine.
type Authorizer interface {
	Authorize(caller relay.Address, action string) bool
}

// Notifier receives state patches: one per configuration change and one per
// round completion. completed is nil for configuration-only patches.
type Notifier interface {
	StatePatch(cfg config.Config, completed *round.Completed)
}

type noopNotifier struct{}

func (noopNotifier) StatePatch(config.Config, *round.Completed) {}

// Engine is the reward engine state machine. All commands are serialized;
// a command either fully applies or leaves state unchanged.
type Engine struct {
	mu       sync.RWMutex
	variant  Variant
	formula  scoring.Formula
	auth     Authorizer
	notifier Notifier

	cfg         config.Config
	rounds      *round.Set
	prev        *round.Completed
	prevClaimed map[string]map[string]decimal.Dec
	ledger      *ledger.Ledger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithNotifier installs a state patch receiver.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMaxPendingRounds bounds the number of concurrently open rounds.
func WithMaxPendingRounds(limit int) Option {
	return func(e *Engine) { e.rounds = round.NewSet(limit) }
}

// New creates an engine with the variant's default configuration.
func New(variant Variant, auth Authorizer, opts ...Option) *Engine {
	e := &Engine{
		variant:  variant,
		formula:  scoring.NewFormula(variant.Kind()),
		auth:     auth,
		notifier: noopNotifier{},
		cfg:      variant.DefaultConfig(),
		rounds:   round.NewSet(0),
		ledger:   ledger.New(variant.TokenDigits()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Variant returns the deployment variant.
func (e *Engine) Variant() Variant {
	return e.variant
}

// Configuration returns a copy of the live configuration.
func (e *Engine) Configuration() config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// PendingTimestamps lists open round timestamps, sorted ascending.
func (e *Engine) PendingTimestamps() []uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rounds.Timestamps()
}

// PreviousRound returns the archived last completed round, or nil before
// the first completion. The archive is written once and read-only after.
func (e *Engine) PreviousRound() *round.Completed {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prev
}

// UpdateConfiguration applies a partial configuration update. A failed
// update applies nothing.
func (e *Engine) UpdateConfiguration(caller relay.Address, raw json.RawMessage) error {
	if !e.auth.Authorize(caller, ActionUpdateConfiguration) {
		countCommand(ActionUpdateConfiguration, "denied")
		return errPermission(caller, ActionUpdateConfiguration)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var upd config.Update
	if err := decodeStrict(raw, &upd); err != nil {
		countCommand(ActionUpdateConfiguration, "error")
		return errors.WithMessage(err, "malformed configuration update")
	}
	cfg, err := e.cfg.Apply(upd, e.checkEntityID)
	if err != nil {
		countCommand(ActionUpdateConfiguration, "error")
		return err
	}
	e.cfg = cfg

	e.notifier.StatePatch(cfg, nil)

	countCommand(ActionUpdateConfiguration, "ok")
	logger.Info("configuration updated", "caller", caller)
	return nil
}

// AddScores merges a raw score submission into the round at the timestamp,
// opening the round if absent. The whole submission is validated before any
// of it is applied.
func (e *Engine) AddScores(caller relay.Address, timestamp string, raw json.RawMessage) error {
	if !e.auth.Authorize(caller, ActionAddScores) {
		countCommand(ActionAddScores, "denied")
		return errPermission(caller, ActionAddScores)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, err := parseTimestamp(timestamp)
	if err != nil {
		countCommand(ActionAddScores, "error")
		return err
	}
	var scores map[string]json.RawMessage
	if err := json.Unmarshal(raw, &scores); err != nil {
		countCommand(ActionAddScores, "error")
		return errors.New("Scores has to be a JSON object keyed by entity")
	}
	if err := e.rounds.AddScores(ts, scores, e.formula, e.checkEntityID); err != nil {
		countCommand(ActionAddScores, "error")
		return err
	}
	countCommand(ActionAddScores, "ok")
	metricPendingRounds().Set(int64(e.rounds.Len()))
	logger.Debug("scores added", "timestamp", ts, "entities", len(scores))
	return nil
}

// CompleteRound scores and distributes the pending round at the timestamp.
// The period is the distance to the previously completed round; before any
// completion the prior timestamp counts as zero. Timestamps arriving out of
// order complete with a zero period rather than fail.
func (e *Engine) CompleteRound(caller relay.Address, timestamp string) (*round.Completed, error) {
	if !e.auth.Authorize(caller, ActionCompleteRound) {
		countCommand(ActionCompleteRound, "denied")
		return nil, errPermission(caller, ActionCompleteRound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, err := parseTimestamp(timestamp)
	if err != nil {
		countCommand(ActionCompleteRound, "error")
		return nil, err
	}
	p, err := e.rounds.Get(ts)
	if err != nil {
		countCommand(ActionCompleteRound, "error")
		return nil, err
	}

	started := time.Now()
	var prevTs uint64
	if e.prev != nil {
		prevTs = e.prev.Timestamp
	}
	var period uint64
	if ts > prevTs {
		period = ts - prevTs
	}

	completed, credits := round.Complete(p, period, e.cfg, e.formula, e.ledger.RestakeWeight, e.variant.TokenDigits())
	for _, c := range credits {
		e.ledger.Add(c.Beneficiary, c.Counterparty, c.Amount)
	}
	e.prev = completed
	_, e.prevClaimed = e.ledger.Snapshot()
	e.rounds.Remove(ts)

	e.notifier.StatePatch(completed.Configuration, completed)

	countCommand(ActionCompleteRound, "ok")
	metricPendingRounds().Set(int64(e.rounds.Len()))
	metricCompleteDuration().Observe(time.Since(started).Milliseconds())
	logger.Info("round completed",
		"timestamp", ts,
		"period", period,
		"entities", completed.Summary.Entities,
		"rewards", completed.Summary.Rewards)
	return completed, nil
}

// CancelRound drops the pending round at the timestamp without scoring it.
func (e *Engine) CancelRound(caller relay.Address, timestamp string) error {
	if !e.auth.Authorize(caller, ActionCancelRound) {
		countCommand(ActionCancelRound, "denied")
		return errPermission(caller, ActionCancelRound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, err := parseTimestamp(timestamp)
	if err != nil {
		countCommand(ActionCancelRound, "error")
		return err
	}
	if err := e.rounds.Cancel(ts); err != nil {
		countCommand(ActionCancelRound, "error")
		return err
	}
	countCommand(ActionCancelRound, "ok")
	metricPendingRounds().Set(int64(e.rounds.Len()))
	logger.Info("round cancelled", "timestamp", ts)
	return nil
}

// RewardsView is a beneficiary-centric rewards query response, keyed by
// counterparty.
type RewardsView struct {
	Rewarded map[string]decimal.Dec
	Claimed  map[string]decimal.Dec
}

// GetRewards returns the beneficiary's rewarded and claimed balances.
// With a counterparty the view narrows to that pair. With a timestamp the
// query is historical: it reads the archived round at that timestamp and
// reports what the round distributed, not live ledger state.
func (e *Engine) GetRewards(beneficiary, counterparty, timestamp string) (RewardsView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var view RewardsView
	if timestamp != "" {
		ts, err := parseTimestamp(timestamp)
		if err != nil {
			return RewardsView{}, err
		}
		if e.prev == nil || e.prev.Timestamp != ts {
			return RewardsView{}, errNoCompleted(ts)
		}
		view = RewardsView{
			Rewarded: archivedRewards(e.prev, beneficiary),
			Claimed:  map[string]decimal.Dec{},
		}
	} else {
		view = RewardsView{
			Rewarded: e.ledger.RewardedView(beneficiary),
			Claimed:  e.ledger.ClaimedView(beneficiary),
		}
	}

	if counterparty != "" {
		view.Rewarded = filterPair(view.Rewarded, counterparty)
		view.Claimed = filterPair(view.Claimed, counterparty)
	}
	return view, nil
}

// archivedRewards reconstructs, from a completed round's details, what the
// round credited to the beneficiary per counterparty. An operator acting as
// its own delegate receives both cuts under one counterparty.
func archivedRewards(completed *round.Completed, beneficiary string) map[string]decimal.Dec {
	out := make(map[string]decimal.Dec)
	for id, detail := range completed.Details {
		amount := decimal.Zero(detail.Reward.Total.Digits())
		if id == beneficiary {
			amount = amount.Add(detail.Reward.OperatorTotal)
		}
		if detail.Reward.Delegate == beneficiary {
			amount = amount.Add(detail.Reward.DelegateTotal)
		}
		if amount.Sign() > 0 {
			out[id] = amount
		}
	}
	return out
}

func filterPair(row map[string]decimal.Dec, counterparty string) map[string]decimal.Dec {
	out := make(map[string]decimal.Dec, 1)
	if amount, ok := row[counterparty]; ok {
		out[counterparty] = amount
	}
	return out
}

// ClaimRewards moves the beneficiary's full unclaimed balances into the
// claimed ledger and returns the amounts moved, keyed by counterparty. With
// a counterparty only that pair is claimed; claiming a zero balance
// succeeds and returns zero. Callers may always claim for themselves;
// claiming for another beneficiary requires the capability.
func (e *Engine) ClaimRewards(caller relay.Address, beneficiary, counterparty string) (map[string]decimal.Dec, error) {
	if !e.callerOwns(caller, beneficiary) && !e.auth.Authorize(caller, ActionClaimRewards) {
		countCommand(ActionClaimRewards, "denied")
		return nil, errPermission(caller, ActionClaimRewards)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var moved map[string]decimal.Dec
	if counterparty != "" {
		moved = map[string]decimal.Dec{counterparty: e.ledger.Claim(beneficiary, counterparty)}
	} else {
		moved = e.ledger.ClaimAll(beneficiary)
	}
	countCommand(ActionClaimRewards, "ok")
	logger.Info("rewards claimed", "caller", caller, "beneficiary", beneficiary, "pairs", len(moved))
	return moved, nil
}

// GetClaimed returns the beneficiary's cumulative claimed balances, keyed
// by counterparty. With a timestamp the query serves the claim snapshot
// archived when the round at that timestamp completed.
func (e *Engine) GetClaimed(beneficiary, timestamp string) (map[string]decimal.Dec, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if timestamp != "" {
		ts, err := parseTimestamp(timestamp)
		if err != nil {
			return nil, err
		}
		if e.prev == nil || e.prev.Timestamp != ts {
			return nil, errNoCompleted(ts)
		}
		return cloneBalances(e.prevClaimed[beneficiary]), nil
	}
	return e.ledger.ClaimedView(beneficiary), nil
}

// ClaimedTable returns the full claimed mapping, beneficiary by counterparty.
// The timestamp selects the archived snapshot the same way GetClaimed does.
func (e *Engine) ClaimedTable(timestamp string) (map[string]map[string]decimal.Dec, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if timestamp != "" {
		ts, err := parseTimestamp(timestamp)
		if err != nil {
			return nil, err
		}
		if e.prev == nil || e.prev.Timestamp != ts {
			return nil, errNoCompleted(ts)
		}
		out := make(map[string]map[string]decimal.Dec, len(e.prevClaimed))
		for beneficiary, row := range e.prevClaimed {
			out[beneficiary] = cloneBalances(row)
		}
		return out, nil
	}
	_, claimed := e.ledger.Snapshot()
	return claimed, nil
}

func cloneBalances(row map[string]decimal.Dec) map[string]decimal.Dec {
	out := make(map[string]decimal.Dec, len(row))
	for counterparty, amount := range row {
		out[counterparty] = amount
	}
	return out
}

// callerOwns reports whether the beneficiary key denotes the caller's own
// address. Fingerprint-keyed beneficiaries are never self-owned; claiming
// those needs the capability.
func (e *Engine) callerOwns(caller relay.Address, beneficiary string) bool {
	addr, err := relay.ParseAddress(beneficiary)
	return err == nil && addr == caller
}

// checkEntityID validates an entity identifier against the variant's format:
// relay fingerprints for the relay variant, addresses for staking.
func (e *Engine) checkEntityID(id string) error {
	if e.variant == Staking {
		if _, err := relay.ParseAddress(id); err != nil {
			return errors.New("has to be an address")
		}
		return nil
	}
	if _, err := relay.ParseFingerprint(id); err != nil {
		return errors.New("has to be a relay fingerprint")
	}
	return nil
}

func parseTimestamp(s string) (uint64, error) {
	ts, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("Timestamp has to be a valid integer")
	}
	return ts, nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func countCommand(action, status string) {
	metricCommandCount().AddWithLabel(1, map[string]string{"action": action, "status": status})
}
