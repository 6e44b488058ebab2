// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"sort"

	"github.com/relaynet/rewards/decimal"
)

// Ledger tracks, per beneficiary and counterparty, cumulative rewards earned
// but unclaimed and rewards already claimed. Unclaimed balances compound as
// restake weight on the counterparty's next round.
//
// Rewarded balances only ever grow, except through Claim which moves the
// full pair balance into Claimed.
type Ledger struct {
	digits   uint8
	rewarded map[string]map[string]decimal.Dec
	claimed  map[string]map[string]decimal.Dec
}

// New creates an empty ledger holding amounts at the given precision.
func New(digits uint8) *Ledger {
	return &Ledger{
		digits:   digits,
		rewarded: make(map[string]map[string]decimal.Dec),
		claimed:  make(map[string]map[string]decimal.Dec),
	}
}

// Digits returns the amount precision.
func (l *Ledger) Digits() uint8 { return l.digits }

// Add credits an earned amount to the beneficiary/counterparty pair.
// Zero and negative amounts are ignored.
func (l *Ledger) Add(beneficiary, counterparty string, amount decimal.Dec) {
	if amount.Sign() <= 0 {
		return
	}
	add(l.rewarded, beneficiary, counterparty, amount)
}

// Unclaimed returns the rewarded-and-unclaimed balance of the pair.
func (l *Ledger) Unclaimed(beneficiary, counterparty string) decimal.Dec {
	if row, ok := l.rewarded[beneficiary]; ok {
		if amount, ok := row[counterparty]; ok {
			return amount
		}
	}
	return decimal.Zero(l.digits)
}

// Claimed returns the cumulative claimed balance of the pair.
func (l *Ledger) Claimed(beneficiary, counterparty string) decimal.Dec {
	if row, ok := l.claimed[beneficiary]; ok {
		if amount, ok := row[counterparty]; ok {
			return amount
		}
	}
	return decimal.Zero(l.digits)
}

// RestakeWeight returns the total unclaimed balance carried by a
// counterparty across all beneficiaries. The scoring engine counts it as
// additional stake on the counterparty's next round.
func (l *Ledger) RestakeWeight(counterparty string) decimal.Dec {
	sum := decimal.Zero(l.digits)
	for _, row := range l.rewarded {
		if amount, ok := row[counterparty]; ok {
			sum = sum.Add(amount)
		}
	}
	return sum
}

// Claim moves the full unclaimed balance of the pair into the claimed
// balance and returns the amount moved. Claiming a zero balance succeeds
// and returns zero.
func (l *Ledger) Claim(beneficiary, counterparty string) decimal.Dec {
	amount := l.Unclaimed(beneficiary, counterparty)
	if amount.Sign() <= 0 {
		return decimal.Zero(l.digits)
	}
	delete(l.rewarded[beneficiary], counterparty)
	if len(l.rewarded[beneficiary]) == 0 {
		delete(l.rewarded, beneficiary)
	}
	add(l.claimed, beneficiary, counterparty, amount)
	return amount
}

// ClaimAll claims every counterparty balance of the beneficiary and returns
// the amounts moved, keyed by counterparty.
func (l *Ledger) ClaimAll(beneficiary string) map[string]decimal.Dec {
	moved := make(map[string]decimal.Dec)
	for _, counterparty := range l.Counterparties(beneficiary) {
		amount := l.Claim(beneficiary, counterparty)
		if !amount.IsZero() {
			moved[counterparty] = amount
		}
	}
	return moved
}

// Counterparties lists, sorted, the counterparties with an unclaimed balance
// toward the beneficiary.
func (l *Ledger) Counterparties(beneficiary string) []string {
	row := l.rewarded[beneficiary]
	out := make([]string, 0, len(row))
	for counterparty := range row {
		out = append(out, counterparty)
	}
	sort.Strings(out)
	return out
}

// RewardedView returns a deep copy of the rewarded balances of the
// beneficiary, keyed by counterparty.
func (l *Ledger) RewardedView(beneficiary string) map[string]decimal.Dec {
	return cloneRow(l.rewarded[beneficiary])
}

// ClaimedView returns a deep copy of the claimed balances of the
// beneficiary, keyed by counterparty.
func (l *Ledger) ClaimedView(beneficiary string) map[string]decimal.Dec {
	return cloneRow(l.claimed[beneficiary])
}

// Snapshot returns deep copies of both balance tables for serialization.
func (l *Ledger) Snapshot() (rewarded, claimed map[string]map[string]decimal.Dec) {
	return cloneTable(l.rewarded), cloneTable(l.claimed)
}

// Restore replaces the ledger content from deserialized tables.
func (l *Ledger) Restore(rewarded, claimed map[string]map[string]decimal.Dec) {
	l.rewarded = cloneTable(rewarded)
	l.claimed = cloneTable(claimed)
}

func add(table map[string]map[string]decimal.Dec, beneficiary, counterparty string, amount decimal.Dec) {
	row, ok := table[beneficiary]
	if !ok {
		row = make(map[string]decimal.Dec)
		table[beneficiary] = row
	}
	if prior, ok := row[counterparty]; ok {
		amount = prior.Add(amount)
	}
	row[counterparty] = amount
}

func cloneRow(row map[string]decimal.Dec) map[string]decimal.Dec {
	out := make(map[string]decimal.Dec, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func cloneTable(table map[string]map[string]decimal.Dec) map[string]map[string]decimal.Dec {
	out := make(map[string]map[string]decimal.Dec, len(table))
	for k, row := range table {
		out[k] = cloneRow(row)
	}
	return out
}
