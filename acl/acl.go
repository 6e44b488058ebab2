// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package acl

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/relaynet/rewards/relay"
)

// List is a capability registry: an owner plus per-action grants. The owner
// holds every capability implicitly and is the only one who can grant,
// revoke or hand over ownership.
type List struct {
	owner  relay.Address
	grants map[string]map[relay.Address]bool
}

// New creates a list owned by the given address.
func New(owner relay.Address) *List {
	return &List{
		owner:  owner,
		grants: make(map[string]map[relay.Address]bool),
	}
}

// Owner returns the current owner.
func (l *List) Owner() relay.Address {
	return l.owner
}

// TransferOwnership hands the list over to a new owner.
func (l *List) TransferOwnership(caller, newOwner relay.Address) error {
	if caller != l.owner {
		return errors.New("caller is not the owner")
	}
	if newOwner.IsZero() {
		return errors.New("new owner must not be the zero address")
	}
	l.owner = newOwner
	return nil
}

// Grant gives the grantee the named capability.
func (l *List) Grant(caller, grantee relay.Address, action string) error {
	if caller != l.owner {
		return errors.New("caller is not the owner")
	}
	holders, ok := l.grants[action]
	if !ok {
		holders = make(map[relay.Address]bool)
		l.grants[action] = holders
	}
	holders[grantee] = true
	return nil
}

// Revoke removes the grantee's capability.
func (l *List) Revoke(caller, grantee relay.Address, action string) error {
	if caller != l.owner {
		return errors.New("caller is not the owner")
	}
	delete(l.grants[action], grantee)
	return nil
}

// Authorize reports whether the caller holds the capability for the action.
// The owner is authorized for everything.
func (l *List) Authorize(caller relay.Address, action string) bool {
	if caller == l.owner {
		return true
	}
	return l.grants[action][caller]
}

// Holders lists, sorted, the addresses granted the action. The implicit
// owner capability is not included.
func (l *List) Holders(action string) []relay.Address {
	holders := l.grants[action]
	out := make([]relay.Address, 0, len(holders))
	for addr := range holders {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
