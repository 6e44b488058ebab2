// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/relaynet/rewards/acl"
	"github.com/relaynet/rewards/engine"
	"github.com/relaynet/rewards/relay"
)

// Bootstrap is the deployment description loaded at startup: which variant
// the engine runs, who owns it and which callers hold which capabilities.
// Everything else is mutated at runtime through the command surface.
type Bootstrap struct {
	Variant          string              `yaml:"variant"`
	Owner            string              `yaml:"owner"`
	Grants           map[string][]string `yaml:"grants"`
	MaxPendingRounds int                 `yaml:"maxPendingRounds"`
}

func loadBootstrap(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read bootstrap config")
	}
	var b Bootstrap
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.WithMessage(err, "parse bootstrap config")
	}
	if _, err := engine.ParseVariant(b.Variant); err != nil {
		return nil, err
	}
	if _, err := relay.ParseAddress(b.Owner); err != nil {
		return nil, errors.WithMessage(err, "owner")
	}
	return &b, nil
}

func (b *Bootstrap) owner() relay.Address {
	return relay.MustParseAddress(b.Owner)
}

func (b *Bootstrap) variant() engine.Variant {
	v, _ := engine.ParseVariant(b.Variant)
	return v
}

// buildACL grants every configured capability; the owner holds everything
// implicitly.
func (b *Bootstrap) buildACL() (*acl.List, error) {
	owner := b.owner()
	list := acl.New(owner)
	for action, grantees := range b.Grants {
		for _, grantee := range grantees {
			addr, err := relay.ParseAddress(grantee)
			if err != nil {
				return nil, errors.WithMessagef(err, "grants.%s", action)
			}
			if err := list.Grant(owner, addr, action); err != nil {
				return nil, err
			}
		}
	}
	return list, nil
}
