// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import (
	"github.com/pkg/errors"

	"github.com/relaynet/rewards/relay"
)

type permissionError struct {
	msg string
}

func (e *permissionError) Error() string { return e.msg }

// Permission marks the error as a permission failure, distinguishable from
// validation failures by message and by marker.
func (e *permissionError) Permission() bool { return true }

func errPermission(caller relay.Address, action string) error {
	return &permissionError{msg: errors.Errorf("Permission denied: %s is not allowed to %s", caller, action).Error()}
}

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

// NotFound marks the error as referencing missing state.
func (e *notFoundError) NotFound() bool { return true }

func errNoCompleted(timestamp uint64) error {
	return &notFoundError{msg: errors.Errorf("No completed round for %d", timestamp).Error()}
}

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	var p interface{ Permission() bool }
	return errors.As(err, &p) && p.Permission()
}

// IsNotFound reports whether err references a missing round or beneficiary.
func IsNotFound(err error) bool {
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}
