// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import "sync/atomic"

// lease tracks whether a handle may still be used. Leases form a tree that
// follows the handle hierarchy: revoking a lease invalidates every lease
// derived from it.
type lease struct {
	parent  *lease
	revoked atomic.Bool
}

func newLease() *lease {
	return &lease{}
}

// child returns a lease that is revoked together with l.
func (l *lease) child() *lease {
	return &lease{parent: l}
}

// revoke invalidates l and its descendants. It reports whether l was still
// alive.
func (l *lease) revoke() bool {
	return !l.revoked.Swap(true)
}

func (l *lease) alive() bool {
	for cur := l; cur != nil; cur = cur.parent {
		if cur.revoked.Load() {
			return false
		}
	}
	return true
}

func (l *lease) check() error {
	if !l.alive() {
		return ErrReleased
	}
	return nil
}
