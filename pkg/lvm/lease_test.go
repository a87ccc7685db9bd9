// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"errors"
	"testing"
)

func TestLeaseTree(t *testing.T) {
	root := newLease()
	vg := root.child()
	lv := vg.child()
	other := root.child()

	if !lv.alive() {
		t.Fatal("new lease is not alive")
	}
	if !vg.revoke() {
		t.Error("first revoke() = false, want true")
	}
	if vg.revoke() {
		t.Error("second revoke() = true, want false")
	}
	if lv.alive() {
		t.Error("child of a revoked lease is alive")
	}
	if !errors.Is(lv.check(), ErrReleased) {
		t.Errorf("check() = %v, want ErrReleased", lv.check())
	}
	if !other.alive() {
		t.Error("sibling of a revoked lease is not alive")
	}

	root.revoke()
	if other.alive() {
		t.Error("lease outlived its root")
	}
}
