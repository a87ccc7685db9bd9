// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcli

import (
	"context"
	"slices"
	"testing"

	"github.com/google/uuid"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/lvmcmd"
	"lvm-access/internal/pkg/testutil/loopdev"
)

// TestHostLifecycle drives the installed lvm2 tools against a loop device.
func TestHostLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping host lvm test in short mode")
	}
	ctx := context.Background()
	dev := loopdev.Device(t, int64(256*convert.MiB))
	if err := lvmcmd.New().IsSupported(ctx); err != nil {
		t.Skipf("skipping test; lvm2 tools unavailable: %v", err)
	}

	e := New()
	h := e.Init(ctx, "")
	if h == 0 {
		t.Fatalf("Init() failed: %v", e.ProcessErrno())
	}
	t.Cleanup(func() { e.Quit(h) })

	if rc := e.PVCreate(ctx, h, dev, 0); rc != 0 {
		t.Fatalf("PVCreate() failed: %s", e.Errmsg(h))
	}
	t.Cleanup(func() { e.PVRemove(ctx, h, dev) })

	name := "it" + uuid.NewString()[:8]
	vg := e.VGCreate(ctx, h, name)
	if vg == 0 {
		t.Fatalf("VGCreate() failed: %s", e.Errmsg(h))
	}
	if rc := e.VGExtend(ctx, vg, dev); rc != 0 {
		t.Fatalf("VGExtend() failed: %s", e.Errmsg(h))
	}
	if rc := e.VGWrite(ctx, vg); rc != 0 {
		t.Fatalf("VGWrite() failed: %s", e.Errmsg(h))
	}
	seqno := e.VGGetSeqno(vg)

	lv := e.VGCreateLVLinear(ctx, vg, "data", 32*convert.MiB)
	if lv == 0 {
		t.Fatalf("VGCreateLVLinear() failed: %s", e.Errmsg(h))
	}
	if got := e.VGGetSeqno(vg); got <= seqno {
		t.Errorf("VGGetSeqno() = %d after create, want more than %d", got, seqno)
	}
	if rc := e.LVAddTag(lv, "it"); rc != 0 {
		t.Fatalf("LVAddTag() failed: %s", e.Errmsg(h))
	}
	if rc := e.VGWrite(ctx, vg); rc != 0 {
		t.Fatalf("VGWrite() failed: %s", e.Errmsg(h))
	}
	if got := values(e.LVGetTags(lv)); !slices.Contains(got, "it") {
		t.Errorf("LVGetTags() = %v, want it", got)
	}
	if rc := e.LVResize(ctx, lv, 64*convert.MiB); rc != 0 {
		t.Fatalf("LVResize() failed: %s", e.Errmsg(h))
	}
	if got := e.LVGetSize(lv); got != 64*convert.MiB {
		t.Errorf("LVGetSize() = %d, want %d", got, 64*convert.MiB)
	}
	snap := e.LVSnapshot(ctx, lv, "data-snap", 8*convert.MiB)
	if snap == 0 {
		t.Fatalf("LVSnapshot() failed: %s", e.Errmsg(h))
	}
	if got := e.LVGetOrigin(snap); got != "data" {
		t.Errorf("LVGetOrigin() = %q, want data", got)
	}
	if rc := e.LVRemove(ctx, lv); rc != 0 {
		t.Fatalf("LVRemove() failed: %s", e.Errmsg(h))
	}
	if rc := e.VGRemove(vg); rc != 0 {
		t.Fatalf("VGRemove() failed: %s", e.Errmsg(h))
	}
	if rc := e.VGWrite(ctx, vg); rc != 0 {
		t.Fatalf("VGWrite() failed: %s", e.Errmsg(h))
	}
	if rc := e.VGClose(vg); rc != 0 {
		t.Fatalf("VGClose() failed")
	}
	if got := e.PVRemove(ctx, h, dev); got != 0 {
		t.Errorf("PVRemove() failed: %s", e.Errmsg(h))
	}
	if _, ok := e.VGNameFromDevice(ctx, h, dev); ok {
		t.Error("VGNameFromDevice() found a group after removal")
	}
}
