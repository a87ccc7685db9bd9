// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm_test

import (
	"context"
	"errors"
	"slices"
	"syscall"
	"testing"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine/memory"
	"lvm-access/pkg/lvm"
)

// newClient opens a client on a fresh memory engine with 1 GiB devices.
func newClient(t *testing.T, devices ...string) (*lvm.Client, *memory.Engine) {
	t.Helper()
	store := memory.NewStore()
	for _, d := range devices {
		store.AddDevice(d, convert.GiB)
	}
	eng := memory.New(store)
	c, err := lvm.Open(context.Background(), lvm.WithEngine(eng))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, eng
}

// newGroup creates and commits a volume group on devices.
func newGroup(t *testing.T, c *lvm.Client, name string, devices ...string) *lvm.VolumeGroup {
	t.Helper()
	ctx := context.Background()
	vg, err := c.CreateVolumeGroup(ctx, name)
	if err != nil {
		t.Fatalf("CreateVolumeGroup(%s) error = %v", name, err)
	}
	t.Cleanup(func() { _ = vg.Close() })
	for _, d := range devices {
		if err := vg.Extend(ctx, d); err != nil {
			t.Fatalf("Extend(%s) error = %v", d, err)
		}
	}
	return vg
}

func TestOpenAllocationFailure(t *testing.T) {
	eng := memory.New(nil, memory.WithInitFailure(syscall.ENOMEM))
	_, err := lvm.Open(context.Background(), lvm.WithEngine(eng))
	if !errors.Is(err, lvm.ErrAllocation) {
		t.Errorf("Open() error = %v, want ErrAllocation", err)
	}
	if !errors.Is(err, syscall.ENOMEM) {
		t.Errorf("Open() error = %v, want ENOMEM", err)
	}
}

func TestOpenUnsupported(t *testing.T) {
	eng := memory.New(nil, memory.WithInitFailure(syscall.ENOTSUP))
	_, err := lvm.Open(context.Background(), lvm.WithEngine(eng))
	if !errors.Is(err, lvm.ErrAllocation) || !errors.Is(err, lvm.ErrUnsupported) {
		t.Errorf("Open() error = %v, want ErrAllocation and ErrUnsupported", err)
	}
}

func TestOpenRejectsNULSystemDir(t *testing.T) {
	eng := memory.New(nil)
	_, err := lvm.Open(context.Background(), lvm.WithEngine(eng), lvm.WithSystemDir("/etc/\x00lvm"))
	var ve *lvm.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Open() error = %v, want *ValidationError", err)
	}
	if contexts, _ := eng.OpenHandles(); contexts != 0 {
		t.Errorf("engine has %d contexts, want 0", contexts)
	}
}

func TestClientClose(t *testing.T) {
	ctx := context.Background()
	c, eng := newClient(t, "/dev/loop0")
	vg := newGroup(t, c, "vg0", "/dev/loop0")

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if contexts, vgs := eng.OpenHandles(); contexts != 0 || vgs != 0 {
		t.Errorf("OpenHandles() = %d, %d, want 0, 0", contexts, vgs)
	}

	if err := c.Scan(ctx); !errors.Is(err, lvm.ErrReleased) {
		t.Errorf("Scan() after Close error = %v, want ErrReleased", err)
	}
	if !errors.Is(vg.Err(), lvm.ErrReleased) {
		t.Errorf("vg.Err() = %v, want ErrReleased", vg.Err())
	}
	if got := vg.Name(); got != "" {
		t.Errorf("Name() on released session = %q, want empty", got)
	}
	if err := vg.AddTag(ctx, "x"); !errors.Is(err, lvm.ErrReleased) {
		t.Errorf("AddTag() after Close error = %v, want ErrReleased", err)
	}
	if err := vg.Close(); err != nil {
		t.Errorf("vg.Close() after client Close error = %v", err)
	}
}

func TestScan(t *testing.T) {
	c, eng := newClient(t)
	if err := c.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if got := eng.Store().Scans(); got != 1 {
		t.Errorf("Scans() = %d, want 1", got)
	}
}

func TestListVolumeGroups(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, "/dev/loop0", "/dev/loop1")

	names, err := c.ListVolumeGroupNames(ctx)
	if err != nil {
		t.Fatalf("ListVolumeGroupNames() error = %v", err)
	}
	if len(names) != 0 {
		t.Errorf("ListVolumeGroupNames() = %v, want none", names)
	}

	vg0 := newGroup(t, c, "vg0", "/dev/loop0")
	vg1 := newGroup(t, c, "vg1", "/dev/loop1")

	names, err = c.ListVolumeGroupNames(ctx)
	if err != nil {
		t.Fatalf("ListVolumeGroupNames() error = %v", err)
	}
	if !slices.Equal(names, []string{"vg0", "vg1"}) {
		t.Errorf("ListVolumeGroupNames() = %v, want [vg0 vg1]", names)
	}

	ids, err := c.ListVolumeGroupUUIDs(ctx)
	if err != nil {
		t.Fatalf("ListVolumeGroupUUIDs() error = %v", err)
	}
	want := []lvm.UUID{vg0.UUID(), vg1.UUID()}
	if !slices.Equal(ids, want) {
		t.Errorf("ListVolumeGroupUUIDs() = %v, want %v", ids, want)
	}
	for _, id := range ids {
		if id.IsZero() {
			t.Error("ListVolumeGroupUUIDs() returned a zero UUID")
		}
	}
}

func TestOpenVolumeGroupErrors(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, "/dev/loop0")
	newGroup(t, c, "vg0", "/dev/loop0")

	tests := []struct {
		name string
		vg   string
		mode lvm.Mode
		want error
	}{
		{name: "not found", vg: "vg9", mode: lvm.ReadOnly, want: lvm.ErrNotFound},
		{name: "locked by writer", vg: "vg0", mode: lvm.ReadWrite, want: lvm.ErrInUse},
		{name: "empty name", vg: "", mode: lvm.ReadOnly, want: lvm.ErrInvalid},
		{name: "bad mode", vg: "vg0", mode: lvm.Mode(7), want: lvm.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vg, err := c.OpenVolumeGroup(ctx, tt.vg, tt.mode)
			if !errors.Is(err, tt.want) {
				t.Errorf("OpenVolumeGroup(%q, %v) error = %v, want %v", tt.vg, tt.mode, err, tt.want)
			}
			if vg != nil {
				t.Errorf("OpenVolumeGroup(%q, %v) returned a session on error", tt.vg, tt.mode)
			}
		})
	}

	_, err := c.OpenVolumeGroup(ctx, "vg9", lvm.ReadOnly)
	var ee *lvm.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("OpenVolumeGroup() error = %T, want *EngineError", err)
	}
	if ee.Op != "OpenVolumeGroup" || ee.Code != syscall.ENOENT || ee.Message != `Volume group "vg9" not found` {
		t.Errorf("EngineError = %+v", ee)
	}
}

func TestCreateVolumeGroupExists(t *testing.T) {
	c, _ := newClient(t, "/dev/loop0")
	newGroup(t, c, "vg0", "/dev/loop0")
	_, err := c.CreateVolumeGroup(context.Background(), "vg0")
	if !errors.Is(err, lvm.ErrAlreadyExists) {
		t.Errorf("CreateVolumeGroup() error = %v, want ErrAlreadyExists", err)
	}
}

func TestPhysicalVolumes(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, "/dev/loop0", "/dev/loop1")

	if err := c.CreatePhysicalVolume(ctx, "/dev/loop0", 512*convert.MiB); err != nil {
		t.Fatalf("CreatePhysicalVolume() error = %v", err)
	}
	if err := c.CreatePhysicalVolume(ctx, "/dev/sdz", 0); !errors.Is(err, lvm.ErrNotFound) {
		t.Errorf("CreatePhysicalVolume(missing) error = %v, want ErrNotFound", err)
	}
	copies := uint64(2)
	if err := c.CreatePhysicalVolumeWithParams(ctx, "/dev/loop1", lvm.PVParams{MetadataCopies: &copies}); err != nil {
		t.Fatalf("CreatePhysicalVolumeWithParams() error = %v", err)
	}
	bad := uint64(3)
	err := c.CreatePhysicalVolumeWithParams(ctx, "/dev/loop1", lvm.PVParams{MetadataCopies: &bad})
	if !errors.Is(err, lvm.ErrInvalid) {
		t.Errorf("CreatePhysicalVolumeWithParams(copies=3) error = %v, want ErrInvalid", err)
	}

	vg := newGroup(t, c, "vg0", "/dev/loop0", "/dev/loop1")
	pv, err := vg.PhysicalVolumeByName(ctx, "/dev/loop0")
	if err != nil {
		t.Fatalf("PhysicalVolumeByName() error = %v", err)
	}
	if got := pv.Size(); got != 512*convert.MiB {
		t.Errorf("Size() = %d, want %d", got, 512*convert.MiB)
	}
	if got := pv.DeviceSize(); got != convert.GiB {
		t.Errorf("DeviceSize() = %d, want %d", got, convert.GiB)
	}
	pv1, err := vg.PhysicalVolumeByName(ctx, "/dev/loop1")
	if err != nil {
		t.Fatalf("PhysicalVolumeByName() error = %v", err)
	}
	if got := pv1.MetadataAreaCount(); got != 2 {
		t.Errorf("MetadataAreaCount() = %d, want 2", got)
	}
	byUUID, err := vg.PhysicalVolumeByUUID(ctx, pv.UUID())
	if err != nil {
		t.Fatalf("PhysicalVolumeByUUID() error = %v", err)
	}
	if byUUID.Name() != "/dev/loop0" {
		t.Errorf("PhysicalVolumeByUUID().Name() = %q, want /dev/loop0", byUUID.Name())
	}

	name, ok, err := c.VolumeGroupNameForDevice(ctx, "/dev/loop0")
	if err != nil || !ok || name != "vg0" {
		t.Errorf("VolumeGroupNameForDevice() = %q, %v, %v, want vg0, true, nil", name, ok, err)
	}
	name, ok, err = c.VolumeGroupNameForPhysicalVolumeUUID(ctx, pv1.UUID())
	if err != nil || !ok || name != "vg0" {
		t.Errorf("VolumeGroupNameForPhysicalVolumeUUID() = %q, %v, %v, want vg0, true, nil", name, ok, err)
	}
	name, ok, err = c.VolumeGroupNameForDevice(ctx, "/dev/unknown")
	if err != nil || ok || name != "" {
		t.Errorf("VolumeGroupNameForDevice(unknown) = %q, %v, %v, want \"\", false, nil", name, ok, err)
	}

	if err := c.RemovePhysicalVolume(ctx, "/dev/loop0"); !errors.Is(err, lvm.ErrInUse) {
		t.Errorf("RemovePhysicalVolume(in vg) error = %v, want ErrInUse", err)
	}
	if err := vg.Reduce(ctx, "/dev/loop0"); err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if err := c.RemovePhysicalVolume(ctx, "/dev/loop0"); err != nil {
		t.Errorf("RemovePhysicalVolume() error = %v", err)
	}
	if _, ok, _ := c.VolumeGroupNameForDevice(ctx, "/dev/loop0"); ok {
		t.Error("removed device still belongs to a volume group")
	}
}

func TestValidateVolumeGroupName(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, "/dev/loop0")
	newGroup(t, c, "vg0", "/dev/loop0")

	tests := []struct {
		name string
		want error
	}{
		{"vg1", nil},
		{"vg0", lvm.ErrAlreadyExists},
		{"bad name", lvm.ErrInvalid},
		{"", lvm.ErrInvalid},
		{"vg\x00", lvm.ErrInvalid},
	}
	for _, tt := range tests {
		err := c.ValidateVolumeGroupName(ctx, tt.name)
		if !errors.Is(err, tt.want) {
			t.Errorf("ValidateVolumeGroupName(%q) error = %v, want %v", tt.name, err, tt.want)
		}
		if tt.want == nil {
			continue
		}
		var ve *lvm.ValidationError
		if !errors.As(err, &ve) || !errors.Is(err, lvm.ErrInvalid) {
			t.Errorf("ValidateVolumeGroupName(%q) error = %#v, want a ValidationError", tt.name, err)
		}
	}

	err := c.ValidateVolumeGroupName(ctx, "vg0")
	var ee *lvm.EngineError
	if !errors.As(err, &ee) || ee.Code != syscall.EEXIST {
		t.Errorf("ValidateVolumeGroupName(taken) error = %v, want the engine's EEXIST as cause", err)
	}
}
