// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
)

// VolumeGroup is an open volume group session. It cannot outlive the Client
// it was opened from.
type VolumeGroup struct {
	client *Client
	handle engine.VG
	mode   Mode
	name   string
	lease  *lease

	// mu guards the member leases. Handles for the same engine object share
	// one lease.
	mu       sync.Mutex
	lvLeases map[engine.LV]*lease
	pvLeases map[engine.PV]*lease
}

func (c *Client) newVolumeGroup(h engine.VG, name string, mode Mode) *VolumeGroup {
	vg := &VolumeGroup{
		client:   c,
		handle:   h,
		mode:     mode,
		name:     name,
		lease:    c.lease.child(),
		lvLeases: map[engine.LV]*lease{},
		pvLeases: map[engine.PV]*lease{},
	}
	runtime.SetFinalizer(vg, (*VolumeGroup).Close)
	return vg
}

// Mode returns the access mode the session was opened with.
func (vg *VolumeGroup) Mode() Mode {
	return vg.mode
}

// Err returns ErrReleased once the session is closed or removed, or its
// Client is closed.
func (vg *VolumeGroup) Err() error {
	return vg.lease.check()
}

// Close releases the session and invalidates its member handles. Calling
// Close again is a no-op.
func (vg *VolumeGroup) Close() error {
	c := vg.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if !vg.lease.revoke() {
		return nil
	}
	runtime.SetFinalizer(vg, nil)
	if !c.lease.alive() {
		// Quit already released every handle of the context.
		return nil
	}
	if c.eng.VGClose(vg.handle) < 0 {
		return c.lastError("CloseVolumeGroup")
	}
	return nil
}

func (vg *VolumeGroup) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("vg.name", vg.name), attribute.String("vg.mode", vg.mode.String()))
	return vg.client.tracer.Start(ctx, "lvm/"+op, trace.WithAttributes(attrs...))
}

// writable rejects mutations on released and read-only sessions without
// reaching the engine.
func (vg *VolumeGroup) writable(op string) error {
	if err := vg.lease.check(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if vg.mode != ReadWrite {
		return fmt.Errorf("%s: %w: volume group %q is open read-only", op, ErrPermission, vg.name)
	}
	return nil
}

func (vg *VolumeGroup) call(ctx context.Context, op string, fn func(eng engine.Engine) bool) error {
	return vg.client.do(ctx, op, vg.lease, func(eng engine.Engine, _ engine.Handle) bool {
		return fn(eng)
	})
}

func (vg *VolumeGroup) mutate(ctx context.Context, op string, fn func(eng engine.Engine) bool) error {
	if err := vg.writable(op); err != nil {
		return err
	}
	return vg.call(ctx, op, fn)
}

// commitAfter runs a mutation and commits it.
func (vg *VolumeGroup) commitAfter(ctx context.Context, op string, fn func(eng engine.Engine) bool) error {
	if err := vg.mutate(ctx, op, fn); err != nil {
		return err
	}
	return vg.Write(ctx)
}

// Write commits pending changes to disk.
func (vg *VolumeGroup) Write(ctx context.Context) error {
	ctx, span := vg.span(ctx, "Write")
	defer span.End()

	if err := vg.mutate(ctx, "Write", func(eng engine.Engine) bool {
		return eng.VGWrite(ctx, vg.handle) == 0
	}); err != nil {
		return err
	}
	log.FromContext(ctx).V(1).Info("wrote volume group", "vg", vg.name, "seqno", vg.SeqNo())
	return nil
}

// Remove destroys the volume group and closes the session. The session is
// closed even when the commit fails, and the group then stays on disk.
func (vg *VolumeGroup) Remove(ctx context.Context) error {
	ctx, span := vg.span(ctx, "RemoveVolumeGroup")
	defer span.End()

	if err := vg.mutate(ctx, "RemoveVolumeGroup", func(eng engine.Engine) bool {
		return eng.VGRemove(vg.handle) == 0
	}); err != nil {
		return err
	}
	if err := vg.Write(ctx); err != nil {
		// The engine handle still carries the removal. Closing it keeps a
		// later commit on this session from applying it.
		return errors.Join(err, vg.Close())
	}
	log.FromContext(ctx).V(1).Info("removed volume group", "vg", vg.name)
	return vg.Close()
}

// Extend adds device to the volume group and commits.
func (vg *VolumeGroup) Extend(ctx context.Context, device string) error {
	ctx, span := vg.span(ctx, "Extend", attribute.String("pv.name", device))
	defer span.End()

	if err := vg.writable("Extend"); err != nil {
		return err
	}
	if err := validateArg("device", device); err != nil {
		return err
	}
	return vg.commitAfter(ctx, "Extend", func(eng engine.Engine) bool {
		return eng.VGExtend(ctx, vg.handle, device) == 0
	})
}

// Reduce removes device from the volume group and commits.
func (vg *VolumeGroup) Reduce(ctx context.Context, device string) error {
	ctx, span := vg.span(ctx, "Reduce", attribute.String("pv.name", device))
	defer span.End()

	if err := vg.writable("Reduce"); err != nil {
		return err
	}
	if err := validateArg("device", device); err != nil {
		return err
	}
	return vg.commitAfter(ctx, "Reduce", func(eng engine.Engine) bool {
		return eng.VGReduce(ctx, vg.handle, device) == 0
	})
}

// AddTag tags the volume group and commits.
func (vg *VolumeGroup) AddTag(ctx context.Context, tag string) error {
	ctx, span := vg.span(ctx, "AddTag", attribute.String("tag", tag))
	defer span.End()

	if err := vg.writable("AddTag"); err != nil {
		return err
	}
	if err := validateArg("tag", tag); err != nil {
		return err
	}
	return vg.commitAfter(ctx, "AddTag", func(eng engine.Engine) bool {
		return eng.VGAddTag(vg.handle, tag) == 0
	})
}

// RemoveTag untags the volume group and commits.
func (vg *VolumeGroup) RemoveTag(ctx context.Context, tag string) error {
	ctx, span := vg.span(ctx, "RemoveTag", attribute.String("tag", tag))
	defer span.End()

	if err := vg.writable("RemoveTag"); err != nil {
		return err
	}
	if err := validateArg("tag", tag); err != nil {
		return err
	}
	return vg.commitAfter(ctx, "RemoveTag", func(eng engine.Engine) bool {
		return eng.VGRemoveTag(vg.handle, tag) == 0
	})
}

// SetExtentSize changes the extent size and commits.
func (vg *VolumeGroup) SetExtentSize(ctx context.Context, size uint32) error {
	ctx, span := vg.span(ctx, "SetExtentSize", attribute.Int64("vg.extent_size", int64(size)))
	defer span.End()

	return vg.commitAfter(ctx, "SetExtentSize", func(eng engine.Engine) bool {
		return eng.VGSetExtentSize(vg.handle, size) == 0
	})
}

// Tags returns the volume group tags in engine order.
func (vg *VolumeGroup) Tags(ctx context.Context) ([]string, error) {
	return collect(ctx, vg.client, vg.lease, "VolumeGroupTags", func(eng engine.Engine) *dmlist.List[string] {
		return eng.VGGetTags(vg.handle)
	})
}

// Name returns the volume group name.
func (vg *VolumeGroup) Name() string {
	return get(vg.client, vg.lease, func(eng engine.Engine) string { return eng.VGGetName(vg.handle) })
}

// UUID returns the volume group identifier.
func (vg *VolumeGroup) UUID() UUID {
	return uuidOf(get(vg.client, vg.lease, func(eng engine.Engine) string { return eng.VGGetUUID(vg.handle) }))
}

// SeqNo returns the metadata sequence number, which increases on every
// commit.
func (vg *VolumeGroup) SeqNo() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetSeqno(vg.handle) })
}

// Size returns the total size in bytes.
func (vg *VolumeGroup) Size() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetSize(vg.handle) })
}

// FreeSize returns the unallocated size in bytes.
func (vg *VolumeGroup) FreeSize() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetFreeSize(vg.handle) })
}

// ExtentSize returns the extent size in bytes.
func (vg *VolumeGroup) ExtentSize() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetExtentSize(vg.handle) })
}

// ExtentCount returns the total number of extents.
func (vg *VolumeGroup) ExtentCount() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetExtentCount(vg.handle) })
}

// FreeExtentCount returns the number of unallocated extents.
func (vg *VolumeGroup) FreeExtentCount() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetFreeExtentCount(vg.handle) })
}

// PVCount returns the number of physical volumes in the group.
func (vg *VolumeGroup) PVCount() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetPVCount(vg.handle) })
}

// MaxPV returns the physical volume limit, 0 when unlimited.
func (vg *VolumeGroup) MaxPV() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetMaxPV(vg.handle) })
}

// MaxLV returns the logical volume limit, 0 when unlimited.
func (vg *VolumeGroup) MaxLV() uint64 {
	return get(vg.client, vg.lease, func(eng engine.Engine) uint64 { return eng.VGGetMaxLV(vg.handle) })
}

// IsClustered reports whether the group is shared by a cluster.
func (vg *VolumeGroup) IsClustered() bool {
	return get(vg.client, vg.lease, func(eng engine.Engine) bool { return eng.VGIsClustered(vg.handle) })
}

// IsExported reports whether the group has been exported.
func (vg *VolumeGroup) IsExported() bool {
	return get(vg.client, vg.lease, func(eng engine.Engine) bool { return eng.VGIsExported(vg.handle) })
}

// IsPartial reports whether any physical volume is missing.
func (vg *VolumeGroup) IsPartial() bool {
	return get(vg.client, vg.lease, func(eng engine.Engine) bool { return eng.VGIsPartial(vg.handle) })
}

// Property returns a named volume group property such as "vg_attr".
func (vg *VolumeGroup) Property(name string) Property {
	return get(vg.client, vg.lease, func(eng engine.Engine) Property { return eng.VGGetProperty(vg.handle, name) })
}

// AllLogicalVolumes walks the logical volumes lazily. A failed listing is
// yielded once as an error.
func (vg *VolumeGroup) AllLogicalVolumes(ctx context.Context) iter.Seq2[*LogicalVolume, error] {
	return func(yield func(*LogicalVolume, error) bool) {
		var seq iter.Seq[*LogicalVolume]
		err := vg.call(ctx, "ListLogicalVolumes", func(eng engine.Engine) bool {
			var err error
			seq, err = entries(eng.VGListLVs(ctx, vg.handle), vg.logicalVolume)
			return err == nil
		})
		if err != nil {
			yield(nil, err)
			return
		}
		for lv := range seq {
			if !yield(lv, nil) {
				return
			}
		}
	}
}

// LogicalVolumes returns the visible logical volumes.
func (vg *VolumeGroup) LogicalVolumes(ctx context.Context) ([]*LogicalVolume, error) {
	var lvs []*LogicalVolume
	for lv, err := range vg.AllLogicalVolumes(ctx) {
		if err != nil {
			return nil, err
		}
		lvs = append(lvs, lv)
	}
	return lvs, nil
}

// AllPhysicalVolumes walks the physical volumes lazily. A failed listing is
// yielded once as an error.
func (vg *VolumeGroup) AllPhysicalVolumes(ctx context.Context) iter.Seq2[*PhysicalVolume, error] {
	return func(yield func(*PhysicalVolume, error) bool) {
		var seq iter.Seq[*PhysicalVolume]
		err := vg.call(ctx, "ListPhysicalVolumes", func(eng engine.Engine) bool {
			var err error
			seq, err = entries(eng.VGListPVs(ctx, vg.handle), vg.physicalVolume)
			return err == nil
		})
		if err != nil {
			yield(nil, err)
			return
		}
		for pv := range seq {
			if !yield(pv, nil) {
				return
			}
		}
	}
}

// PhysicalVolumes returns the physical volumes of the group.
func (vg *VolumeGroup) PhysicalVolumes(ctx context.Context) ([]*PhysicalVolume, error) {
	var pvs []*PhysicalVolume
	for pv, err := range vg.AllPhysicalVolumes(ctx) {
		if err != nil {
			return nil, err
		}
		pvs = append(pvs, pv)
	}
	return pvs, nil
}

// CreateLinearLogicalVolume creates a linear logical volume. The size is
// rounded up to a whole number of extents.
func (vg *VolumeGroup) CreateLinearLogicalVolume(ctx context.Context, name string, size uint64) (*LogicalVolume, error) {
	ctx, span := vg.span(ctx, "CreateLinearLogicalVolume",
		attribute.String("lv.name", name), attribute.Int64("lv.size", int64(size)))
	defer span.End()

	if err := vg.writable("CreateLinearLogicalVolume"); err != nil {
		return nil, err
	}
	if err := validateArg("logical volume name", name); err != nil {
		return nil, err
	}
	var h engine.LV
	if err := vg.mutate(ctx, "CreateLinearLogicalVolume", func(eng engine.Engine) bool {
		h = eng.VGCreateLVLinear(ctx, vg.handle, name, size)
		return h != 0
	}); err != nil {
		return nil, err
	}
	log.FromContext(ctx).V(1).Info("created logical volume", "vg", vg.name, "lv", name, "size", size)
	return vg.logicalVolume(h), nil
}

// CreateThinPool creates a thin pool and returns its handle.
func (vg *VolumeGroup) CreateThinPool(ctx context.Context, params ThinPoolParams) (*LogicalVolume, error) {
	ctx, span := vg.span(ctx, "CreateThinPool",
		attribute.String("lv.name", params.Name), attribute.Int64("lv.size", int64(params.Size)),
		attribute.String("lv.discards", params.Discard.String()))
	defer span.End()

	if err := vg.writable("CreateThinPool"); err != nil {
		return nil, err
	}
	if err := validateArg("thin pool name", params.Name); err != nil {
		return nil, err
	}
	var h engine.LV
	if err := vg.mutate(ctx, "CreateThinPool", func(eng engine.Engine) bool {
		h = eng.VGCreateThinPool(ctx, vg.handle, engine.ThinPoolParams(params))
		return h != 0
	}); err != nil {
		return nil, err
	}
	log.FromContext(ctx).V(1).Info("created thin pool", "vg", vg.name, "lv", params.Name, "size", params.Size)
	return vg.logicalVolume(h), nil
}

// CreateThinLogicalVolume creates a thin volume in pool.
func (vg *VolumeGroup) CreateThinLogicalVolume(ctx context.Context, pool, name string, size uint64) (*LogicalVolume, error) {
	ctx, span := vg.span(ctx, "CreateThinLogicalVolume",
		attribute.String("lv.pool", pool), attribute.String("lv.name", name), attribute.Int64("lv.size", int64(size)))
	defer span.End()

	if err := vg.writable("CreateThinLogicalVolume"); err != nil {
		return nil, err
	}
	if err := validateArg("thin pool name", pool); err != nil {
		return nil, err
	}
	if err := validateArg("logical volume name", name); err != nil {
		return nil, err
	}
	var h engine.LV
	if err := vg.mutate(ctx, "CreateThinLogicalVolume", func(eng engine.Engine) bool {
		h = eng.VGCreateThin(ctx, vg.handle, engine.ThinParams{Pool: pool, Name: name, Size: size})
		return h != 0
	}); err != nil {
		return nil, err
	}
	log.FromContext(ctx).V(1).Info("created thin volume", "vg", vg.name, "pool", pool, "lv", name, "size", size)
	return vg.logicalVolume(h), nil
}

// LogicalVolumeByName looks up a logical volume. No match is an EngineError
// matching ErrNotFound.
func (vg *VolumeGroup) LogicalVolumeByName(ctx context.Context, name string) (*LogicalVolume, error) {
	if err := validateArg("logical volume name", name); err != nil {
		return nil, err
	}
	var h engine.LV
	if err := vg.call(ctx, "LogicalVolumeByName", func(eng engine.Engine) bool {
		h = eng.LVFromName(vg.handle, name)
		return h != 0
	}); err != nil {
		return nil, err
	}
	return vg.logicalVolume(h), nil
}

// LogicalVolumeByUUID looks up a logical volume by identifier.
func (vg *VolumeGroup) LogicalVolumeByUUID(ctx context.Context, id UUID) (*LogicalVolume, error) {
	if err := validateArg("logical volume uuid", string(id)); err != nil {
		return nil, err
	}
	var h engine.LV
	if err := vg.call(ctx, "LogicalVolumeByUUID", func(eng engine.Engine) bool {
		h = eng.LVFromUUID(vg.handle, string(id))
		return h != 0
	}); err != nil {
		return nil, err
	}
	return vg.logicalVolume(h), nil
}

// PhysicalVolumeByName looks up a physical volume by device path.
func (vg *VolumeGroup) PhysicalVolumeByName(ctx context.Context, device string) (*PhysicalVolume, error) {
	if err := validateArg("device", device); err != nil {
		return nil, err
	}
	var h engine.PV
	if err := vg.call(ctx, "PhysicalVolumeByName", func(eng engine.Engine) bool {
		h = eng.PVFromName(vg.handle, device)
		return h != 0
	}); err != nil {
		return nil, err
	}
	return vg.physicalVolume(h), nil
}

// PhysicalVolumeByUUID looks up a physical volume by identifier.
func (vg *VolumeGroup) PhysicalVolumeByUUID(ctx context.Context, id UUID) (*PhysicalVolume, error) {
	if err := validateArg("physical volume uuid", string(id)); err != nil {
		return nil, err
	}
	var h engine.PV
	if err := vg.call(ctx, "PhysicalVolumeByUUID", func(eng engine.Engine) bool {
		h = eng.PVFromUUID(vg.handle, string(id))
		return h != 0
	}); err != nil {
		return nil, err
	}
	return vg.physicalVolume(h), nil
}

// ValidateLogicalVolumeName checks name against the naming rules and the
// existing logical volumes. A rejected name is a *ValidationError wrapping
// the engine's error.
func (vg *VolumeGroup) ValidateLogicalVolumeName(ctx context.Context, name string) error {
	if err := validateNUL("logical volume name", name); err != nil {
		return err
	}
	err := vg.call(ctx, "ValidateLogicalVolumeName", func(eng engine.Engine) bool {
		return eng.LVNameValidate(vg.handle, name) == 0
	})
	return nameRejected("logical volume name", name, err)
}

func (vg *VolumeGroup) logicalVolume(h engine.LV) *LogicalVolume {
	vg.mu.Lock()
	defer vg.mu.Unlock()
	l, ok := vg.lvLeases[h]
	if !ok {
		l = vg.lease.child()
		vg.lvLeases[h] = l
	}
	return &LogicalVolume{vg: vg, handle: h, lease: l}
}

func (vg *VolumeGroup) physicalVolume(h engine.PV) *PhysicalVolume {
	vg.mu.Lock()
	defer vg.mu.Unlock()
	l, ok := vg.pvLeases[h]
	if !ok {
		l = vg.lease.child()
		vg.pvLeases[h] = l
	}
	return &PhysicalVolume{vg: vg, handle: h, lease: l}
}

// releaseRemovedLogicalVolumes invalidates every handle to removed and to any
// other volume the engine no longer lists. Callers hold the client lock, so
// no volume can be created between the listing and the revocation.
func (vg *VolumeGroup) releaseRemovedLogicalVolumes(ctx context.Context, eng engine.Engine, removed engine.LV) {
	var live map[engine.LV]bool
	if seq, err := entries(eng.VGListLVs(ctx, vg.handle), identity[engine.LV]); err == nil {
		live = map[engine.LV]bool{}
		for h := range seq {
			live[h] = true
		}
	}

	vg.mu.Lock()
	defer vg.mu.Unlock()
	for h, l := range vg.lvLeases {
		// Without a listing only the removed volume is known to be gone.
		if h == removed || (live != nil && !live[h]) {
			l.revoke()
			delete(vg.lvLeases, h)
		}
	}
}

// collect materializes an engine string list.
func collect(ctx context.Context, c *Client, l *lease, op string, list func(eng engine.Engine) *dmlist.List[string]) ([]string, error) {
	var out []string
	err := c.do(ctx, op, l, func(eng engine.Engine, _ engine.Handle) bool {
		seq, err := entries(list(eng), identity[string])
		if err != nil {
			return false
		}
		out = make([]string, 0)
		for s := range seq {
			out = append(out, s)
		}
		return true
	})
	return out, err
}
