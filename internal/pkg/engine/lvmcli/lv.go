// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcli

import (
	"context"
	"syscall"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
	"lvm-access/internal/pkg/lvmcmd"
)

// lvOf resolves a logical volume handle to its session and report.
func (e *Engine) lvOf(l engine.LV) (engine.VG, *session, *lvmContext, *lvmcmd.LogicalVolume) {
	ref, ok := e.lvs[l]
	if !ok {
		e.processErrno = syscall.EINVAL
		return 0, nil, nil, nil
	}
	s, c := e.vgOf(ref.vg)
	if s == nil {
		return 0, nil, nil, nil
	}
	lv := s.lvByUUID(ref.key)
	if lv == nil {
		c.fail(syscall.EINVAL, "Logical volume %s no longer exists in volume group %s", ref.key, s.name)
		return 0, nil, nil, nil
	}
	return ref.vg, s, c, lv
}

func (s *session) fullName(lv *lvmcmd.LogicalVolume) string {
	return s.name + "/" + lv.Name
}

// lvCommand runs fn against the volume behind l once queued group changes
// are on disk, then reloads the session.
func (e *Engine) lvCommand(ctx context.Context, l engine.LV, write bool, fn func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error) int {
	return e.lvCommandChecked(ctx, l, write, nil, fn)
}

// lvCommandChecked is lvCommand with a check that runs under the same lock
// before anything reaches disk. A failing check records its own error.
func (e *Engine) lvCommandChecked(ctx context.Context, l engine.LV, write bool,
	check func(c *lvmContext, s *session, lv *lvmcmd.LogicalVolume) bool,
	fn func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error,
) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, s, c, lv := e.lvOf(l)
	if lv == nil {
		return -1
	}
	if write && !c.writable(s) {
		return -1
	}
	if s.pendingRemove {
		c.fail(syscall.EINVAL, "Volume group %s is being removed", s.name)
		return -1
	}
	if check != nil && !check(c, s, lv) {
		return -1
	}
	if !e.commit(ctx, c, s) {
		return -1
	}
	// commit may have reloaded the reports.
	if lv = s.lvByUUID(lv.UUID); lv == nil {
		c.fail(syscall.EINVAL, "Logical volume no longer exists in volume group %s", s.name)
		return -1
	}
	if err := fn(c.runner, s, lv); err != nil {
		c.failCmd(err)
		e.resync(ctx, c, s)
		return -1
	}
	if !e.refresh(ctx, c, s) {
		return -1
	}
	return 0
}

// LVActivate implements engine.Engine.
func (e *Engine) LVActivate(ctx context.Context, l engine.LV) int {
	return e.lvCommand(ctx, l, false, func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error {
		return r.UpdateLogicalVolume(ctx, lvmcmd.UpdateLVOptions{Name: s.fullName(lv), Activate: lvmcmd.Yes})
	})
}

// LVDeactivate implements engine.Engine.
func (e *Engine) LVDeactivate(ctx context.Context, l engine.LV) int {
	return e.lvCommand(ctx, l, false, func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error {
		return r.UpdateLogicalVolume(ctx, lvmcmd.UpdateLVOptions{Name: s.fullName(lv), Activate: lvmcmd.No})
	})
}

// LVRemove implements engine.Engine. Snapshots of the volume, and thin
// volumes of a pool, are removed with it.
func (e *Engine) LVRemove(ctx context.Context, l engine.LV) int {
	return e.lvCommand(ctx, l, true, func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error {
		return r.RemoveLogicalVolume(ctx, lvmcmd.RemoveLVOptions{Name: s.fullName(lv)})
	})
}

// LVRename implements engine.Engine.
func (e *Engine) LVRename(ctx context.Context, l engine.LV, name string) int {
	validName := func(c *lvmContext, s *session, lv *lvmcmd.LogicalVolume) bool {
		return lv.Name == name || c.validNewLV(s, name)
	}
	return e.lvCommandChecked(ctx, l, true, validName, func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error {
		if lv.Name == name {
			return nil
		}
		return r.RenameLogicalVolume(ctx, lvmcmd.RenameLVOptions{From: s.fullName(lv), To: s.name + "/" + name})
	})
}

// LVResize implements engine.Engine.
func (e *Engine) LVResize(ctx context.Context, l engine.LV, size uint64) int {
	if size == 0 {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, _, c, lv := e.lvOf(l); lv != nil {
			c.fail(syscall.EINVAL, "Unable to resize %s to zero extents", lv.Name)
		}
		return -1
	}
	return e.lvCommand(ctx, l, true, func(r *lvmcmd.Runner, s *session, lv *lvmcmd.LogicalVolume) error {
		return r.ResizeLogicalVolume(ctx, lvmcmd.ResizeLVOptions{Name: s.fullName(lv), Size: lvmcmd.Bytes(size)})
	})
}

// LVSnapshot implements engine.Engine. Thin volumes with a zero maxSize get
// a thin snapshot; anything else gets a copy-on-write snapshot of maxSize,
// or of the origin's size when maxSize is zero.
func (e *Engine) LVSnapshot(ctx context.Context, l engine.LV, name string, maxSize uint64) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, s, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(s) {
		return 0
	}
	switch {
	case lv.SegmentType == "thin-pool":
		c.fail(syscall.EINVAL, "Snapshots of thin pool %s are not supported", lv.Name)
		return 0
	case lv.Origin != "" && lv.SegmentType != "thin":
		c.fail(syscall.EINVAL, "Snapshots of snapshots are not supported yet.")
		return 0
	}
	opts := lvmcmd.CreateLVOptions{
		VGName:   s.fullName(lv),
		Snapshot: true,
	}
	switch {
	case maxSize != 0:
		opts.Size = lvmcmd.Bytes(maxSize)
	case lv.SegmentType != "thin":
		opts.Size = lvmcmd.Bytes(uint64(lv.Size))
	}
	return e.createLV(ctx, v, s, c, name, opts)
}

// LVAddTag implements engine.Engine. The tag is written by VGWrite.
func (e *Engine) LVAddTag(l engine.LV, tag string) int {
	return e.lvTag(l, tag, true)
}

// LVRemoveTag implements engine.Engine. The tag is removed by VGWrite.
func (e *Engine) LVRemoveTag(l engine.LV, tag string) int {
	return e.lvTag(l, tag, false)
}

func (e *Engine) lvTag(l engine.LV, tag string, add bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, s, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(s) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	tc, ok := s.lvTags[lv.UUID]
	if !ok {
		tc = &tagChange{}
		s.lvTags[lv.UUID] = tc
	}
	if add {
		queueTag(&tc.add, &tc.del, tag)
		lv.Tags = withTag(lv.Tags, tag)
	} else {
		queueTag(&tc.del, &tc.add, tag)
		lv.Tags = withoutTag(lv.Tags, tag)
	}
	return 0
}

// lvView returns a copy of the volume's report.
func (e *Engine) lvView(l engine.LV) (lvmcmd.LogicalVolume, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, _, lv := e.lvOf(l)
	if lv == nil {
		return lvmcmd.LogicalVolume{}, false
	}
	return *lv, true
}

// LVGetTags implements engine.Engine.
func (e *Engine) LVGetTags(l engine.LV) *dmlist.List[string] {
	lv, ok := e.lvView(l)
	if !ok {
		return nil
	}
	return dmlist.FromSlice(lvmcmd.SplitTags(lv.Tags))
}

// LVGetName implements engine.Engine.
func (e *Engine) LVGetName(l engine.LV) string {
	lv, _ := e.lvView(l)
	return lv.Name
}

// LVGetUUID implements engine.Engine.
func (e *Engine) LVGetUUID(l engine.LV) string {
	lv, _ := e.lvView(l)
	return lv.UUID
}

// LVGetSize implements engine.Engine.
func (e *Engine) LVGetSize(l engine.LV) uint64 {
	lv, _ := e.lvView(l)
	return uint64(lv.Size)
}

// LVGetAttr implements engine.Engine.
func (e *Engine) LVGetAttr(l engine.LV) string {
	lv, _ := e.lvView(l)
	return lv.Attributes
}

// LVGetOrigin implements engine.Engine.
func (e *Engine) LVGetOrigin(l engine.LV) string {
	lv, _ := e.lvView(l)
	return lv.Origin
}

// LVIsActive implements engine.Engine.
func (e *Engine) LVIsActive(l engine.LV) bool {
	lv, _ := e.lvView(l)
	return bool(lv.ActiveLocally)
}

// LVIsSuspended implements engine.Engine.
func (e *Engine) LVIsSuspended(l engine.LV) bool {
	lv, _ := e.lvView(l)
	return bool(lv.Suspended)
}

// LVGetProperty implements engine.Engine.
func (e *Engine) LVGetProperty(l engine.LV, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, c, lv := e.lvOf(l)
	if lv == nil {
		return engine.Property{}
	}
	return lookup(c, lvProperties(lv), name)
}
