// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package memory

import (
	"context"
	"slices"
	"syscall"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
)

// lvOf resolves a logical volume handle to its group handle and metadata.
func (e *Engine) lvOf(l engine.LV) (engine.VG, *vgHandle, *lvmContext, *lvMeta) {
	ref, ok := e.lvs[l]
	if !ok {
		e.processErrno = syscall.EINVAL
		return 0, nil, nil, nil
	}
	vh, c := e.vgOf(ref.vg)
	if vh == nil {
		return 0, nil, nil, nil
	}
	lv := vh.meta.lvByUUID(ref.uuid)
	if lv == nil {
		c.fail(syscall.EINVAL, "Logical volume %s no longer exists in volume group %s", engine.FormatID(ref.uuid), vh.meta.name)
		return 0, nil, nil, nil
	}
	return ref.vg, vh, c, lv
}

func (e *Engine) dropLV(vh *vgHandle, uuid string) {
	if h, ok := vh.lvHandles[uuid]; ok {
		delete(e.lvs, h)
		delete(vh.lvHandles, uuid)
	}
}

// LVActivate implements engine.Engine.
func (e *Engine) LVActivate(_ context.Context, l engine.LV) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil {
		return -1
	}
	if vh.isNew {
		c.fail(syscall.EINVAL, "Volume group %s has not been written", vh.meta.name)
		return -1
	}
	e.activate(vh.meta.name, lv.name, true)
	if lv.segtype == segThin {
		e.activate(vh.meta.name, lv.pool, true)
	}
	return 0
}

// LVDeactivate implements engine.Engine.
func (e *Engine) LVDeactivate(_ context.Context, l engine.LV) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil {
		return -1
	}
	if lv.segtype == segThinPool {
		e.store.mu.Lock()
		for _, other := range vh.meta.lvs {
			if other.pool == lv.name && e.store.isActive(vh.meta.name, other.name) {
				e.store.mu.Unlock()
				c.fail(syscall.EBUSY, "Thin pool %s has active thin volume %s", lv.name, other.name)
				return -1
			}
		}
		e.store.mu.Unlock()
	}
	e.activate(vh.meta.name, lv.name, false)
	return 0
}

// LVRemove implements engine.Engine. Snapshots of the volume and thin
// volumes of a pool are removed with it.
func (e *Engine) LVRemove(_ context.Context, l engine.LV) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(vh) {
		return -1
	}
	var gone, ids []string
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		target := m.lvByUUID(lv.uuid)
		queue := []*lvMeta{target}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if slices.Contains(gone, cur.name) {
				continue
			}
			queue = append(queue, m.dependents(cur)...)
			gone = append(gone, cur.name)
			ids = append(ids, cur.uuid)
			m.removeLV(cur)
		}
		return true
	})
	if !ok {
		return -1
	}
	for i, name := range gone {
		e.activate(vh.meta.name, name, false)
		e.dropLV(vh, ids[i])
	}
	return 0
}

// LVRename implements engine.Engine.
func (e *Engine) LVRename(_ context.Context, l engine.LV, name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(vh) {
		return -1
	}
	old := lv.name
	if old == name {
		return 0
	}
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		if !c.validNewLV(m, name) {
			return false
		}
		for _, other := range m.lvs {
			if other.origin == old {
				other.origin = name
			}
			if other.pool == old {
				other.pool = name
			}
		}
		m.lvByUUID(lv.uuid).name = name
		return true
	})
	if !ok {
		return -1
	}
	e.store.mu.Lock()
	if e.store.isActive(vh.meta.name, old) {
		e.store.setActive(vh.meta.name, old, false)
		e.store.setActive(vh.meta.name, name, true)
	}
	e.store.mu.Unlock()
	return 0
}

// LVResize implements engine.Engine. Thin pools can only grow.
func (e *Engine) LVResize(_ context.Context, l engine.LV, size uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(vh) {
		return -1
	}
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		target := m.lvByUUID(lv.uuid)
		if size == 0 {
			c.fail(syscall.EINVAL, "New size for %s must not be zero", target.name)
			return false
		}
		want := convert.Extents(size, m.extentSize)
		if target.segtype == segThin {
			target.size = want * m.extentSize
			return true
		}
		have := target.size / m.extentSize
		switch {
		case want > have:
			segs, ok := c.allocate(m, want-have)
			if !ok {
				return false
			}
			target.segments = append(target.segments, segs...)
		case want < have && target.segtype == segThinPool:
			c.fail(syscall.EINVAL, "Thin pool volumes %s cannot be reduced in size", target.name)
			return false
		case want < have:
			m.shrink(target, have-want)
		}
		target.size = want * m.extentSize
		return true
	})
	if !ok {
		return -1
	}
	return 0
}

// LVSnapshot implements engine.Engine. A zero maxSize sizes the snapshot
// like its origin. Snapshots of thin volumes are thin and inactive.
func (e *Engine) LVSnapshot(_ context.Context, l engine.LV, name string, maxSize uint64) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, vh, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(vh) {
		return 0
	}
	var id string
	thin := lv.segtype == segThin && maxSize == 0
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		origin := m.lvByUUID(lv.uuid)
		switch origin.segtype {
		case segSnapshot:
			c.fail(syscall.EINVAL, "Snapshots of snapshots are not supported.")
			return false
		case segThinPool:
			c.fail(syscall.EINVAL, "Snapshots of thin pool %s are not supported.", origin.name)
			return false
		}
		if !c.validNewLV(m, name) || !c.roomForLV(m) {
			return false
		}
		id = newID()
		if thin {
			m.lvs = append(m.lvs, &lvMeta{
				name:    name,
				uuid:    id,
				segtype: segThin,
				size:    origin.size,
				origin:  origin.name,
				pool:    origin.pool,
			})
			return true
		}
		cow := maxSize
		if cow == 0 {
			cow = origin.size
		}
		n := convert.Extents(cow, m.extentSize)
		segs, ok := c.allocate(m, n)
		if !ok {
			return false
		}
		m.lvs = append(m.lvs, &lvMeta{
			name:      name,
			uuid:      id,
			segtype:   segSnapshot,
			size:      n * m.extentSize,
			segments:  segs,
			origin:    origin.name,
			chunkSize: 4 * convert.KiB,
		})
		return true
	})
	if !ok {
		return 0
	}
	if !thin {
		e.activate(vh.meta.name, name, true)
	}
	return e.lvHandle(v, vh, id)
}

// LVAddTag implements engine.Engine. The tag is committed by VGWrite.
func (e *Engine) LVAddTag(l engine.LV, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(vh) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	if !slices.Contains(lv.tags, tag) {
		lv.tags = append(lv.tags, tag)
	}
	return 0
}

// LVRemoveTag implements engine.Engine.
func (e *Engine) LVRemoveTag(l engine.LV, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil || !c.writable(vh) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	lv.tags = slices.DeleteFunc(lv.tags, func(t string) bool { return t == tag })
	return 0
}

// lvSnapshot copies the volume's metadata with its activation state.
func (e *Engine) lvSnapshot(l engine.LV) (*lvMeta, *vgMeta, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, _, lv := e.lvOf(l)
	if lv == nil {
		return nil, nil, false
	}
	cp := *lv
	cp.tags = slices.Clone(lv.tags)
	e.store.mu.Lock()
	active := e.store.isActive(vh.meta.name, lv.name)
	e.store.mu.Unlock()
	return &cp, vh.meta.clone(), active
}

// LVGetTags implements engine.Engine.
func (e *Engine) LVGetTags(l engine.LV) *dmlist.List[string] {
	lv, _, _ := e.lvSnapshot(l)
	if lv == nil {
		return nil
	}
	return dmlist.FromSlice(lv.tags)
}

// LVGetName implements engine.Engine.
func (e *Engine) LVGetName(l engine.LV) string {
	if lv, _, _ := e.lvSnapshot(l); lv != nil {
		return lv.name
	}
	return ""
}

// LVGetUUID implements engine.Engine.
func (e *Engine) LVGetUUID(l engine.LV) string {
	if lv, _, _ := e.lvSnapshot(l); lv != nil {
		return engine.FormatID(lv.uuid)
	}
	return ""
}

// LVGetSize implements engine.Engine.
func (e *Engine) LVGetSize(l engine.LV) uint64 {
	if lv, _, _ := e.lvSnapshot(l); lv != nil {
		return lv.size
	}
	return 0
}

// LVGetAttr implements engine.Engine.
func (e *Engine) LVGetAttr(l engine.LV) string {
	if lv, m, active := e.lvSnapshot(l); lv != nil {
		return lvAttr(m, lv, active)
	}
	return ""
}

// LVGetOrigin implements engine.Engine.
func (e *Engine) LVGetOrigin(l engine.LV) string {
	if lv, _, _ := e.lvSnapshot(l); lv != nil {
		return lv.origin
	}
	return ""
}

// LVIsActive implements engine.Engine.
func (e *Engine) LVIsActive(l engine.LV) bool {
	_, _, active := e.lvSnapshot(l)
	return active
}

// LVIsSuspended implements engine.Engine. Suspension is not simulated.
func (e *Engine) LVIsSuspended(engine.LV) bool {
	return false
}

// LVGetProperty implements engine.Engine.
func (e *Engine) LVGetProperty(l engine.LV, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, vh, c, lv := e.lvOf(l)
	if lv == nil {
		return engine.Property{}
	}
	e.store.mu.Lock()
	active := e.store.isActive(vh.meta.name, lv.name)
	e.store.mu.Unlock()
	return lookup(c, lvProperties(vh.meta, lv, active), name)
}

// lvAttr renders the ten character lv_attr field.
func lvAttr(m *vgMeta, lv *lvMeta, active bool) string {
	attr := []byte("-wi-------")
	switch lv.segtype {
	case segThinPool:
		attr[0] = 't'
	case segThin:
		attr[0] = 'V'
	case segSnapshot:
		attr[0] = 's'
	}
	if lv.segtype != segThin && lv.segtype != segSnapshot {
		for _, other := range m.lvs {
			if other.origin == lv.name {
				attr[0] = 'o'
				break
			}
		}
	}
	if active {
		attr[4] = 'a'
		if lv.segtype != segThinPool {
			attr[5] = 'o'
		}
	}
	switch lv.segtype {
	case segThinPool, segThin:
		attr[6] = 't'
	case segSnapshot:
		attr[6] = 's'
	}
	if lv.segtype == segThinPool {
		attr[7] = 'z'
	}
	return string(attr)
}
