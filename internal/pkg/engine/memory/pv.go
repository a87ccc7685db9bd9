// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package memory

import (
	"context"
	"syscall"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine"
)

// pvParams binds creation options to the context that made them.
type pvParams struct {
	ctx engine.Handle
	*engine.PVCreateParams
}

// PVCreate implements engine.Engine. A zero size uses the whole device.
func (e *Engine) PVCreate(_ context.Context, h engine.Handle, device string, size uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return -1
	}
	if !e.createPV(c, engine.NewPVCreateParams(device, size)) {
		return -1
	}
	return 0
}

func (e *Engine) createPV(c *lvmContext, p *engine.PVCreateParams) bool {
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	devSize, ok := s.devices[p.Device]
	if !ok {
		c.fail(syscall.ENOENT, "Device %s not found.", p.Device)
		return false
	}
	if l := s.labels[p.Device]; l != nil && l.vg != "" {
		c.fail(syscall.EBUSY, "Can't initialize physical volume \"%s\" of volume group \"%s\" without -ff", p.Device, l.vg)
		return false
	}
	size := p.Size
	if size == 0 {
		size = devSize
	}
	switch {
	case size > devSize:
		c.fail(syscall.EINVAL, "%s: Size must not be larger than device size (%s)", p.Device, convert.FormatSize(devSize))
		return false
	case size < minPVSize:
		c.fail(syscall.EINVAL, "%s: Minimum physical volume size is %s.", p.Device, convert.FormatSize(minPVSize))
		return false
	}
	mdaSize := p.MetadataSize
	if mdaSize == 0 && p.MetadataCopies > 0 {
		mdaSize = defaultMetadataSize
	}
	s.labels[p.Device] = &label{
		device:        p.Device,
		uuid:          newID(),
		size:          size,
		mdaCount:      p.MetadataCopies,
		mdaSize:       mdaSize,
		dataAlignment: p.DataAlignment,
	}
	return true
}

// PVRemove implements engine.Engine.
func (e *Engine) PVRemove(_ context.Context, h engine.Handle, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return -1
	}
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.labels[device]
	switch {
	case !ok:
		c.fail(syscall.ENOENT, "No PV label found on %s.", device)
		return -1
	case l.vg != "":
		c.fail(syscall.EBUSY, "PV %s is used by VG %s so please use vgreduce first.", device, l.vg)
		return -1
	}
	delete(s.labels, device)
	return 0
}

// PVParamsCreate implements engine.Engine.
func (e *Engine) PVParamsCreate(_ context.Context, h engine.Handle, device string) engine.PVParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return 0
	}
	if device == "" {
		c.fail(syscall.EINVAL, "Device name must not be empty")
		return 0
	}
	id := engine.PVParams(e.nextID())
	e.params[id] = &pvParams{ctx: h, PVCreateParams: engine.NewPVCreateParams(device, 0)}
	return id
}

// PVParamsGetProperty implements engine.Engine.
func (e *Engine) PVParamsGetProperty(pp engine.PVParams, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.params[pp]
	if !ok {
		e.processErrno = syscall.EINVAL
		return engine.Property{}
	}
	c := e.context(p.ctx)
	if c == nil {
		return engine.Property{}
	}
	prop, errno, msg := p.Get(name)
	if errno != 0 {
		c.fail(errno, "%s", msg)
	}
	return prop
}

// PVParamsSetProperty implements engine.Engine.
func (e *Engine) PVParamsSetProperty(pp engine.PVParams, name string, prop engine.Property) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.params[pp]
	if !ok {
		e.processErrno = syscall.EINVAL
		return -1
	}
	c := e.context(p.ctx)
	if c == nil {
		return -1
	}
	if errno, msg := p.Set(name, prop); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	return 0
}

// PVCreateAdv implements engine.Engine.
func (e *Engine) PVCreateAdv(_ context.Context, pp engine.PVParams) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.params[pp]
	if !ok {
		e.processErrno = syscall.EINVAL
		return -1
	}
	c := e.context(p.ctx)
	if c == nil || !e.createPV(c, p.PVCreateParams) {
		return -1
	}
	return 0
}

// pvOf resolves a physical volume handle.
func (e *Engine) pvOf(p engine.PV) (*vgHandle, *lvmContext, *pvMeta) {
	ref, ok := e.pvs[p]
	if !ok {
		e.processErrno = syscall.EINVAL
		return nil, nil, nil
	}
	vh, c := e.vgOf(ref.vg)
	if vh == nil {
		return nil, nil, nil
	}
	pv := vh.meta.pvByUUID(ref.uuid)
	if pv == nil {
		c.fail(syscall.EINVAL, "Physical volume %s no longer exists in volume group %s", engine.FormatID(ref.uuid), vh.meta.name)
		return nil, nil, nil
	}
	return vh, c, pv
}

func (e *Engine) pvSnapshot(p engine.PV) (pvMeta, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, _, pv := e.pvOf(p)
	if pv == nil {
		return pvMeta{}, 0, false
	}
	free := (pv.peCount - vh.meta.usedOn(pv.uuid)) * vh.meta.extentSize
	return *pv, free, true
}

// PVGetName implements engine.Engine.
func (e *Engine) PVGetName(p engine.PV) string {
	pv, _, _ := e.pvSnapshot(p)
	return pv.device
}

// PVGetUUID implements engine.Engine.
func (e *Engine) PVGetUUID(p engine.PV) string {
	if pv, _, ok := e.pvSnapshot(p); ok {
		return engine.FormatID(pv.uuid)
	}
	return ""
}

// PVGetSize implements engine.Engine.
func (e *Engine) PVGetSize(p engine.PV) uint64 {
	pv, _, _ := e.pvSnapshot(p)
	return pv.size
}

// PVGetDevSize implements engine.Engine.
func (e *Engine) PVGetDevSize(p engine.PV) uint64 {
	pv, _, _ := e.pvSnapshot(p)
	return pv.devSize
}

// PVGetFree implements engine.Engine.
func (e *Engine) PVGetFree(p engine.PV) uint64 {
	_, free, _ := e.pvSnapshot(p)
	return free
}

// PVGetMDACount implements engine.Engine.
func (e *Engine) PVGetMDACount(p engine.PV) uint64 {
	pv, _, _ := e.pvSnapshot(p)
	return pv.mdaCount
}

// PVGetProperty implements engine.Engine.
func (e *Engine) PVGetProperty(p engine.PV, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c, pv := e.pvOf(p)
	if pv == nil {
		return engine.Property{}
	}
	return lookup(c, pvProperties(vh.meta, pv), name)
}

// PVResize implements engine.Engine. A zero size uses the whole device.
func (e *Engine) PVResize(_ context.Context, p engine.PV, size uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c, pv := e.pvOf(p)
	if pv == nil || !c.writable(vh) {
		return -1
	}
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		target := m.pvByUUID(pv.uuid)
		if size == 0 {
			size = target.devSize
		}
		if size > target.devSize {
			c.fail(syscall.EINVAL, "%s: Size must not be larger than device size (%s)", target.device, convert.FormatSize(target.devSize))
			return false
		}
		pe := peCount(size, m.extentSize)
		if used := m.usedOn(target.uuid); pe < used || pe == 0 {
			c.fail(syscall.EBUSY, "%s: cannot resize to %d extents as %d are allocated.", target.device, pe, used)
			return false
		}
		target.size = size
		target.peCount = pe
		return true
	})
	if !ok {
		return -1
	}
	return 0
}
