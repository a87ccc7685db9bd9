// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcli

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/gotidy/ptr"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/lvmcmd"
)

// PVCreate implements engine.Engine. A zero size uses the whole device.
func (e *Engine) PVCreate(ctx context.Context, h engine.Handle, device string, size uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil || !e.createPV(ctx, c, engine.NewPVCreateParams(device, size)) {
		return -1
	}
	return 0
}

// createPV initializes p.Device. Devices that carry a signature are refused.
func (e *Engine) createPV(ctx context.Context, c *lvmContext, p *engine.PVCreateParams) bool {
	unformatted, err := e.devices.IsBlkDevUnformatted(p.Device)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.fail(syscall.ENOENT, "Device %s not found.", p.Device)
		return false
	case err != nil:
		c.fail(syscall.EIO, "%v", err)
		return false
	case !unformatted:
		c.fail(syscall.EBUSY, "Can't initialize physical volume \"%s\": device is in use or not an unused block device", p.Device)
		return false
	}

	opts := lvmcmd.CreatePVOptions{
		Name:           p.Device,
		MetadataCopies: ptr.Of(int(p.MetadataCopies)),
		Zero:           lvmcmd.No,
	}
	if p.Zero != 0 {
		opts.Zero = lvmcmd.Yes
	}
	if p.Size != 0 {
		opts.SetPhysicalVolumeSize = lvmcmd.Bytes(p.Size)
	}
	if p.MetadataSize != 0 {
		opts.MetadataSize = lvmcmd.Bytes(p.MetadataSize)
	}
	if p.DataAlignment != 0 {
		opts.DataAlignment = lvmcmd.Bytes(p.DataAlignment)
	}
	if p.DataAlignmentOffset != 0 {
		opts.DataAlignmentOffset = lvmcmd.Bytes(p.DataAlignmentOffset)
	}
	if err := c.runner.CreatePhysicalVolume(ctx, opts); err != nil {
		c.failCmd(err)
		return false
	}
	return true
}

// PVRemove implements engine.Engine.
func (e *Engine) PVRemove(ctx context.Context, h engine.Handle, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return -1
	}
	pv, ok := e.pvReport(ctx, c, device)
	switch {
	case !ok:
		return -1
	case pv == nil:
		c.fail(syscall.ENOENT, "No PV label found on %s.", device)
		return -1
	case pv.VGName != "":
		c.fail(syscall.EBUSY, "PV %s is used by VG %s so please use vgreduce first.", device, pv.VGName)
		return -1
	}
	if err := c.runner.RemovePhysicalVolume(ctx, lvmcmd.RemovePVOptions{Name: device}); err != nil {
		c.failCmd(err)
		return -1
	}
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

func (e *Engine) paramsOf(pp engine.PVParams) (*pvParams, *lvmContext) {
	p, ok := e.params[pp]
	if !ok {
		e.processErrno = syscall.EINVAL
		return nil, nil
	}
	c := e.context(p.ctx)
	if c == nil {
		return nil, nil
	}
	return p, c
}

// PVParamsGetProperty implements engine.Engine.
func (e *Engine) PVParamsGetProperty(pp engine.PVParams, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, c := e.paramsOf(pp)
	if p == nil {
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
	p, c := e.paramsOf(pp)
	if p == nil {
		return -1
	}
	if errno, msg := p.Set(name, prop); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	return 0
}

// PVCreateAdv implements engine.Engine.
func (e *Engine) PVCreateAdv(ctx context.Context, pp engine.PVParams) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, c := e.paramsOf(pp)
	if p == nil || !e.createPV(ctx, c, p.PVCreateParams) {
		return -1
	}
	return 0
}

// pvOf resolves a physical volume handle.
func (e *Engine) pvOf(p engine.PV) (*session, *lvmContext, *lvmcmd.PhysicalVolume) {
	ref, ok := e.pvs[p]
	if !ok {
		e.processErrno = syscall.EINVAL
		return nil, nil, nil
	}
	s, c := e.vgOf(ref.vg)
	if s == nil {
		return nil, nil, nil
	}
	pv := s.pvByName(ref.key)
	if pv == nil {
		c.fail(syscall.EINVAL, "Physical volume %s no longer exists in volume group %s", ref.key, s.name)
		return nil, nil, nil
	}
	return s, c, pv
}

func (e *Engine) pvView(p engine.PV) (lvmcmd.PhysicalVolume, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, pv := e.pvOf(p)
	if pv == nil {
		return lvmcmd.PhysicalVolume{}, false
	}
	return *pv, true
}

// PVGetName implements engine.Engine.
func (e *Engine) PVGetName(p engine.PV) string {
	pv, _ := e.pvView(p)
	return pv.Name
}

// PVGetUUID implements engine.Engine.
func (e *Engine) PVGetUUID(p engine.PV) string {
	pv, _ := e.pvView(p)
	return pv.UUID
}

// PVGetSize implements engine.Engine.
func (e *Engine) PVGetSize(p engine.PV) uint64 {
	pv, _ := e.pvView(p)
	return uint64(pv.Size)
}

// PVGetDevSize implements engine.Engine.
func (e *Engine) PVGetDevSize(p engine.PV) uint64 {
	pv, _ := e.pvView(p)
	return uint64(pv.DeviceSize)
}

// PVGetFree implements engine.Engine.
func (e *Engine) PVGetFree(p engine.PV) uint64 {
	pv, _ := e.pvView(p)
	return uint64(pv.FreeSpace)
}

// PVGetMDACount implements engine.Engine.
func (e *Engine) PVGetMDACount(p engine.PV) uint64 {
	pv, _ := e.pvView(p)
	return uint64(pv.MetadataCount)
}

// PVGetProperty implements engine.Engine.
func (e *Engine) PVGetProperty(p engine.PV, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, c, pv := e.pvOf(p)
	if pv == nil {
		return engine.Property{}
	}
	return lookup(c, pvProperties(pv), name)
}

// PVResize implements engine.Engine. A zero size uses the whole device.
func (e *Engine) PVResize(ctx context.Context, p engine.PV, size uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c, pv := e.pvOf(p)
	if pv == nil || !c.writable(s) {
		return -1
	}
	if s.isNew {
		c.fail(syscall.EINVAL, "Volume group %s has not been written", s.name)
		return -1
	}
	opts := lvmcmd.ResizePVOptions{Name: pv.Name}
	if size != 0 {
		opts.SetPhysicalVolumeSize = lvmcmd.Bytes(size)
	}
	if !e.commit(ctx, c, s) {
		return -1
	}
	if err := c.runner.ResizePhysicalVolume(ctx, opts); err != nil {
		c.failCmd(err)
		e.resync(ctx, c, s)
		return -1
	}
	if !e.refresh(ctx, c, s) {
		return -1
	}
	return 0
}
