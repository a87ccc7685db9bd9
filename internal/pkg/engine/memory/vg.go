// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package memory

import (
	"context"
	"slices"
	"strings"
	"syscall"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
)

// vgOf resolves a volume group handle and clears the owning context's error
// slot.
func (e *Engine) vgOf(v engine.VG) (*vgHandle, *lvmContext) {
	vh, ok := e.vgs[v]
	if !ok {
		e.processErrno = syscall.EINVAL
		return nil, nil
	}
	c := e.context(vh.ctx)
	if c == nil {
		return nil, nil
	}
	return vh, c
}

// writable fails unless vh may be modified.
func (c *lvmContext) writable(vh *vgHandle) bool {
	switch {
	case vh.removed:
		c.fail(syscall.EINVAL, "Volume group %s has been removed", vh.meta.name)
		return false
	case vh.mode != engine.ModeWrite:
		c.fail(syscall.EPERM, "Volume group %s was opened read-only", vh.meta.name)
		return false
	}
	return true
}

// commit publishes vh's metadata to the store. Callers hold e.mu.
func (e *Engine) commit(c *lvmContext, vh *vgHandle) bool {
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	name := vh.meta.name
	if vh.pendingRemove {
		if cur, ok := s.vgs[name]; ok && cur.uuid == vh.meta.uuid {
			delete(s.vgs, name)
		}
		for _, l := range s.labels {
			if l.vg == name {
				l.vg = ""
			}
		}
		for k := range s.active {
			if strings.HasPrefix(k, name+"/") {
				delete(s.active, k)
			}
		}
		vh.pendingRemove = false
		vh.removed = true
		return true
	}

	if len(vh.meta.pvs) == 0 {
		c.fail(syscall.EINVAL, "Volume group %s has no physical volumes", name)
		return false
	}
	cur, exists := s.vgs[name]
	if vh.isNew && exists {
		c.fail(syscall.EEXIST, "A volume group called %s already exists.", name)
		return false
	}
	inVG := map[string]bool{}
	for _, pv := range vh.meta.pvs {
		if l := s.labels[pv.device]; l != nil && l.vg != "" && l.vg != name {
			c.fail(syscall.EEXIST, "Physical volume %s is already in volume group %s", pv.device, l.vg)
			return false
		}
		inVG[pv.device] = true
	}

	seqno := vh.meta.seqno + 1
	if exists && cur.seqno >= seqno {
		seqno = cur.seqno + 1
	}
	vh.meta.seqno = seqno
	for _, pv := range vh.meta.pvs {
		l := s.labels[pv.device]
		if l == nil {
			l = &label{device: pv.device, uuid: pv.uuid, mdaCount: pv.mdaCount, mdaSize: pv.mdaSize}
			s.labels[pv.device] = l
		}
		l.vg = name
		l.size = pv.size
	}
	for _, l := range s.labels {
		if l.vg == name && !inVG[l.device] {
			l.vg = ""
		}
	}
	s.vgs[name] = vh.meta.clone()
	vh.isNew = false
	return true
}

// mutate applies fn to vh's metadata and commits, restoring the previous
// metadata if either step fails.
func (e *Engine) mutate(c *lvmContext, vh *vgHandle, fn func(m *vgMeta) bool) bool {
	backup := vh.meta.clone()
	if !fn(vh.meta) || !e.commit(c, vh) {
		vh.meta = backup
		return false
	}
	return true
}

func (e *Engine) closeVG(id engine.VG, vh *vgHandle) {
	e.store.mu.Lock()
	if e.store.locks[vh.meta.name] == vh {
		delete(e.store.locks, vh.meta.name)
	}
	e.store.mu.Unlock()
	for _, lv := range vh.lvHandles {
		delete(e.lvs, lv)
	}
	for _, pv := range vh.pvHandles {
		delete(e.pvs, pv)
	}
	delete(e.vgs, id)
}

// VGWrite implements engine.Engine.
func (e *Engine) VGWrite(_ context.Context, v engine.VG) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) || !e.commit(c, vh) {
		return -1
	}
	return 0
}

// VGClose implements engine.Engine.
func (e *Engine) VGClose(v engine.VG) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, ok := e.vgs[v]
	if !ok {
		return -1
	}
	e.closeVG(v, vh)
	return 0
}

// VGRemove implements engine.Engine. The removal takes effect on VGWrite.
func (e *Engine) VGRemove(v engine.VG) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return -1
	}
	if n := len(vh.meta.lvs); n > 0 {
		c.fail(syscall.EBUSY, "Volume group \"%s\" still contains %d logical volume(s)", vh.meta.name, n)
		return -1
	}
	vh.pendingRemove = true
	return 0
}

// VGExtend implements engine.Engine. Unlabelled devices are initialized with
// default parameters.
func (e *Engine) VGExtend(_ context.Context, v engine.VG, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return -1
	}
	m := vh.meta

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()
	devSize, ok := s.devices[device]
	if !ok {
		c.fail(syscall.ENOENT, "Device %s not found.", device)
		return -1
	}
	if m.pvByDevice(device) != nil {
		c.fail(syscall.EEXIST, "Physical volume '%s' is already in volume group '%s'", device, m.name)
		return -1
	}
	l := s.labels[device]
	if l != nil && l.vg != "" {
		c.fail(syscall.EEXIST, "Physical volume '%s' is already in volume group '%s'", device, l.vg)
		return -1
	}
	if m.maxPV > 0 && uint64(len(m.pvs)) >= m.maxPV {
		c.fail(syscall.ENOSPC, "No space for '%s' - volume group '%s' holds max %d physical volume(s).", device, m.name, m.maxPV)
		return -1
	}
	if l == nil {
		if devSize < minPVSize {
			c.fail(syscall.EINVAL, "%s: Minimum physical volume size is %s.", device, convert.FormatSize(minPVSize))
			return -1
		}
		l = &label{
			device:   device,
			uuid:     newID(),
			size:     devSize,
			mdaCount: engine.DefaultMetadataCopies,
			mdaSize:  defaultMetadataSize,
		}
		s.labels[device] = l
	}
	pe := peCount(l.size, m.extentSize)
	if pe == 0 {
		c.fail(syscall.ENOSPC, "Physical volume %s is too small for extent size %s", device, convert.FormatSize(m.extentSize))
		return -1
	}
	m.pvs = append(m.pvs, &pvMeta{
		device:   device,
		uuid:     l.uuid,
		size:     l.size,
		devSize:  devSize,
		peCount:  pe,
		mdaCount: l.mdaCount,
		mdaSize:  l.mdaSize,
	})
	return 0
}

// VGReduce implements engine.Engine.
func (e *Engine) VGReduce(_ context.Context, v engine.VG, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return -1
	}
	m := vh.meta
	pv := m.pvByDevice(device)
	switch {
	case pv == nil:
		c.fail(syscall.ENOENT, "Physical volume \"%s\" not in volume group \"%s\"", device, m.name)
		return -1
	case m.usedOn(pv.uuid) > 0:
		c.fail(syscall.EBUSY, "Physical volume \"%s\" still in use", device)
		return -1
	case len(m.pvs) == 1:
		c.fail(syscall.EINVAL, "Can't remove final physical volume \"%s\" from volume group \"%s\"", device, m.name)
		return -1
	}
	m.pvs = slices.DeleteFunc(m.pvs, func(p *pvMeta) bool { return p == pv })
	if h, ok := vh.pvHandles[pv.uuid]; ok {
		delete(e.pvs, h)
		delete(vh.pvHandles, pv.uuid)
	}
	return 0
}

// VGAddTag implements engine.Engine.
func (e *Engine) VGAddTag(v engine.VG, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	if !slices.Contains(vh.meta.tags, tag) {
		vh.meta.tags = append(vh.meta.tags, tag)
	}
	return 0
}

// VGRemoveTag implements engine.Engine.
func (e *Engine) VGRemoveTag(v engine.VG, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	vh.meta.tags = slices.DeleteFunc(vh.meta.tags, func(t string) bool { return t == tag })
	return 0
}

// VGGetTags implements engine.Engine.
func (e *Engine) VGGetTags(v engine.VG) *dmlist.List[string] {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, _ := e.vgOf(v)
	if vh == nil {
		return nil
	}
	return dmlist.FromSlice(vh.meta.tags)
}

// VGSetExtentSize implements engine.Engine.
func (e *Engine) VGSetExtentSize(v engine.VG, size uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return -1
	}
	m := vh.meta
	ext := uint64(size)
	if ext < minExtentSize || !convert.IsPowerOfTwo(ext) {
		c.fail(syscall.EINVAL, "Physical extent size must be a power of 2 of at least %s.", convert.FormatSize(minExtentSize))
		return -1
	}
	if len(m.lvs) > 0 {
		c.fail(syscall.EINVAL, "Cannot change extent size of volume group %s with logical volumes", m.name)
		return -1
	}
	for _, pv := range m.pvs {
		if peCount(pv.size, ext) == 0 {
			c.fail(syscall.EINVAL, "Physical volume %s is too small for extent size %s", pv.device, convert.FormatSize(ext))
			return -1
		}
	}
	m.extentSize = ext
	for _, pv := range m.pvs {
		pv.peCount = peCount(pv.size, ext)
	}
	return 0
}

func (e *Engine) vgMeta(v engine.VG) *vgMeta {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, _ := e.vgOf(v)
	if vh == nil {
		return nil
	}
	return vh.meta.clone()
}

// VGGetName implements engine.Engine.
func (e *Engine) VGGetName(v engine.VG) string {
	if m := e.vgMeta(v); m != nil {
		return m.name
	}
	return ""
}

// VGGetUUID implements engine.Engine.
func (e *Engine) VGGetUUID(v engine.VG) string {
	if m := e.vgMeta(v); m != nil {
		return engine.FormatID(m.uuid)
	}
	return ""
}

// VGGetSeqno implements engine.Engine.
func (e *Engine) VGGetSeqno(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.seqno
	}
	return 0
}

// VGGetSize implements engine.Engine.
func (e *Engine) VGGetSize(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.extentCount() * m.extentSize
	}
	return 0
}

// VGGetFreeSize implements engine.Engine.
func (e *Engine) VGGetFreeSize(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.freeExtents() * m.extentSize
	}
	return 0
}

// VGGetExtentSize implements engine.Engine.
func (e *Engine) VGGetExtentSize(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.extentSize
	}
	return 0
}

// VGGetExtentCount implements engine.Engine.
func (e *Engine) VGGetExtentCount(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.extentCount()
	}
	return 0
}

// VGGetFreeExtentCount implements engine.Engine.
func (e *Engine) VGGetFreeExtentCount(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.freeExtents()
	}
	return 0
}

// VGGetPVCount implements engine.Engine.
func (e *Engine) VGGetPVCount(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return uint64(len(m.pvs))
	}
	return 0
}

// VGGetMaxPV implements engine.Engine.
func (e *Engine) VGGetMaxPV(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.maxPV
	}
	return 0
}

// VGGetMaxLV implements engine.Engine.
func (e *Engine) VGGetMaxLV(v engine.VG) uint64 {
	if m := e.vgMeta(v); m != nil {
		return m.maxLV
	}
	return 0
}

// VGIsClustered implements engine.Engine. Clustered locking is not
// simulated.
func (e *Engine) VGIsClustered(engine.VG) bool {
	return false
}

// VGIsExported implements engine.Engine.
func (e *Engine) VGIsExported(engine.VG) bool {
	return false
}

// VGIsPartial implements engine.Engine. A group is partial when one of its
// devices has disappeared.
func (e *Engine) VGIsPartial(v engine.VG) bool {
	m := e.vgMeta(v)
	if m == nil {
		return false
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, pv := range m.pvs {
		if _, ok := e.store.devices[pv.device]; !ok {
			return true
		}
	}
	return false
}

// VGGetProperty implements engine.Engine.
func (e *Engine) VGGetProperty(v engine.VG, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil {
		return engine.Property{}
	}
	return lookup(c, vgProperties(vh.meta), name)
}

// VGListLVs implements engine.Engine.
func (e *Engine) VGListLVs(_ context.Context, v engine.VG) *dmlist.List[engine.LV] {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, _ := e.vgOf(v)
	if vh == nil {
		return nil
	}
	l := dmlist.New[engine.LV]()
	for _, lv := range vh.meta.lvs {
		l.Add(e.lvHandle(v, vh, lv.uuid))
	}
	return l
}

// VGListPVs implements engine.Engine.
func (e *Engine) VGListPVs(_ context.Context, v engine.VG) *dmlist.List[engine.PV] {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, _ := e.vgOf(v)
	if vh == nil {
		return nil
	}
	l := dmlist.New[engine.PV]()
	for _, pv := range vh.meta.pvs {
		l.Add(e.pvHandle(v, vh, pv.uuid))
	}
	return l
}

// lvHandle returns the stable handle for the volume with the given uuid.
func (e *Engine) lvHandle(v engine.VG, vh *vgHandle, uuid string) engine.LV {
	if h, ok := vh.lvHandles[uuid]; ok {
		return h
	}
	h := engine.LV(e.nextID())
	vh.lvHandles[uuid] = h
	e.lvs[h] = &objRef{vg: v, uuid: uuid}
	return h
}

func (e *Engine) pvHandle(v engine.VG, vh *vgHandle, uuid string) engine.PV {
	if h, ok := vh.pvHandles[uuid]; ok {
		return h
	}
	h := engine.PV(e.nextID())
	vh.pvHandles[uuid] = h
	e.pvs[h] = &objRef{vg: v, uuid: uuid}
	return h
}

// LVFromName implements engine.Engine.
func (e *Engine) LVFromName(v engine.VG, name string) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil {
		return 0
	}
	lv := vh.meta.lvByName(name)
	if lv == nil {
		c.fail(syscall.ENOENT, "LV name %s not found in VG %s", name, vh.meta.name)
		return 0
	}
	return e.lvHandle(v, vh, lv.uuid)
}

// LVFromUUID implements engine.Engine.
func (e *Engine) LVFromUUID(v engine.VG, uuid string) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil {
		return 0
	}
	id, err := engine.NormalizeID(uuid)
	if err != nil {
		c.fail(syscall.EINVAL, "Invalid UUID format: %v", err)
		return 0
	}
	lv := vh.meta.lvByUUID(id)
	if lv == nil {
		c.fail(syscall.ENOENT, "LV with UUID %s not found in VG %s", uuid, vh.meta.name)
		return 0
	}
	return e.lvHandle(v, vh, lv.uuid)
}

// PVFromName implements engine.Engine.
func (e *Engine) PVFromName(v engine.VG, name string) engine.PV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil {
		return 0
	}
	pv := vh.meta.pvByDevice(name)
	if pv == nil {
		c.fail(syscall.ENOENT, "PV name %s not found in VG %s", name, vh.meta.name)
		return 0
	}
	return e.pvHandle(v, vh, pv.uuid)
}

// PVFromUUID implements engine.Engine.
func (e *Engine) PVFromUUID(v engine.VG, uuid string) engine.PV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil {
		return 0
	}
	id, err := engine.NormalizeID(uuid)
	if err != nil {
		c.fail(syscall.EINVAL, "Invalid UUID format: %v", err)
		return 0
	}
	pv := vh.meta.pvByUUID(id)
	if pv == nil {
		c.fail(syscall.ENOENT, "PV with UUID %s not found in VG %s", uuid, vh.meta.name)
		return 0
	}
	return e.pvHandle(v, vh, pv.uuid)
}

// LVNameValidate implements engine.Engine.
func (e *Engine) LVNameValidate(v engine.VG, name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.validNewLV(vh.meta, name) {
		return -1
	}
	return 0
}

func (c *lvmContext) validNewLV(m *vgMeta, name string) bool {
	if errno, msg := engine.ValidateLVName(name); errno != 0 {
		c.fail(errno, "%s", msg)
		return false
	}
	if m.lvByName(name) != nil {
		c.fail(syscall.EEXIST, "Logical volume \"%s\" already exists in volume group \"%s\"", name, m.name)
		return false
	}
	return true
}

func (c *lvmContext) allocate(m *vgMeta, extents uint64) ([]segment, bool) {
	segs, ok := m.allocate(extents)
	if !ok {
		c.fail(syscall.ENOSPC, "Volume group \"%s\" has insufficient free space (%d extents): %d required.", m.name, m.freeExtents(), extents)
	}
	return segs, ok
}

func (c *lvmContext) roomForLV(m *vgMeta) bool {
	if m.maxLV > 0 && uint64(len(m.lvs)) >= m.maxLV {
		c.fail(syscall.ENOSPC, "Maximum number of logical volumes (%d) reached in volume group %s", m.maxLV, m.name)
		return false
	}
	return true
}

// VGCreateLVLinear implements engine.Engine. The volume is committed and
// activated.
func (e *Engine) VGCreateLVLinear(_ context.Context, v engine.VG, name string, size uint64) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return 0
	}
	var id string
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		if !c.validNewLV(m, name) || !c.roomForLV(m) {
			return false
		}
		if size == 0 {
			c.fail(syscall.EINVAL, "Unable to create LV %s with zero extents", name)
			return false
		}
		n := convert.Extents(size, m.extentSize)
		segs, ok := c.allocate(m, n)
		if !ok {
			return false
		}
		id = newID()
		m.lvs = append(m.lvs, &lvMeta{
			name:     name,
			uuid:     id,
			segtype:  segLinear,
			size:     n * m.extentSize,
			segments: segs,
		})
		return true
	})
	if !ok {
		return 0
	}
	e.activate(vh.meta.name, name, true)
	return e.lvHandle(v, vh, id)
}

// VGCreateThinPool implements engine.Engine.
func (e *Engine) VGCreateThinPool(_ context.Context, v engine.VG, p engine.ThinPoolParams) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return 0
	}
	var id string
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		if !c.validNewLV(m, p.Name) || !c.roomForLV(m) {
			return false
		}
		if p.Size == 0 {
			c.fail(syscall.EINVAL, "Unable to create thin pool %s with zero extents", p.Name)
			return false
		}
		chunk := p.ChunkSize
		if chunk == 0 {
			chunk = defaultChunkSize
		}
		if chunk < defaultChunkSize || chunk > maxChunkSize || chunk%defaultChunkSize != 0 {
			c.fail(syscall.EINVAL, "Chunk size must be a multiple of %s between %s and %s",
				convert.FormatSize(defaultChunkSize), convert.FormatSize(defaultChunkSize), convert.FormatSize(maxChunkSize))
			return false
		}
		metaSize := p.MetadataSize
		if metaSize == 0 {
			metaSize = convert.Clamp(p.Size/chunk*poolMetadataPerChunk, minPoolMetadataSize, maxPoolMetadataSize)
		}
		if metaSize > maxPoolMetadataSize {
			c.fail(syscall.EINVAL, "Thin pool metadata size must not exceed %s", convert.FormatSize(maxPoolMetadataSize))
			return false
		}
		discards := p.Discard.String()
		if discards == "unknown" {
			c.fail(syscall.EINVAL, "Invalid discards policy %d", int(p.Discard))
			return false
		}
		dataExt := convert.Extents(p.Size, m.extentSize)
		metaExt := convert.Extents(metaSize, m.extentSize)
		segs, ok := c.allocate(m, dataExt+metaExt)
		if !ok {
			return false
		}
		id = newID()
		m.lvs = append(m.lvs, &lvMeta{
			name:         p.Name,
			uuid:         id,
			segtype:      segThinPool,
			size:         dataExt * m.extentSize,
			segments:     segs,
			chunkSize:    chunk,
			metadataSize: metaExt * m.extentSize,
			discards:     discards,
		})
		return true
	})
	if !ok {
		return 0
	}
	e.activate(vh.meta.name, p.Name, true)
	return e.lvHandle(v, vh, id)
}

// VGCreateThin implements engine.Engine. Thin volumes may exceed the pool
// size.
func (e *Engine) VGCreateThin(_ context.Context, v engine.VG, p engine.ThinParams) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	vh, c := e.vgOf(v)
	if vh == nil || !c.writable(vh) {
		return 0
	}
	var id string
	ok := e.mutate(c, vh, func(m *vgMeta) bool {
		if !c.validNewLV(m, p.Name) || !c.roomForLV(m) {
			return false
		}
		pool := m.lvByName(p.Pool)
		switch {
		case pool == nil:
			c.fail(syscall.ENOENT, "Thin pool %s not found in volume group %s", p.Pool, m.name)
			return false
		case pool.segtype != segThinPool:
			c.fail(syscall.EINVAL, "Logical volume %s is not a thin pool", p.Pool)
			return false
		case p.Size == 0:
			c.fail(syscall.EINVAL, "Unable to create thin volume %s with zero size", p.Name)
			return false
		}
		id = newID()
		m.lvs = append(m.lvs, &lvMeta{
			name:    p.Name,
			uuid:    id,
			segtype: segThin,
			size:    convert.RoundUpToExtent(p.Size, m.extentSize),
			pool:    p.Pool,
		})
		return true
	})
	if !ok {
		return 0
	}
	e.activate(vh.meta.name, p.Name, true)
	return e.lvHandle(v, vh, id)
}

func (e *Engine) activate(vg, lv string, active bool) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.setActive(vg, lv, active)
}

func peCount(pvSize, extentSize uint64) uint64 {
	if pvSize <= peStart || extentSize == 0 {
		return 0
	}
	return (pvSize - peStart) / extentSize
}
