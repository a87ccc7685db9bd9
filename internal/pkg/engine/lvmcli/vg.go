// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcli

import (
	"context"
	"maps"
	"slices"
	"strings"
	"syscall"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
	"lvm-access/internal/pkg/lvmcmd"
)

const (
	// DefaultExtentSize is the extent size vgcreate uses unless told
	// otherwise.
	DefaultExtentSize = 4 * convert.MiB

	minExtentSize = convert.KiB
)

// session is an opened volume group: the last reports read from lvm plus
// the changes waiting for VGWrite.
type session struct {
	ctx           engine.Handle
	name          string
	mode          string
	isNew         bool
	pendingRemove bool
	removed       bool

	vg  lvmcmd.VolumeGroup
	pvs []lvmcmd.PhysicalVolume
	lvs []lvmcmd.LogicalVolume

	extend     []string
	reduce     []string
	addTags    []string
	delTags    []string
	extentSize uint64
	lvTags     map[string]*tagChange

	lvHandles map[string]engine.LV
	pvHandles map[string]engine.PV
}

type tagChange struct {
	add []string
	del []string
}

func newSession(h engine.Handle, name, mode string) *session {
	return &session{
		ctx:       h,
		name:      name,
		mode:      mode,
		lvTags:    map[string]*tagChange{},
		lvHandles: map[string]engine.LV{},
		pvHandles: map[string]engine.PV{},
	}
}

func (s *session) queued() bool {
	return len(s.extend) > 0 || len(s.reduce) > 0 || len(s.addTags) > 0 ||
		len(s.delTags) > 0 || s.extentSize != 0 || len(s.lvTags) > 0
}

func (s *session) clearQueue() {
	s.extend, s.reduce, s.addTags, s.delTags = nil, nil, nil, nil
	s.extentSize = 0
	s.lvTags = map[string]*tagChange{}
}

func (s *session) lvByName(name string) *lvmcmd.LogicalVolume {
	for i := range s.lvs {
		if s.lvs[i].Name == name {
			return &s.lvs[i]
		}
	}
	return nil
}

func (s *session) lvByUUID(id string) *lvmcmd.LogicalVolume {
	for i := range s.lvs {
		if s.lvs[i].UUID == id {
			return &s.lvs[i]
		}
	}
	return nil
}

func (s *session) pvByName(name string) *lvmcmd.PhysicalVolume {
	for i := range s.pvs {
		if s.pvs[i].Name == name {
			return &s.pvs[i]
		}
	}
	return nil
}

// queueTag moves tag onto add and off del.
func queueTag(add, del *[]string, tag string) {
	*del = slices.DeleteFunc(*del, func(t string) bool { return t == tag })
	if !slices.Contains(*add, tag) {
		*add = append(*add, tag)
	}
}

func withTag(tags, tag string) string {
	list := lvmcmd.SplitTags(tags)
	if !slices.Contains(list, tag) {
		list = append(list, tag)
	}
	return strings.Join(list, ",")
}

func withoutTag(tags, tag string) string {
	return strings.Join(slices.DeleteFunc(lvmcmd.SplitTags(tags), func(t string) bool { return t == tag }), ",")
}

// refresh reloads the reports of s and drops handles to objects that no
// longer exist.
func (e *Engine) refresh(ctx context.Context, c *lvmContext, s *session) bool {
	r := c.runner
	vgs, err := r.ListVolumeGroups(ctx, &lvmcmd.ListVGOptions{Names: []string{s.name}})
	if err != nil {
		c.failCmd(err)
		return false
	}
	if len(vgs) == 0 {
		c.fail(syscall.ENOENT, "Volume group \"%s\" not found", s.name)
		return false
	}
	pvs, err := r.ListPhysicalVolumes(ctx, &lvmcmd.ListPVOptions{Select: "vg_name=" + s.name})
	if err != nil {
		c.failCmd(err)
		return false
	}
	lvs, err := r.ListLogicalVolumes(ctx, &lvmcmd.ListLVOptions{Names: []string{s.name}})
	if err != nil {
		c.failCmd(err)
		return false
	}

	s.vg = vgs[0]
	s.pvs = pvs
	s.lvs = slices.DeleteFunc(lvs, lvmcmd.LogicalVolume.Hidden)
	for id, h := range s.lvHandles {
		if s.lvByUUID(id) == nil {
			delete(e.lvs, h)
			delete(s.lvHandles, id)
		}
	}
	for name, h := range s.pvHandles {
		if s.pvByName(name) == nil {
			delete(e.pvs, h)
			delete(s.pvHandles, name)
		}
	}
	return true
}

// resync reloads s after a failed command so it shows what reached disk,
// keeping the error of the failed command. A group that was never created
// keeps its queue.
func (e *Engine) resync(ctx context.Context, c *lvmContext, s *session) {
	if s.isNew {
		return
	}
	errno, msg := c.errno, c.errmsg
	s.clearQueue()
	e.refresh(ctx, c, s)
	c.errno, c.errmsg = errno, msg
}

// flush runs the commands queued on s.
func (e *Engine) flush(ctx context.Context, c *lvmContext, s *session) bool {
	r := c.runner
	switch {
	case s.pendingRemove && s.isNew:
		s.removed = true
		return true
	case s.pendingRemove:
		if err := r.RemoveVolumeGroup(ctx, lvmcmd.RemoveVGOptions{Name: s.name}); err != nil {
			c.failCmd(err)
			s.pendingRemove = false
			return false
		}
		s.removed = true
		return true
	case s.isNew:
		if len(s.extend) == 0 {
			c.fail(syscall.EINVAL, "Volume group %s has no physical volumes", s.name)
			return false
		}
		opts := lvmcmd.CreateVGOptions{Name: s.name, PVNames: s.extend, Tags: s.addTags}
		if s.extentSize != 0 {
			opts.PhysicalExtentSize = lvmcmd.Bytes(s.extentSize)
		}
		if err := r.CreateVolumeGroup(ctx, opts); err != nil {
			c.failCmd(err)
			return false
		}
		s.isNew = false
		s.clearQueue()
		return true
	}

	if len(s.extend) > 0 {
		if err := r.ExtendVolumeGroup(ctx, lvmcmd.ExtendVGOptions{Name: s.name, PVNames: s.extend}); err != nil {
			c.failCmd(err)
			return false
		}
		s.extend = nil
	}
	if len(s.reduce) > 0 {
		if err := r.ReduceVolumeGroup(ctx, lvmcmd.ReduceVGOptions{Name: s.name, PVNames: s.reduce}); err != nil {
			c.failCmd(err)
			return false
		}
		s.reduce = nil
	}
	if len(s.addTags) > 0 || len(s.delTags) > 0 || s.extentSize != 0 {
		opts := lvmcmd.UpdateVGOptions{Name: s.name, AddTags: s.addTags, DelTags: s.delTags}
		if s.extentSize != 0 {
			opts.PhysicalExtentSize = lvmcmd.Bytes(s.extentSize)
		}
		if err := r.UpdateVolumeGroup(ctx, opts); err != nil {
			c.failCmd(err)
			return false
		}
		s.addTags, s.delTags, s.extentSize = nil, nil, 0
	}
	for _, id := range slices.Sorted(maps.Keys(s.lvTags)) {
		tc := s.lvTags[id]
		lv := s.lvByUUID(id)
		if lv == nil {
			delete(s.lvTags, id)
			continue
		}
		opts := lvmcmd.UpdateLVOptions{Name: s.name + "/" + lv.Name, AddTags: tc.add, DelTags: tc.del}
		if err := r.UpdateLogicalVolume(ctx, opts); err != nil {
			c.failCmd(err)
			return false
		}
		delete(s.lvTags, id)
	}
	return true
}

// commit flushes s and reloads it. Logical volume commands call it first so
// that queued group changes reach disk with them.
func (e *Engine) commit(ctx context.Context, c *lvmContext, s *session) bool {
	if !s.queued() && !s.isNew && !s.pendingRemove {
		return true
	}
	if !e.flush(ctx, c, s) {
		e.resync(ctx, c, s)
		return false
	}
	if s.removed {
		e.dropHandles(s)
		return true
	}
	return e.refresh(ctx, c, s)
}

func (e *Engine) dropHandles(s *session) {
	for id, h := range s.lvHandles {
		delete(e.lvs, h)
		delete(s.lvHandles, id)
	}
	for name, h := range s.pvHandles {
		delete(e.pvs, h)
		delete(s.pvHandles, name)
	}
}

// vgOf resolves a volume group handle and clears the owning context's error
// slot.
func (e *Engine) vgOf(v engine.VG) (*session, *lvmContext) {
	s, ok := e.vgs[v]
	if !ok {
		e.processErrno = syscall.EINVAL
		return nil, nil
	}
	c := e.context(s.ctx)
	if c == nil {
		return nil, nil
	}
	return s, c
}

// writable fails unless s may be modified.
func (c *lvmContext) writable(s *session) bool {
	switch {
	case s.removed:
		c.fail(syscall.EINVAL, "Volume group %s has been removed", s.name)
		return false
	case s.mode != engine.ModeWrite:
		c.fail(syscall.EPERM, "Volume group %s was opened read-only", s.name)
		return false
	}
	return true
}

func (e *Engine) closeVG(id engine.VG, s *session) {
	e.dropHandles(s)
	delete(e.vgs, id)
}

// VGWrite implements engine.Engine.
func (e *Engine) VGWrite(ctx context.Context, v engine.VG) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	if !s.queued() && !s.isNew && !s.pendingRemove {
		if !e.refresh(ctx, c, s) {
			return -1
		}
		return 0
	}
	if !e.commit(ctx, c, s) {
		return -1
	}
	return 0
}

// VGClose implements engine.Engine. Queued changes are discarded.
func (e *Engine) VGClose(v engine.VG) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.vgs[v]
	if !ok {
		e.processErrno = syscall.EINVAL
		return -1
	}
	e.closeVG(v, s)
	return 0
}

// VGRemove implements engine.Engine. The removal happens on VGWrite.
func (e *Engine) VGRemove(v engine.VG) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	if n := len(s.lvs); n > 0 {
		c.fail(syscall.EBUSY, "Volume group \"%s\" still contains %d logical volume(s)", s.name, n)
		return -1
	}
	s.pendingRemove = true
	return 0
}

// VGExtend implements engine.Engine.
func (e *Engine) VGExtend(ctx context.Context, v engine.VG, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	if s.pvByName(device) != nil {
		c.fail(syscall.EEXIST, "Physical volume '%s' is already in volume group '%s'", device, s.name)
		return -1
	}
	pv, ok := e.pvReport(ctx, c, device)
	if !ok {
		return -1
	}
	if pv != nil && pv.VGName != "" && pv.VGName != s.name {
		c.fail(syscall.EEXIST, "Physical volume '%s' is already in volume group '%s'", device, pv.VGName)
		return -1
	}
	if pv == nil {
		pv = &lvmcmd.PhysicalVolume{Name: device}
	}
	pv.VGName = s.name
	s.pvs = append(s.pvs, *pv)
	if slices.Contains(s.reduce, device) {
		s.reduce = slices.DeleteFunc(s.reduce, func(d string) bool { return d == device })
	} else {
		s.extend = append(s.extend, device)
	}
	return 0
}

// VGReduce implements engine.Engine.
func (e *Engine) VGReduce(_ context.Context, v engine.VG, device string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	pv := s.pvByName(device)
	switch {
	case pv == nil:
		c.fail(syscall.ENOENT, "Physical Volume \"%s\" not found in Volume Group \"%s\".", device, s.name)
		return -1
	case pv.Size != pv.FreeSpace:
		c.fail(syscall.EBUSY, "Physical volume \"%s\" still in use", device)
		return -1
	case len(s.pvs) == 1:
		c.fail(syscall.EINVAL, "Can't remove final physical volume \"%s\" from volume group \"%s\"", device, s.name)
		return -1
	}
	s.pvs = slices.DeleteFunc(s.pvs, func(p lvmcmd.PhysicalVolume) bool { return p.Name == device })
	if h, ok := s.pvHandles[device]; ok {
		delete(e.pvs, h)
		delete(s.pvHandles, device)
	}
	if slices.Contains(s.extend, device) {
		s.extend = slices.DeleteFunc(s.extend, func(d string) bool { return d == device })
	} else {
		s.reduce = append(s.reduce, device)
	}
	return 0
}

// VGAddTag implements engine.Engine.
func (e *Engine) VGAddTag(v engine.VG, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	queueTag(&s.addTags, &s.delTags, tag)
	s.vg.Tags = withTag(s.vg.Tags, tag)
	return 0
}

// VGRemoveTag implements engine.Engine.
func (e *Engine) VGRemoveTag(v engine.VG, tag string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	if errno, msg := engine.ValidateTag(tag); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	queueTag(&s.delTags, &s.addTags, tag)
	s.vg.Tags = withoutTag(s.vg.Tags, tag)
	return 0
}

// VGGetTags implements engine.Engine.
func (e *Engine) VGGetTags(v engine.VG) *dmlist.List[string] {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.vgOf(v)
	if s == nil {
		return nil
	}
	return dmlist.FromSlice(lvmcmd.SplitTags(s.vg.Tags))
}

// VGSetExtentSize implements engine.Engine.
func (e *Engine) VGSetExtentSize(v engine.VG, size uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return -1
	}
	ext := uint64(size)
	if ext < minExtentSize || !convert.IsPowerOfTwo(ext) {
		c.fail(syscall.EINVAL, "Physical extent size must be a power of 2 of at least %s.", convert.FormatSize(minExtentSize))
		return -1
	}
	if len(s.lvs) > 0 {
		c.fail(syscall.EINVAL, "Cannot change extent size of volume group %s with logical volumes", s.name)
		return -1
	}
	s.extentSize = ext
	s.vg.ExtentSize = lvmcmd.Int64String(ext)
	return 0
}

// vgView returns a copy of the session's group report.
func (e *Engine) vgView(v engine.VG) (lvmcmd.VolumeGroup, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.vgOf(v)
	if s == nil {
		return lvmcmd.VolumeGroup{}, 0, false
	}
	return s.vg, len(s.pvs), true
}

// VGGetName implements engine.Engine.
func (e *Engine) VGGetName(v engine.VG) string {
	vg, _, _ := e.vgView(v)
	return vg.Name
}

// VGGetUUID implements engine.Engine.
func (e *Engine) VGGetUUID(v engine.VG) string {
	vg, _, _ := e.vgView(v)
	return vg.UUID
}

// VGGetSeqno implements engine.Engine.
func (e *Engine) VGGetSeqno(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.SeqNo)
}

// VGGetSize implements engine.Engine.
func (e *Engine) VGGetSize(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.Size)
}

// VGGetFreeSize implements engine.Engine.
func (e *Engine) VGGetFreeSize(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.Free)
}

// VGGetExtentSize implements engine.Engine.
func (e *Engine) VGGetExtentSize(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.ExtentSize)
}

// VGGetExtentCount implements engine.Engine.
func (e *Engine) VGGetExtentCount(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.ExtentCount)
}

// VGGetFreeExtentCount implements engine.Engine.
func (e *Engine) VGGetFreeExtentCount(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.ExtentFreeCount)
}

// VGGetPVCount implements engine.Engine. Queued extensions and reductions
// are counted.
func (e *Engine) VGGetPVCount(v engine.VG) uint64 {
	_, n, _ := e.vgView(v)
	return uint64(n)
}

// VGGetMaxPV implements engine.Engine.
func (e *Engine) VGGetMaxPV(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.MaxPhysicalVolumes)
}

// VGGetMaxLV implements engine.Engine.
func (e *Engine) VGGetMaxLV(v engine.VG) uint64 {
	vg, _, _ := e.vgView(v)
	return uint64(vg.MaxLogicalVolumes)
}

// VGIsClustered implements engine.Engine.
func (e *Engine) VGIsClustered(v engine.VG) bool {
	vg, _, _ := e.vgView(v)
	return bool(vg.Clustered)
}

// VGIsExported implements engine.Engine.
func (e *Engine) VGIsExported(v engine.VG) bool {
	vg, _, _ := e.vgView(v)
	return bool(vg.Exported)
}

// VGIsPartial implements engine.Engine.
func (e *Engine) VGIsPartial(v engine.VG) bool {
	vg, _, _ := e.vgView(v)
	return bool(vg.Partial)
}

// VGGetProperty implements engine.Engine.
func (e *Engine) VGGetProperty(v engine.VG, name string) engine.Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil {
		return engine.Property{}
	}
	return lookup(c, vgProperties(s), name)
}

// VGListLVs implements engine.Engine. Internal volumes are not listed.
func (e *Engine) VGListLVs(_ context.Context, v engine.VG) *dmlist.List[engine.LV] {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.vgOf(v)
	if s == nil {
		return nil
	}
	l := dmlist.New[engine.LV]()
	for _, lv := range s.lvs {
		l.Add(e.lvHandle(v, s, lv.UUID))
	}
	return l
}

// VGListPVs implements engine.Engine.
func (e *Engine) VGListPVs(_ context.Context, v engine.VG) *dmlist.List[engine.PV] {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, _ := e.vgOf(v)
	if s == nil {
		return nil
	}
	l := dmlist.New[engine.PV]()
	for _, pv := range s.pvs {
		l.Add(e.pvHandle(v, s, pv.Name))
	}
	return l
}

// lvHandle returns the stable handle for the volume with the given uuid.
func (e *Engine) lvHandle(v engine.VG, s *session, uuid string) engine.LV {
	if h, ok := s.lvHandles[uuid]; ok {
		return h
	}
	h := engine.LV(e.nextID())
	s.lvHandles[uuid] = h
	e.lvs[h] = &objRef{vg: v, key: uuid}
	return h
}

// pvHandle returns the stable handle for the physical volume on device.
func (e *Engine) pvHandle(v engine.VG, s *session, device string) engine.PV {
	if h, ok := s.pvHandles[device]; ok {
		return h
	}
	h := engine.PV(e.nextID())
	s.pvHandles[device] = h
	e.pvs[h] = &objRef{vg: v, key: device}
	return h
}

// LVFromName implements engine.Engine.
func (e *Engine) LVFromName(v engine.VG, name string) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil {
		return 0
	}
	lv := s.lvByName(name)
	if lv == nil {
		c.fail(syscall.ENOENT, "LV name %s not found in VG %s", name, s.name)
		return 0
	}
	return e.lvHandle(v, s, lv.UUID)
}

// LVFromUUID implements engine.Engine.
func (e *Engine) LVFromUUID(v engine.VG, uuid string) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil {
		return 0
	}
	want, err := engine.NormalizeID(uuid)
	if err != nil {
		c.fail(syscall.EINVAL, "Invalid UUID format: %v", err)
		return 0
	}
	for _, lv := range s.lvs {
		if id, err := engine.NormalizeID(lv.UUID); err == nil && id == want {
			return e.lvHandle(v, s, lv.UUID)
		}
	}
	c.fail(syscall.ENOENT, "LV with UUID %s not found in VG %s", uuid, s.name)
	return 0
}

// PVFromName implements engine.Engine.
func (e *Engine) PVFromName(v engine.VG, name string) engine.PV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil {
		return 0
	}
	if s.pvByName(name) == nil {
		c.fail(syscall.ENOENT, "PV name %s not found in VG %s", name, s.name)
		return 0
	}
	return e.pvHandle(v, s, name)
}

// PVFromUUID implements engine.Engine.
func (e *Engine) PVFromUUID(v engine.VG, uuid string) engine.PV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil {
		return 0
	}
	want, err := engine.NormalizeID(uuid)
	if err != nil {
		c.fail(syscall.EINVAL, "Invalid UUID format: %v", err)
		return 0
	}
	for _, pv := range s.pvs {
		if id, err := engine.NormalizeID(pv.UUID); err == nil && id == want {
			return e.pvHandle(v, s, pv.Name)
		}
	}
	c.fail(syscall.ENOENT, "PV with UUID %s not found in VG %s", uuid, s.name)
	return 0
}

// LVNameValidate implements engine.Engine.
func (e *Engine) LVNameValidate(v engine.VG, name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.validNewLV(s, name) {
		return -1
	}
	return 0
}

func (c *lvmContext) validNewLV(s *session, name string) bool {
	if errno, msg := engine.ValidateLVName(name); errno != 0 {
		c.fail(errno, "%s", msg)
		return false
	}
	if s.lvByName(name) != nil {
		c.fail(syscall.EEXIST, "Logical volume \"%s\" already exists in volume group \"%s\"", name, s.name)
		return false
	}
	return true
}

// createLV runs lvcreate for a new volume called name in s and returns its
// handle.
func (e *Engine) createLV(ctx context.Context, v engine.VG, s *session, c *lvmContext, name string, opts lvmcmd.CreateLVOptions) engine.LV {
	if s.pendingRemove {
		c.fail(syscall.EINVAL, "Volume group %s is being removed", s.name)
		return 0
	}
	if !c.validNewLV(s, name) || !e.commit(ctx, c, s) {
		return 0
	}
	opts.Name = name
	if opts.VGName == "" {
		opts.VGName = s.name
	}
	if err := c.runner.CreateLogicalVolume(ctx, opts); err != nil {
		c.failCmd(err)
		e.resync(ctx, c, s)
		return 0
	}
	if !e.refresh(ctx, c, s) {
		return 0
	}
	lv := s.lvByName(name)
	if lv == nil {
		c.fail(syscall.EIO, "Logical volume %s/%s missing after creation", s.name, name)
		return 0
	}
	return e.lvHandle(v, s, lv.UUID)
}

// VGCreateLVLinear implements engine.Engine.
func (e *Engine) VGCreateLVLinear(ctx context.Context, v engine.VG, name string, size uint64) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return 0
	}
	if size == 0 {
		c.fail(syscall.EINVAL, "Unable to create LV %s with zero extents", name)
		return 0
	}
	return e.createLV(ctx, v, s, c, name, lvmcmd.CreateLVOptions{
		Type:     "linear",
		Size:     lvmcmd.Bytes(size),
		Activate: lvmcmd.Yes,
	})
}

// VGCreateThinPool implements engine.Engine.
func (e *Engine) VGCreateThinPool(ctx context.Context, v engine.VG, p engine.ThinPoolParams) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return 0
	}
	discards := p.Discard.String()
	switch {
	case p.Size == 0:
		c.fail(syscall.EINVAL, "Unable to create thin pool %s with zero extents", p.Name)
		return 0
	case discards == "unknown":
		c.fail(syscall.EINVAL, "Invalid discards policy %d", int(p.Discard))
		return 0
	}
	opts := lvmcmd.CreateLVOptions{
		Type:     "thin-pool",
		Size:     lvmcmd.Bytes(p.Size),
		Discards: discards,
		Activate: lvmcmd.Yes,
	}
	if p.ChunkSize != 0 {
		opts.ChunkSize = lvmcmd.Bytes(p.ChunkSize)
	}
	if p.MetadataSize != 0 {
		opts.PoolMetadataSize = lvmcmd.Bytes(p.MetadataSize)
	}
	return e.createLV(ctx, v, s, c, p.Name, opts)
}

// VGCreateThin implements engine.Engine.
func (e *Engine) VGCreateThin(ctx context.Context, v engine.VG, p engine.ThinParams) engine.LV {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, c := e.vgOf(v)
	if s == nil || !c.writable(s) {
		return 0
	}
	pool := s.lvByName(p.Pool)
	switch {
	case pool == nil:
		c.fail(syscall.ENOENT, "Thin pool %s not found in volume group %s", p.Pool, s.name)
		return 0
	case pool.SegmentType != "thin-pool":
		c.fail(syscall.EINVAL, "Logical volume %s is not a thin pool", p.Pool)
		return 0
	case p.Size == 0:
		c.fail(syscall.EINVAL, "Unable to create thin volume %s with zero size", p.Name)
		return 0
	}
	return e.createLV(ctx, v, s, c, p.Name, lvmcmd.CreateLVOptions{
		Type:        "thin",
		VirtualSize: lvmcmd.Bytes(p.Size),
		ThinPool:    p.Pool,
		Activate:    lvmcmd.Yes,
	})
}
