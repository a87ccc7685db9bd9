// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package memory

import (
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine"
)

const (
	// DefaultExtentSize is the extent size of newly created volume groups.
	DefaultExtentSize = 4 * convert.MiB

	// peStart is the space reserved for the label and metadata area at the
	// start of every physical volume.
	peStart = convert.MiB

	minPVSize            = 2 * convert.MiB
	minExtentSize        = convert.KiB
	defaultMetadataSize  = 1020 * convert.KiB
	defaultChunkSize     = 64 * convert.KiB
	maxChunkSize         = convert.GiB
	minPoolMetadataSize  = 2 * convert.MiB
	maxPoolMetadataSize  = 16 * convert.GiB
	poolMetadataPerChunk = 64
)

// Store is the simulated on-disk state: block devices, physical volume
// labels, committed volume group metadata and volume group locks. Engines
// attached to the same store behave like separate processes on one host.
type Store struct {
	mu      sync.Mutex
	devices map[string]uint64
	labels  map[string]*label
	vgs     map[string]*vgMeta
	locks   map[string]*vgHandle
	active  map[string]bool
	scans   int
}

// label is the physical volume header written by pvcreate.
type label struct {
	device        string
	uuid          string
	size          uint64
	mdaCount      uint64
	mdaSize       uint64
	dataAlignment uint64
	vg            string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		devices: map[string]uint64{},
		labels:  map[string]*label{},
		vgs:     map[string]*vgMeta{},
		locks:   map[string]*vgHandle{},
		active:  map[string]bool{},
	}
}

// AddDevice makes a block device of size bytes visible to every engine.
func (s *Store) AddDevice(path string, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[path] = size
}

// RemoveDevice detaches a block device. Volume groups using it become
// partial.
func (s *Store) RemoveDevice(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, path)
}

// Devices returns the visible device paths in sorted order.
func (s *Store) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.devices))
	for d := range s.devices {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DeviceSize returns the size of a visible device.
func (s *Store) DeviceSize(path string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.devices[path]
	return size, ok
}

// HasLabel reports whether the device carries a physical volume label.
func (s *Store) HasLabel(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.labels[path]
	return ok
}

// Scans returns how many times an engine rescanned the store.
func (s *Store) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// Touch bumps the committed sequence number of a volume group as another
// writer would. It reports false if the group does not exist.
func (s *Store) Touch(vgName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.vgs[vgName]
	if !ok {
		return false
	}
	m.seqno++
	return true
}

// vgNames returns committed volume group names in sorted order.
func (s *Store) vgNames() []string {
	names := make([]string, 0, len(s.vgs))
	for n := range s.vgs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Store) isActive(vg, lv string) bool {
	return s.active[vg+"/"+lv]
}

func (s *Store) setActive(vg, lv string, active bool) {
	if active {
		s.active[vg+"/"+lv] = true
		return
	}
	delete(s.active, vg+"/"+lv)
}

func newID() string {
	var entropy [engine.IDLen]byte
	a, b := uuid.New(), uuid.New()
	copy(entropy[:16], a[:])
	copy(entropy[16:], b[:])
	return engine.NewID(entropy)
}

// segment is a run of extents allocated on one physical volume.
type segment struct {
	pv      string
	extents uint64
}

type pvMeta struct {
	device   string
	uuid     string
	size     uint64
	devSize  uint64
	peCount  uint64
	mdaCount uint64
	mdaSize  uint64
}

type lvMeta struct {
	name         string
	uuid         string
	segtype      string
	size         uint64
	segments     []segment
	origin       string
	pool         string
	chunkSize    uint64
	metadataSize uint64
	discards     string
	tags         []string
}

const (
	segLinear   = "linear"
	segThinPool = "thin-pool"
	segThin     = "thin"
	segSnapshot = "snapshot"
)

type vgMeta struct {
	name       string
	uuid       string
	seqno      uint64
	extentSize uint64
	maxLV      uint64
	maxPV      uint64
	pvs        []*pvMeta
	lvs        []*lvMeta
	tags       []string
}

func (m *vgMeta) clone() *vgMeta {
	c := *m
	c.tags = slices.Clone(m.tags)
	c.pvs = make([]*pvMeta, len(m.pvs))
	for i, pv := range m.pvs {
		p := *pv
		c.pvs[i] = &p
	}
	c.lvs = make([]*lvMeta, len(m.lvs))
	for i, lv := range m.lvs {
		l := *lv
		l.segments = slices.Clone(lv.segments)
		l.tags = slices.Clone(lv.tags)
		c.lvs[i] = &l
	}
	return &c
}

func (m *vgMeta) extentCount() uint64 {
	var n uint64
	for _, pv := range m.pvs {
		n += pv.peCount
	}
	return n
}

func (m *vgMeta) usedOn(pvUUID string) uint64 {
	var n uint64
	for _, lv := range m.lvs {
		for _, s := range lv.segments {
			if s.pv == pvUUID {
				n += s.extents
			}
		}
	}
	return n
}

func (m *vgMeta) freeExtents() uint64 {
	var n uint64
	for _, pv := range m.pvs {
		n += pv.peCount - m.usedOn(pv.uuid)
	}
	return n
}

// allocate takes n extents from the physical volumes in order.
func (m *vgMeta) allocate(n uint64) ([]segment, bool) {
	if n > m.freeExtents() {
		return nil, false
	}
	var segs []segment
	for _, pv := range m.pvs {
		if n == 0 {
			break
		}
		free := pv.peCount - m.usedOn(pv.uuid)
		if free == 0 {
			continue
		}
		take := min(free, n)
		segs = append(segs, segment{pv: pv.uuid, extents: take})
		n -= take
	}
	return segs, true
}

func (m *vgMeta) lvByName(name string) *lvMeta {
	for _, lv := range m.lvs {
		if lv.name == name {
			return lv
		}
	}
	return nil
}

func (m *vgMeta) lvByUUID(id string) *lvMeta {
	for _, lv := range m.lvs {
		if lv.uuid == id {
			return lv
		}
	}
	return nil
}

func (m *vgMeta) pvByDevice(device string) *pvMeta {
	for _, pv := range m.pvs {
		if pv.device == device {
			return pv
		}
	}
	return nil
}

func (m *vgMeta) pvByUUID(id string) *pvMeta {
	for _, pv := range m.pvs {
		if pv.uuid == id {
			return pv
		}
	}
	return nil
}

// dependents returns the volumes removed together with lv: snapshots of an
// origin and thin volumes of a pool.
func (m *vgMeta) dependents(lv *lvMeta) []*lvMeta {
	var deps []*lvMeta
	for _, other := range m.lvs {
		if other == lv {
			continue
		}
		if other.origin == lv.name || (lv.segtype == segThinPool && other.pool == lv.name) {
			deps = append(deps, other)
		}
	}
	return deps
}

func (m *vgMeta) removeLV(lv *lvMeta) {
	m.lvs = slices.DeleteFunc(m.lvs, func(l *lvMeta) bool { return l == lv })
}

func (m *vgMeta) lvExtents(lv *lvMeta) uint64 {
	var n uint64
	for _, s := range lv.segments {
		n += s.extents
	}
	return n
}

// shrink frees extents from the end of lv's allocation.
func (m *vgMeta) shrink(lv *lvMeta, n uint64) {
	for n > 0 && len(lv.segments) > 0 {
		last := &lv.segments[len(lv.segments)-1]
		if last.extents > n {
			last.extents -= n
			return
		}
		n -= last.extents
		lv.segments = lv.segments[:len(lv.segments)-1]
	}
}
