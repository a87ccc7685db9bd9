// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package memory implements engine.Engine in memory.
//
// On-disk state lives in a Store that several engines may share, which lets
// tests model separate processes racing on the same volume groups. Each
// engine keeps its own contexts and handles, copies metadata into a volume
// group handle on open and publishes it back to the store on commit, bumping
// the sequence number. Sizes are quantized to whole extents (4 MiB by
// default) as the real engine does.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
)

// Engine is an in-memory volume-management engine.
type Engine struct {
	store *Store

	mu           sync.Mutex
	next         uint64
	processErrno syscall.Errno
	initErrno    syscall.Errno

	contexts map[engine.Handle]*lvmContext
	vgs      map[engine.VG]*vgHandle
	lvs      map[engine.LV]*objRef
	pvs      map[engine.PV]*objRef
	params   map[engine.PVParams]*pvParams
}

var _ engine.Engine = &Engine{}

// Option configures an Engine.
type Option func(*Engine)

// WithInitFailure makes Init fail with errno, as when the engine cannot
// allocate a context.
func WithInitFailure(errno syscall.Errno) Option {
	return func(e *Engine) {
		e.initErrno = errno
	}
}

// New returns an engine attached to store. A nil store gets a private one.
func New(store *Store, opts ...Option) *Engine {
	if store == nil {
		store = NewStore()
	}
	e := &Engine{
		store:    store,
		contexts: map[engine.Handle]*lvmContext{},
		vgs:      map[engine.VG]*vgHandle{},
		lvs:      map[engine.LV]*objRef{},
		pvs:      map[engine.PV]*objRef{},
		params:   map[engine.PVParams]*pvParams{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine is attached to.
func (e *Engine) Store() *Store {
	return e.store
}

// OpenHandles returns the number of live contexts and volume group handles.
func (e *Engine) OpenHandles() (contexts, vgs int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.contexts), len(e.vgs)
}

type lvmContext struct {
	systemDir string
	errno     syscall.Errno
	errmsg    string
}

type vgHandle struct {
	ctx           engine.Handle
	mode          string
	meta          *vgMeta
	isNew         bool
	pendingRemove bool
	removed       bool
	lvHandles     map[string]engine.LV
	pvHandles     map[string]engine.PV
}

// objRef points at an object inside a volume group handle by UUID, so it
// survives metadata being replaced on commit or rollback.
type objRef struct {
	vg   engine.VG
	uuid string
}

func (e *Engine) nextID() uint64 {
	e.next++
	return e.next
}

func (c *lvmContext) reset() {
	c.errno = 0
	c.errmsg = ""
}

func (c *lvmContext) fail(errno syscall.Errno, format string, args ...any) {
	c.errno = errno
	c.errmsg = fmt.Sprintf(format, args...)
}

// context returns the context for h and clears its error slot.
func (e *Engine) context(h engine.Handle) *lvmContext {
	c, ok := e.contexts[h]
	if !ok {
		e.processErrno = syscall.EINVAL
		return nil
	}
	c.reset()
	return c
}

// Init implements engine.Engine.
func (e *Engine) Init(_ context.Context, systemDir string) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initErrno != 0 {
		e.processErrno = e.initErrno
		return 0
	}
	if strings.ContainsRune(systemDir, 0) {
		e.processErrno = syscall.EINVAL
		return 0
	}
	h := engine.Handle(e.nextID())
	e.contexts[h] = &lvmContext{systemDir: systemDir}
	e.processErrno = 0
	return h
}

// Quit implements engine.Engine.
func (e *Engine) Quit(h engine.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.contexts[h]; !ok {
		return
	}
	for id, vh := range e.vgs {
		if vh.ctx == h {
			e.closeVG(id, vh)
		}
	}
	for id, p := range e.params {
		if p.ctx == h {
			delete(e.params, id)
		}
	}
	delete(e.contexts, h)
}

// Errno implements engine.Engine.
func (e *Engine) Errno(h engine.Handle) syscall.Errno {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.contexts[h]; ok {
		return c.errno
	}
	return syscall.EINVAL
}

// Errmsg implements engine.Engine.
func (e *Engine) Errmsg(h engine.Handle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.contexts[h]; ok {
		return c.errmsg
	}
	return "invalid context handle"
}

// ProcessErrno implements engine.Engine.
func (e *Engine) ProcessErrno() syscall.Errno {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processErrno
}

// Scan implements engine.Engine.
func (e *Engine) Scan(_ context.Context, h engine.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.context(h) == nil {
		return -1
	}
	e.store.mu.Lock()
	e.store.scans++
	e.store.mu.Unlock()
	return 0
}

// ListVGNames implements engine.Engine.
func (e *Engine) ListVGNames(_ context.Context, h engine.Handle) *dmlist.List[string] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.context(h) == nil {
		return nil
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return dmlist.FromSlice(e.store.vgNames())
}

// ListVGUUIDs implements engine.Engine.
func (e *Engine) ListVGUUIDs(_ context.Context, h engine.Handle) *dmlist.List[string] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.context(h) == nil {
		return nil
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	l := dmlist.New[string]()
	for _, name := range e.store.vgNames() {
		l.Add(e.store.vgs[name].uuid)
	}
	return l
}

// VGOpen implements engine.Engine.
func (e *Engine) VGOpen(_ context.Context, h engine.Handle, name, mode string) engine.VG {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return 0
	}
	if mode != engine.ModeRead && mode != engine.ModeWrite {
		c.fail(syscall.EINVAL, "Invalid access mode %q for volume group %s", mode, name)
		return 0
	}

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.vgs[name]
	if !ok {
		c.fail(syscall.ENOENT, "Volume group \"%s\" not found", name)
		return 0
	}
	vh := &vgHandle{
		ctx:       h,
		mode:      mode,
		meta:      m.clone(),
		lvHandles: map[string]engine.LV{},
		pvHandles: map[string]engine.PV{},
	}
	if mode == engine.ModeWrite {
		if s.locks[name] != nil {
			c.fail(syscall.EAGAIN, "Can't get lock for %s", name)
			return 0
		}
		s.locks[name] = vh
	}
	id := engine.VG(e.nextID())
	e.vgs[id] = vh
	return id
}

// VGCreate implements engine.Engine.
func (e *Engine) VGCreate(_ context.Context, h engine.Handle, name string) engine.VG {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return 0
	}
	if errno, msg := engine.ValidateVGName(name); errno != 0 {
		c.fail(errno, "%s", msg)
		return 0
	}

	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vgs[name]; ok {
		c.fail(syscall.EEXIST, "A volume group called %s already exists.", name)
		return 0
	}
	if s.locks[name] != nil {
		c.fail(syscall.EAGAIN, "Can't get lock for %s", name)
		return 0
	}
	vh := &vgHandle{
		ctx:  h,
		mode: engine.ModeWrite,
		meta: &vgMeta{
			name:       name,
			uuid:       newID(),
			extentSize: DefaultExtentSize,
		},
		isNew:     true,
		lvHandles: map[string]engine.LV{},
		pvHandles: map[string]engine.PV{},
	}
	s.locks[name] = vh
	id := engine.VG(e.nextID())
	e.vgs[id] = vh
	return id
}

// VGNameFromDevice implements engine.Engine.
func (e *Engine) VGNameFromDevice(_ context.Context, h engine.Handle, device string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.context(h) == nil {
		return "", false
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if l, ok := e.store.labels[device]; ok && l.vg != "" {
		return l.vg, true
	}
	return "", false
}

// VGNameFromPVID implements engine.Engine.
func (e *Engine) VGNameFromPVID(_ context.Context, h engine.Handle, pvid string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.context(h) == nil {
		return "", false
	}
	id, err := engine.NormalizeID(pvid)
	if err != nil {
		return "", false
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, l := range e.store.labels {
		if l.uuid == id && l.vg != "" {
			return l.vg, true
		}
	}
	return "", false
}

// VGNameValidate implements engine.Engine.
func (e *Engine) VGNameValidate(_ context.Context, h engine.Handle, name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return -1
	}
	if errno, msg := engine.ValidateVGName(name); errno != 0 {
		c.fail(errno, "%s", msg)
		return -1
	}
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if _, ok := e.store.vgs[name]; ok {
		c.fail(syscall.EEXIST, "New volume group name \"%s\" is not unique.", name)
		return -1
	}
	return 0
}
