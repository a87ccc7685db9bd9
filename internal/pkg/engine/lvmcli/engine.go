// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package lvmcli implements engine.Engine with the host's lvm2 command line
// tools.
//
// Opening a volume group reads the pvs, vgs and lvs reports into a session
// that serves every getter. Volume-group-level changes (extend, reduce, tags,
// extent size, removal) are queued in the session and reach disk on VGWrite,
// as with the native library. Logical volume changes run at once and reload
// the session. Commands are serialized per engine.
package lvmcli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
	"lvm-access/internal/pkg/lvmcmd"
	"lvm-access/internal/pkg/sys"
)

// Engine drives lvm(8).
type Engine struct {
	runnerOpts   []lvmcmd.Option
	devices      DeviceChecker
	supportCheck bool

	mu           sync.Mutex
	next         uint64
	processErrno syscall.Errno

	contexts map[engine.Handle]*lvmContext
	vgs      map[engine.VG]*session
	lvs      map[engine.LV]*objRef
	pvs      map[engine.PV]*objRef
	params   map[engine.PVParams]*pvParams
}

var _ engine.Engine = &Engine{}

// Option configures an Engine.
type Option func(*Engine)

// WithRunnerOptions configures the command runner of every context.
func WithRunnerOptions(opts ...lvmcmd.Option) Option {
	return func(e *Engine) {
		e.runnerOpts = append(e.runnerOpts, opts...)
	}
}

// WithDeviceChecker sets the check run before a device is initialized.
func WithDeviceChecker(d DeviceChecker) Option {
	return func(e *Engine) {
		e.devices = d
	}
}

// WithSupportCheck makes Init verify the installed lvm2 tools.
func WithSupportCheck() Option {
	return func(e *Engine) {
		e.supportCheck = true
	}
}

// New returns an engine using /sbin/lvm unless configured otherwise.
func New(opts ...Option) *Engine {
	e := &Engine{
		contexts: map[engine.Handle]*lvmContext{},
		vgs:      map[engine.VG]*session{},
		lvs:      map[engine.LV]*objRef{},
		pvs:      map[engine.PV]*objRef{},
		params:   map[engine.PVParams]*pvParams{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.devices == nil {
		e.devices = sys.New(nil)
	}
	return e
}

type lvmContext struct {
	runner *lvmcmd.Runner
	errno  syscall.Errno
	errmsg string
}

type objRef struct {
	vg  engine.VG
	key string
}

type pvParams struct {
	ctx engine.Handle
	*engine.PVCreateParams
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

// failCmd records a command failure in the error slot.
func (c *lvmContext) failCmd(err error) {
	var ce *lvmcmd.CommandError
	if errors.As(err, &ce) {
		c.fail(lvmcmd.Errno(err), "%s", ce.Message())
		return
	}
	c.fail(lvmcmd.Errno(err), "%s", err.Error())
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
func (e *Engine) Init(ctx context.Context, systemDir string) engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.ContainsRune(systemDir, 0) {
		e.processErrno = syscall.EINVAL
		return 0
	}
	opts := append([]lvmcmd.Option{}, e.runnerOpts...)
	if systemDir != "" {
		opts = append(opts, lvmcmd.WithSystemDir(systemDir))
	}
	r := lvmcmd.New(opts...)
	if e.supportCheck {
		if err := r.IsSupported(ctx); err != nil {
			e.processErrno = syscall.ENOTSUP
			return 0
		}
	}
	h := engine.Handle(e.nextID())
	e.contexts[h] = &lvmContext{runner: r}
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
	for id, s := range e.vgs {
		if s.ctx == h {
			e.closeVG(id, s)
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
func (e *Engine) Scan(ctx context.Context, h engine.Handle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return -1
	}
	if err := c.runner.Scan(ctx); err != nil {
		c.failCmd(err)
		return -1
	}
	return 0
}

func (e *Engine) listVGs(ctx context.Context, h engine.Handle) ([]lvmcmd.VolumeGroup, bool) {
	c := e.context(h)
	if c == nil {
		return nil, false
	}
	vgs, err := c.runner.ListVolumeGroups(ctx, nil)
	if err != nil {
		c.failCmd(err)
		return nil, false
	}
	return vgs, true
}

// ListVGNames implements engine.Engine.
func (e *Engine) ListVGNames(ctx context.Context, h engine.Handle) *dmlist.List[string] {
	e.mu.Lock()
	defer e.mu.Unlock()
	vgs, ok := e.listVGs(ctx, h)
	if !ok {
		return nil
	}
	l := dmlist.New[string]()
	for _, vg := range vgs {
		l.Add(vg.Name)
	}
	return l
}

// ListVGUUIDs implements engine.Engine. Identifiers are returned without
// separators.
func (e *Engine) ListVGUUIDs(ctx context.Context, h engine.Handle) *dmlist.List[string] {
	e.mu.Lock()
	defer e.mu.Unlock()
	vgs, ok := e.listVGs(ctx, h)
	if !ok {
		return nil
	}
	l := dmlist.New[string]()
	for _, vg := range vgs {
		id, err := engine.NormalizeID(vg.UUID)
		if err != nil {
			id = vg.UUID
		}
		l.Add(id)
	}
	return l
}

// VGOpen implements engine.Engine.
func (e *Engine) VGOpen(ctx context.Context, h engine.Handle, name, mode string) engine.VG {
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
	s := newSession(h, name, mode)
	if !e.refresh(ctx, c, s) {
		return 0
	}
	id := engine.VG(e.nextID())
	e.vgs[id] = s
	return id
}

// vgExists reports whether lvm knows name. A failure other than "not found"
// is recorded in c.
func (e *Engine) vgExists(ctx context.Context, c *lvmContext, name string) (exists, ok bool) {
	vgs, err := c.runner.ListVolumeGroups(ctx, &lvmcmd.ListVGOptions{Names: []string{name}})
	switch {
	case err == nil:
		return len(vgs) > 0, true
	case lvmcmd.Errno(err) == syscall.ENOENT:
		return false, true
	default:
		c.failCmd(err)
		return false, false
	}
}

// VGCreate implements engine.Engine.
func (e *Engine) VGCreate(ctx context.Context, h engine.Handle, name string) engine.VG {
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
	exists, ok := e.vgExists(ctx, c, name)
	if !ok {
		return 0
	}
	if exists {
		c.fail(syscall.EEXIST, "A volume group called %s already exists.", name)
		return 0
	}
	s := newSession(h, name, engine.ModeWrite)
	s.isNew = true
	s.vg = lvmcmd.VolumeGroup{Name: name, ExtentSize: lvmcmd.Int64String(DefaultExtentSize)}
	id := engine.VG(e.nextID())
	e.vgs[id] = s
	return id
}

func (e *Engine) pvReport(ctx context.Context, c *lvmContext, device string) (*lvmcmd.PhysicalVolume, bool) {
	pvs, err := c.runner.ListPhysicalVolumes(ctx, &lvmcmd.ListPVOptions{Names: []string{device}})
	switch {
	case err != nil && lvmcmd.Errno(err) == syscall.ENOENT:
		return nil, true
	case err != nil:
		c.failCmd(err)
		return nil, false
	case len(pvs) == 0:
		return nil, true
	}
	return &pvs[0], true
}

// VGNameFromDevice implements engine.Engine.
func (e *Engine) VGNameFromDevice(ctx context.Context, h engine.Handle, device string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return "", false
	}
	pv, ok := e.pvReport(ctx, c, device)
	if !ok || pv == nil || pv.VGName == "" {
		return "", false
	}
	return pv.VGName, true
}

// VGNameFromPVID implements engine.Engine.
func (e *Engine) VGNameFromPVID(ctx context.Context, h engine.Handle, pvid string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.context(h)
	if c == nil {
		return "", false
	}
	want, err := engine.NormalizeID(pvid)
	if err != nil {
		return "", false
	}
	pvs, err := c.runner.ListPhysicalVolumes(ctx, nil)
	if err != nil {
		c.failCmd(err)
		return "", false
	}
	for _, pv := range pvs {
		if id, err := engine.NormalizeID(pv.UUID); err == nil && id == want && pv.VGName != "" {
			return pv.VGName, true
		}
	}
	return "", false
}

// VGNameValidate implements engine.Engine.
func (e *Engine) VGNameValidate(ctx context.Context, h engine.Handle, name string) int {
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
	exists, ok := e.vgExists(ctx, c, name)
	if !ok {
		return -1
	}
	if exists {
		c.fail(syscall.EEXIST, "New volume group name \"%s\" is not unique.", name)
		return -1
	}
	return 0
}
