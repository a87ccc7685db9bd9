// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package lvm provides safe access to the volume-management engine.
//
// Handles form a strict hierarchy: a Client owns one engine context, a
// VolumeGroup session is opened from a Client in ReadOnly or ReadWrite mode,
// and PhysicalVolume and LogicalVolume handles are obtained from a session.
// Closing a parent invalidates its children; using an invalidated handle
// returns ErrReleased instead of reaching the engine. Mutations on a ReadOnly
// session fail with ErrPermission without reaching the engine.
//
// The engine reports failures through an error slot on the context. The
// Client serializes every engine call with the read of that slot, so one
// Client may be shared between goroutines.
//
// Volume groups carry a sequence number that the engine increments on every
// commit. Revision, OpenVolumeGroupAt and ReopenForWrite use it to detect
// changes made by other processes between a read-only inspection and a
// write.
package lvm

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
	"lvm-access/internal/pkg/engine/lvmcli"
	"lvm-access/internal/pkg/lvmcmd"
	"lvm-access/internal/pkg/telemetry"
)

const tracerName = "lvm-access/pkg/lvm"

// Client owns an engine context.
type Client struct {
	eng       engine.Engine
	handle    engine.Handle
	systemDir string
	tracer    trace.Tracer

	// mu serializes engine calls with the read of the context's error slot.
	mu    sync.Mutex
	lease *lease
}

// Option configures Open.
type Option func(*options)

type options struct {
	engine    engine.Engine
	systemDir string
	lvmPath   string
	tp        trace.TracerProvider
}

// WithSystemDir reads the engine configuration from dir instead of the
// default location.
func WithSystemDir(dir string) Option {
	return func(o *options) {
		o.systemDir = dir
	}
}

// WithEngine sets the engine implementation. The default drives the host's
// lvm2 tools.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithLVMPath sets the lvm executable used by the default engine.
func WithLVMPath(path string) Option {
	return func(o *options) {
		o.lvmPath = path
	}
}

// WithTracerProvider sets the tracer provider for the client and the
// default engine.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}

func (o *options) defaultEngine() engine.Engine {
	runnerOpts := []lvmcmd.Option{lvmcmd.WithTracerProvider(o.tp)}
	if o.lvmPath != "" {
		runnerOpts = append(runnerOpts, lvmcmd.WithLVM(o.lvmPath))
	}
	return lvmcli.New(lvmcli.WithSupportCheck(), lvmcli.WithRunnerOptions(runnerOpts...))
}

// Open acquires an engine context. It fails with ErrAllocation, wrapping the
// engine's process error code, when no context can be allocated.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	o := options{tp: telemetry.NewNoopTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateNUL("system directory", o.systemDir); err != nil {
		return nil, err
	}
	if o.engine == nil {
		o.engine = o.defaultEngine()
	}

	tracer := o.tp.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "lvm/Open", trace.WithAttributes(
		attribute.String("lvm.system_dir", o.systemDir),
	))
	defer span.End()

	h := o.engine.Init(ctx, o.systemDir)
	if h == 0 {
		code := o.engine.ProcessErrno()
		if code == 0 {
			code = syscall.ENOMEM
		}
		err := fmt.Errorf("%w: %w", ErrAllocation, code)
		if code == syscall.ENOTSUP {
			err = fmt.Errorf("%w: %w: %w", ErrAllocation, ErrUnsupported, code)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine init failed")
		return nil, err
	}

	c := &Client{
		eng:       o.engine,
		handle:    h,
		systemDir: o.systemDir,
		tracer:    tracer,
		lease:     newLease(),
	}
	runtime.SetFinalizer(c, (*Client).Close)
	log.FromContext(ctx).V(1).Info("opened engine context", "systemDir", o.systemDir)
	return c, nil
}

// Close releases the engine context and invalidates every handle derived
// from it. Calling Close again is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lease.revoke() {
		return nil
	}
	runtime.SetFinalizer(c, nil)
	c.eng.Quit(c.handle)
	return nil
}

// Err returns ErrReleased once the client is closed.
func (c *Client) Err() error {
	return c.lease.check()
}

// lastError reads the context's error slot. Callers hold c.mu.
func (c *Client) lastError(op string) *EngineError {
	code := c.eng.Errno(c.handle)
	msg := c.eng.Errmsg(c.handle)
	if code == 0 {
		// The engine rejected a handle before touching the context.
		code = c.eng.ProcessErrno()
		msg = ""
	}
	if code == 0 {
		code = syscall.EIO
	}
	return &EngineError{Op: op, Code: code, Message: msg}
}

// do runs fn while l is alive. fn reports whether the engine accepted the
// call; on failure the error slot is read before the lock is released.
func (c *Client) do(ctx context.Context, op string, l *lease, fn func(eng engine.Engine, h engine.Handle) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := l.check(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	ok := fn(c.eng, c.handle)
	CallDuration.Observe(op, time.Since(start))
	if ok {
		return nil
	}

	err := c.lastError(op)
	CallErrors.Increment(op, err)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Message)
	log.FromContext(ctx).V(2).Info("engine call failed", "op", op, "errno", int(err.Code), "message", err.Message)
	return err
}

// read runs fn while l is alive and reports whether it ran.
func (c *Client) read(l *lease, fn func(eng engine.Engine)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !l.alive() {
		return false
	}
	fn(c.eng)
	return true
}

func get[T any](c *Client, l *lease, fn func(eng engine.Engine) T) T {
	var v T
	c.read(l, func(eng engine.Engine) { v = fn(eng) })
	return v
}

// Scan rescans devices for volume management metadata.
func (c *Client) Scan(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "lvm/Scan")
	defer span.End()

	return c.do(ctx, "Scan", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		return eng.Scan(ctx, h) == 0
	})
}

// ListVolumeGroupNames returns the names of all volume groups.
func (c *Client) ListVolumeGroupNames(ctx context.Context) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "lvm/ListVolumeGroupNames")
	defer span.End()

	names, err := collect(ctx, c, c.lease, "ListVolumeGroupNames", func(eng engine.Engine) *dmlist.List[string] {
		return eng.ListVGNames(ctx, c.handle)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("vg.count", len(names)))
	return names, nil
}

// ListVolumeGroupUUIDs returns the identifiers of all volume groups. A
// malformed identifier fails with a ParseError.
func (c *Client) ListVolumeGroupUUIDs(ctx context.Context) ([]UUID, error) {
	ctx, span := c.tracer.Start(ctx, "lvm/ListVolumeGroupUUIDs")
	defer span.End()

	raw, err := collect(ctx, c, c.lease, "ListVolumeGroupUUIDs", func(eng engine.Engine) *dmlist.List[string] {
		return eng.ListVGUUIDs(ctx, c.handle)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]UUID, 0, len(raw))
	for _, s := range raw {
		id, err := ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("ListVolumeGroupUUIDs: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OpenVolumeGroup opens the named volume group. A ReadWrite session holds
// the engine's write lock until it is closed.
func (c *Client) OpenVolumeGroup(ctx context.Context, name string, mode Mode) (*VolumeGroup, error) {
	ctx, span := c.tracer.Start(ctx, "lvm/OpenVolumeGroup", trace.WithAttributes(
		attribute.String("vg.name", name),
		attribute.String("vg.mode", mode.String()),
	))
	defer span.End()

	if err := validateArg("volume group name", name); err != nil {
		return nil, err
	}
	engineMode, err := mode.engineMode()
	if err != nil {
		return nil, err
	}
	var handle engine.VG
	err = c.do(ctx, "OpenVolumeGroup", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		handle = eng.VGOpen(ctx, h, name, engineMode)
		return handle != 0
	})
	if err != nil {
		return nil, err
	}
	vg := c.newVolumeGroup(handle, name, mode)
	log.FromContext(ctx).V(1).Info("opened volume group", "vg", name, "mode", mode.String(), "seqno", vg.SeqNo())
	return vg, nil
}

// CreateVolumeGroup starts a new volume group in ReadWrite mode. Nothing is
// persisted until the group is extended with a device.
func (c *Client) CreateVolumeGroup(ctx context.Context, name string) (*VolumeGroup, error) {
	ctx, span := c.tracer.Start(ctx, "lvm/CreateVolumeGroup", trace.WithAttributes(
		attribute.String("vg.name", name),
	))
	defer span.End()

	if err := validateArg("volume group name", name); err != nil {
		return nil, err
	}
	var handle engine.VG
	err := c.do(ctx, "CreateVolumeGroup", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		handle = eng.VGCreate(ctx, h, name)
		return handle != 0
	})
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).V(1).Info("created volume group", "vg", name)
	return c.newVolumeGroup(handle, name, ReadWrite), nil
}

// CreatePhysicalVolume initializes device for use by the engine. A zero
// size uses the whole device.
func (c *Client) CreatePhysicalVolume(ctx context.Context, device string, size uint64) error {
	ctx, span := c.tracer.Start(ctx, "lvm/CreatePhysicalVolume", trace.WithAttributes(
		attribute.String("pv.name", device),
		attribute.Int64("pv.size", int64(size)),
	))
	defer span.End()

	if err := validateArg("device", device); err != nil {
		return err
	}
	return c.do(ctx, "CreatePhysicalVolume", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		return eng.PVCreate(ctx, h, device, size) == 0
	})
}

// CreatePhysicalVolumeWithParams initializes device with the given options.
func (c *Client) CreatePhysicalVolumeWithParams(ctx context.Context, device string, params PVParams) error {
	ctx, span := c.tracer.Start(ctx, "lvm/CreatePhysicalVolumeWithParams", trace.WithAttributes(
		attribute.String("pv.name", device),
	))
	defer span.End()

	if err := validateArg("device", device); err != nil {
		return err
	}
	return c.do(ctx, "CreatePhysicalVolumeWithParams", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		pp := eng.PVParamsCreate(ctx, h, device)
		if pp == 0 {
			return false
		}
		for _, p := range params.properties() {
			if eng.PVParamsSetProperty(pp, p.name, engine.IntProperty(p.value)) < 0 {
				return false
			}
		}
		return eng.PVCreateAdv(ctx, pp) == 0
	})
}

// RemovePhysicalVolume wipes the label from device. The caller must not be
// iterating physical volumes of any session while it runs.
func (c *Client) RemovePhysicalVolume(ctx context.Context, device string) error {
	ctx, span := c.tracer.Start(ctx, "lvm/RemovePhysicalVolume", trace.WithAttributes(
		attribute.String("pv.name", device),
	))
	defer span.End()

	if err := validateArg("device", device); err != nil {
		return err
	}
	return c.do(ctx, "RemovePhysicalVolume", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		return eng.PVRemove(ctx, h, device) == 0
	})
}

// VolumeGroupNameForDevice returns the volume group device belongs to. No
// match is reported with ok false and a nil error.
func (c *Client) VolumeGroupNameForDevice(ctx context.Context, device string) (name string, ok bool, err error) {
	ctx, span := c.tracer.Start(ctx, "lvm/VolumeGroupNameForDevice", trace.WithAttributes(
		attribute.String("pv.name", device),
	))
	defer span.End()

	if err := validateArg("device", device); err != nil {
		return "", false, err
	}
	err = c.do(ctx, "VolumeGroupNameForDevice", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		name, ok = eng.VGNameFromDevice(ctx, h, device)
		return ok || eng.Errno(h) == 0
	})
	return name, ok, err
}

// VolumeGroupNameForPhysicalVolumeUUID returns the volume group holding the
// physical volume with the given identifier. No match is reported with ok
// false and a nil error.
func (c *Client) VolumeGroupNameForPhysicalVolumeUUID(ctx context.Context, id UUID) (name string, ok bool, err error) {
	ctx, span := c.tracer.Start(ctx, "lvm/VolumeGroupNameForPhysicalVolumeUUID", trace.WithAttributes(
		attribute.String("pv.uuid", id.String()),
	))
	defer span.End()

	if err := validateArg("physical volume uuid", string(id)); err != nil {
		return "", false, err
	}
	err = c.do(ctx, "VolumeGroupNameForPhysicalVolumeUUID", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		name, ok = eng.VGNameFromPVID(ctx, h, string(id))
		return ok || eng.Errno(h) == 0
	})
	return name, ok, err
}

// ValidateVolumeGroupName checks name against the naming rules and the
// existing volume groups. A rejected name is a *ValidationError wrapping the
// engine's error.
func (c *Client) ValidateVolumeGroupName(ctx context.Context, name string) error {
	if err := validateNUL("volume group name", name); err != nil {
		return err
	}
	err := c.do(ctx, "ValidateVolumeGroupName", c.lease, func(eng engine.Engine, h engine.Handle) bool {
		return eng.VGNameValidate(ctx, h, name) == 0
	})
	return nameRejected("volume group name", name, err)
}
