// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/dmlist"
)

// LogicalVolume is a logical volume of an open session. It becomes invalid
// when the session is closed or the volume is removed.
type LogicalVolume struct {
	vg     *VolumeGroup
	handle engine.LV
	lease  *lease
}

// Err returns ErrReleased once the handle is invalid.
func (lv *LogicalVolume) Err() error {
	return lv.lease.check()
}

func (lv *LogicalVolume) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("lv.name", lv.Name()))
	return lv.vg.span(ctx, op, attrs...)
}

// writable rejects mutations on released handles and read-only sessions
// before any argument is looked at.
func (lv *LogicalVolume) writable(op string) error {
	if err := lv.lease.check(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return lv.vg.writable(op)
}

func (lv *LogicalVolume) mutate(ctx context.Context, op string, fn func(eng engine.Engine) bool) error {
	if err := lv.writable(op); err != nil {
		return err
	}
	return lv.vg.client.do(ctx, op, lv.lease, func(eng engine.Engine, _ engine.Handle) bool {
		return fn(eng)
	})
}

// Activate makes the volume available as a block device.
func (lv *LogicalVolume) Activate(ctx context.Context) error {
	ctx, span := lv.span(ctx, "Activate")
	defer span.End()

	return lv.mutate(ctx, "Activate", func(eng engine.Engine) bool {
		return eng.LVActivate(ctx, lv.handle) == 0
	})
}

// Deactivate removes the volume's block device.
func (lv *LogicalVolume) Deactivate(ctx context.Context) error {
	ctx, span := lv.span(ctx, "Deactivate")
	defer span.End()

	return lv.mutate(ctx, "Deactivate", func(eng engine.Engine) bool {
		return eng.LVDeactivate(ctx, lv.handle) == 0
	})
}

// Remove deletes the volume and invalidates every handle to it. Snapshots of
// an origin and thin volumes of a pool go with it, and so do their handles.
func (lv *LogicalVolume) Remove(ctx context.Context) error {
	ctx, span := lv.span(ctx, "RemoveLogicalVolume")
	defer span.End()

	name := lv.Name()
	if err := lv.mutate(ctx, "RemoveLogicalVolume", func(eng engine.Engine) bool {
		if eng.LVRemove(ctx, lv.handle) != 0 {
			return false
		}
		lv.vg.releaseRemovedLogicalVolumes(ctx, eng, lv.handle)
		return true
	}); err != nil {
		return err
	}
	log.FromContext(ctx).V(1).Info("removed logical volume", "vg", lv.vg.name, "lv", name)
	return nil
}

// Rename gives the volume a new name within its group.
func (lv *LogicalVolume) Rename(ctx context.Context, name string) error {
	ctx, span := lv.span(ctx, "Rename", attribute.String("lv.new_name", name))
	defer span.End()

	if err := lv.writable("Rename"); err != nil {
		return err
	}
	if err := validateArg("logical volume name", name); err != nil {
		return err
	}
	return lv.mutate(ctx, "Rename", func(eng engine.Engine) bool {
		return eng.LVRename(ctx, lv.handle, name) == 0
	})
}

// Resize changes the volume size. The size is rounded up to whole extents.
func (lv *LogicalVolume) Resize(ctx context.Context, size uint64) error {
	ctx, span := lv.span(ctx, "Resize", attribute.Int64("lv.size", int64(size)))
	defer span.End()

	return lv.mutate(ctx, "Resize", func(eng engine.Engine) bool {
		return eng.LVResize(ctx, lv.handle, size) == 0
	})
}

// Snapshot creates a snapshot of the volume. A zero maxSize sizes the
// snapshot like its origin.
func (lv *LogicalVolume) Snapshot(ctx context.Context, name string, maxSize uint64) (*LogicalVolume, error) {
	ctx, span := lv.span(ctx, "Snapshot",
		attribute.String("lv.snapshot", name), attribute.Int64("lv.size", int64(maxSize)))
	defer span.End()

	if err := lv.writable("Snapshot"); err != nil {
		return nil, err
	}
	if err := validateArg("snapshot name", name); err != nil {
		return nil, err
	}
	var h engine.LV
	if err := lv.mutate(ctx, "Snapshot", func(eng engine.Engine) bool {
		h = eng.LVSnapshot(ctx, lv.handle, name, maxSize)
		return h != 0
	}); err != nil {
		return nil, err
	}
	log.FromContext(ctx).V(1).Info("created snapshot", "vg", lv.vg.name, "origin", lv.Name(), "lv", name)
	return lv.vg.logicalVolume(h), nil
}

// AddTag tags the volume and commits the session.
func (lv *LogicalVolume) AddTag(ctx context.Context, tag string) error {
	ctx, span := lv.span(ctx, "AddTag", attribute.String("tag", tag))
	defer span.End()

	if err := lv.writable("AddTag"); err != nil {
		return err
	}
	if err := validateArg("tag", tag); err != nil {
		return err
	}
	if err := lv.mutate(ctx, "AddTag", func(eng engine.Engine) bool {
		return eng.LVAddTag(lv.handle, tag) == 0
	}); err != nil {
		return err
	}
	return lv.vg.Write(ctx)
}

// RemoveTag untags the volume and commits the session.
func (lv *LogicalVolume) RemoveTag(ctx context.Context, tag string) error {
	ctx, span := lv.span(ctx, "RemoveTag", attribute.String("tag", tag))
	defer span.End()

	if err := lv.writable("RemoveTag"); err != nil {
		return err
	}
	if err := validateArg("tag", tag); err != nil {
		return err
	}
	if err := lv.mutate(ctx, "RemoveTag", func(eng engine.Engine) bool {
		return eng.LVRemoveTag(lv.handle, tag) == 0
	}); err != nil {
		return err
	}
	return lv.vg.Write(ctx)
}

// Tags returns the volume tags in engine order.
func (lv *LogicalVolume) Tags(ctx context.Context) ([]string, error) {
	return collect(ctx, lv.vg.client, lv.lease, "LogicalVolumeTags", func(eng engine.Engine) *dmlist.List[string] {
		return eng.LVGetTags(lv.handle)
	})
}

// Name returns the volume name, or "" once the handle is invalid.
func (lv *LogicalVolume) Name() string {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) string { return eng.LVGetName(lv.handle) })
}

// UUID returns the volume identifier.
func (lv *LogicalVolume) UUID() UUID {
	return uuidOf(get(lv.vg.client, lv.lease, func(eng engine.Engine) string { return eng.LVGetUUID(lv.handle) }))
}

// Size returns the volume size in bytes.
func (lv *LogicalVolume) Size() uint64 {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) uint64 { return eng.LVGetSize(lv.handle) })
}

// Attributes returns the lv_attr string, for example "-wi-a-----".
func (lv *LogicalVolume) Attributes() string {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) string { return eng.LVGetAttr(lv.handle) })
}

// Origin returns the name of the volume a snapshot was taken from, or "".
func (lv *LogicalVolume) Origin() string {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) string { return eng.LVGetOrigin(lv.handle) })
}

// IsActive reports whether the volume is active on this host.
func (lv *LogicalVolume) IsActive() bool {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) bool { return eng.LVIsActive(lv.handle) })
}

// IsSuspended reports whether the volume's device is suspended.
func (lv *LogicalVolume) IsSuspended() bool {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) bool { return eng.LVIsSuspended(lv.handle) })
}

// Property returns a named logical volume property such as "segtype".
func (lv *LogicalVolume) Property(name string) Property {
	return get(lv.vg.client, lv.lease, func(eng engine.Engine) Property { return eng.LVGetProperty(lv.handle, name) })
}
