// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"lvm-access/internal/pkg/engine"
)

// PhysicalVolume is a physical volume of an open session.
type PhysicalVolume struct {
	vg     *VolumeGroup
	handle engine.PV
	lease  *lease
}

// Err returns ErrReleased once the session is closed.
func (pv *PhysicalVolume) Err() error {
	return pv.lease.check()
}

// Name returns the device path.
func (pv *PhysicalVolume) Name() string {
	return get(pv.vg.client, pv.lease, func(eng engine.Engine) string { return eng.PVGetName(pv.handle) })
}

// UUID returns the physical volume identifier.
func (pv *PhysicalVolume) UUID() UUID {
	return uuidOf(get(pv.vg.client, pv.lease, func(eng engine.Engine) string { return eng.PVGetUUID(pv.handle) }))
}

// Size returns the usable size of the physical volume.
func (pv *PhysicalVolume) Size() uint64 {
	return get(pv.vg.client, pv.lease, func(eng engine.Engine) uint64 { return eng.PVGetSize(pv.handle) })
}

// DeviceSize returns the size of the underlying device.
func (pv *PhysicalVolume) DeviceSize() uint64 {
	return get(pv.vg.client, pv.lease, func(eng engine.Engine) uint64 { return eng.PVGetDevSize(pv.handle) })
}

// Free returns the unallocated size in bytes.
func (pv *PhysicalVolume) Free() uint64 {
	return get(pv.vg.client, pv.lease, func(eng engine.Engine) uint64 { return eng.PVGetFree(pv.handle) })
}

// MetadataAreaCount returns the number of metadata areas on the device.
func (pv *PhysicalVolume) MetadataAreaCount() uint64 {
	return get(pv.vg.client, pv.lease, func(eng engine.Engine) uint64 { return eng.PVGetMDACount(pv.handle) })
}

// Property returns a named physical volume property such as "pe_start".
func (pv *PhysicalVolume) Property(name string) Property {
	return get(pv.vg.client, pv.lease, func(eng engine.Engine) Property { return eng.PVGetProperty(pv.handle, name) })
}

// Resize changes the usable size of the physical volume.
func (pv *PhysicalVolume) Resize(ctx context.Context, size uint64) error {
	ctx, span := pv.vg.span(ctx, "ResizePhysicalVolume",
		attribute.String("pv.name", pv.Name()), attribute.Int64("pv.size", int64(size)))
	defer span.End()

	const op = "ResizePhysicalVolume"
	if err := pv.lease.check(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := pv.vg.writable(op); err != nil {
		return err
	}
	return pv.vg.client.do(ctx, op, pv.lease, func(eng engine.Engine, _ engine.Handle) bool {
		return eng.PVResize(ctx, pv.handle, size) == 0
	})
}
