// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package engine defines the handle-based boundary to a volume-management
// engine.
//
// The interface mirrors the lvm2app C API: every object is an opaque handle,
// zero handles and negative return codes signal failure, and the reason for a
// failure is read afterwards from the owning context with Errno and Errmsg.
// Collections come back as engine-owned intrusive lists (see dmlist). None of
// the methods are safe for concurrent use on the same context; callers
// serialize access and must read the error slot before issuing the next call.
package engine

import (
	"context"
	"syscall"

	"lvm-access/internal/pkg/engine/dmlist"
)

// Handle identifies an engine context. Zero is the null handle.
type Handle uint64

// VG identifies an opened or newly created volume group. Zero is null.
type VG uint64

// PV identifies a physical volume within a VG handle. Zero is null.
type PV uint64

// LV identifies a logical volume within a VG handle. Zero is null.
type LV uint64

// PVParams identifies a physical volume creation parameter object. Zero is
// null.
type PVParams uint64

const (
	// ModeRead opens a volume group for reading only.
	ModeRead = "r"
	// ModeWrite opens a volume group for reading and writing.
	ModeWrite = "w"
)

// Discard controls how a thin pool handles discards.
type Discard int

const (
	// DiscardIgnore ignores discards.
	DiscardIgnore Discard = iota
	// DiscardNoPassdown processes discards in the pool without passing them
	// down to the data device.
	DiscardNoPassdown
	// DiscardPassdown processes discards and passes them down.
	DiscardPassdown
)

func (d Discard) String() string {
	switch d {
	case DiscardIgnore:
		return "ignore"
	case DiscardNoPassdown:
		return "nopassdown"
	case DiscardPassdown:
		return "passdown"
	default:
		return "unknown"
	}
}

// ThinPoolParams describes a thin pool to create. Zero ChunkSize and
// MetadataSize select engine defaults.
type ThinPoolParams struct {
	Name         string
	Size         uint64
	ChunkSize    uint64
	MetadataSize uint64
	Discard      Discard
}

// ThinParams describes a thin volume to create in an existing pool.
type ThinParams struct {
	Pool string
	Name string
	Size uint64
}

// Property is a named value read from an object or a parameter object.
type Property struct {
	Valid     bool
	Settable  bool
	IsString  bool
	IsInteger bool
	IsSigned  bool
	Integer   uint64
	Signed    int64
	String    string
}

// Engine is the native volume-management engine.
type Engine interface {
	// Init acquires a context, optionally reading configuration from
	// systemDir. A zero handle means allocation failed; the reason is in
	// ProcessErrno.
	Init(ctx context.Context, systemDir string) Handle
	// Quit releases the context and every handle derived from it.
	Quit(h Handle)
	// Errno returns the error code of the last failed call on h.
	Errno(h Handle) syscall.Errno
	// Errmsg returns the error message of the last failed call on h.
	Errmsg(h Handle) string
	// ProcessErrno returns the process-wide error code, used when no context
	// exists.
	ProcessErrno() syscall.Errno

	Scan(ctx context.Context, h Handle) int
	ListVGNames(ctx context.Context, h Handle) *dmlist.List[string]
	ListVGUUIDs(ctx context.Context, h Handle) *dmlist.List[string]
	VGOpen(ctx context.Context, h Handle, name, mode string) VG
	VGCreate(ctx context.Context, h Handle, name string) VG
	// VGNameFromDevice and VGNameFromPVID report no match with ok false and
	// a clear error slot.
	VGNameFromDevice(ctx context.Context, h Handle, device string) (name string, ok bool)
	VGNameFromPVID(ctx context.Context, h Handle, pvid string) (name string, ok bool)
	VGNameValidate(ctx context.Context, h Handle, name string) int

	PVCreate(ctx context.Context, h Handle, device string, size uint64) int
	PVRemove(ctx context.Context, h Handle, device string) int
	PVParamsCreate(ctx context.Context, h Handle, device string) PVParams
	PVParamsGetProperty(p PVParams, name string) Property
	PVParamsSetProperty(p PVParams, name string, prop Property) int
	PVCreateAdv(ctx context.Context, p PVParams) int

	VGWrite(ctx context.Context, vg VG) int
	VGClose(vg VG) int
	VGRemove(vg VG) int
	VGExtend(ctx context.Context, vg VG, device string) int
	VGReduce(ctx context.Context, vg VG, device string) int
	VGAddTag(vg VG, tag string) int
	VGRemoveTag(vg VG, tag string) int
	VGGetTags(vg VG) *dmlist.List[string]
	VGSetExtentSize(vg VG, size uint32) int
	VGGetName(vg VG) string
	VGGetUUID(vg VG) string
	VGGetSeqno(vg VG) uint64
	VGGetSize(vg VG) uint64
	VGGetFreeSize(vg VG) uint64
	VGGetExtentSize(vg VG) uint64
	VGGetExtentCount(vg VG) uint64
	VGGetFreeExtentCount(vg VG) uint64
	VGGetPVCount(vg VG) uint64
	VGGetMaxPV(vg VG) uint64
	VGGetMaxLV(vg VG) uint64
	VGIsClustered(vg VG) bool
	VGIsExported(vg VG) bool
	VGIsPartial(vg VG) bool
	VGGetProperty(vg VG, name string) Property
	VGListLVs(ctx context.Context, vg VG) *dmlist.List[LV]
	VGListPVs(ctx context.Context, vg VG) *dmlist.List[PV]
	LVFromName(vg VG, name string) LV
	LVFromUUID(vg VG, uuid string) LV
	PVFromName(vg VG, name string) PV
	PVFromUUID(vg VG, uuid string) PV
	LVNameValidate(vg VG, name string) int
	VGCreateLVLinear(ctx context.Context, vg VG, name string, size uint64) LV
	VGCreateThinPool(ctx context.Context, vg VG, params ThinPoolParams) LV
	VGCreateThin(ctx context.Context, vg VG, params ThinParams) LV

	LVActivate(ctx context.Context, lv LV) int
	LVDeactivate(ctx context.Context, lv LV) int
	LVRemove(ctx context.Context, lv LV) int
	LVRename(ctx context.Context, lv LV, name string) int
	LVResize(ctx context.Context, lv LV, size uint64) int
	LVSnapshot(ctx context.Context, lv LV, name string, maxSize uint64) LV
	LVAddTag(lv LV, tag string) int
	LVRemoveTag(lv LV, tag string) int
	LVGetTags(lv LV) *dmlist.List[string]
	LVGetName(lv LV) string
	LVGetUUID(lv LV) string
	LVGetSize(lv LV) uint64
	LVGetAttr(lv LV) string
	LVGetOrigin(lv LV) string
	LVIsActive(lv LV) bool
	LVIsSuspended(lv LV) bool
	LVGetProperty(lv LV, name string) Property

	PVGetName(pv PV) string
	PVGetUUID(pv PV) string
	PVGetSize(pv PV) uint64
	PVGetDevSize(pv PV) uint64
	PVGetFree(pv PV) uint64
	PVGetMDACount(pv PV) uint64
	PVGetProperty(pv PV, name string) Property
	PVResize(ctx context.Context, pv PV, size uint64) int
}
