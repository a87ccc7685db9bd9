// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package engine

import (
	"fmt"
	"syscall"
)

// DefaultMetadataCopies is the number of metadata areas a new physical
// volume gets unless configured otherwise.
const DefaultMetadataCopies = 1

// PVCreateParams holds the options of an advanced physical volume creation.
// Engines keep one behind each PVParams handle. Zero sizes select engine
// defaults.
type PVCreateParams struct {
	Device              string
	Size                uint64
	MetadataCopies      uint64
	MetadataSize        uint64
	DataAlignment       uint64
	DataAlignmentOffset uint64
	Zero                uint64
}

// NewPVCreateParams returns the defaults for device.
func NewPVCreateParams(device string, size uint64) *PVCreateParams {
	return &PVCreateParams{
		Device:         device,
		Size:           size,
		MetadataCopies: DefaultMetadataCopies,
		Zero:           1,
	}
}

func (p *PVCreateParams) field(name string) *uint64 {
	switch name {
	case "size":
		return &p.Size
	case "pvmetadatacopies":
		return &p.MetadataCopies
	case "pvmetadatasize":
		return &p.MetadataSize
	case "data_alignment":
		return &p.DataAlignment
	case "data_alignment_offset":
		return &p.DataAlignmentOffset
	case "zero":
		return &p.Zero
	default:
		return nil
	}
}

// Get returns the named property. Unknown names fail with EINVAL.
func (p *PVCreateParams) Get(name string) (Property, syscall.Errno, string) {
	f := p.field(name)
	if f == nil {
		return Property{}, syscall.EINVAL, fmt.Sprintf("Invalid property name %s", name)
	}
	return Property{Valid: true, Settable: true, IsInteger: true, Integer: *f}, 0, ""
}

// Set updates the named property after checking its range.
func (p *PVCreateParams) Set(name string, prop Property) (syscall.Errno, string) {
	f := p.field(name)
	switch {
	case f == nil:
		return syscall.EINVAL, fmt.Sprintf("Invalid property name %s", name)
	case !prop.IsInteger:
		return syscall.EINVAL, fmt.Sprintf("Property %s takes an integer value", name)
	case name == "pvmetadatacopies" && prop.Integer > 2:
		return syscall.EINVAL, "Metadatacopies may only be 0, 1 or 2"
	case name == "zero" && prop.Integer > 1:
		return syscall.EINVAL, "Zero must be 0 or 1"
	}
	*f = prop.Integer
	return 0, ""
}
