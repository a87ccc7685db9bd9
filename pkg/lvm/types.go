// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"fmt"

	"lvm-access/internal/pkg/engine"
)

// Mode is the access mode of a volume group session.
type Mode int

const (
	// ReadOnly sessions can inspect a volume group but not change it.
	ReadOnly Mode = iota
	// ReadWrite sessions hold the engine's write lock.
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case ReadWrite:
		return "w"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) engineMode() (string, error) {
	switch m {
	case ReadOnly:
		return engine.ModeRead, nil
	case ReadWrite:
		return engine.ModeWrite, nil
	default:
		return "", &ValidationError{Field: "mode", Value: m.String(), Reason: "must be ReadOnly or ReadWrite"}
	}
}

// Property is a named value read from a volume group, logical volume or
// physical volume. Valid is false when the name is unknown.
type Property = engine.Property

// Discard controls how a thin pool handles discards.
type Discard = engine.Discard

const (
	DiscardIgnore     = engine.DiscardIgnore
	DiscardNoPassdown = engine.DiscardNoPassdown
	DiscardPassdown   = engine.DiscardPassdown
)

// ThinPoolParams describes a thin pool. Zero ChunkSize and MetadataSize
// select engine defaults.
type ThinPoolParams struct {
	Name         string
	Size         uint64
	ChunkSize    uint64
	MetadataSize uint64
	Discard      Discard
}

// PVParams holds the options of CreatePhysicalVolumeWithParams. Nil
// pointers and zero sizes keep the engine defaults.
type PVParams struct {
	// Size limits the usable size of the device. Zero uses the whole device.
	Size uint64
	// MetadataCopies is the number of metadata areas: 0, 1 or 2.
	MetadataCopies *uint64
	// MetadataSize is the size of each metadata area.
	MetadataSize        uint64
	DataAlignment       uint64
	DataAlignmentOffset uint64
	// Zero wipes the first sectors of the device. Defaults to true.
	Zero *bool
}

type pvParam struct {
	name  string
	value uint64
}

// properties lists the parameter object settings that differ from the
// engine defaults.
func (p PVParams) properties() []pvParam {
	var out []pvParam
	if p.Size != 0 {
		out = append(out, pvParam{"size", p.Size})
	}
	if p.MetadataCopies != nil {
		out = append(out, pvParam{"pvmetadatacopies", *p.MetadataCopies})
	}
	if p.MetadataSize != 0 {
		out = append(out, pvParam{"pvmetadatasize", p.MetadataSize})
	}
	if p.DataAlignment != 0 {
		out = append(out, pvParam{"data_alignment", p.DataAlignment})
	}
	if p.DataAlignmentOffset != 0 {
		out = append(out, pvParam{"data_alignment_offset", p.DataAlignmentOffset})
	}
	if p.Zero != nil {
		var z uint64
		if *p.Zero {
			z = 1
		}
		out = append(out, pvParam{"zero", z})
	}
	return out
}
