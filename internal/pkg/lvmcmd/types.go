// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lvmcmd

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gotidy/ptr"
)

// BoolString decodes the "0"/"1" columns of a --binary report.
type BoolString bool

func (b *BoolString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = v == "1"
	return nil
}

// IntString decodes a numeric column reported as a string.
type IntString int

func (i *IntString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	if v == "" {
		*i = 0
		return nil
	}
	ival, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*i = IntString(ival)
	return nil
}

// Int64String decodes a size column reported with --units=b, e.g. "4194304B".
// Columns that do not apply to an object are reported empty and decode to 0.
type Int64String int64

func (i *Int64String) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	s = strings.TrimSpace(strings.TrimSuffix(s, "B"))
	if s == "" {
		*i = 0
		return nil
	}
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*i = Int64String(value)
	return nil
}

// YesNo marshals to the y/n argument form.
type YesNo bool

var (
	Yes = ptr.Of(YesNo(true))
	No  = ptr.Of(YesNo(false))
)

func (yn *YesNo) MarshalArg() string {
	if *yn {
		return "y"
	}
	return "n"
}

// SplitTags splits a tags column into its values.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// PhysicalVolume is a row of the pvs report.
type PhysicalVolume struct {
	UUID          string      `json:"pv_uuid"`      // Unique identifier of the PV.
	Name          string      `json:"pv_name"`      // Name of the PV.
	DeviceSize    Int64String `json:"dev_size"`     // Size of the underlying device.
	ExtentStart   Int64String `json:"pe_start"`     // Offset to start of data on the underlying device.
	Size          Int64String `json:"pv_size"`      // Size of the physical volume.
	FreeSpace     Int64String `json:"pv_free"`      // Total unallocated space.
	Attributes    string      `json:"pv_attr"`      // Various attributes of the PV.
	Missing       BoolString  `json:"pv_missing"`   // Indicates if device is missing in system.
	Tags          string      `json:"pv_tags"`      // Tags associated with the physical volume, if any.
	MetadataCount IntString   `json:"pv_mda_count"` // Number of metadata areas on this device.
	VGName        string      `json:"vg_name"`      // Name of the VG the PV belongs to.
}

// VolumeGroup is a row of the vgs report.
type VolumeGroup struct {
	UUID               string      `json:"vg_uuid"`         // Unique identifier.
	Name               string      `json:"vg_name"`         // Name of the VG.
	Attributes         string      `json:"vg_attr"`         // Various attributes.
	Exported           BoolString  `json:"vg_exported"`     // Set if VG is exported.
	Partial            BoolString  `json:"vg_partial"`      // Set if VG is partial.
	Clustered          BoolString  `json:"vg_clustered"`    // Set if VG is clustered.
	Size               Int64String `json:"vg_size"`         // Total size of VG.
	Free               Int64String `json:"vg_free"`         // Total amount of free space.
	ExtentSize         Int64String `json:"vg_extent_size"`  // Size of Physical Extents.
	ExtentCount        IntString   `json:"vg_extent_count"` // Total number of Physical Extents.
	ExtentFreeCount    IntString   `json:"vg_free_count"`   // Total number of unallocated Physical Extents.
	MaxLogicalVolumes  IntString   `json:"max_lv"`          // Maximum number of LVs allowed in VG or 0 if unlimited.
	MaxPhysicalVolumes IntString   `json:"max_pv"`          // Maximum number of PVs allowed in VG or 0 if unlimited.
	PVCount            IntString   `json:"pv_count"`        // Number of PVs in VG.
	LVCount            IntString   `json:"lv_count"`        // Number of LVs.
	SeqNo              IntString   `json:"vg_seqno"`        // Revision number of internal metadata. Incremented whenever it changes.
	Tags               string      `json:"vg_tags"`         // Tags, if any.
}

// LogicalVolume is a row of the lvs report.
type LogicalVolume struct {
	UUID          string      `json:"lv_uuid"`           // Unique identifier.
	Name          string      `json:"lv_name"`           // Name. LVs created for internal use are enclosed in brackets.
	FullName      string      `json:"lv_full_name"`      // Full name of LV including its VG, namely VG/LV.
	Path          string      `json:"lv_path"`           // Full pathname for LV. Blank for internal LVs.
	VGName        string      `json:"vg_name"`           // Name of the VG the LV belongs to.
	Attributes    string      `json:"lv_attr"`           // Various attributes.
	ActiveLocally BoolString  `json:"lv_active_locally"` // Set if the LV is active locally.
	Suspended     BoolString  `json:"lv_suspended"`      // Set if the LV is suspended.
	Size          Int64String `json:"lv_size"`           // Size of LV.
	Origin        string      `json:"origin"`            // For snapshots and thins, the origin device of this LV.
	PoolLV        string      `json:"pool_lv"`           // For thin volumes, the thin pool LV for this volume.
	Tags          string      `json:"lv_tags"`           // Tags, if any.
	SegmentType   string      `json:"segtype"`           // Type of LV segment.
	ChunkSize     Int64String `json:"chunk_size"`        // For snapshots and thin pools, the unit of data used when tracking changes.
	Discards      string      `json:"discards"`          // For thin pools, how discards are handled.
}

// Hidden reports whether the volume is an internal component such as a
// thin pool's metadata.
func (lv LogicalVolume) Hidden() bool {
	return strings.HasPrefix(lv.Name, "[")
}

// CommonOptions are accepted by every command.
type CommonOptions struct {
	Config      string   `arg:"config"`      // Overrides lvm.conf settings.
	DevicesFile string   `arg:"devicesfile"` // LVM device file (from /etc/lvm/devices/).
	Devices     []string `arg:"devices"`     // Overrides lvm.conf devices.
	NoHints     bool     `arg:"nohints"`     // Disables PV location hint.
}

type ListPVOptions struct {
	CommonOptions
	Names  []string `arg:"0"`      // Specific PVs to display.
	Select string   `arg:"select"` // Filters objects based on criteria.
}

type CreatePVOptions struct {
	CommonOptions
	Name                  string `arg:"0"`                     // Device or PV to create.
	Force                 bool   `arg:"force"`                 // Override checks and protections.
	Zero                  *YesNo `arg:"zero"`                  // Wipe first 4 sectors of the device.
	DataAlignment         string `arg:"dataalignment"`         // Align PV data's start, may be shifted by DataAlignmentOffset.
	DataAlignmentOffset   string `arg:"dataalignmentoffset"`   // Additional shift for PV data's start.
	MetadataCopies        *int   `arg:"pvmetadatacopies"`      // Number of metadata areas on a PV.
	MetadataSize          string `arg:"metadatasize"`          // Space for each VG metadata area.
	SetPhysicalVolumeSize string `arg:"setphysicalvolumesize"` // Manually set the PV size.
}

type RemovePVOptions struct {
	CommonOptions
	Name  string `arg:"0"`     // Device or PV to remove.
	Force bool   `arg:"force"` // Overrides checks and protections.
}

type ResizePVOptions struct {
	CommonOptions
	Name                  string `arg:"0"`                     // Device or PV to resize.
	SetPhysicalVolumeSize string `arg:"setphysicalvolumesize"` // Manually set the PV size.
}

type ListVGOptions struct {
	CommonOptions
	Names  []string `arg:"0"`      // Specific VGs to display.
	Select string   `arg:"select"` // Filters objects based on criteria.
}

type CreateVGOptions struct {
	CommonOptions
	Name               string   `arg:"0"`                  // Name of the VG to create.
	PVNames            []string `arg:"1"`                  // List of PVs to add to the VG.
	Force              bool     `arg:"force"`              // Overrides checks and protections.
	MaxLogicalVolumes  *int     `arg:"maxlogicalvolumes"`  // Max number of LVs allowed in a VG.
	MaxPhysicalVolumes *int     `arg:"maxphysicalvolumes"` // Max number of PVs that can belong to the VG.
	PhysicalExtentSize string   `arg:"physicalextentsize"` // Extent size of PVs in the group.
	Tags               []string `arg:"addtag"`             // Tags to add to the VG.
}

type UpdateVGOptions struct {
	CommonOptions
	Name               string   `arg:"0"`                  // Name of the VG to modify.
	PhysicalExtentSize string   `arg:"physicalextentsize"` // Extent size of PVs in the group.
	AddTags            []string `arg:"addtag"`             // Add tag/s to the VG.
	DelTags            []string `arg:"deltag"`             // Remove tag/s from the VG.
}

type RemoveVGOptions struct {
	CommonOptions
	Name  string `arg:"0"`     // Name of the VG to remove.
	Force bool   `arg:"force"` // Overrides checks and protections.
}

type ExtendVGOptions struct {
	CommonOptions
	Name    string   `arg:"0"`     // Name of the VG to extend.
	PVNames []string `arg:"1"`     // List of PVs to add to the VG.
	Force   bool     `arg:"force"` // Override checks and protections.
}

type ReduceVGOptions struct {
	CommonOptions
	Name    string   `arg:"0"` // Name of the VG to reduce.
	PVNames []string `arg:"1"` // List of PVs to remove from the VG.
}

type ListLVOptions struct {
	CommonOptions
	Names  []string `arg:"0"`      // Specific LVs to display.
	All    bool     `arg:"all"`    // Display information about hidden internal LVs
	Select string   `arg:"select"` // Filters objects based on criteria.
}

type CreateLVOptions struct {
	CommonOptions
	Name             string   `arg:"name"`             // Name of the LV to create.
	VGName           string   `arg:"0"`                // Name of the VG, or VG/LV of the origin for snapshots.
	Activate         *YesNo   `arg:"activate"`         // Activate the LV.
	WipeSignatures   *YesNo   `arg:"wipesignatures"`   // Wipe existing filesystem signatures.
	Tags             []string `arg:"addtag"`           // Tags to add to the LV.
	Type             string   `arg:"type"`             // Type of LV to create.
	Size             string   `arg:"size"`             // Size of the LV.
	Snapshot         bool     `arg:"snapshot"`         // Create a snapshot.
	ChunkSize        string   `arg:"chunksize"`        // Size of chunks in a snapshot or thin pool.
	VirtualSize      string   `arg:"virtualsize"`      // Virtual size of a new thin LV.
	ThinPool         string   `arg:"thinpool"`         // Name of the thin pool LV.
	Discards         string   `arg:"discards"`         // How the device-mapper thin pool layer in the kernel should handle discards.
	PoolMetadataSize string   `arg:"poolmetadatasize"` // Specifies the size of the new pool metadata LV.
}

type UpdateLVOptions struct {
	CommonOptions
	Name     string   `arg:"0"`        // Name of the LV to modify.
	Activate *YesNo   `arg:"activate"` // Activate the LV.
	AddTags  []string `arg:"addtag"`   // Add tag/s to the LV.
	DelTags  []string `arg:"deltag"`   // Remove tag/s from the LV.
}

type RemoveLVOptions struct {
	CommonOptions
	Name  string `arg:"0"`     // Name of the LV to remove.
	Force bool   `arg:"force"` // Override checks and protections.
}

type ResizeLVOptions struct {
	CommonOptions
	Name  string `arg:"0"`     // Name of the LV to resize.
	Size  string `arg:"size"`  // The new size of the LV.
	Force bool   `arg:"force"` // Override checks and protections.
}

type RenameLVOptions struct {
	CommonOptions
	From string `arg:"0"` // Name of the LV to rename.
	To   string `arg:"1"` // New name for the LV.
}

// Bytes formats a byte count as a size argument.
func Bytes(n uint64) string {
	return strconv.FormatUint(n, 10) + "B"
}
