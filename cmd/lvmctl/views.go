// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"
	"strconv"
	"strings"

	"lvm-access/internal/pkg/block"
	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/output"
	"lvm-access/pkg/lvm"
)

type volumeGroupView struct {
	Name       string   `json:"name" yaml:"name"`
	UUID       string   `json:"uuid" yaml:"uuid"`
	SeqNo      uint64   `json:"seqno" yaml:"seqno"`
	Size       uint64   `json:"size" yaml:"size"`
	Free       uint64   `json:"free" yaml:"free"`
	ExtentSize uint64   `json:"extentSize" yaml:"extentSize"`
	PVCount    uint64   `json:"pvCount" yaml:"pvCount"`
	LVCount    int      `json:"lvCount" yaml:"lvCount"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Partial    bool     `json:"partial,omitempty" yaml:"partial,omitempty"`
	Exported   bool     `json:"exported,omitempty" yaml:"exported,omitempty"`
}

type volumeGroupDetail struct {
	volumeGroupView `json:",inline" yaml:",inline"`

	PhysicalVolumes physicalVolumeRows `json:"physicalVolumes" yaml:"physicalVolumes"`
	LogicalVolumes  logicalVolumeRows  `json:"logicalVolumes" yaml:"logicalVolumes"`
}

func describeVolumeGroup(ctx context.Context, vg *lvm.VolumeGroup) (volumeGroupView, error) {
	tags, err := vg.Tags(ctx)
	if err != nil {
		return volumeGroupView{}, err
	}
	lvs, err := vg.LogicalVolumes(ctx)
	if err != nil {
		return volumeGroupView{}, err
	}
	return volumeGroupView{
		Name:       vg.Name(),
		UUID:       vg.UUID().String(),
		SeqNo:      vg.SeqNo(),
		Size:       vg.Size(),
		Free:       vg.FreeSize(),
		ExtentSize: vg.ExtentSize(),
		PVCount:    vg.PVCount(),
		LVCount:    len(lvs),
		Tags:       tags,
		Partial:    vg.IsPartial(),
		Exported:   vg.IsExported(),
	}, nil
}

type volumeGroupRows []volumeGroupView

func (r volumeGroupRows) Header() []string {
	return []string{"VG", "UUID", "SEQ", "SIZE", "FREE", "#PV", "#LV", "TAGS"}
}

func (r volumeGroupRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, vg := range r {
		rows = append(rows, []string{
			vg.Name, vg.UUID, strconv.FormatUint(vg.SeqNo, 10),
			convert.FormatSize(vg.Size), convert.FormatSize(vg.Free),
			strconv.FormatUint(vg.PVCount, 10), strconv.Itoa(vg.LVCount),
			strings.Join(vg.Tags, ","),
		})
	}
	return rows
}

type logicalVolumeView struct {
	Name       string   `json:"name" yaml:"name"`
	UUID       string   `json:"uuid" yaml:"uuid"`
	Size       uint64   `json:"size" yaml:"size"`
	Attributes string   `json:"attributes" yaml:"attributes"`
	Origin     string   `json:"origin,omitempty" yaml:"origin,omitempty"`
	Pool       string   `json:"pool,omitempty" yaml:"pool,omitempty"`
	Active     bool     `json:"active" yaml:"active"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func describeLogicalVolume(ctx context.Context, lv *lvm.LogicalVolume) (logicalVolumeView, error) {
	tags, err := lv.Tags(ctx)
	if err != nil {
		return logicalVolumeView{}, err
	}
	return logicalVolumeView{
		Name:       lv.Name(),
		UUID:       lv.UUID().String(),
		Size:       lv.Size(),
		Attributes: lv.Attributes(),
		Origin:     lv.Origin(),
		Pool:       lv.Property("pool_lv").String,
		Active:     lv.IsActive(),
		Tags:       tags,
	}, nil
}

type logicalVolumeRows []logicalVolumeView

func (r logicalVolumeRows) Header() []string {
	return []string{"LV", "ATTR", "SIZE", "ORIGIN", "POOL", "ACTIVE", "TAGS"}
}

func (r logicalVolumeRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, lv := range r {
		rows = append(rows, []string{
			lv.Name, lv.Attributes, convert.FormatSize(lv.Size), lv.Origin, lv.Pool,
			strconv.FormatBool(lv.Active), strings.Join(lv.Tags, ","),
		})
	}
	return rows
}

type physicalVolumeView struct {
	Name          string `json:"name" yaml:"name"`
	UUID          string `json:"uuid" yaml:"uuid"`
	VolumeGroup   string `json:"volumeGroup" yaml:"volumeGroup"`
	Size          uint64 `json:"size" yaml:"size"`
	Free          uint64 `json:"free" yaml:"free"`
	DeviceSize    uint64 `json:"deviceSize" yaml:"deviceSize"`
	MetadataAreas uint64 `json:"metadataAreas" yaml:"metadataAreas"`
}

func describePhysicalVolume(vg *lvm.VolumeGroup, pv *lvm.PhysicalVolume) physicalVolumeView {
	return physicalVolumeView{
		Name:          pv.Name(),
		UUID:          pv.UUID().String(),
		VolumeGroup:   vg.Name(),
		Size:          pv.Size(),
		Free:          pv.Free(),
		DeviceSize:    pv.DeviceSize(),
		MetadataAreas: pv.MetadataAreaCount(),
	}
}

type physicalVolumeRows []physicalVolumeView

func (r physicalVolumeRows) Header() []string {
	return []string{"PV", "VG", "SIZE", "FREE", "UUID"}
}

func (r physicalVolumeRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, pv := range r {
		rows = append(rows, []string{
			pv.Name, pv.VolumeGroup, convert.FormatSize(pv.Size), convert.FormatSize(pv.Free), pv.UUID,
		})
	}
	return rows
}

type deviceView struct {
	Path        string `json:"path" yaml:"path"`
	Type        string `json:"type" yaml:"type"`
	Size        uint64 `json:"size" yaml:"size"`
	FSType      string `json:"fstype,omitempty" yaml:"fstype,omitempty"`
	VolumeGroup string `json:"volumeGroup,omitempty" yaml:"volumeGroup,omitempty"`
	Status      string `json:"status" yaml:"status"`
}

func describeDevice(d block.Device, vg string) deviceView {
	status := "in use"
	switch {
	case vg != "":
		status = "member"
	case d.IsPhysicalVolume():
		status = "unused pv"
	case d.IsAvailable():
		status = "available"
	}
	return deviceView{
		Path:        d.Path,
		Type:        d.Type,
		Size:        uint64(max(d.Size, 0)),
		FSType:      d.FSType,
		VolumeGroup: vg,
		Status:      status,
	}
}

type deviceRows []deviceView

func (r deviceRows) Header() []string {
	return []string{"DEVICE", "TYPE", "SIZE", "FSTYPE", "VG", "STATUS"}
}

func (r deviceRows) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, d := range r {
		rows = append(rows, []string{d.Path, d.Type, convert.FormatSize(d.Size), d.FSType, d.VolumeGroup, d.Status})
	}
	return rows
}

var (
	_ output.Tabular = volumeGroupRows(nil)
	_ output.Tabular = logicalVolumeRows(nil)
	_ output.Tabular = physicalVolumeRows(nil)
	_ output.Tabular = deviceRows(nil)
)
