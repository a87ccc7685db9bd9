// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcli

import (
	"syscall"

	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/lvmcmd"
)

func lookup(c *lvmContext, props map[string]engine.Property, name string) engine.Property {
	p, ok := props[name]
	if !ok {
		c.fail(syscall.EINVAL, "Invalid property name %s", name)
		return engine.Property{}
	}
	return p
}

func sizeProp(v lvmcmd.Int64String) engine.Property {
	return engine.IntProperty(uint64(v))
}

func countProp(v lvmcmd.IntString) engine.Property {
	return engine.IntProperty(uint64(v))
}

func vgProperties(s *session) map[string]engine.Property {
	vg := s.vg
	return map[string]engine.Property{
		"vg_name":         engine.StringProperty(vg.Name),
		"vg_uuid":         engine.StringProperty(vg.UUID),
		"vg_attr":         engine.StringProperty(vg.Attributes),
		"vg_size":         sizeProp(vg.Size),
		"vg_free":         sizeProp(vg.Free),
		"vg_extent_size":  sizeProp(vg.ExtentSize),
		"vg_extent_count": countProp(vg.ExtentCount),
		"vg_free_count":   countProp(vg.ExtentFreeCount),
		"max_lv":          countProp(vg.MaxLogicalVolumes),
		"max_pv":          countProp(vg.MaxPhysicalVolumes),
		"pv_count":        engine.IntProperty(uint64(len(s.pvs))),
		"lv_count":        engine.IntProperty(uint64(len(s.lvs))),
		"vg_seqno":        countProp(vg.SeqNo),
		"vg_tags":         engine.StringProperty(vg.Tags),
	}
}

func lvProperties(lv *lvmcmd.LogicalVolume) map[string]engine.Property {
	return map[string]engine.Property{
		"lv_name":      engine.StringProperty(lv.Name),
		"lv_uuid":      engine.StringProperty(lv.UUID),
		"lv_full_name": engine.StringProperty(lv.FullName),
		"lv_path":      engine.StringProperty(lv.Path),
		"lv_size":      sizeProp(lv.Size),
		"lv_attr":      engine.StringProperty(lv.Attributes),
		"origin":       engine.StringProperty(lv.Origin),
		"pool_lv":      engine.StringProperty(lv.PoolLV),
		"segtype":      engine.StringProperty(lv.SegmentType),
		"lv_tags":      engine.StringProperty(lv.Tags),
		"chunk_size":   sizeProp(lv.ChunkSize),
		"discards":     engine.StringProperty(lv.Discards),
	}
}

func pvProperties(pv *lvmcmd.PhysicalVolume) map[string]engine.Property {
	return map[string]engine.Property{
		"pv_name":      engine.StringProperty(pv.Name),
		"pv_uuid":      engine.StringProperty(pv.UUID),
		"pv_attr":      engine.StringProperty(pv.Attributes),
		"pv_tags":      engine.StringProperty(pv.Tags),
		"dev_size":     sizeProp(pv.DeviceSize),
		"pv_size":      sizeProp(pv.Size),
		"pv_free":      sizeProp(pv.FreeSpace),
		"pv_mda_count": countProp(pv.MetadataCount),
		"vg_name":      engine.StringProperty(pv.VGName),
		"pe_start":     sizeProp(pv.ExtentStart),
	}
}
