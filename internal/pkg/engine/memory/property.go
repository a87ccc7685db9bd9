// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package memory

import (
	"strings"
	"syscall"

	"lvm-access/internal/pkg/engine"
)

var (
	intProp = engine.IntProperty
	strProp = engine.StringProperty
)

func lookup(c *lvmContext, props map[string]engine.Property, name string) engine.Property {
	p, ok := props[name]
	if !ok {
		c.fail(syscall.EINVAL, "Invalid property name %s", name)
		return engine.Property{}
	}
	return p
}

func vgProperties(m *vgMeta) map[string]engine.Property {
	return map[string]engine.Property{
		"vg_name":         strProp(m.name),
		"vg_uuid":         strProp(engine.FormatID(m.uuid)),
		"vg_attr":         strProp("wz--n-"),
		"vg_size":         intProp(m.extentCount() * m.extentSize),
		"vg_free":         intProp(m.freeExtents() * m.extentSize),
		"vg_extent_size":  intProp(m.extentSize),
		"vg_extent_count": intProp(m.extentCount()),
		"vg_free_count":   intProp(m.freeExtents()),
		"max_lv":          intProp(m.maxLV),
		"max_pv":          intProp(m.maxPV),
		"pv_count":        intProp(uint64(len(m.pvs))),
		"lv_count":        intProp(uint64(len(m.lvs))),
		"vg_seqno":        intProp(m.seqno),
		"vg_tags":         strProp(strings.Join(m.tags, ",")),
	}
}

func lvProperties(m *vgMeta, lv *lvMeta, active bool) map[string]engine.Property {
	return map[string]engine.Property{
		"lv_name":    strProp(lv.name),
		"lv_uuid":    strProp(engine.FormatID(lv.uuid)),
		"lv_size":    intProp(lv.size),
		"lv_attr":    strProp(lvAttr(m, lv, active)),
		"origin":     strProp(lv.origin),
		"pool_lv":    strProp(lv.pool),
		"segtype":    strProp(lv.segtype),
		"lv_tags":    strProp(strings.Join(lv.tags, ",")),
		"chunk_size": intProp(lv.chunkSize),
		"discards":   strProp(lv.discards),
	}
}

func pvProperties(m *vgMeta, pv *pvMeta) map[string]engine.Property {
	return map[string]engine.Property{
		"pv_name":      strProp(pv.device),
		"pv_uuid":      strProp(engine.FormatID(pv.uuid)),
		"dev_size":     intProp(pv.devSize),
		"pv_size":      intProp(pv.size),
		"pv_free":      intProp((pv.peCount - m.usedOn(pv.uuid)) * m.extentSize),
		"pv_mda_count": intProp(pv.mdaCount),
		"vg_name":      strProp(m.name),
		"pe_start":     intProp(peStart),
	}
}
