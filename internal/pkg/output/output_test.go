// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package output

import (
	"bytes"
	"testing"
)

type volume struct {
	Name string `json:"name" yaml:"name"`
	Size uint64 `json:"size" yaml:"size"`
}

type volumes []volume

func (v volumes) Header() []string { return []string{"NAME", "SIZE"} }

func (v volumes) Rows() [][]string {
	var rows [][]string
	for _, vol := range v {
		rows = append(rows, []string{vol.Name, "1MiB"})
	}
	return rows
}

func TestPrint(t *testing.T) {
	vols := volumes{{Name: "lv0", Size: 1 << 20}, {Name: "data", Size: 1 << 20}}
	tests := []struct {
		format string
		value  any
		want   string
	}{
		{"table", vols, "NAME   SIZE\nlv0    1MiB\ndata   1MiB\n"},
		{"json", vols, "[\n  {\n    \"name\": \"lv0\",\n    \"size\": 1048576\n  },\n  {\n    \"name\": \"data\",\n    \"size\": 1048576\n  }\n]\n"},
		{"yaml", vols, "- name: lv0\n  size: 1048576\n- name: data\n  size: 1048576\n"},
		{"table", volume{Name: "lv0", Size: 1}, "name: lv0\nsize: 1\n"},
		{"table", List{Title: "vg", Items: []string{"vg0", "vg1"}}, "VG\nvg0\nvg1\n"},
		{"json", List{Title: "vg"}, "[]\n"},
		{"yaml", List{Title: "vg", Items: []string{"vg0"}}, "- vg0\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		p, err := New(&buf, tt.format)
		if err != nil {
			t.Fatal(err)
		}
		if err := p.Print(tt.value); err != nil {
			t.Fatalf("Print(%s) error = %v", tt.format, err)
		}
		if got := buf.String(); got != tt.want {
			t.Errorf("Print(%s, %T) =\n%q\nwant\n%q", tt.format, tt.value, got, tt.want)
		}
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("New(xml) succeeded")
	}
}
