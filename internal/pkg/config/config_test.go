// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lvmctl.yaml")
	data := `
engine: memory
output: json
telemetry:
  endpoint: localhost:4317
  sampleRate: 500
memory:
  devices:
    /dev/loop1: 512Mi
    /dev/loop0: 1Gi
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine != EngineMemory || cfg.Output != OutputJSON {
		t.Errorf("engine, output = %q, %q", cfg.Engine, cfg.Output)
	}
	if cfg.LVMPath != "lvm" || cfg.Telemetry.ServiceID != "lvmctl" {
		t.Errorf("defaults not kept: %+v", cfg)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" || cfg.Telemetry.SampleRate != 500 {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
	want := []Device{{"/dev/loop0", 1 << 30}, {"/dev/loop1", 512 << 20}}
	if got := cfg.SimulatedDevices(); !reflect.DeepEqual(got, want) {
		t.Errorf("SimulatedDevices() = %v, want %v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want ErrNotExist", err)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		invalid bool
	}{
		{"engine", "engine: lvm2", true},
		{"output", "output: xml", true},
		{"sample rate", "telemetry:\n  sampleRate: 2000000", true},
		{"device size", "memory:\n  devices:\n    /dev/loop0: big", true},
		{"unknown field", "engines: lvm", false},
		{"valid", "engine: memory", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse([]byte(tt.data), Default())
			if got := errors.Is(err, ErrInvalid); got != tt.invalid {
				t.Errorf("Parse() error = %v, invalid = %v, want %v", err, got, tt.invalid)
			}
			if tt.name == "unknown field" && err == nil {
				t.Error("Parse() accepted an unknown field")
			}
		})
	}
}
