// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"

	"sigs.k8s.io/yaml"

	"lvm-access/internal/pkg/convert"
)

// Engine names.
const (
	EngineLVM    = "lvm"
	EngineMemory = "memory"
)

// Output formats.
const (
	OutputTable = "table"
	OutputYAML  = "yaml"
	OutputJSON  = "json"
)

// Defaults are un-exported so that they can't be used directly. Since they are
// settable via config, the config values must be used instead.
const (
	defaultEngine    = EngineLVM
	defaultLVMPath   = "lvm"
	defaultOutput    = OutputTable
	defaultServiceID = "lvmctl"
)

var (
	// ErrInvalid is returned when a configuration value is not acceptable.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the lvmctl configuration file.
type Config struct {
	// Engine selects the LVM engine: "lvm" drives the lvm binary, "memory"
	// simulates a host in process.
	Engine string `json:"engine,omitempty"`

	// LVMPath is the lvm binary used by the "lvm" engine.
	LVMPath string `json:"lvmPath,omitempty"`

	// SystemDir is an alternate LVM configuration directory.
	SystemDir string `json:"systemDir,omitempty"`

	// Output is the default output format.
	Output string `json:"output,omitempty"`

	Telemetry Telemetry `json:"telemetry,omitempty"`

	Memory Memory `json:"memory,omitempty"`
}

// Telemetry configures tracing and metrics export.
type Telemetry struct {
	// Endpoint is the OTLP gRPC collector address. Empty disables export.
	Endpoint string `json:"endpoint,omitempty"`

	// SampleRate is the trace sampling rate per million.
	SampleRate int32 `json:"sampleRate,omitempty"`

	ServiceID string `json:"serviceID,omitempty"`

	// ConsoleMetrics prints metrics to stdout when the command finishes.
	ConsoleMetrics bool `json:"consoleMetrics,omitempty"`
}

// Memory configures the simulated engine.
type Memory struct {
	// Devices maps a device path to its size, e.g. "/dev/loop0": "1Gi".
	Devices map[string]string `json:"devices,omitempty"`
}

// Device is a simulated block device.
type Device struct {
	Path string
	Size uint64
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Engine:  defaultEngine,
		LVMPath: defaultLVMPath,
		Output:  defaultOutput,
		Telemetry: Telemetry{
			ServiceID: defaultServiceID,
		},
	}
}

// Load reads the configuration file over the defaults. An empty path returns
// the defaults.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile == "" {
		return cfg, nil
	}
	yamlFile, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	if err := Parse(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{EngineLVM, EngineMemory}, c.Engine) {
		errs = append(errs, fmt.Errorf("%w: engine %q must be %q or %q", ErrInvalid, c.Engine, EngineLVM, EngineMemory))
	}
	if !slices.Contains([]string{OutputTable, OutputYAML, OutputJSON}, c.Output) {
		errs = append(errs, fmt.Errorf("%w: output %q must be one of table, yaml, json", ErrInvalid, c.Output))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1_000_000 {
		errs = append(errs, fmt.Errorf("%w: telemetry.sampleRate %d must be between 0 and 1000000", ErrInvalid, c.Telemetry.SampleRate))
	}
	if _, err := c.Memory.devices(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SimulatedDevices returns the memory engine's devices sorted by path.
func (c *Config) SimulatedDevices() []Device {
	devices, _ := c.Memory.devices()
	return devices
}

func (m Memory) devices() ([]Device, error) {
	devices := make([]Device, 0, len(m.Devices))
	for path, size := range m.Devices {
		n, err := convert.ParseSize(size)
		if err != nil {
			return nil, fmt.Errorf("%w: memory.devices[%s]: %w", ErrInvalid, path, err)
		}
		devices = append(devices, Device{Path: path, Size: n})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}
