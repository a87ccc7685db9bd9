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

// Package lvmcmd runs the lvm2 command line tools and decodes their JSON
// reports.
package lvmcmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dpeckett/args"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/mod/semver"
	"k8s.io/utils/exec"

	"lvm-access/internal/pkg/telemetry"
)

const (
	tracerName = "lvm-access/internal/pkg/lvmcmd"

	// SupportedFormat is the metadata format the engine operates on.
	SupportedFormat = "lvm2"

	// MinimumVersion is the oldest lvm2 release with JSON reporting.
	MinimumVersion = "2.02.158"

	pvColumns = "--options=pv_all,vg_name"
	vgColumns = "--options=vg_all"
	lvColumns = "--options=lv_all,vg_name,segtype,chunk_size,discards"
)

var (
	// ErrUnsupported is returned when the lvm installation cannot be used.
	ErrUnsupported = errors.New("lvm2 not supported")

	// ErrMalformedReport is returned when a report cannot be decoded.
	ErrMalformedReport = errors.New("malformed lvm report")
)

// Runner executes lvm commands.
type Runner struct {
	lvmPath   string
	systemDir string
	exec      exec.Interface
	tracer    trace.Tracer
}

// New constructs a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		lvmPath: "/sbin/lvm",
		exec:    exec.New(),
		tracer:  telemetry.NewNoopTracerProvider().Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SystemDir returns the LVM_SYSTEM_DIR commands run with.
func (r *Runner) SystemDir() string {
	return r.systemDir
}

// IsSupported returns nil if the lvm installation supports the lvm2 format
// at MinimumVersion or newer.
func (r *Runner) IsSupported(ctx context.Context) error {
	output, err := r.run(ctx, "formats")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if !strings.Contains(string(output), SupportedFormat) {
		return fmt.Errorf("%w: format %s not listed", ErrUnsupported, SupportedFormat)
	}

	v, err := r.Version(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if semver.Compare(canonicalVersion(v), canonicalVersion(MinimumVersion)) < 0 {
		return fmt.Errorf("%w: version %s is older than %s", ErrUnsupported, v, MinimumVersion)
	}
	return nil
}

// Version returns the lvm tool version, e.g. "2.03.16".
func (r *Runner) Version(ctx context.Context) (string, error) {
	output, err := r.run(ctx, "version")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(output), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || key != "LVM version" {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) == 0 {
			break
		}
		v, _, _ := strings.Cut(fields[0], "(")
		if canonicalVersion(v) == "" {
			return "", fmt.Errorf("unrecognized lvm version %q", v)
		}
		return v, nil
	}
	return "", fmt.Errorf("lvm version not reported")
}

// canonicalVersion converts an lvm release such as 2.03.16 to the semver
// form v2.3.16. It returns "" for anything else.
func canonicalVersion(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return ""
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return ""
		}
		nums[i] = n
	}
	c := fmt.Sprintf("v%d.%d.%d", nums[0], nums[1], nums[2])
	if !semver.IsValid(c) {
		return ""
	}
	return c
}

// Scan rescans devices for lvm metadata.
func (r *Runner) Scan(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "lvm/Scan")
	defer span.End()

	_, err := r.run(ctx, "vgscan")
	return err
}

// Display attributes of a physical volume/s.
func (r *Runner) ListPhysicalVolumes(ctx context.Context, opts *ListPVOptions) ([]PhysicalVolume, error) {
	ctx, span := r.tracer.Start(ctx, "lvm/ListPhysicalVolumes")
	defer span.End()

	cmdArgs := []string{"pvs", "--reportformat=json", "--binary", pvColumns, "--units=b"}
	if opts != nil {
		span.SetAttributes(attribute.StringSlice("pv.names", opts.Names))
		cmdArgs = append(cmdArgs, args.MarshalArgs(opts)...)
	}

	var report struct {
		Report []struct {
			PV []PhysicalVolume `json:"pv"`
		} `json:"report"`
	}
	if err := r.report(ctx, &report, cmdArgs...); err != nil {
		return nil, err
	}
	if len(report.Report) == 0 {
		return nil, nil
	}
	span.AddEvent("found physical volumes", trace.WithAttributes(
		attribute.Int("pv.count", len(report.Report[0].PV)),
	))
	return report.Report[0].PV, nil
}

// Initialize a device for use by lvm.
func (r *Runner) CreatePhysicalVolume(ctx context.Context, opts CreatePVOptions) error {
	return r.change(ctx, "lvm/CreatePhysicalVolume", []string{"pvcreate", "--yes"}, &opts,
		attribute.String("pv.name", opts.Name))
}

// Remove the lvm label from a device.
func (r *Runner) RemovePhysicalVolume(ctx context.Context, opts RemovePVOptions) error {
	return r.change(ctx, "lvm/RemovePhysicalVolume", []string{"pvremove", "--yes"}, &opts,
		attribute.String("pv.name", opts.Name))
}

// Resize a physical volume.
func (r *Runner) ResizePhysicalVolume(ctx context.Context, opts ResizePVOptions) error {
	return r.change(ctx, "lvm/ResizePhysicalVolume", []string{"pvresize", "--yes"}, &opts,
		attribute.String("pv.name", opts.Name))
}

// Display attributes of volume group/s.
func (r *Runner) ListVolumeGroups(ctx context.Context, opts *ListVGOptions) ([]VolumeGroup, error) {
	ctx, span := r.tracer.Start(ctx, "lvm/ListVolumeGroups")
	defer span.End()

	cmdArgs := []string{"vgs", "--reportformat=json", "--binary", vgColumns, "--units=b"}
	if opts != nil {
		span.SetAttributes(attribute.StringSlice("vg.names", opts.Names))
		cmdArgs = append(cmdArgs, args.MarshalArgs(opts)...)
	}

	var report struct {
		Report []struct {
			VG []VolumeGroup `json:"vg"`
		} `json:"report"`
	}
	if err := r.report(ctx, &report, cmdArgs...); err != nil {
		return nil, err
	}
	if len(report.Report) == 0 {
		return nil, nil
	}
	span.AddEvent("found volume groups", trace.WithAttributes(
		attribute.Int("vg.count", len(report.Report[0].VG)),
	))
	return report.Report[0].VG, nil
}

// Create a volume group.
func (r *Runner) CreateVolumeGroup(ctx context.Context, opts CreateVGOptions) error {
	return r.change(ctx, "lvm/CreateVolumeGroup", []string{"vgcreate", "--yes"}, &opts,
		attribute.String("vg.name", opts.Name), attribute.StringSlice("pv.names", opts.PVNames))
}

// Change volume group attributes.
func (r *Runner) UpdateVolumeGroup(ctx context.Context, opts UpdateVGOptions) error {
	return r.change(ctx, "lvm/UpdateVolumeGroup", []string{"vgchange", "--yes"}, &opts,
		attribute.String("vg.name", opts.Name))
}

// Remove a volume group.
func (r *Runner) RemoveVolumeGroup(ctx context.Context, opts RemoveVGOptions) error {
	return r.change(ctx, "lvm/RemoveVolumeGroup", []string{"vgremove", "--yes"}, &opts,
		attribute.String("vg.name", opts.Name))
}

// Add physical volumes to a volume group.
func (r *Runner) ExtendVolumeGroup(ctx context.Context, opts ExtendVGOptions) error {
	return r.change(ctx, "lvm/ExtendVolumeGroup", []string{"vgextend", "--yes"}, &opts,
		attribute.String("vg.name", opts.Name), attribute.StringSlice("pv.names", opts.PVNames))
}

// Remove physical volumes from a volume group.
func (r *Runner) ReduceVolumeGroup(ctx context.Context, opts ReduceVGOptions) error {
	return r.change(ctx, "lvm/ReduceVolumeGroup", []string{"vgreduce", "--yes"}, &opts,
		attribute.String("vg.name", opts.Name), attribute.StringSlice("pv.names", opts.PVNames))
}

// Display attributes of logical volume/s. Reports that include segment
// columns carry one row per segment; only the first row of each volume is
// kept.
func (r *Runner) ListLogicalVolumes(ctx context.Context, opts *ListLVOptions) ([]LogicalVolume, error) {
	ctx, span := r.tracer.Start(ctx, "lvm/ListLogicalVolumes")
	defer span.End()

	cmdArgs := []string{"lvs", "--reportformat=json", "--binary", lvColumns, "--units=b"}
	if opts != nil {
		span.SetAttributes(attribute.StringSlice("lv.names", opts.Names))
		cmdArgs = append(cmdArgs, args.MarshalArgs(opts)...)
	}

	var report struct {
		Report []struct {
			LV []LogicalVolume `json:"lv"`
		} `json:"report"`
	}
	if err := r.report(ctx, &report, cmdArgs...); err != nil {
		return nil, err
	}
	if len(report.Report) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var lvs []LogicalVolume
	for _, lv := range report.Report[0].LV {
		if seen[lv.UUID] {
			continue
		}
		seen[lv.UUID] = true
		lvs = append(lvs, lv)
	}
	span.AddEvent("found logical volumes", trace.WithAttributes(
		attribute.Int("lv.count", len(lvs)),
	))
	return lvs, nil
}

// Create a logical volume.
func (r *Runner) CreateLogicalVolume(ctx context.Context, opts CreateLVOptions) error {
	return r.change(ctx, "lvm/CreateLogicalVolume", []string{"lvcreate", "--yes"}, &opts,
		attribute.String("vg.name", opts.VGName), attribute.String("lv.name", opts.Name))
}

// Change logical volume attributes.
func (r *Runner) UpdateLogicalVolume(ctx context.Context, opts UpdateLVOptions) error {
	return r.change(ctx, "lvm/UpdateLogicalVolume", []string{"lvchange", "--yes"}, &opts,
		attribute.String("lv.name", opts.Name))
}

// Remove a logical volume.
func (r *Runner) RemoveLogicalVolume(ctx context.Context, opts RemoveLVOptions) error {
	return r.change(ctx, "lvm/RemoveLogicalVolume", []string{"lvremove", "--yes"}, &opts,
		attribute.String("lv.name", opts.Name))
}

// Resize a logical volume in either direction.
func (r *Runner) ResizeLogicalVolume(ctx context.Context, opts ResizeLVOptions) error {
	return r.change(ctx, "lvm/ResizeLogicalVolume", []string{"lvresize", "--yes"}, &opts,
		attribute.String("lv.name", opts.Name), attribute.String("lv.size", opts.Size))
}

// Rename a logical volume.
func (r *Runner) RenameLogicalVolume(ctx context.Context, opts RenameLVOptions) error {
	return r.change(ctx, "lvm/RenameLogicalVolume", []string{"lvrename", "--yes"}, &opts,
		attribute.String("lv.name", opts.From), attribute.String("lv.new_name", opts.To))
}

func (r *Runner) change(ctx context.Context, spanName string, cmdArgs []string, opts any, attrs ...attribute.KeyValue) error {
	ctx, span := r.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
	defer span.End()

	cmdArgs = append(cmdArgs, args.MarshalArgs(opts)...)
	if _, err := r.run(ctx, cmdArgs...); err != nil {
		return err
	}
	return nil
}

func (r *Runner) report(ctx context.Context, into any, cmdArgs ...string) error {
	reportJSON, err := r.run(ctx, cmdArgs...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reportJSON, into); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, cmdArgs ...string) ([]byte, error) {
	ctx, span := r.tracer.Start(ctx, "lvm/run", trace.WithAttributes(
		attribute.String("cmd.name", r.lvmPath),
		attribute.StringSlice("cmd.args", cmdArgs),
	))
	defer span.End()

	cmd := r.exec.CommandContext(ctx, r.lvmPath, cmdArgs...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetStdout(&stdout)
	cmd.SetStderr(&stderr)
	if r.systemDir != "" {
		cmd.SetEnv(append(os.Environ(), "LVM_SYSTEM_DIR="+r.systemDir))
	}

	defer func(stdout, stderr *bytes.Buffer) {
		span.SetAttributes(
			attribute.String("cmd.stdout", strings.TrimSpace(stdout.String())),
			attribute.String("cmd.stderr", strings.TrimSpace(stderr.String())),
		)
	}(&stdout, &stderr)

	if err := cmd.Run(); err != nil {
		// Let caller decide whether to set span status to error.
		span.RecordError(err)
		return nil, newCommandError(cmdArgs, stderr.String(), err)
	}

	span.SetStatus(codes.Ok, "lvm command succeeded")
	return stdout.Bytes(), nil
}
