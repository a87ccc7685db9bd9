// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2/textlogger"
	"k8s.io/utils/exec"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"lvm-access/internal/pkg/block"
	"lvm-access/internal/pkg/config"
	"lvm-access/internal/pkg/engine/memory"
	"lvm-access/internal/pkg/output"
	"lvm-access/internal/pkg/retry"
	"lvm-access/internal/pkg/telemetry"
	"lvm-access/pkg/lvm"
)

// app holds the state shared by every command of one invocation.
type app struct {
	out       io.Writer
	errOut    io.Writer
	logConfig *textlogger.Config

	configFile string
	flags      overrides

	cfg       *config.Config
	printer   *output.Printer
	telemetry *telemetry.Providers
	client    *lvm.Client

	// store is the simulated host of the memory engine. It is built from the
	// configured devices when nil.
	store *memory.Store
	exec  exec.Interface
}

// overrides are the global flags that take precedence over the
// configuration file when set.
type overrides struct {
	engine         string
	lvmPath        string
	systemDir      string
	output         string
	traceAddress   string
	traceRate      int
	consoleMetrics bool
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:       out,
		errOut:    errOut,
		logConfig: textlogger.NewConfig(textlogger.VerbosityFlagName("v"), textlogger.Output(errOut)),
		exec:      exec.New(),
	}
}

// setup loads the configuration and starts telemetry. It runs before every
// command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.printer, err = output.New(a.out, cfg.Output)
	if err != nil {
		return err
	}

	log := ctrl.Log.WithName("lvmctl")
	ctx := ctrl.LoggerInto(cmd.Context(), log)
	cmd.SetContext(ctx)

	exporter := telemetry.None
	switch {
	case cfg.Telemetry.ConsoleMetrics:
		exporter = telemetry.Console
	case cfg.Telemetry.Endpoint != "":
		exporter = telemetry.OTLP
	}
	a.telemetry, err = telemetry.New(ctx,
		telemetry.WithServiceInstanceID(cfg.Telemetry.ServiceID),
		telemetry.WithEndpoint(cfg.Telemetry.Endpoint),
		telemetry.WithTraceSampleRate(int(cfg.Telemetry.SampleRate)),
		telemetry.WithMetricsExporter(exporter),
		telemetry.WithGatherer(metrics.Registry, metrics.Registry),
		telemetry.WithConsoleOutput(a.errOut),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	log.V(2).Info("configured", "engine", cfg.Engine, "output", cfg.Output, "metrics", exporter)
	return nil
}

func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine = a.flags.engine
	}
	if flags.Changed("lvm-path") {
		cfg.LVMPath = a.flags.lvmPath
	}
	if flags.Changed("system-dir") {
		cfg.SystemDir = a.flags.systemDir
	}
	if flags.Changed("output") {
		cfg.Output = a.flags.output
	}
	if flags.Changed("trace-address") {
		cfg.Telemetry.Endpoint = a.flags.traceAddress
	}
	if flags.Changed("trace-sample-rate") {
		cfg.Telemetry.SampleRate = int32(a.flags.traceRate)
	}
	if flags.Changed("metrics-console") {
		cfg.Telemetry.ConsoleMetrics = a.flags.consoleMetrics
	}
}

// lvm returns the engine context, opening it on first use.
func (a *app) lvm(ctx context.Context) (*lvm.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	opts := []lvm.Option{
		lvm.WithSystemDir(a.cfg.SystemDir),
		lvm.WithTracerProvider(a.telemetry.TracerProvider()),
	}
	switch a.cfg.Engine {
	case config.EngineMemory:
		opts = append(opts, lvm.WithEngine(memory.New(a.memoryStore())))
	default:
		opts = append(opts, lvm.WithLVMPath(a.cfg.LVMPath))
	}
	c, err := lvm.Open(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open lvm: %w", err)
	}
	a.client = c
	return c, nil
}

func (a *app) memoryStore() *memory.Store {
	if a.store == nil {
		a.store = memory.NewStore()
		for _, d := range a.cfg.SimulatedDevices() {
			a.store.AddDevice(d.Path, d.Size)
		}
	}
	return a.store
}

// blockDevices lists the devices that can hold physical volumes. The memory
// engine reports its simulated devices.
func (a *app) blockDevices(ctx context.Context) ([]block.Device, error) {
	if a.cfg.Engine == config.EngineMemory {
		store := a.memoryStore()
		var out []block.Device
		for _, path := range store.Devices() {
			size, _ := store.DeviceSize(path)
			d := block.Device{Name: path, Path: path, Type: "disk", Size: int64(size)}
			if store.HasLabel(path) {
				d.FSType = "LVM2_member"
			}
			out = append(out, d)
		}
		return out, nil
	}
	list, err := block.New(a.exec).GetDevices(ctx)
	if err != nil {
		return nil, err
	}
	return list.Flatten(), nil
}

// openForWrite opens a volume group read-only and upgrades the session,
// failing if another writer committed in between. It waits for the lock
// held by a concurrent writer.
func (a *app) openForWrite(ctx context.Context, name string) (*lvm.VolumeGroup, error) {
	c, err := a.lvm(ctx)
	if err != nil {
		return nil, err
	}
	var vg *lvm.VolumeGroup
	err = retry.OnErrorIs(retry.LockBackoff, func() error {
		ro, err := c.OpenVolumeGroup(ctx, name, lvm.ReadOnly)
		if err != nil {
			return err
		}
		vg, err = ro.ReopenForWrite(ctx)
		return err
	}, lvm.ErrInUse)
	return vg, err
}

func (a *app) openForRead(ctx context.Context, name string) (*lvm.VolumeGroup, error) {
	c, err := a.lvm(ctx)
	if err != nil {
		return nil, err
	}
	return c.OpenVolumeGroup(ctx, name, lvm.ReadOnly)
}

// shutdown releases the engine context and flushes telemetry.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
		a.client = nil
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
		a.telemetry = nil
	}
	return errors.Join(errs...)
}

func (a *app) print(v any) error {
	return a.printer.Print(v)
}
