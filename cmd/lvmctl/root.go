// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lvm-access/internal/pkg/config"
	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/version"
	"lvm-access/pkg/lvm"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "lvmctl",
		Short: "Manage LVM volume groups and volumes",
		Long: `lvmctl manages LVM volume groups, logical volumes and physical volumes.

Changes to a volume group are committed as soon as each command succeeds.
Commands that modify a group read its sequence number first and refuse to
write if another process committed in between.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to the lvmctl configuration file.")
	flags.StringVar(&a.flags.engine, "engine", config.EngineLVM, `Engine to use: "lvm" or "memory".`)
	flags.StringVar(&a.flags.lvmPath, "lvm-path", "lvm", "Path to the lvm binary.")
	flags.StringVar(&a.flags.systemDir, "system-dir", "", "Alternate LVM configuration directory.")
	flags.StringVarP(&a.flags.output, "output", "o", config.OutputTable, "Output format: table, yaml or json.")
	flags.StringVar(&a.flags.traceAddress, "trace-address", "", "OTLP gRPC endpoint for traces and metrics.")
	flags.IntVar(&a.flags.traceRate, "trace-sample-rate", 0, "Sampling rate of traces per million spans.")
	flags.BoolVar(&a.flags.consoleMetrics, "metrics-console", false, "Print metrics to stderr when the command finishes.")

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	a.logConfig.AddFlags(goFlags)
	flags.AddGoFlagSet(goFlags)

	root.AddCommand(
		newVersionCmd(a),
		newScanCmd(a),
		newVGCmd(a),
		newLVCmd(a),
		newPVCmd(a),
		newDevicesCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()
			version.Log(log.V(1))
			if a.cfg.Output == config.OutputTable {
				_, err := fmt.Fprintln(a.out, info.String())
				return err
			}
			return a.print(info)
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rescan devices for LVM metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.lvm(cmd.Context())
			if err != nil {
				return err
			}
			return c.Scan(cmd.Context())
		},
	}
}

// sizeValue is a byte count flag accepting quantities such as "10Gi".
type sizeValue uint64

var _ pflag.Value = (*sizeValue)(nil)

func (s *sizeValue) String() string {
	if *s == 0 {
		return "0"
	}
	return convert.FormatSize(uint64(*s))
}

func (s *sizeValue) Set(v string) error {
	n, err := convert.ParseSize(v)
	if err != nil {
		return err
	}
	*s = sizeValue(n)
	return nil
}

func (s *sizeValue) Type() string { return "size" }

// discardValue is the thin pool discard mode flag.
type discardValue lvm.Discard

var _ pflag.Value = (*discardValue)(nil)

func (d *discardValue) String() string { return lvm.Discard(*d).String() }

func (d *discardValue) Set(v string) error {
	for _, m := range []lvm.Discard{lvm.DiscardIgnore, lvm.DiscardNoPassdown, lvm.DiscardPassdown} {
		if m.String() == v {
			*d = discardValue(m)
			return nil
		}
	}
	return fmt.Errorf("must be ignore, nopassdown or passdown")
}

func (d *discardValue) Type() string { return "discards" }
