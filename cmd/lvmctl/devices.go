// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"github.com/spf13/cobra"
)

func newDevicesCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List block devices and their LVM usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			devices, err := a.blockDevices(ctx)
			if err != nil {
				return err
			}
			c, err := a.lvm(ctx)
			if err != nil {
				return err
			}
			rows := deviceRows{}
			for _, d := range devices {
				var vg string
				if d.IsPhysicalVolume() {
					if vg, _, err = c.VolumeGroupNameForDevice(ctx, d.Path); err != nil {
						return err
					}
				}
				if !all && vg == "" && !d.IsPhysicalVolume() && !d.IsAvailable() {
					continue
				}
				rows = append(rows, describeDevice(d, vg))
			}
			return a.print(rows)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include devices that cannot hold a physical volume.")
	return cmd
}
