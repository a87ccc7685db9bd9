// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"errors"
	"fmt"

	"github.com/gotidy/ptr"
	"github.com/spf13/cobra"

	"lvm-access/pkg/lvm"
)

func newPVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pv",
		Aliases: []string{"physicalvolume"},
		Short:   "Manage physical volumes",
	}
	cmd.AddCommand(
		newPVListCmd(a),
		newPVCreateCmd(a),
		newPVRemoveCmd(a),
		newPVResizeCmd(a),
		newPVLookupCmd(a),
	)
	return cmd
}

func newPVListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [vg]...",
		Short: "List the physical volumes of volume groups, all groups by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			names := args
			if len(names) == 0 {
				c, err := a.lvm(ctx)
				if err != nil {
					return err
				}
				if names, err = c.ListVolumeGroupNames(ctx); err != nil {
					return err
				}
			}
			rows := physicalVolumeRows{}
			for _, name := range names {
				pvs, err := withVolumeGroup(ctx, a, name, func(vg *lvm.VolumeGroup) (physicalVolumeRows, error) {
					var rows physicalVolumeRows
					for pv, err := range vg.AllPhysicalVolumes(ctx) {
						if err != nil {
							return nil, err
						}
						rows = append(rows, describePhysicalVolume(vg, pv))
					}
					return rows, nil
				})
				if err != nil {
					return err
				}
				rows = append(rows, pvs...)
			}
			return a.print(rows)
		},
	}
}

func newPVCreateCmd(a *app) *cobra.Command {
	var (
		size, metadataSize, dataAlignment, dataAlignmentOffset sizeValue
		metadataCopies                                         uint64
		zero                                                   bool
	)
	cmd := &cobra.Command{
		Use:   "create <device>...",
		Short: "Initialize devices as physical volumes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.lvm(ctx)
			if err != nil {
				return err
			}
			params := lvm.PVParams{
				Size:                uint64(size),
				MetadataSize:        uint64(metadataSize),
				DataAlignment:       uint64(dataAlignment),
				DataAlignmentOffset: uint64(dataAlignmentOffset),
			}
			if cmd.Flags().Changed("metadata-copies") {
				params.MetadataCopies = ptr.Of(metadataCopies)
			}
			if cmd.Flags().Changed("zero") {
				params.Zero = ptr.Of(zero)
			}
			for _, dev := range args {
				if err := c.CreatePhysicalVolumeWithParams(ctx, dev, params); err != nil {
					return err
				}
				log.V(1).Info("created physical volume", "device", dev)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Var(&size, "size", "Usable size of the device. Defaults to the whole device.")
	flags.Uint64Var(&metadataCopies, "metadata-copies", 1, "Number of metadata areas: 0, 1 or 2.")
	flags.Var(&metadataSize, "metadata-size", "Size of each metadata area.")
	flags.Var(&dataAlignment, "data-alignment", "Alignment of the start of the data area.")
	flags.Var(&dataAlignmentOffset, "data-alignment-offset", "Additional offset of the data area.")
	flags.BoolVar(&zero, "zero", true, "Wipe the first sectors of the device.")
	return cmd
}

func newPVRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <device>...",
		Short: "Remove the physical volume label from devices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.lvm(cmd.Context())
			if err != nil {
				return err
			}
			for _, dev := range args {
				if err := c.RemovePhysicalVolume(cmd.Context(), dev); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newPVResizeCmd(a *app) *cobra.Command {
	var size sizeValue
	cmd := &cobra.Command{
		Use:   "resize <vg> <device>",
		Short: "Change the usable size of a physical volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vg, err := a.openForWrite(ctx, args[0])
			if err != nil {
				return err
			}
			defer vg.Close()
			pv, err := vg.PhysicalVolumeByName(ctx, args[1])
			if err != nil {
				return err
			}
			if err := pv.Resize(ctx, uint64(size)); err != nil {
				return err
			}
			return vg.Close()
		},
	}
	cmd.Flags().Var(&size, "size", "New usable size of the device.")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newPVLookupCmd(a *app) *cobra.Command {
	var byUUID bool
	cmd := &cobra.Command{
		Use:   "lookup <device|uuid>",
		Short: "Print the volume group a device or physical volume UUID belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.lvm(ctx)
			if err != nil {
				return err
			}
			var (
				name string
				ok   bool
			)
			if byUUID {
				id, perr := lvm.ParseUUID(args[0])
				if perr != nil {
					return perr
				}
				name, ok, err = c.VolumeGroupNameForPhysicalVolumeUUID(ctx, id)
			} else {
				name, ok, err = c.VolumeGroupNameForDevice(ctx, args[0])
			}
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(args[0] + " does not belong to a volume group")
			}
			_, err = fmt.Fprintln(a.out, name)
			return err
		},
	}
	cmd.Flags().BoolVar(&byUUID, "uuid", false, "Treat the argument as a physical volume UUID.")
	return cmd
}
