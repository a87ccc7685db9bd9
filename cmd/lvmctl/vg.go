// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lvm-access/internal/pkg/output"
	"lvm-access/pkg/lvm"
)

func newVGCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vg",
		Aliases: []string{"volumegroup"},
		Short:   "Manage volume groups",
	}
	cmd.AddCommand(
		newVGListCmd(a),
		newVGUUIDsCmd(a),
		newVGShowCmd(a),
		newVGCreateCmd(a),
		newVGRemoveCmd(a),
		newVGDevicesCmd(a, "extend", "Add devices to a volume group", (*lvm.VolumeGroup).Extend),
		newVGDevicesCmd(a, "reduce", "Remove unused devices from a volume group", (*lvm.VolumeGroup).Reduce),
		newVGTagCmd(a, "tag", "Add tags to a volume group", (*lvm.VolumeGroup).AddTag),
		newVGTagCmd(a, "untag", "Remove tags from a volume group", (*lvm.VolumeGroup).RemoveTag),
		newVGValidateCmd(a),
		newVGSeqNoCmd(a),
	)
	return cmd
}

func newVGListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List volume groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.lvm(ctx)
			if err != nil {
				return err
			}
			names, err := c.ListVolumeGroupNames(ctx)
			if err != nil {
				return err
			}
			rows := volumeGroupRows{}
			for _, name := range names {
				view, err := withVolumeGroup(ctx, a, name, func(vg *lvm.VolumeGroup) (volumeGroupView, error) {
					return describeVolumeGroup(ctx, vg)
				})
				if errors.Is(err, lvm.ErrNotFound) {
					// Removed after listing.
					continue
				}
				if err != nil {
					return err
				}
				rows = append(rows, view)
			}
			return a.print(rows)
		},
	}
}

func newVGUUIDsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uuids",
		Short: "List volume group UUIDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.lvm(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := c.ListVolumeGroupUUIDs(cmd.Context())
			if err != nil {
				return err
			}
			list := output.List{Title: "uuid", Items: make([]string, 0, len(ids))}
			for _, id := range ids {
				list.Items = append(list.Items, id.String())
			}
			return a.print(list)
		},
	}
}

func newVGShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <vg>",
		Short: "Show a volume group with its physical and logical volumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			detail, err := withVolumeGroup(ctx, a, args[0], func(vg *lvm.VolumeGroup) (volumeGroupDetail, error) {
				view, err := describeVolumeGroup(ctx, vg)
				if err != nil {
					return volumeGroupDetail{}, err
				}
				d := volumeGroupDetail{volumeGroupView: view, PhysicalVolumes: physicalVolumeRows{}, LogicalVolumes: logicalVolumeRows{}}
				for pv, err := range vg.AllPhysicalVolumes(ctx) {
					if err != nil {
						return d, err
					}
					d.PhysicalVolumes = append(d.PhysicalVolumes, describePhysicalVolume(vg, pv))
				}
				for lv, err := range vg.AllLogicalVolumes(ctx) {
					if err != nil {
						return d, err
					}
					v, err := describeLogicalVolume(ctx, lv)
					if err != nil {
						return d, err
					}
					d.LogicalVolumes = append(d.LogicalVolumes, v)
				}
				return d, nil
			})
			if err != nil {
				return err
			}
			return a.print(detail)
		},
	}
}

func newVGCreateCmd(a *app) *cobra.Command {
	var (
		extentSize sizeValue
		tags       []string
	)
	cmd := &cobra.Command{
		Use:   "create <vg> <device>...",
		Short: "Create a volume group on one or more physical volumes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.lvm(ctx)
			if err != nil {
				return err
			}
			vg, err := c.CreateVolumeGroup(ctx, args[0])
			if err != nil {
				return err
			}
			defer vg.Close()
			for _, dev := range args[1:] {
				if err := vg.Extend(ctx, dev); err != nil {
					return err
				}
			}
			if extentSize != 0 {
				if uint64(extentSize) > uint64(^uint32(0)) {
					return fmt.Errorf("extent size %s is too large", extentSize.String())
				}
				if err := vg.SetExtentSize(ctx, uint32(extentSize)); err != nil {
					return err
				}
			}
			for _, tag := range tags {
				if err := vg.AddTag(ctx, tag); err != nil {
					return err
				}
			}
			log.V(1).Info("created volume group", "name", vg.Name(), "uuid", vg.UUID(), "seqno", vg.SeqNo())
			return vg.Close()
		},
	}
	cmd.Flags().Var(&extentSize, "extent-size", "Physical extent size, e.g. 4Mi.")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags to add to the new group.")
	return cmd
}

func newVGRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <vg>",
		Short: "Remove an empty volume group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vg, err := a.openForWrite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer vg.Close()
			return vg.Remove(cmd.Context())
		},
	}
}

func newVGDevicesCmd(a *app, use, short string, fn func(*lvm.VolumeGroup, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <vg> <device>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.updateVolumeGroup(cmd.Context(), args[0], args[1:], fn)
		},
	}
}

func newVGTagCmd(a *app, use, short string, fn func(*lvm.VolumeGroup, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <vg> <tag>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.updateVolumeGroup(cmd.Context(), args[0], args[1:], fn)
		},
	}
}

// updateVolumeGroup applies fn to each value. Each call commits on its own.
func (a *app) updateVolumeGroup(ctx context.Context, name string, values []string, fn func(*lvm.VolumeGroup, context.Context, string) error) error {
	vg, err := a.openForWrite(ctx, name)
	if err != nil {
		return err
	}
	defer vg.Close()
	for _, v := range values {
		if err := fn(vg, ctx, v); err != nil {
			return err
		}
	}
	return vg.Close()
}

func newVGValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <name>",
		Short: "Check that a name can be used for a new volume group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.lvm(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.ValidateVolumeGroupName(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s is a valid volume group name\n", args[0])
			return err
		},
	}
}

func newVGSeqNoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seqno <vg>",
		Short: "Print the committed revision of a volume group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev, err := withVolumeGroup(cmd.Context(), a, args[0], func(vg *lvm.VolumeGroup) (lvm.Revision, error) {
				return vg.Revision(), nil
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, rev.String())
			return err
		},
	}
}

// withVolumeGroup runs fn on a read-only session of the named group.
func withVolumeGroup[T any](ctx context.Context, a *app, name string, fn func(*lvm.VolumeGroup) (T, error)) (T, error) {
	var zero T
	vg, err := a.openForRead(ctx, name)
	if err != nil {
		return zero, err
	}
	defer vg.Close()
	return fn(vg)
}
