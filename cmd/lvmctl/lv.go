// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"lvm-access/pkg/lvm"
)

func newLVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lv",
		Aliases: []string{"logicalvolume"},
		Short:   "Manage logical volumes",
	}
	cmd.AddCommand(
		newLVListCmd(a),
		newLVCreateCmd(a),
		newLVThinPoolCmd(a),
		newLVThinCmd(a),
		newLVActionCmd(a, "activate", "Activate a logical volume", (*lvm.LogicalVolume).Activate),
		newLVActionCmd(a, "deactivate", "Deactivate a logical volume", (*lvm.LogicalVolume).Deactivate),
		newLVActionCmd(a, "remove", "Remove a logical volume", (*lvm.LogicalVolume).Remove),
		newLVRenameCmd(a),
		newLVResizeCmd(a),
		newLVSnapshotCmd(a),
		newLVTagCmd(a, "tag", "Add tags to a logical volume", (*lvm.LogicalVolume).AddTag),
		newLVTagCmd(a, "untag", "Remove tags from a logical volume", (*lvm.LogicalVolume).RemoveTag),
	)
	return cmd
}

func newLVListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <vg>",
		Short: "List the logical volumes of a volume group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rows, err := withVolumeGroup(ctx, a, args[0], func(vg *lvm.VolumeGroup) (logicalVolumeRows, error) {
				rows := logicalVolumeRows{}
				for lv, err := range vg.AllLogicalVolumes(ctx) {
					if err != nil {
						return nil, err
					}
					v, err := describeLogicalVolume(ctx, lv)
					if err != nil {
						return nil, err
					}
					rows = append(rows, v)
				}
				return rows, nil
			})
			if err != nil {
				return err
			}
			return a.print(rows)
		},
	}
}

// createLogicalVolume runs fn on a writable session and prints the new
// volume.
func (a *app) createLogicalVolume(ctx context.Context, vgName string, fn func(*lvm.VolumeGroup) (*lvm.LogicalVolume, error)) error {
	vg, err := a.openForWrite(ctx, vgName)
	if err != nil {
		return err
	}
	defer vg.Close()
	lv, err := fn(vg)
	if err != nil {
		return err
	}
	view, err := describeLogicalVolume(ctx, lv)
	if err != nil {
		return err
	}
	log.V(1).Info("created logical volume", "vg", vg.Name(), "lv", view.Name, "size", view.Size)
	return a.print(logicalVolumeRows{view})
}

func newLVCreateCmd(a *app) *cobra.Command {
	var size sizeValue
	cmd := &cobra.Command{
		Use:   "create <vg> <lv>",
		Short: "Create a linear logical volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.createLogicalVolume(ctx, args[0], func(vg *lvm.VolumeGroup) (*lvm.LogicalVolume, error) {
				return vg.CreateLinearLogicalVolume(ctx, args[1], uint64(size))
			})
		},
	}
	cmd.Flags().Var(&size, "size", "Size of the volume, rounded up to whole extents.")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newLVThinPoolCmd(a *app) *cobra.Command {
	var (
		size, chunkSize, metadataSize sizeValue
		discards                      = discardValue(lvm.DiscardPassdown)
	)
	cmd := &cobra.Command{
		Use:   "thinpool <vg> <pool>",
		Short: "Create a thin pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.createLogicalVolume(ctx, args[0], func(vg *lvm.VolumeGroup) (*lvm.LogicalVolume, error) {
				return vg.CreateThinPool(ctx, lvm.ThinPoolParams{
					Name:         args[1],
					Size:         uint64(size),
					ChunkSize:    uint64(chunkSize),
					MetadataSize: uint64(metadataSize),
					Discard:      lvm.Discard(discards),
				})
			})
		},
	}
	cmd.Flags().Var(&size, "size", "Size of the pool data.")
	cmd.Flags().Var(&chunkSize, "chunk-size", "Allocation chunk size. Defaults to the engine's choice.")
	cmd.Flags().Var(&metadataSize, "metadata-size", "Size of the pool metadata. Defaults to the engine's choice.")
	cmd.Flags().Var(&discards, "discards", "Discard handling: ignore, nopassdown or passdown.")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newLVThinCmd(a *app) *cobra.Command {
	var size sizeValue
	cmd := &cobra.Command{
		Use:   "thin <vg> <pool> <lv>",
		Short: "Create a thin logical volume in a pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.createLogicalVolume(ctx, args[0], func(vg *lvm.VolumeGroup) (*lvm.LogicalVolume, error) {
				return vg.CreateThinLogicalVolume(ctx, args[1], args[2], uint64(size))
			})
		},
	}
	cmd.Flags().Var(&size, "size", "Virtual size of the volume.")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newLVSnapshotCmd(a *app) *cobra.Command {
	var size sizeValue
	cmd := &cobra.Command{
		Use:   "snapshot <vg> <lv> <snapshot>",
		Short: "Snapshot a logical volume",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.createLogicalVolume(ctx, args[0], func(vg *lvm.VolumeGroup) (*lvm.LogicalVolume, error) {
				origin, err := vg.LogicalVolumeByName(ctx, args[1])
				if err != nil {
					return nil, err
				}
				return origin.Snapshot(ctx, args[2], uint64(size))
			})
		},
	}
	cmd.Flags().Var(&size, "size", "Space reserved for changes. Zero lets the engine choose.")
	return cmd
}

// updateLogicalVolume runs fn on the named volume in a writable session.
func (a *app) updateLogicalVolume(ctx context.Context, vgName, lvName string, fn func(*lvm.LogicalVolume) error) error {
	vg, err := a.openForWrite(ctx, vgName)
	if err != nil {
		return err
	}
	defer vg.Close()
	lv, err := vg.LogicalVolumeByName(ctx, lvName)
	if err != nil {
		return err
	}
	if err := fn(lv); err != nil {
		return err
	}
	return vg.Close()
}

func newLVActionCmd(a *app, use, short string, fn func(*lvm.LogicalVolume, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <vg> <lv>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.updateLogicalVolume(ctx, args[0], args[1], func(lv *lvm.LogicalVolume) error {
				return fn(lv, ctx)
			})
		},
	}
}

func newLVRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <vg> <lv> <new-name>",
		Short: "Rename a logical volume",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.updateLogicalVolume(ctx, args[0], args[1], func(lv *lvm.LogicalVolume) error {
				return lv.Rename(ctx, args[2])
			})
		},
	}
}

func newLVResizeCmd(a *app) *cobra.Command {
	var size sizeValue
	cmd := &cobra.Command{
		Use:   "resize <vg> <lv>",
		Short: "Resize a logical volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if size == 0 {
				return errors.New("--size must be greater than zero")
			}
			return a.updateLogicalVolume(ctx, args[0], args[1], func(lv *lvm.LogicalVolume) error {
				return lv.Resize(ctx, uint64(size))
			})
		},
	}
	cmd.Flags().Var(&size, "size", "New size of the volume.")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newLVTagCmd(a *app, use, short string, fn func(*lvm.LogicalVolume, context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <vg> <lv> <tag>...",
		Short: short,
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.updateLogicalVolume(ctx, args[0], args[1], func(lv *lvm.LogicalVolume) error {
				for _, tag := range args[2:] {
					if err := fn(lv, ctx, tag); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
