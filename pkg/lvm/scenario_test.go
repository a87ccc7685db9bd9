// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine/memory"
	"lvm-access/pkg/lvm"
)

var _ = Describe("Volume management sessions", func() {
	var (
		ctx    context.Context
		store  *memory.Store
		client *lvm.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewStore()
		store.AddDevice("/dev/loop0", convert.GiB)
		store.AddDevice("/dev/loop1", convert.GiB)

		var err error
		client, err = lvm.Open(ctx, lvm.WithEngine(memory.New(store)))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(client.Close)
	})

	Context("when building a volume group from scratch", func() {
		var vg *lvm.VolumeGroup

		BeforeEach(func() {
			var err error
			vg, err = client.CreateVolumeGroup(ctx, "vg0")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(vg.Close)
			Expect(vg.Extend(ctx, "/dev/loop0")).To(Succeed())
		})

		It("persists the group once it has a device", func() {
			Expect(client.ListVolumeGroupNames(ctx)).To(ConsistOf("vg0"))
			Expect(vg.PVCount()).To(BeEquivalentTo(1))
			Expect(vg.Mode()).To(Equal(lvm.ReadWrite))
			Expect(vg.ExtentSize()).To(BeEquivalentTo(4 * convert.MiB))
		})

		It("activates and snapshots a linear volume", func() {
			lv, err := vg.CreateLinearLogicalVolume(ctx, "lv0", 10*convert.MiB)
			Expect(err).NotTo(HaveOccurred())
			Expect(lv.Activate(ctx)).To(Succeed())
			Expect(lv.IsActive()).To(BeTrue())

			snap, err := lv.Snapshot(ctx, "lv0-snap", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Origin()).To(Equal("lv0"))
			Expect(snap.Attributes()).To(HavePrefix("s"))

			names := []string{}
			for lv, err := range vg.AllLogicalVolumes(ctx) {
				Expect(err).NotTo(HaveOccurred())
				names = append(names, lv.Name())
			}
			Expect(names).To(ConsistOf("lv0", "lv0-snap"))
		})

		It("reports an exhausted group", func() {
			_, err := vg.CreateLinearLogicalVolume(ctx, "huge", 2*convert.GiB)
			Expect(err).To(MatchError(lvm.ErrResourceExhausted))
			var ee *lvm.EngineError
			Expect(err).To(BeAssignableToTypeOf(ee))
		})

		It("changes the extent size", func() {
			Expect(vg.SetExtentSize(ctx, 8*convert.MiB)).To(Succeed())
			Expect(vg.ExtentSize()).To(BeEquivalentTo(8 * convert.MiB))
		})

		It("invalidates every handle when removed", func() {
			lv, err := vg.CreateLinearLogicalVolume(ctx, "lv0", convert.MiB)
			Expect(err).NotTo(HaveOccurred())
			Expect(vg.Remove(ctx)).To(MatchError(lvm.ErrInUse))

			Expect(lv.Remove(ctx)).To(Succeed())
			Expect(vg.Remove(ctx)).To(Succeed())
			Expect(vg.Err()).To(MatchError(lvm.ErrReleased))
			Expect(vg.Size()).To(BeZero())
			Expect(client.ListVolumeGroupNames(ctx)).To(BeEmpty())
		})
	})

	Context("with a committed group", func() {
		BeforeEach(func() {
			vg, err := client.CreateVolumeGroup(ctx, "vg0")
			Expect(err).NotTo(HaveOccurred())
			Expect(vg.Extend(ctx, "/dev/loop0")).To(Succeed())
			Expect(vg.Close()).To(Succeed())
		})

		It("keeps the sequence number between a read and a write open", func() {
			ro, err := client.OpenVolumeGroup(ctx, "vg0", lvm.ReadOnly)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ro.Close)
			s1 := ro.SeqNo()

			rw, err := client.OpenVolumeGroup(ctx, "vg0", lvm.ReadWrite)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(rw.Close)
			Expect(rw.SeqNo()).To(Equal(s1))

			Expect(rw.AddTag(ctx, "touched")).To(Succeed())
			Expect(rw.SeqNo()).To(BeNumerically(">", s1))
		})

		It("detects a writer that slipped in between", func() {
			ro, err := client.OpenVolumeGroup(ctx, "vg0", lvm.ReadOnly)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Touch("vg0")).To(BeTrue())

			_, err = ro.ReopenForWrite(ctx)
			Expect(err).To(MatchError(lvm.ErrConcurrentModification))
		})

		It("rejects writes through a read-only session", func() {
			ro, err := client.OpenVolumeGroup(ctx, "vg0", lvm.ReadOnly)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ro.Close)
			seq := ro.SeqNo()

			Expect(ro.Extend(ctx, "/dev/loop1")).To(MatchError(lvm.ErrPermission))
			Expect(ro.SeqNo()).To(Equal(seq))
			Expect(ro.PVCount()).To(BeEquivalentTo(1))
		})

		It("exposes properties of every object", func() {
			ro, err := client.OpenVolumeGroup(ctx, "vg0", lvm.ReadOnly)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(ro.Close)

			Expect(ro.Property("vg_name").String).To(Equal("vg0"))
			Expect(ro.Property("pv_count").Integer).To(BeEquivalentTo(1))
			Expect(ro.Property("bogus").Valid).To(BeFalse())

			pv, err := ro.PhysicalVolumeByName(ctx, "/dev/loop0")
			Expect(err).NotTo(HaveOccurred())
			Expect(pv.Property("pe_start").Integer).To(BeEquivalentTo(convert.MiB))
			Expect(pv.Free()).To(Equal(ro.FreeSize()))
		})
	})
})
