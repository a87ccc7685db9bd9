// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"lvm-access/internal/pkg/convert"
	"lvm-access/internal/pkg/engine"
	"lvm-access/internal/pkg/engine/memory"
	"lvm-access/pkg/lvm"
)

// spyEngine records the calls that touch the error slot or mutate a group.
type spyEngine struct {
	*memory.Engine

	mu    sync.Mutex
	calls []string
}

func (s *spyEngine) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *spyEngine) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func (s *spyEngine) Errno(h engine.Handle) syscall.Errno {
	s.record("Errno")
	return s.Engine.Errno(h)
}

func (s *spyEngine) Errmsg(h engine.Handle) string {
	s.record("Errmsg")
	return s.Engine.Errmsg(h)
}

func (s *spyEngine) VGOpen(ctx context.Context, h engine.Handle, name, mode string) engine.VG {
	s.record("VGOpen")
	return s.Engine.VGOpen(ctx, h, name, mode)
}

func (s *spyEngine) VGAddTag(vg engine.VG, tag string) int {
	s.record("VGAddTag")
	return s.Engine.VGAddTag(vg, tag)
}

func (s *spyEngine) VGWrite(ctx context.Context, vg engine.VG) int {
	s.record("VGWrite")
	return s.Engine.VGWrite(ctx, vg)
}

func (s *spyEngine) LVAddTag(lv engine.LV, tag string) int {
	s.record("LVAddTag")
	return s.Engine.LVAddTag(lv, tag)
}

func newSpyClient(t *testing.T) (*lvm.Client, *spyEngine) {
	t.Helper()
	store := memory.NewStore()
	store.AddDevice("/dev/loop0", convert.GiB)
	spy := &spyEngine{Engine: memory.New(store)}
	c, err := lvm.Open(context.Background(), lvm.WithEngine(spy))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, spy
}

func TestErrorSlotReadImmediately(t *testing.T) {
	c, spy := newSpyClient(t)

	const workers, rounds = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rounds {
				name := fmt.Sprintf("missing-%d-%d", w, r)
				_, err := c.OpenVolumeGroup(context.Background(), name, lvm.ReadOnly)
				var ee *lvm.EngineError
				if !errors.As(err, &ee) || !strings.Contains(ee.Message, `"`+name+`"`) {
					errs <- fmt.Errorf("OpenVolumeGroup(%s) error = %v", name, err)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	calls := spy.recorded()
	if len(calls) != 3*workers*rounds {
		t.Fatalf("recorded %d calls, want %d", len(calls), 3*workers*rounds)
	}
	for i := 0; i < len(calls); i += 3 {
		if got := calls[i : i+3]; !slices.Equal(got, []string{"VGOpen", "Errno", "Errmsg"}) {
			t.Fatalf("calls[%d:%d] = %v, want the error slot read right after the failing call", i, i+3, got)
		}
	}
}

func TestReadOnlyMutationsDoNotReachEngine(t *testing.T) {
	ctx := context.Background()
	c, spy := newSpyClient(t)
	vg := newGroup(t, c, "vg0", "/dev/loop0")
	if _, err := vg.CreateLinearLogicalVolume(ctx, "data", convert.MiB); err != nil {
		t.Fatal(err)
	}
	vg.Close()

	ro, err := c.OpenVolumeGroup(ctx, "vg0", lvm.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()
	lv, err := ro.LogicalVolumeByName(ctx, "data")
	if err != nil {
		t.Fatal(err)
	}
	before := len(spy.recorded())

	if err := ro.AddTag(ctx, "x"); !errors.Is(err, lvm.ErrPermission) {
		t.Errorf("AddTag() error = %v, want ErrPermission", err)
	}
	if err := lv.AddTag(ctx, "x"); !errors.Is(err, lvm.ErrPermission) {
		t.Errorf("LV AddTag() error = %v, want ErrPermission", err)
	}
	if err := ro.Write(ctx); !errors.Is(err, lvm.ErrPermission) {
		t.Errorf("Write() error = %v, want ErrPermission", err)
	}
	if calls := spy.recorded()[before:]; len(calls) != 0 {
		t.Errorf("read-only mutations reached the engine: %v", calls)
	}
}

// failingWriteEngine fails every commit while failWrites is set.
type failingWriteEngine struct {
	*memory.Engine

	failWrites atomic.Bool
	failed     atomic.Bool
}

func (f *failingWriteEngine) VGWrite(ctx context.Context, vg engine.VG) int {
	if f.failWrites.Load() {
		f.failed.Store(true)
		return -1
	}
	f.failed.Store(false)
	return f.Engine.VGWrite(ctx, vg)
}

func (f *failingWriteEngine) Errno(h engine.Handle) syscall.Errno {
	if f.failed.Load() {
		return syscall.EIO
	}
	return f.Engine.Errno(h)
}

func (f *failingWriteEngine) Errmsg(h engine.Handle) string {
	if f.failed.Load() {
		return "Failed to write metadata"
	}
	return f.Engine.Errmsg(h)
}

func TestRemoveClosesSessionWhenCommitFails(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.AddDevice("/dev/loop0", convert.GiB)
	eng := &failingWriteEngine{Engine: memory.New(store)}
	c, err := lvm.Open(ctx, lvm.WithEngine(eng))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	vg := newGroup(t, c, "vg0", "/dev/loop0")

	eng.failWrites.Store(true)
	err = vg.Remove(ctx)
	if !errors.Is(err, syscall.EIO) {
		t.Fatalf("Remove() error = %v, want the commit failure", err)
	}
	if !errors.Is(vg.Err(), lvm.ErrReleased) {
		t.Errorf("session still open after a failed Remove: %v", vg.Err())
	}
	if err := vg.AddTag(ctx, "late"); !errors.Is(err, lvm.ErrReleased) {
		t.Errorf("AddTag() after failed Remove error = %v, want ErrReleased", err)
	}
	eng.failWrites.Store(false)

	rw, err := c.OpenVolumeGroup(ctx, "vg0", lvm.ReadWrite)
	if err != nil {
		t.Fatalf("OpenVolumeGroup() after failed Remove error = %v", err)
	}
	defer rw.Close()
	if err := rw.AddTag(ctx, "kept"); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	names, err := c.ListVolumeGroupNames(ctx)
	if err != nil || !slices.Contains(names, "vg0") {
		t.Errorf("ListVolumeGroupNames() = %v, %v, want vg0 to survive", names, err)
	}
}
