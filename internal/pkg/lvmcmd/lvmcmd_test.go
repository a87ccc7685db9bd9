// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcmd

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"

	"k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"
)

type fakeRun struct {
	stdout string
	stderr string
	err    error
}

// newFakeRunner returns a Runner whose commands play back runs in order. The
// returned slice collects the argv of every command executed.
func newFakeRunner(t *testing.T, runs ...fakeRun) (*Runner, *[][]string, *[]*testingexec.FakeCmd) {
	t.Helper()
	var argv [][]string
	var cmds []*testingexec.FakeCmd
	fe := &testingexec.FakeExec{}
	for _, run := range runs {
		run := run
		fe.CommandScript = append(fe.CommandScript, func(cmd string, args ...string) exec.Cmd {
			argv = append(argv, append([]string{cmd}, args...))
			fc := &testingexec.FakeCmd{
				RunScript: []testingexec.FakeAction{
					func() ([]byte, []byte, error) {
						return []byte(run.stdout), []byte(run.stderr), run.err
					},
				},
			}
			cmds = append(cmds, fc)
			return testingexec.InitFakeCmd(fc, cmd, args...)
		})
	}
	t.Cleanup(func() {
		if fe.CommandCalls != len(runs) {
			t.Errorf("expected %d commands, ran %d", len(runs), fe.CommandCalls)
		}
	})
	return New(WithLVM("/usr/sbin/lvm"), WithSystemDir("/etc/lvm-test"), WithExec(fe)), &argv, &cmds
}

func TestIsSupported(t *testing.T) {
	formats := fakeRun{stdout: "  lvm1\n  pool\n  lvm2\n"}
	version := func(v string) fakeRun {
		return fakeRun{stdout: "  LVM version:     " + v + "(2) (2022-05-18)\n  Library version: 1.02.185 (2022-05-18)\n  Driver version:  4.47.0\n"}
	}

	tests := []struct {
		name    string
		runs    []fakeRun
		wantErr bool
	}{
		{
			name: "supported",
			runs: []fakeRun{formats, version("2.03.16")},
		},
		{
			name: "minimum version",
			runs: []fakeRun{formats, version("2.02.158")},
		},
		{
			name:    "too old",
			runs:    []fakeRun{formats, version("2.02.98")},
			wantErr: true,
		},
		{
			name:    "format missing",
			runs:    []fakeRun{{stdout: "  lvm1\n  pool\n"}},
			wantErr: true,
		},
		{
			name:    "lvm missing",
			runs:    []fakeRun{{err: &testingexec.FakeExitError{Status: 127}}},
			wantErr: true,
		},
		{
			name:    "unparsable version",
			runs:    []fakeRun{formats, {stdout: "  LVM version:     unknown\n"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newFakeRunner(t, tt.runs...)
			err := r.IsSupported(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsSupported() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupported) {
				t.Errorf("IsSupported() error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestCanonicalVersion(t *testing.T) {
	tests := map[string]string{
		"2.03.16":  "v2.3.16",
		"2.02.158": "v2.2.158",
		"2.3":      "",
		"2.x.1":    "",
		"":         "",
	}
	for in, want := range tests {
		if got := canonicalVersion(in); got != want {
			t.Errorf("canonicalVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunEnvironment(t *testing.T) {
	r, argv, cmds := newFakeRunner(t, fakeRun{})
	if err := r.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if got := (*argv)[0]; len(got) != 2 || got[0] != "/usr/sbin/lvm" || got[1] != "vgscan" {
		t.Errorf("Scan() ran %v", got)
	}
	var found bool
	for _, env := range (*cmds)[0].Env {
		if env == "LVM_SYSTEM_DIR=/etc/lvm-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("LVM_SYSTEM_DIR not set in %v", (*cmds)[0].Env)
	}
}

func TestListReports(t *testing.T) {
	t.Run("physical volumes", func(t *testing.T) {
		r, argv, _ := newFakeRunner(t, fakeRun{stdout: `{"report":[{"pv":[
			{"pv_uuid":"abc","pv_name":"/dev/loop0","dev_size":"1073741824B","pe_start":"1048576B",
			 "pv_size":"1069547520B","pv_free":"1065353216B","pv_attr":"a--","pv_missing":"0",
			 "pv_tags":"","pv_mda_count":"1","vg_name":"vg0"}]}]}`})
		pvs, err := r.ListPhysicalVolumes(context.Background(), &ListPVOptions{Names: []string{"/dev/loop0"}})
		if err != nil {
			t.Fatalf("ListPhysicalVolumes() error = %v", err)
		}
		if len(pvs) != 1 {
			t.Fatalf("expected 1 PV, got %d", len(pvs))
		}
		pv := pvs[0]
		if pv.Name != "/dev/loop0" || pv.VGName != "vg0" || pv.DeviceSize != 1<<30 || pv.MetadataCount != 1 || bool(pv.Missing) {
			t.Errorf("unexpected PV %+v", pv)
		}
		if args := strings.Join((*argv)[0], " "); !strings.Contains(args, "pvs --reportformat=json") || !strings.Contains(args, "/dev/loop0") {
			t.Errorf("unexpected args %q", args)
		}
	})

	t.Run("volume groups", func(t *testing.T) {
		r, _, _ := newFakeRunner(t, fakeRun{stdout: `{"report":[{"vg":[
			{"vg_uuid":"def","vg_name":"vg0","vg_attr":"wz--n-","vg_exported":"0","vg_partial":"1",
			 "vg_clustered":"0","vg_size":"2139095040B","vg_free":"2134900736B","vg_extent_size":"4194304B",
			 "vg_extent_count":"510","vg_free_count":"509","max_lv":"0","max_pv":"0","pv_count":"2",
			 "lv_count":"1","vg_seqno":"7","vg_tags":"a,b"}]}]}`})
		vgs, err := r.ListVolumeGroups(context.Background(), nil)
		if err != nil {
			t.Fatalf("ListVolumeGroups() error = %v", err)
		}
		if len(vgs) != 1 {
			t.Fatalf("expected 1 VG, got %d", len(vgs))
		}
		vg := vgs[0]
		if vg.SeqNo != 7 || !bool(vg.Partial) || vg.ExtentSize != 4<<20 || vg.PVCount != 2 {
			t.Errorf("unexpected VG %+v", vg)
		}
		if tags := SplitTags(vg.Tags); len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
			t.Errorf("SplitTags() = %v", tags)
		}
	})

	t.Run("logical volumes collapse segments", func(t *testing.T) {
		row := `{"lv_uuid":"ghi","lv_name":"lv0","lv_full_name":"vg0/lv0","lv_path":"/dev/vg0/lv0",
			"vg_name":"vg0","lv_attr":"-wi-a-----","lv_active_locally":"1","lv_suspended":"0",
			"lv_size":"8388608B","origin":"","pool_lv":"","lv_tags":"","segtype":"linear",
			"chunk_size":"","discards":""}`
		r, _, _ := newFakeRunner(t, fakeRun{stdout: `{"report":[{"lv":[` + row + `,` + row + `]}]}`})
		lvs, err := r.ListLogicalVolumes(context.Background(), &ListLVOptions{Names: []string{"vg0"}})
		if err != nil {
			t.Fatalf("ListLogicalVolumes() error = %v", err)
		}
		if len(lvs) != 1 {
			t.Fatalf("expected 1 LV, got %d", len(lvs))
		}
		if lvs[0].Size != 8<<20 || !bool(lvs[0].ActiveLocally) || lvs[0].ChunkSize != 0 || lvs[0].Hidden() {
			t.Errorf("unexpected LV %+v", lvs[0])
		}
	})

	t.Run("malformed", func(t *testing.T) {
		r, _, _ := newFakeRunner(t, fakeRun{stdout: `{"report":[{"vg":[{"vg_seqno":"x"}]}]}`})
		_, err := r.ListVolumeGroups(context.Background(), nil)
		if !errors.Is(err, ErrMalformedReport) {
			t.Errorf("ListVolumeGroups() error = %v, want ErrMalformedReport", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		r, _, _ := newFakeRunner(t, fakeRun{stdout: `{"report":[]}`})
		lvs, err := r.ListLogicalVolumes(context.Background(), nil)
		if err != nil || len(lvs) != 0 {
			t.Errorf("ListLogicalVolumes() = %v, %v", lvs, err)
		}
	})
}

func TestChangeCommands(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(r *Runner) error
		want []string
	}{
		{
			name: "pvcreate",
			call: func(r *Runner) error {
				return r.CreatePhysicalVolume(ctx, CreatePVOptions{Name: "/dev/loop0"})
			},
			want: []string{"pvcreate", "--yes", "/dev/loop0"},
		},
		{
			name: "vgcreate",
			call: func(r *Runner) error {
				return r.CreateVolumeGroup(ctx, CreateVGOptions{Name: "vg0", PVNames: []string{"/dev/loop0", "/dev/loop1"}})
			},
			want: []string{"vgcreate", "--yes", "vg0", "/dev/loop0", "/dev/loop1"},
		},
		{
			name: "vgextend",
			call: func(r *Runner) error {
				return r.ExtendVolumeGroup(ctx, ExtendVGOptions{Name: "vg0", PVNames: []string{"/dev/loop2"}})
			},
			want: []string{"vgextend", "vg0", "/dev/loop2"},
		},
		{
			name: "lvcreate",
			call: func(r *Runner) error {
				return r.CreateLogicalVolume(ctx, CreateLVOptions{Name: "lv0", VGName: "vg0", Size: Bytes(8 << 20)})
			},
			want: []string{"lvcreate", "vg0", "lv0", "8388608B"},
		},
		{
			name: "lvresize",
			call: func(r *Runner) error {
				return r.ResizeLogicalVolume(ctx, ResizeLVOptions{Name: "vg0/lv0", Size: Bytes(4 << 20), Force: true})
			},
			want: []string{"lvresize", "vg0/lv0", "4194304B"},
		},
		{
			name: "lvrename",
			call: func(r *Runner) error {
				return r.RenameLogicalVolume(ctx, RenameLVOptions{From: "vg0/lv0", To: "vg0/lv1"})
			},
			want: []string{"lvrename", "vg0/lv0", "vg0/lv1"},
		},
		{
			name: "lvremove",
			call: func(r *Runner) error {
				return r.RemoveLogicalVolume(ctx, RemoveLVOptions{Name: "vg0/lv1"})
			},
			want: []string{"lvremove", "--yes", "vg0/lv1"},
		},
		{
			name: "vgremove",
			call: func(r *Runner) error {
				return r.RemoveVolumeGroup(ctx, RemoveVGOptions{Name: "vg0"})
			},
			want: []string{"vgremove", "vg0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, argv, _ := newFakeRunner(t, fakeRun{})
			if err := tt.call(r); err != nil {
				t.Fatalf("%s error = %v", tt.name, err)
			}
			got := (*argv)[0]
			if got[1] != tt.want[0] {
				t.Errorf("ran %v, want command %s", got, tt.want[0])
			}
			joined := strings.Join(got, " ")
			for _, w := range tt.want {
				if !strings.Contains(joined, w) {
					t.Errorf("args %q missing %q", joined, w)
				}
			}
		})
	}
}

func TestErrno(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		err    error
		want   syscall.Errno
	}{
		{name: "nil", want: 0},
		{name: "not a command error", err: errors.New("boom"), want: syscall.EIO},
		{name: "missing vg", stderr: `  Volume group "vg9" not found`, want: syscall.ENOENT},
		{name: "missing lv", stderr: `  Failed to find logical volume "vg0/lv9"`, want: syscall.ENOENT},
		{name: "duplicate lv", stderr: `  Logical Volume "lv0" already exists in volume group "vg0"`, want: syscall.EEXIST},
		{name: "pv in another vg", stderr: `  Physical volume '/dev/loop0' is already in volume group 'vg1'`, want: syscall.EEXIST},
		{name: "pv in use", stderr: `  PV /dev/loop0 is used by VG vg0 so please use vgreduce first.`, want: syscall.EBUSY},
		{name: "no space", stderr: `  Volume group "vg0" has insufficient free space (10 extents): 25 required.`, want: syscall.ENOSPC},
		{name: "lock", stderr: `  Can't get lock for vg0.`, want: syscall.EAGAIN},
		{name: "permission", stderr: `  /dev/loop0: open failed: Permission denied`, want: syscall.EPERM},
		{name: "invalid", stderr: `  Invalid argument for --size: 1X`, want: syscall.EINVAL},
		{name: "unknown", stderr: `  Internal error: something odd`, want: syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.err
			if err == nil && tt.stderr != "" {
				err = newCommandError([]string{"lvs"}, tt.stderr, &testingexec.FakeExitError{Status: 5})
			}
			if got := Errno(err); got != tt.want {
				t.Errorf("Errno() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	r, _, _ := newFakeRunner(t, fakeRun{
		stderr: "  WARNING: something\n  Volume group \"vg9\" not found\n",
		err:    &testingexec.FakeExitError{Status: 5},
	})
	err := r.RemoveVolumeGroup(context.Background(), RemoveVGOptions{Name: "vg9"})
	var ce *CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %T", err)
	}
	if ce.ExitCode != 5 {
		t.Errorf("ExitCode = %d, want 5", ce.ExitCode)
	}
	if ce.Message() != `Volume group "vg9" not found` {
		t.Errorf("Message() = %q", ce.Message())
	}
	if Errno(err) != syscall.ENOENT {
		t.Errorf("Errno() = %v, want ENOENT", Errno(err))
	}
}
