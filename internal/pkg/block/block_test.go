// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package block

import (
	"context"
	"reflect"
	"testing"

	"k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"
)

const lsblkJSON = `{
   "blockdevices": [
      {"name":"sda", "path":"/dev/sda", "maj:min":"8:0", "rm":false, "type":"disk", "fstype":null, "mountpoint":null, "model":"Samsung SSD", "serial":"123456789", "size":536870912000,
         "children": [
            {"name":"sda1", "path":"/dev/sda1", "maj:min":"8:1", "rm":false, "type":"part", "fstype":"ext4", "mountpoint":"/", "model":null, "serial":null, "size":536869863424}
         ]
      },
      {"name":"sdb", "path":"/dev/sdb", "maj:min":"8:16", "rm":false, "type":"disk", "fstype":null, "mountpoint":null, "model":"WD HDD", "serial":"987654321", "size":1099511627776},
      {"name":"loop0", "path":"/dev/loop0", "maj:min":"7:0", "rm":false, "type":"loop", "fstype":"LVM2_member", "mountpoint":null, "model":null, "serial":null, "size":1073741824},
      {"name":"sr0", "path":"/dev/sr0", "maj:min":"11:0", "rm":true, "type":"rom", "fstype":null, "mountpoint":null, "model":"DVD", "serial":null, "size":1024}
   ]
}`

func TestParseLsblkOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    *DeviceList
		wantErr bool
	}{
		{
			name:   "Valid lsblk output",
			output: `{"blockdevices": [{"name":"sdb", "path":"/dev/sdb", "maj:min":"8:16", "rm":true, "type":"disk", "fstype":null, "size":68719476736}]}`,
			want: &DeviceList{Devices: []Device{{
				Name: "sdb", Path: "/dev/sdb", MajMin: "8:16", Removable: true, Type: "disk", Size: 68719476736,
			}}},
		},
		{
			name:   "Empty lsblk output",
			output: `{"blockdevices": []}`,
			want:   &DeviceList{Devices: []Device{}},
		},
		{
			name:    "Invalid JSON",
			output:  `{"blockdevices": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLsblkOutput([]byte(tt.output))
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLsblkOutput() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseLsblkOutput() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	list, err := parseLsblkOutput([]byte(lsblkJSON))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range list.Flatten() {
		names = append(names, d.Name)
	}
	if want := []string{"sda", "sda1", "sdb", "loop0", "sr0"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Flatten() = %v, want %v", names, want)
	}

	avail := list.Available()
	if len(avail) != 1 || avail[0].Path != "/dev/sdb" {
		t.Errorf("Available() = %+v, want only /dev/sdb", avail)
	}
	if !list.Devices[2].IsPhysicalVolume() || list.Devices[1].IsPhysicalVolume() {
		t.Error("IsPhysicalVolume() mismatch")
	}
}

func TestGetDevices(t *testing.T) {
	var gotArgs []string
	fcmd := &testingexec.FakeCmd{
		OutputScript: []testingexec.FakeAction{
			func() ([]byte, []byte, error) { return []byte(lsblkJSON), nil, nil },
		},
	}
	fexec := &testingexec.FakeExec{
		LookPathFunc: func(cmd string) (string, error) { return "/usr/bin/" + cmd, nil },
		CommandScript: []testingexec.FakeCommandAction{
			func(cmd string, args ...string) exec.Cmd {
				gotArgs = append([]string{cmd}, args...)
				return testingexec.InitFakeCmd(fcmd, cmd, args...)
			},
		},
	}

	list, err := New(fexec).GetDevices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Devices) != 4 {
		t.Errorf("GetDevices() returned %d devices, want 4", len(list.Devices))
	}
	want := []string{"lsblk", "--bytes", "--json", "--tree", "--output", lsblkColumns}
	if !reflect.DeepEqual(gotArgs, want) {
		t.Errorf("lsblk args = %v, want %v", gotArgs, want)
	}
}
