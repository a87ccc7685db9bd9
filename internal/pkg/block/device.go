// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package block

import "slices"

// lvmMember is the lsblk filesystem type of an LVM physical volume.
const lvmMember = "LVM2_member"

// Device represents a block device in the lsblk output.
type Device struct {
	Name       string   `json:"name"`
	Path       string   `json:"path,omitempty"`
	MajMin     string   `json:"maj:min,omitempty"`
	Removable  bool     `json:"rm,omitempty"`
	Type       string   `json:"type,omitempty"`
	FSType     string   `json:"fstype,omitempty"`
	Mountpoint string   `json:"mountpoint,omitempty"`
	Model      string   `json:"model,omitempty"`
	Serial     string   `json:"serial,omitempty"`
	Size       int64    `json:"size,omitempty"`
	Children   []Device `json:"children,omitempty"`
}

// DeviceList represents the output of the lsblk command.
type DeviceList struct {
	Devices []Device `json:"blockdevices"`
}

// IsPhysicalVolume reports whether the device carries an LVM label.
func (d Device) IsPhysicalVolume() bool {
	return d.FSType == lvmMember
}

// IsAvailable reports whether the device could be initialized as a physical
// volume: a disk, partition or loop device with no signature, no mountpoint
// and no holders.
func (d Device) IsAvailable() bool {
	return slices.Contains([]string{"disk", "part", "loop"}, d.Type) &&
		d.FSType == "" && d.Mountpoint == "" && len(d.Children) == 0 && d.Size > 0
}

// Flatten returns every device in the tree, parents before children.
func (l *DeviceList) Flatten() []Device {
	var out []Device
	var walk func([]Device)
	walk = func(devices []Device) {
		for _, d := range devices {
			out = append(out, d)
			walk(d.Children)
		}
	}
	walk(l.Devices)
	return out
}

// Available returns the devices that could become physical volumes.
func (l *DeviceList) Available() []Device {
	var out []Device
	for _, d := range l.Flatten() {
		if d.IsAvailable() {
			out = append(out, d)
		}
	}
	return out
}
