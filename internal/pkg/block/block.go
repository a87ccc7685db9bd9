// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package block

import (
	"context"
	"encoding/json"
	"fmt"

	utilexec "k8s.io/utils/exec"
)

const (
	// lsblkCommand is the command to list block devices.
	lsblkCommand = "lsblk"
)

// lsblkColumns are the columns decoded into Device.
const lsblkColumns = "NAME,PATH,MAJ:MIN,RM,TYPE,FSTYPE,MOUNTPOINT,MODEL,SERIAL,SIZE"

// Interface lists the host's block devices.
type Interface interface {
	GetDevices(ctx context.Context) (*DeviceList, error)
}

// block implements the Interface.
type block struct {
	exec utilexec.Interface
}

var _ Interface = &block{}

// New returns a new block instance.
func New(exec utilexec.Interface) Interface {
	return &block{
		exec: exec,
	}
}

// GetDevices returns the device tree reported by lsblk. Only stdout is
// decoded; lsblk warns on stderr about devices it cannot open.
func (l *block) GetDevices(ctx context.Context) (*DeviceList, error) {
	if _, err := l.exec.LookPath(lsblkCommand); err != nil {
		return nil, fmt.Errorf("unable to find %s in PATH: %w", lsblkCommand, err)
	}

	output, err := l.exec.CommandContext(ctx, lsblkCommand, "--bytes", "--json", "--tree", "--output", lsblkColumns).Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", lsblkCommand, err)
	}
	return parseLsblkOutput(output)
}

// parseLsblkOutput parses the JSON output of the lsblk command.
func parseLsblkOutput(output []byte) (*DeviceList, error) {
	var list DeviceList
	if err := json.Unmarshal(output, &list); err != nil {
		return nil, fmt.Errorf("failed to parse lsblk output: %w", err)
	}
	return &list, nil
}
