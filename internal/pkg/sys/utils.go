// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package sys provides utility functions for working with the operating system.
package sys

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"k8s.io/utils/exec"
)

const (
	BlkidCmd = "blkid"
)

// Utils is an interface for OS utility functions.
type Utils interface {
	IsBlockDevice(path string) (bool, error)
	IsBlkDevUnformatted(device string) (bool, error)
}

// sys is a concrete implementation of the Utils interface.
type sys struct {
	exec exec.Interface
}

var _ Utils = &sys{}

// New returns Utils backed by the host's exec. A nil exec uses exec.New().
func New(e exec.Interface) Utils {
	if e == nil {
		e = exec.New()
	}
	return &sys{
		exec: e,
	}
}

// IsBlockDevice reports whether the given path is a block device.
func (s *sys) IsBlockDevice(path string) (bool, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat path %s: %w", path, err)
	}

	stat, ok := fileInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("failed to get raw syscall.Stat_t data for %s", path)
	}

	return (stat.Mode & syscall.S_IFMT) == syscall.S_IFBLK, nil
}

// IsBlkDevUnformatted reports whether the given block device carries no
// filesystem, partition table or other signature. Paths that are not block
// devices report false.
func (s *sys) IsBlkDevUnformatted(blockDev string) (bool, error) {
	isBlk, err := s.IsBlockDevice(blockDev)
	if err != nil || !isBlk {
		return false, err
	}
	return s.probeUnformatted(blockDev)
}

// probeUnformatted runs blkid in low-level probing mode. blkid exit status is:
//   - 0, the device has a recognised signature.
//   - 2, no signature was found.
//   - 4, usage or other errors.
//   - 8, ambivalent probing result.
func (s *sys) probeUnformatted(blockDev string) (bool, error) {
	_, err := s.exec.Command(BlkidCmd, "-p", blockDev).CombinedOutput()
	if err == nil {
		return false, nil
	}
	var exit exec.ExitError
	if errors.As(err, &exit) && exit.ExitStatus() == 2 {
		return true, nil
	}
	return false, fmt.Errorf("could not discover filesystem format for device path (%s): %w", blockDev, err)
}
