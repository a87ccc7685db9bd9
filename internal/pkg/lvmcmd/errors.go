// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcmd

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"k8s.io/utils/exec"
)

// CommandError is returned when an lvm command exits unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Message returns the last line lvm wrote to stderr, which carries the
// reason for the failure.
func (e *CommandError) Message() string {
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	msg := strings.TrimSpace(lines[len(lines)-1])
	if msg == "" {
		return e.Error()
	}
	return msg
}

func newCommandError(args []string, stderr string, err error) *CommandError {
	ce := &CommandError{Args: args, Stderr: strings.TrimSpace(stderr), Err: err, ExitCode: -1}
	var exitErr exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitStatus()
	}
	return ce
}

// errnoRules map lvm diagnostics to error numbers. LVM error messages are
// inconsistent, so matching on the text is the only way to classify them.
// Order matters: the first matching rule wins.
//
// Example diagnostics:
//   - Volume group "vg0" not found
//   - Failed to find logical volume "vg0/lv0"
//   - Logical Volume "lv0" already exists in volume group "vg0"
//   - Volume group "vg0" has insufficient free space (10 extents): 25 required.
//   - Physical volume '/dev/loop0' is already in volume group 'vg1'
var errnoRules = []struct {
	errno    syscall.Errno
	patterns []string
}{
	{syscall.ENOENT, []string{"failed to find", "not found", "no pv label", "no such file"}},
	{syscall.EEXIST, []string{"already exists", "is already in volume group", "not unique"}},
	{syscall.EBUSY, []string{"in use", "still contains", "is used by vg", "can't initialize", "contains a filesystem", "open logical volume"}},
	{syscall.ENOSPC, []string{"insufficient free space", "insufficient suitable", "maximum number"}},
	{syscall.EAGAIN, []string{"get lock", "locking failed", "is locked", "resource temporarily unavailable"}},
	{syscall.EPERM, []string{"permission denied", "read-only", "read only"}},
	{syscall.EINVAL, []string{"invalid", "must be", "unrecognised", "unrecognized", "not allowed", "cannot"}},
}

// Errno classifies an error returned by the Runner. Errors that are not
// command failures, or whose diagnostics match no rule, report EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var ce *CommandError
	if !errors.As(err, &ce) {
		return syscall.EIO
	}
	msg := strings.ToLower(ce.Stderr)
	for _, rule := range errnoRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.errno
			}
		}
	}
	return syscall.EIO
}
