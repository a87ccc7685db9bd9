// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package engine

import (
	"fmt"
	"strings"
	"syscall"
)

const (
	// MaxNameLen is the longest VG or LV name the engine accepts.
	MaxNameLen = 127

	// MaxTagLen is the longest tag the engine accepts.
	MaxTagLen = 1024
)

// reservedLVSuffixes are used by the engine for hidden sub-volumes.
var reservedLVSuffixes = []string{
	"_cdata", "_cmeta", "_corig", "_mimage", "_mlog", "_pmspare",
	"_rimage", "_rmeta", "_tdata", "_tmeta", "_vorigin", "_vdata",
}

// ValidateVGName checks a volume group name against the engine's naming
// rules. It returns zero when the name is acceptable.
func ValidateVGName(name string) (syscall.Errno, string) {
	if errno, msg := validateName(name); errno != 0 {
		return errno, fmt.Sprintf("Volume group name %q: %s", name, msg)
	}
	return 0, ""
}

// ValidateLVName checks a logical volume name against the engine's naming
// rules, including names reserved for internal volumes.
func ValidateLVName(name string) (syscall.Errno, string) {
	if errno, msg := validateName(name); errno != 0 {
		return errno, fmt.Sprintf("Logical volume name %q: %s", name, msg)
	}
	if strings.HasPrefix(name, "snapshot") || strings.HasPrefix(name, "pvmove") {
		return syscall.EINVAL, fmt.Sprintf("Names starting %q are reserved. Please choose a different LV name.", name)
	}
	for _, suffix := range reservedLVSuffixes {
		if strings.Contains(name, suffix) {
			return syscall.EINVAL, fmt.Sprintf("Logical volume name %q is reserved (contains %s).", name, suffix)
		}
	}
	return 0, ""
}

// ValidateTag checks a tag against the engine's tag character set.
func ValidateTag(tag string) (syscall.Errno, string) {
	if tag == "" {
		return syscall.EINVAL, "Tag must not be empty."
	}
	if len(tag) > MaxTagLen {
		return syscall.EINVAL, fmt.Sprintf("Tag %q is too long.", tag)
	}
	for _, r := range tag {
		if !isNameChar(r) && !strings.ContainsRune("/=!:#&", r) {
			return syscall.EINVAL, fmt.Sprintf("Tag %q contains invalid character %q.", tag, r)
		}
	}
	return 0, ""
}

func validateName(name string) (syscall.Errno, string) {
	switch {
	case name == "":
		return syscall.EINVAL, "name must not be empty"
	case len(name) > MaxNameLen:
		return syscall.EINVAL, fmt.Sprintf("name is longer than %d characters", MaxNameLen)
	case name == "." || name == "..":
		return syscall.EINVAL, "name is reserved"
	case name[0] == '-':
		return syscall.EINVAL, "name must not begin with a hyphen"
	}
	for _, r := range name {
		if !isNameChar(r) {
			return syscall.EINVAL, fmt.Sprintf("invalid character %q", r)
		}
	}
	return 0, ""
}

func isNameChar(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '+', r == '_', r == '.', r == '-':
		return true
	}
	return false
}
