// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package convert

import "k8s.io/apimachinery/pkg/api/resource"

const (
	// KiB represents the size of a kibibyte in bytes.
	KiB = 1024

	// MiB represents the size of a mebibyte in bytes.
	MiB = 1024 * KiB

	// GiB represents the size of a gibibyte in bytes.
	GiB = 1024 * MiB

	// TiB represents the size of a tebibyte in bytes.
	TiB = 1024 * GiB
)

// Extents returns how many extents of extentSize bytes are needed to hold
// size bytes. E.g. a 5 MiB volume needs 2 extents of 4 MiB.
func Extents(size, extentSize uint64) uint64 {
	if extentSize == 0 {
		return 0
	}
	n := size / extentSize
	if size%extentSize > 0 {
		n++
	}
	return n
}

// RoundUpToExtent rounds size up to a whole number of extents, in bytes.
func RoundUpToExtent(size, extentSize uint64) uint64 {
	return Extents(size, extentSize) * extentSize
}

// RoundUpMiB rounds up bytes to mebibytes.
func RoundUpMiB(bytes uint64) uint64 {
	return Extents(bytes, MiB)
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi uint64) uint64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// ParseSize parses a binary or decimal quantity such as "512Mi" or "10G" into
// bytes.
func ParseSize(s string) (uint64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, err
	}
	v, ok := q.AsInt64()
	if !ok || v < 0 {
		return 0, errInvalidSize(s)
	}
	return uint64(v), nil
}

// FormatSize renders bytes as a binary quantity, e.g. "4Gi".
func FormatSize(bytes uint64) string {
	return resource.NewQuantity(int64(bytes), resource.BinarySI).String()
}

type errInvalidSize string

func (e errInvalidSize) Error() string {
	return "invalid size: " + string(e)
}
