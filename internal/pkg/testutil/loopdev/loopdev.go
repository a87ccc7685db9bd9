// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package loopdev creates sparse loopback devices for tests that need real
// block devices.
package loopdev

import (
	"fmt"
	"os"
	"os/user"
	"testing"

	"pault.ag/go/loopback"
)

// IsRoot reports whether the test process runs as root.
func IsRoot() bool {
	u, err := user.Current()
	return err == nil && u.Uid == "0"
}

// Create attaches a sparse file of the given size to the next free loop
// device. It returns the device path and a function that detaches the device
// and removes the backing file.
func Create(size int64) (string, func(), error) {
	img, err := os.CreateTemp("", "lvm-access-loop")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create backing file: %w", err)
	}
	defer img.Close() //nolint:errcheck

	if err := img.Truncate(size); err != nil {
		_ = os.Remove(img.Name())
		return "", nil, fmt.Errorf("failed to size backing file: %w", err)
	}

	dev, err := loopback.NextLoopDevice()
	if err != nil {
		_ = os.Remove(img.Name())
		return "", nil, fmt.Errorf("failed to get next loop device: %w", err)
	}
	if err := loopback.Loop(dev, img); err != nil {
		_ = dev.Close()
		_ = os.Remove(img.Name())
		return "", nil, fmt.Errorf("failed to attach %s: %w", dev.Name(), err)
	}

	cleanup := func() {
		if err := loopback.Unloop(dev); err != nil {
			fmt.Printf("failed to detach loopback device: %v\n", err)
		}
		if err := os.Remove(img.Name()); err != nil {
			fmt.Printf("failed to remove backing file: %v\n", err)
		}
	}
	return dev.Name(), cleanup, nil
}

// Device creates a loop device for the duration of the test. The test is
// skipped unless it runs as root.
func Device(t testing.TB, size int64) string {
	t.Helper()
	if !IsRoot() {
		t.Skip("skipping test; must be root to create loopback devices")
	}
	name, cleanup, err := Create(size)
	if err != nil {
		t.Fatalf("failed to create loop device: %v", err)
	}
	t.Cleanup(cleanup)
	return name
}
