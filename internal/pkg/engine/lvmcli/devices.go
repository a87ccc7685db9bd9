// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvmcli

// DeviceChecker inspects a device before it is initialized as a physical
// volume.
//
//go:generate mockgen -copyright_file ../../../../hack/mockgen_copyright.txt -destination=mock_devices.go -package=lvmcli -source=devices.go DeviceChecker
type DeviceChecker interface {
	IsBlkDevUnformatted(device string) (bool, error)
}
