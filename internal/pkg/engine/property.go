// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package engine

// IntProperty returns a valid read-only integer property.
func IntProperty(v uint64) Property {
	return Property{Valid: true, IsInteger: true, Integer: v}
}

// StringProperty returns a valid read-only string property.
func StringProperty(s string) Property {
	return Property{Valid: true, IsString: true, String: s}
}
