// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import "lvm-access/internal/pkg/engine"

// UUID is an lvm identifier: 32 characters from [0-9A-Za-z!#]. It is stored
// without separators and printed in the hyphenated 6-4-4-4-4-4-6 form.
type UUID string

// ParseUUID accepts the plain or the hyphenated form.
func ParseUUID(s string) (UUID, error) {
	id, err := engine.NormalizeID(s)
	if err != nil {
		return "", &ParseError{Value: s, Reason: err.Error()}
	}
	return UUID(id), nil
}

// MustParseUUID is like ParseUUID but panics on malformed input.
func MustParseUUID(s string) UUID {
	id, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (u UUID) String() string {
	return engine.FormatID(string(u))
}

// IsZero reports whether u is unset.
func (u UUID) IsZero() bool {
	return u == ""
}

// uuidOf parses an identifier read from a getter. Malformed values yield the
// zero UUID.
func uuidOf(s string) UUID {
	id, err := ParseUUID(s)
	if err != nil {
		return ""
	}
	return id
}
