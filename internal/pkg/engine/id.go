// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package engine

import (
	"fmt"
	"strings"
)

const (
	// IDLen is the length of an unformatted identifier.
	IDLen = 32

	// FormattedIDLen is the length of an identifier with separators.
	FormattedIDLen = IDLen + 6

	// IDChars is the alphabet identifiers are drawn from.
	IDChars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!#"
)

// idGroups is the 6-4-4-4-4-4-6 grouping used when formatting.
var idGroups = []int{6, 4, 4, 4, 4, 4, 6}

// NewID maps 32 bytes of entropy onto the identifier alphabet.
func NewID(entropy [IDLen]byte) string {
	var b strings.Builder
	b.Grow(IDLen)
	for _, c := range entropy {
		b.WriteByte(IDChars[int(c)%len(IDChars)])
	}
	return b.String()
}

// FormatID inserts separators into a 32 character identifier. Identifiers of
// any other length are returned unchanged.
func FormatID(id string) string {
	if len(id) != IDLen {
		return id
	}
	var b strings.Builder
	b.Grow(FormattedIDLen)
	pos := 0
	for i, n := range idGroups {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(id[pos : pos+n])
		pos += n
	}
	return b.String()
}

// NormalizeID accepts the plain or the separated form and returns the plain
// form.
func NormalizeID(s string) (string, error) {
	switch len(s) {
	case IDLen:
	case FormattedIDLen:
		pos := 0
		for i, n := range idGroups {
			pos += n
			if i < len(idGroups)-1 {
				if s[pos] != '-' {
					return "", fmt.Errorf("expected separator at offset %d", pos)
				}
				pos++
			}
		}
		s = strings.ReplaceAll(s, "-", "")
		if len(s) != IDLen {
			return "", fmt.Errorf("unexpected separator")
		}
	default:
		return "", fmt.Errorf("length %d, want %d or %d", len(s), IDLen, FormattedIDLen)
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(IDChars, s[i]) < 0 {
			return "", fmt.Errorf("invalid character %q at offset %d", s[i], i)
		}
	}
	return s, nil
}
