// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import "testing"

func TestParseUUID(t *testing.T) {
	const plain = "abcdefghijklmnopqrstuvwxyz012345"
	const formatted = "abcdef-ghij-klmn-opqr-stuv-wxyz-012345"

	tests := []struct {
		name    string
		in      string
		want    UUID
		wantErr bool
	}{
		{name: "plain", in: plain, want: UUID(plain)},
		{name: "formatted", in: formatted, want: UUID(plain)},
		{name: "symbols", in: "!#cdefghijklmnopqrstuvwxyz012345", want: UUID("!#cdefghijklmnopqrstuvwxyz012345")},
		{name: "short", in: "abc", wantErr: true},
		{name: "bad separator", in: "abcdef_ghij-klmn-opqr-stuv-wxyz-012345", wantErr: true},
		{name: "bad character", in: "abcdefghijklmnopqrstuvwxyz01234$", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUUID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUUID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseUUID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := MustParseUUID(plain).String(); got != formatted {
		t.Errorf("String() = %q, want %q", got, formatted)
	}
	if uuidOf("garbage") != "" || !uuidOf("garbage").IsZero() {
		t.Error("uuidOf(malformed) is not the zero UUID")
	}
}

func TestMustParseUUIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseUUID did not panic on malformed input")
		}
	}()
	MustParseUUID("x")
}
