// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package engine

import (
	"strings"
	"syscall"
	"testing"
)

func TestFormatID(t *testing.T) {
	raw := "abcdef0123ABCD4567efgh89ijKLMNOP"
	want := "abcdef-0123-ABCD-4567-efgh-89ij-KLMNOP"
	if got := FormatID(raw); got != want {
		t.Errorf("FormatID() = %q, want %q", got, want)
	}
	if got := FormatID("short"); got != "short" {
		t.Errorf("FormatID(short) = %q, want unchanged", got)
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "plain",
			in:   "abcdef0123ABCD4567efgh89ijKLMNOP",
			want: "abcdef0123ABCD4567efgh89ijKLMNOP",
		},
		{
			name: "formatted",
			in:   "abcdef-0123-ABCD-4567-efgh-89ij-KLMNOP",
			want: "abcdef0123ABCD4567efgh89ijKLMNOP",
		},
		{
			name: "special characters",
			in:   "!#cdef0123ABCD4567efgh89ijKLMNOP",
			want: "!#cdef0123ABCD4567efgh89ijKLMNOP",
		},
		{
			name:    "too short",
			in:      "abc",
			wantErr: true,
		},
		{
			name:    "misplaced separator",
			in:      "abcde-f0123-ABCD-4567-efgh-89ij-KLMNOP",
			wantErr: true,
		},
		{
			name:    "separator inside group",
			in:      "abcdef-01-3-ABCD-4567-efgh-89ij-KLMNOP",
			wantErr: true,
		},
		{
			name:    "invalid character",
			in:      "abcdef0123ABCD4567efgh89ijKLMN?P",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewID(t *testing.T) {
	var entropy [IDLen]byte
	for i := range entropy {
		entropy[i] = byte(i * 37)
	}
	id := NewID(entropy)
	if len(id) != IDLen {
		t.Fatalf("len(NewID()) = %d, want %d", len(id), IDLen)
	}
	if _, err := NormalizeID(id); err != nil {
		t.Errorf("NewID() produced invalid id %q: %v", id, err)
	}
}

func TestValidateNames(t *testing.T) {
	tests := []struct {
		name    string
		check   func(string) (syscall.Errno, string)
		in      string
		wantErr bool
	}{
		{name: "vg ok", check: ValidateVGName, in: "vg_data-01.x+"},
		{name: "vg empty", check: ValidateVGName, in: "", wantErr: true},
		{name: "vg dot", check: ValidateVGName, in: "..", wantErr: true},
		{name: "vg hyphen", check: ValidateVGName, in: "-vg", wantErr: true},
		{name: "vg slash", check: ValidateVGName, in: "vg/1", wantErr: true},
		{name: "vg too long", check: ValidateVGName, in: strings.Repeat("a", MaxNameLen+1), wantErr: true},
		{name: "lv ok", check: ValidateLVName, in: "lv0"},
		{name: "lv reserved prefix", check: ValidateLVName, in: "snapshot1", wantErr: true},
		{name: "lv reserved suffix", check: ValidateLVName, in: "pool_tmeta", wantErr: true},
		{name: "tag ok", check: ValidateTag, in: "owner=team/a"},
		{name: "tag space", check: ValidateTag, in: "a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errno, msg := tt.check(tt.in)
			if (errno != 0) != tt.wantErr {
				t.Fatalf("errno = %v (%s), wantErr %v", errno, msg, tt.wantErr)
			}
			if tt.wantErr && (errno != syscall.EINVAL || msg == "") {
				t.Errorf("got errno %v msg %q, want EINVAL with message", errno, msg)
			}
		})
	}
}

func TestDiscardString(t *testing.T) {
	for d, want := range map[Discard]string{
		DiscardIgnore:     "ignore",
		DiscardNoPassdown: "nopassdown",
		DiscardPassdown:   "passdown",
		Discard(9):        "unknown",
	} {
		if got := d.String(); got != want {
			t.Errorf("Discard(%d).String() = %q, want %q", int(d), got, want)
		}
	}
}

func TestPVCreateParams(t *testing.T) {
	p := NewPVCreateParams("/dev/sdb", 0)
	if prop, errno, _ := p.Get("zero"); errno != 0 || prop.Integer != 1 || !prop.Settable {
		t.Errorf("Get(zero) = %+v, %v", prop, errno)
	}

	tests := []struct {
		name      string
		prop      string
		value     Property
		wantErrno syscall.Errno
	}{
		{name: "size", prop: "size", value: Property{IsInteger: true, Integer: 8 << 20}},
		{name: "two copies", prop: "pvmetadatacopies", value: Property{IsInteger: true, Integer: 2}},
		{name: "three copies", prop: "pvmetadatacopies", value: Property{IsInteger: true, Integer: 3}, wantErrno: syscall.EINVAL},
		{name: "zero flag", prop: "zero", value: Property{IsInteger: true, Integer: 2}, wantErrno: syscall.EINVAL},
		{name: "string value", prop: "data_alignment", value: Property{IsString: true, String: "1m"}, wantErrno: syscall.EINVAL},
		{name: "unknown", prop: "extent_size", value: Property{IsInteger: true}, wantErrno: syscall.EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errno, msg := p.Set(tt.prop, tt.value)
			if errno != tt.wantErrno {
				t.Fatalf("Set(%s) errno = %v (%s), want %v", tt.prop, errno, msg, tt.wantErrno)
			}
			if errno != 0 {
				return
			}
			got, _, _ := p.Get(tt.prop)
			if got.Integer != tt.value.Integer {
				t.Errorf("Get(%s) = %d, want %d", tt.prop, got.Integer, tt.value.Integer)
			}
		})
	}
	if p.Size != 8<<20 || p.MetadataCopies != 2 {
		t.Errorf("params = %+v", p)
	}
}
