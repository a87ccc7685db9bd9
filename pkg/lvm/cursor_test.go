// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"lvm-access/internal/pkg/engine/dmlist"
)

func TestEntries(t *testing.T) {
	tests := []struct {
		name    string
		list    *dmlist.List[string]
		want    []string
		wantErr error
	}{
		{name: "nil head", list: nil, wantErr: errNullList},
		{name: "empty", list: dmlist.New[string](), want: nil},
		{name: "order", list: dmlist.FromSlice([]string{"b", "a", "c"}), want: []string{"B", "A", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := entries(tt.list, strings.ToUpper)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("entries() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := slices.Collect(seq); !slices.Equal(got, tt.want) {
				t.Errorf("entries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntriesStopsEarly(t *testing.T) {
	list := dmlist.FromSlice([]int{1, 2, 3, 4})
	seq, err := entries(list, identity[int])
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for v := range seq {
		got = append(got, v)
		if v == 2 {
			break
		}
	}
	if !slices.Equal(got, []int{1, 2}) {
		t.Errorf("got %v, want [1 2]", got)
	}
	if list.Len() != 4 {
		t.Errorf("list.Len() = %d after iteration, want 4", list.Len())
	}
}
