// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"errors"
	"iter"

	"lvm-access/internal/pkg/engine/dmlist"
)

// errNullList is returned for a nil list head, which the engine uses to
// signal failure. An empty list is a valid result.
var errNullList = errors.New("engine returned no list")

// entries walks an engine list from its first entry back to the sentinel,
// projecting each payload. Nodes are only read; the list stays owned by the
// engine.
func entries[T, R any](list *dmlist.List[T], project func(T) R) (iter.Seq[R], error) {
	if list == nil {
		return nil, errNullList
	}
	return func(yield func(R) bool) {
		for n := list.First(); n != nil; n = list.Next(n) {
			if !yield(project(n.Value)) {
				return
			}
		}
	}, nil
}

func identity[T any](v T) T { return v }
